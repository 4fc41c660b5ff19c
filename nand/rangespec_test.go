package nand

import (
	"errors"
	"reflect"
	"testing"
)

func span(start, end uint32) []uint32 {
	out := make([]uint32, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, i)
	}
	return out
}

func TestParseRanges(t *testing.T) {
	cases := []struct {
		spec  string
		total uint32
		want  []uint32
	}{
		{"", 16, nil},
		{"   ", 16, nil},
		{"3", 8, []uint32{3}},
		{"0x1f", 64, []uint32{31}},
		{"0X1F", 64, []uint32{31}},
		{"-", 8, span(0, 8)},
		{"10-", 16, span(10, 16)},
		{"-4", 16, span(0, 4)},
		{"2-5", 16, []uint32{2, 3, 4}},
		{"5-5", 16, []uint32{}},
		{"1,3,1,2-4", 8, []uint32{1, 2, 3}},
		{"0-0x100,4075", 4076, append(span(0, 256), 4075)},
	}
	for _, c := range cases {
		got, err := ParseRanges(c.spec, c.total)
		if err != nil {
			t.Errorf("ParseRanges(%q, %d): %v", c.spec, c.total, err)
			continue
		}
		if c.want == nil {
			if got != nil {
				t.Errorf("ParseRanges(%q, %d) = %v, want nil", c.spec, c.total, got)
			}
			continue
		}
		if !reflect.DeepEqual(got, c.want) && !(len(got) == 0 && len(c.want) == 0) {
			t.Errorf("ParseRanges(%q, %d) = %v, want %v", c.spec, c.total, got, c.want)
		}
	}
}

func TestParseRangesErrors(t *testing.T) {
	cases := []struct {
		spec  string
		total uint32
	}{
		{"a-b-c", 16},
		{"1-2-3", 16},
		{"x", 16},
		{"1,,3", 16},
		{"-0x", 16},
		{"9", 8},     // index beyond image
		{"0-9", 8},   // end beyond image
		{"4-,99", 8}, // second segment bad
	}
	for _, c := range cases {
		_, err := ParseRanges(c.spec, c.total)
		if err == nil {
			t.Errorf("ParseRanges(%q, %d): expected error", c.spec, c.total)
			continue
		}
		if !errors.Is(err, ErrRangeSyntax) {
			t.Errorf("ParseRanges(%q, %d): error %v does not wrap ErrRangeSyntax", c.spec, c.total, err)
		}
		var rse *RangeSyntaxError
		if !errors.As(err, &rse) {
			t.Errorf("ParseRanges(%q, %d): error %v is not a RangeSyntaxError", c.spec, c.total, err)
		}
	}
}

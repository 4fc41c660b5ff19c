package nand

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrRangeSyntax is the base error for malformed block-range specs.
var ErrRangeSyntax = errors.New("bad block range")

// RangeSyntaxError identifies the offending segment of a range spec.
type RangeSyntaxError struct {
	Segment string
	Reason  string
}

func (e *RangeSyntaxError) Error() string {
	return fmt.Sprintf("bad block range %q: %s", e.Segment, e.Reason)
}

func (e *RangeSyntaxError) Unwrap() error { return ErrRangeSyntax }

// ParseRanges turns a textual block-range spec into a deduplicated,
// ascending list of block indices over an image of `total` blocks.
//
// Grammar: comma-separated items, each a single index or a half-open
// span "start-end". Numbers are decimal, or hex with an 0x prefix. An
// omitted span start means 0; an omitted end means `total`. An empty
// spec returns nil, which callers treat as "the full image".
func ParseRanges(spec string, total uint32) ([]uint32, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil
	}
	set := make(map[uint32]bool)
	for _, item := range strings.Split(spec, ",") {
		item = strings.TrimSpace(item)
		parts := strings.Split(item, "-")
		switch len(parts) {
		case 1:
			idx, err := parseBlockNum(item, parts[0])
			if err != nil {
				return nil, err
			}
			if idx >= total {
				return nil, &RangeSyntaxError{Segment: item, Reason: fmt.Sprintf("block %d beyond image end %d", idx, total)}
			}
			set[idx] = true
		case 2:
			start, end := uint32(0), total
			var err error
			if parts[0] != "" {
				if start, err = parseBlockNum(item, parts[0]); err != nil {
					return nil, err
				}
			}
			if parts[1] != "" {
				if end, err = parseBlockNum(item, parts[1]); err != nil {
					return nil, err
				}
			}
			if end > total {
				return nil, &RangeSyntaxError{Segment: item, Reason: fmt.Sprintf("end %d beyond image end %d", end, total)}
			}
			for i := start; i < end; i++ {
				set[i] = true
			}
		default:
			return nil, &RangeSyntaxError{Segment: item, Reason: "more than one '-'"}
		}
	}
	out := make([]uint32, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out, nil
}

func parseBlockNum(segment, s string) (uint32, error) {
	var v uint64
	var err error
	if lower := strings.ToLower(s); strings.HasPrefix(lower, "0x") {
		v, err = strconv.ParseUint(lower[2:], 16, 32)
	} else {
		v, err = strconv.ParseUint(s, 10, 32)
	}
	if err != nil {
		return 0, &RangeSyntaxError{Segment: segment, Reason: fmt.Sprintf("%q is not a block number", s)}
	}
	return uint32(v), nil
}

package nand

import (
	"errors"
	"reflect"
	"testing"
)

func blockPattern(seed byte) []byte {
	data := make([]byte, BlockSize)
	for i := range data {
		data[i] = seed ^ byte(i*13)
	}
	return data
}

func TestScanBadBlocks(t *testing.T) {
	m := NewMemTransport(20)
	dev := Open(m)

	// Marker-flagged bad block.
	m.MarkBad(3)

	// Block that cannot be read at all.
	m.ReadErr[7] = errors.New("transport choked")

	// Written block whose data later takes an uncorrectable hit.
	data := blockPattern(0xA5)
	if err := dev.WriteBlock(5, data, SpareFor(data)); err != nil {
		t.Fatal(err)
	}
	hit := blockPattern(0xA5)
	hit[0] ^= 0x03 // two bits in one ECC region
	m.Poke(5, hit)

	// Written block with a single-bit hit: correctable, stays good.
	data9 := blockPattern(0x42)
	if err := dev.WriteBlock(9, data9, SpareFor(data9)); err != nil {
		t.Fatal(err)
	}
	hit9 := blockPattern(0x42)
	hit9[300] ^= 0x80
	m.Poke(9, hit9)

	table, err := ScanBadBlocks(dev)
	if err != nil {
		t.Fatal(err)
	}
	if got := table.Indices(); !reflect.DeepEqual(got, []uint32{3, 5, 7}) {
		t.Fatalf("bad blocks = %v, want [3 5 7]", got)
	}
	if table.Len() != 3 {
		t.Fatalf("Len = %d, want 3", table.Len())
	}
	for _, i := range []uint32{3, 5, 7} {
		if !table.IsBad(i) {
			t.Errorf("IsBad(%d) = false", i)
		}
	}
	if table.IsBad(9) {
		t.Error("correctable single-bit hit classified the block bad")
	}
	if table.IsBad(0) {
		t.Error("erased block classified bad")
	}
}

func TestDeviceBounds(t *testing.T) {
	dev := Open(NewMemTransport(4))

	_, _, err := dev.ReadBlock(4)
	var be *BlockError
	if !errors.As(err, &be) || be.Index != 4 || be.Op != "read" {
		t.Fatalf("out-of-range read error = %v", err)
	}

	err = dev.WriteBlock(0, make([]byte, 10), BlankSpare())
	if !errors.As(err, &be) {
		t.Fatalf("short-data write error = %v", err)
	}
	err = dev.WriteBlock(0, make([]byte, BlockSize), make([]byte, 3))
	if !errors.As(err, &be) {
		t.Fatalf("short-spare write error = %v", err)
	}
}

package nand

import "sort"

// Spare layout: byte 5 is the bad-block marker (any value other than
// 0xFF flags the block factory- or runtime-bad, the classic small-page
// NAND convention). Bytes 8..14 hold two 3-byte parity codes covering
// the block's first two 256-byte regions, where the filesystem keeps
// its critical headers. Everything else stays erased (0xFF).
const (
	spareBadMarker = 5
	spareEccOff    = 8
)

// BlankSpare returns a fully erased spare region.
func BlankSpare() []byte {
	s := make([]byte, SpareSize)
	for i := range s {
		s[i] = 0xFF
	}
	return s
}

// SpareFor builds the spare region to accompany a block write: erased
// except for the parity codes over the data's first 512 bytes.
func SpareFor(data []byte) []byte {
	s := BlankSpare()
	c0 := EccCompute(data[:256])
	c1 := EccCompute(data[256:512])
	copy(s[spareEccOff:], c0[:])
	copy(s[spareEccOff+3:], c1[:])
	return s
}

// MarkSpareBad sets the bad-block marker in a spare region.
func MarkSpareBad(spare []byte) {
	spare[spareBadMarker] = 0x00
}

func spareMarkedBad(spare []byte) bool {
	return spare[spareBadMarker] != 0xFF
}

// spareEccBad recomputes the spare's parity codes against the data and
// reports an uncorrectable mismatch. An erased code area means no ECC
// was recorded and is never treated as damage.
func spareEccBad(data, spare []byte) bool {
	erased := true
	for _, b := range spare[spareEccOff : spareEccOff+6] {
		if b != 0xFF {
			erased = false
			break
		}
	}
	if erased {
		return false
	}
	var s0, s1 [3]byte
	copy(s0[:], spare[spareEccOff:])
	copy(s1[:], spare[spareEccOff+3:])
	if EccCheck(s0, EccCompute(data[:256])) == EccUncorrectable {
		return true
	}
	return EccCheck(s1, EccCompute(data[256:512])) == EccUncorrectable
}

// BadBlockTable is the set of block indices unusable as write targets.
// Derived once per session by ScanBadBlocks; read-only afterwards.
type BadBlockTable struct {
	bad map[uint32]bool
}

// ScanBadBlocks classifies every block on the device. A block is bad
// if its spare marker says so, if its recorded ECC is uncorrectable
// against the data, or if the block cannot be read at all.
func ScanBadBlocks(d *Device) (*BadBlockTable, error) {
	t := &BadBlockTable{bad: make(map[uint32]bool)}
	for i := uint32(0); i < d.Blocks(); i++ {
		data, spare, err := d.ReadBlock(i)
		if err != nil {
			t.bad[i] = true
			continue
		}
		if spareMarkedBad(spare) || spareEccBad(data, spare) {
			t.bad[i] = true
		}
	}
	return t, nil
}

// IsBad reports whether a block index is in the table.
func (t *BadBlockTable) IsBad(index uint32) bool {
	return t.bad[index]
}

// Len returns the number of bad blocks.
func (t *BadBlockTable) Len() int { return len(t.bad) }

// Indices returns the bad block indices in ascending order.
func (t *BadBlockTable) Indices() []uint32 {
	out := make([]uint32, 0, len(t.bad))
	for i := range t.bad {
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}

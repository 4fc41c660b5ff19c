package bbfs

import (
	"encoding/binary"
	"fmt"

	"bbnand/nand"
)

// Superblock on-media layout, one full block, big-endian:
//
//	N x uint16    allocation table (one entry per device block)
//	M x 20 bytes  directory entries, M = what fits before the footer
//	12 bytes      footer: magic | seq uint32 | link uint16 | check uint16
//
// The check field is chosen so the 16-bit big-endian words of the
// whole block sum to 0xCAD7.
const (
	superMagic   = 0x42424653 // "BBFS"
	checkTarget  = 0xCAD7
	dirEntrySize = 20
	footerSize   = 12
	noLink       = 0xFFFF
)

type dirEntry struct {
	base  [maxBaseName]byte
	ext   [maxExtName]byte
	valid byte
	start int16
	size  uint32
}

type superblock struct {
	seq  uint32
	slot uint32 // arena slot this copy was read from / written to
	fat  []uint16
	dir  []dirEntry
}

func dirCapacity(blocks uint32) int {
	return (nand.BlockSize - int(blocks)*2 - footerSize) / dirEntrySize
}

func slotBlock(dev *nand.Device, slot uint32) uint32 {
	return dev.Blocks() - SuperblockSlots + slot
}

func sum16(b []byte) uint16 {
	var s uint16
	for i := 0; i+1 < len(b); i += 2 {
		s += binary.BigEndian.Uint16(b[i:])
	}
	return s
}

func decodeSuperblock(block []byte, blocks uint32) (*superblock, bool) {
	foot := block[nand.BlockSize-footerSize:]
	if binary.BigEndian.Uint32(foot) != superMagic {
		return nil, false
	}
	if sum16(block) != checkTarget {
		return nil, false
	}
	sb := &superblock{
		seq: binary.BigEndian.Uint32(foot[4:]),
		fat: make([]uint16, blocks),
		dir: make([]dirEntry, dirCapacity(blocks)),
	}
	for i := range sb.fat {
		sb.fat[i] = binary.BigEndian.Uint16(block[i*2:])
	}
	dirOff := int(blocks) * 2
	for i := range sb.dir {
		e := block[dirOff+i*dirEntrySize:]
		d := &sb.dir[i]
		copy(d.base[:], e[0:8])
		copy(d.ext[:], e[8:11])
		d.valid = e[11]
		d.start = int16(binary.BigEndian.Uint16(e[12:]))
		d.size = binary.BigEndian.Uint32(e[16:])
	}
	return sb, true
}

func (sb *superblock) encode(blocks uint32) []byte {
	block := make([]byte, nand.BlockSize)
	for i, v := range sb.fat {
		binary.BigEndian.PutUint16(block[i*2:], v)
	}
	dirOff := int(blocks) * 2
	for i := range sb.dir {
		e := block[dirOff+i*dirEntrySize:]
		d := &sb.dir[i]
		copy(e[0:8], d.base[:])
		copy(e[8:11], d.ext[:])
		e[11] = d.valid
		binary.BigEndian.PutUint16(e[12:], uint16(d.start))
		binary.BigEndian.PutUint32(e[16:], d.size)
	}
	foot := block[nand.BlockSize-footerSize:]
	binary.BigEndian.PutUint32(foot, superMagic)
	binary.BigEndian.PutUint32(foot[4:], sb.seq)
	binary.BigEndian.PutUint16(foot[8:], noLink)
	binary.BigEndian.PutUint16(foot[10:], checkTarget-sum16(block))
	return block
}

// loadAuthoritative reads every slot of the superblock arena, discards
// copies that fail the magic or checksum gate, and returns the valid
// copy with the highest sequence number.
func loadAuthoritative(dev *nand.Device) (*superblock, error) {
	var best *superblock
	for slot := uint32(0); slot < SuperblockSlots; slot++ {
		data, _, err := dev.ReadBlock(slotBlock(dev, slot))
		if err != nil {
			continue // unreadable slot is just an invalid copy
		}
		sb, ok := decodeSuperblock(data, dev.Blocks())
		if !ok {
			continue
		}
		sb.slot = slot
		if best == nil || sb.seq > best.seq {
			best = sb
		}
	}
	if best == nil {
		return nil, ErrNoSuperblock
	}
	return best, nil
}

// commit writes fat+dir as a new superblock with the next sequence
// number into the next usable arena slot, never overwriting the copy
// currently authoritative. Only on success does the in-memory view
// advance; any failure leaves the previous state intact on media and
// in memory.
func (f *FS) commit(fat []uint16, dir []dirEntry) error {
	next := &superblock{
		seq: f.sb.seq + 1,
		fat: fat,
		dir: dir,
	}
	for step := uint32(1); step <= SuperblockSlots; step++ {
		slot := (f.sb.slot + step) % SuperblockSlots
		if slot == f.sb.slot {
			break
		}
		if f.bad.IsBad(slotBlock(f.dev, slot)) {
			continue
		}
		next.slot = slot
		block := next.encode(f.dev.Blocks())
		if err := f.dev.WriteBlock(slotBlock(f.dev, slot), block, nand.SpareFor(block)); err != nil {
			return fmt.Errorf("commit superblock seq %d: %w", next.seq, err)
		}
		f.sb = next
		return nil
	}
	return fmt.Errorf("commit superblock seq %d: %w", next.seq, ErrNoSpace)
}

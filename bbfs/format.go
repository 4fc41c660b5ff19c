package bbfs

import (
	"fmt"

	"bbnand/nand"
)

// Format initializes a blank filesystem: SKSA and superblock arena
// marked reserved, scanned bad blocks marked bad, empty directory,
// first superblock committed with sequence 1. Existing file data is
// not erased, only unreferenced.
func Format(dev *nand.Device) (*FS, error) {
	if err := checkGeometry(dev); err != nil {
		return nil, err
	}
	bad, err := nand.ScanBadBlocks(dev)
	if err != nil {
		return nil, err
	}

	n := dev.Blocks()
	fat := make([]uint16, n)
	for i := uint32(0); i < n; i++ {
		switch {
		case bad.IsBad(i):
			fat[i] = fatBad
		case i < SKSABlocks || i >= n-SuperblockSlots:
			fat[i] = fatReserved
		default:
			fat[i] = fatFree
		}
	}

	sb := &superblock{
		seq: 1,
		fat: fat,
		dir: make([]dirEntry, dirCapacity(n)),
	}
	block := sb.encode(n)
	for slot := uint32(0); slot < SuperblockSlots; slot++ {
		if bad.IsBad(slotBlock(dev, slot)) {
			continue
		}
		if err := dev.WriteBlock(slotBlock(dev, slot), block, nand.SpareFor(block)); err != nil {
			return nil, fmt.Errorf("format: %w", err)
		}
		sb.slot = slot
		return &FS{dev: dev, bad: bad, sb: sb}, nil
	}
	return nil, fmt.Errorf("format: every superblock slot is bad")
}

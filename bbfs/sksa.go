package bbfs

import (
	"fmt"

	"bbnand/nand"
)

// ReadSKSA returns the secure-boot payload area as one opaque blob:
// the first SKSABlocks blocks in physical order, no bad-block
// remapping. Works without a valid superblock.
func ReadSKSA(dev *nand.Device) ([]byte, error) {
	if dev.Blocks() < SKSABlocks {
		return nil, fmt.Errorf("read secure-boot area: device has only %d blocks", dev.Blocks())
	}
	out := make([]byte, 0, SKSABlocks*nand.BlockSize)
	for i := uint32(0); i < SKSABlocks; i++ {
		data, _, err := dev.ReadBlock(i)
		if err != nil {
			return nil, fmt.Errorf("read secure-boot area: %w", err)
		}
		out = append(out, data...)
	}
	return out, nil
}

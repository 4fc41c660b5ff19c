package nand

import (
	"fmt"
	"os"
)

// ImagePair is a file-backed transport over the two parallel streams a
// NAND dump produces: a data image and a spare image. Either path may
// also be a raw block device node.
type ImagePair struct {
	nand   *os.File
	spare  *os.File
	blocks uint32
}

// OpenImagePair opens an existing data+spare image pair and validates
// the two files describe the same block count.
func OpenImagePair(nandPath, sparePath string, writable bool) (*ImagePair, error) {
	mode := os.O_RDONLY
	if writable {
		mode = os.O_RDWR
	}
	nf, err := os.OpenFile(nandPath, mode, 0)
	if err != nil {
		return nil, fmt.Errorf("open nand image: %w", err)
	}
	sf, err := os.OpenFile(sparePath, mode, 0)
	if err != nil {
		nf.Close()
		return nil, fmt.Errorf("open spare image: %w", err)
	}
	p := &ImagePair{nand: nf, spare: sf}
	if err := p.checkSizes(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// CreateImagePair creates a blank (erased, all-0xFF) image pair of the
// given block count.
func CreateImagePair(nandPath, sparePath string, blocks uint32) (*ImagePair, error) {
	nf, err := os.Create(nandPath)
	if err != nil {
		return nil, fmt.Errorf("create nand image: %w", err)
	}
	sf, err := os.Create(sparePath)
	if err != nil {
		nf.Close()
		return nil, fmt.Errorf("create spare image: %w", err)
	}
	p := &ImagePair{nand: nf, spare: sf, blocks: blocks}
	erased := make([]byte, BlockSize+SpareSize)
	for i := range erased {
		erased[i] = 0xFF
	}
	for i := uint32(0); i < blocks; i++ {
		if _, err := nf.WriteAt(erased[:BlockSize], int64(i)*BlockSize); err != nil {
			p.Close()
			return nil, fmt.Errorf("blank nand image: %w", err)
		}
		if _, err := sf.WriteAt(erased[:SpareSize], int64(i)*SpareSize); err != nil {
			p.Close()
			return nil, fmt.Errorf("blank spare image: %w", err)
		}
	}
	return p, nil
}

func (p *ImagePair) checkSizes() error {
	nsz, err := deviceSize(p.nand)
	if err != nil {
		return fmt.Errorf("nand image size: %w", err)
	}
	ssz, err := deviceSize(p.spare)
	if err != nil {
		return fmt.Errorf("spare image size: %w", err)
	}
	if nsz%BlockSize != 0 {
		return fmt.Errorf("%w: nand image is %d bytes, not a multiple of %#x", ErrSizeMismatch, nsz, BlockSize)
	}
	if ssz%SpareSize != 0 {
		return fmt.Errorf("%w: spare image is %d bytes, not a multiple of %#x", ErrSizeMismatch, ssz, SpareSize)
	}
	nb, sb := uint32(nsz/BlockSize), uint32(ssz/SpareSize)
	if nb != sb {
		return fmt.Errorf("%w: nand image has %d blocks but spare image has %d", ErrSizeMismatch, nb, sb)
	}
	if nb == 0 {
		return fmt.Errorf("%w: empty image", ErrSizeMismatch)
	}
	p.blocks = nb
	return nil
}

// Blocks reports the image's block count.
func (p *ImagePair) Blocks() uint32 { return p.blocks }

// ReadBlock reads one block and its spare from the image pair.
func (p *ImagePair) ReadBlock(index uint32) ([]byte, []byte, error) {
	data := make([]byte, BlockSize)
	spare := make([]byte, SpareSize)
	if _, err := p.nand.ReadAt(data, int64(index)*BlockSize); err != nil {
		return nil, nil, err
	}
	if _, err := p.spare.ReadAt(spare, int64(index)*SpareSize); err != nil {
		return nil, nil, err
	}
	return data, spare, nil
}

// WriteBlock writes one block and its spare to the image pair.
func (p *ImagePair) WriteBlock(index uint32, data, spare []byte) error {
	if _, err := p.nand.WriteAt(data, int64(index)*BlockSize); err != nil {
		return err
	}
	_, err := p.spare.WriteAt(spare, int64(index)*SpareSize)
	return err
}

// Close syncs and closes both files.
func (p *ImagePair) Close() error {
	_ = p.nand.Sync()
	_ = p.spare.Sync()
	err := p.nand.Close()
	if cerr := p.spare.Close(); err == nil {
		err = cerr
	}
	return err
}

// Package bbfs implements the console's flat NAND filesystem: a
// sequence-numbered superblock journal holding a block allocation
// table and a fixed-format file directory, committed round-robin
// across a reserved arena of slots so the last known-good root is
// never lost to an interrupted write.
package bbfs

import (
	"errors"
	"fmt"
	"strings"

	"bbnand/nand"
)

const (
	// SuperblockSlots is the size of the reserved superblock arena at
	// the top of the device.
	SuperblockSlots = 16

	// SKSABlocks is the size of the secure-boot payload area at the
	// bottom of the device.
	SKSABlocks = 0x40
)

// FAT entry values. Any other value is the index of the next block in
// a file's chain.
const (
	fatFree     = 0x0000
	fatReserved = 0xFFFD
	fatBad      = 0xFFFE
	fatEnd      = 0xFFFF
)

const (
	maxBaseName = 8
	maxExtName  = 3
)

var (
	// ErrNoSuperblock means no superblock slot validated. Fatal to
	// filesystem operations; raw block and image operations remain
	// usable.
	ErrNoSuperblock = errors.New("no valid superblock")

	ErrNotFound = errors.New("file not found")
	ErrExists   = errors.New("file already exists")
	ErrNoSpace  = errors.New("not enough free blocks")
	ErrBadName  = errors.New("invalid file name")

	// ErrCorrupt flags an inconsistency between the directory and the
	// allocation table (broken or looping chain).
	ErrCorrupt = errors.New("damaged filesystem")
)

// FS is a mounted filesystem view: the authoritative superblock plus
// the session's bad-block table, over an exclusively owned device.
type FS struct {
	dev *nand.Device
	bad *nand.BadBlockTable
	sb  *superblock
}

// Mount scans the device for bad blocks and loads the authoritative
// superblock.
func Mount(dev *nand.Device) (*FS, error) {
	if err := checkGeometry(dev); err != nil {
		return nil, err
	}
	bad, err := nand.ScanBadBlocks(dev)
	if err != nil {
		return nil, err
	}
	sb, err := loadAuthoritative(dev)
	if err != nil {
		return nil, err
	}
	return &FS{dev: dev, bad: bad, sb: sb}, nil
}

// Seq returns the current superblock sequence number.
func (f *FS) Seq() uint32 { return f.sb.seq }

// SuperblockIndex returns the device block holding the authoritative
// superblock copy.
func (f *FS) SuperblockIndex() uint32 { return slotBlock(f.dev, f.sb.slot) }

// BadBlocks returns the session's bad-block table.
func (f *FS) BadBlocks() *nand.BadBlockTable { return f.bad }

func checkGeometry(dev *nand.Device) error {
	n := dev.Blocks()
	if n <= SKSABlocks+SuperblockSlots {
		return fmt.Errorf("device too small: %d blocks, need more than %d", n, SKSABlocks+SuperblockSlots)
	}
	if int(n)*2+footerSize+dirEntrySize > nand.BlockSize {
		return fmt.Errorf("device too large: allocation table for %d blocks does not fit a superblock", n)
	}
	return nil
}

// splitName validates an 8.3-style file name and returns its padded
// base and extension fields. Names are case-sensitive.
func splitName(name string) (base [maxBaseName]byte, ext [maxExtName]byte, err error) {
	var bs, es string
	switch dot := strings.IndexByte(name, '.'); {
	case dot < 0:
		bs = name
	default:
		bs, es = name[:dot], name[dot+1:]
	}
	if bs == "" || len(bs) > maxBaseName || len(es) > maxExtName || strings.ContainsAny(bs+es, ". \x00") {
		return base, ext, fmt.Errorf("%w: %q", ErrBadName, name)
	}
	copy(base[:], bs)
	copy(ext[:], es)
	return base, ext, nil
}

func joinName(base [maxBaseName]byte, ext [maxExtName]byte) string {
	bs := strings.TrimRight(string(base[:]), "\x00")
	es := strings.TrimRight(string(ext[:]), "\x00")
	if es == "" {
		return bs
	}
	return bs + "." + es
}

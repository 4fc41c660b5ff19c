//go:build !windows

package nand

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// deviceSize returns the size in bytes of a regular file or a raw
// block device node (Unix variants).
func deviceSize(f *os.File) (int64, error) {
	st, err := f.Stat()
	if err == nil && st.Mode().IsRegular() {
		return st.Size(), nil
	}

	// Regular seek works for most backing objects.
	if size, err := f.Seek(0, io.SeekEnd); err == nil && size > 0 {
		_, _ = f.Seek(0, io.SeekStart)
		return size, nil
	}

	fd := int(f.Fd())

	// Block devices on macOS/BSD: DKIOCGETBLOCKSIZE + DKIOCGETBLOCKCOUNT
	const (
		dkiocGetBlockSize  = 0x40046418 // _IOR('d', 24, uint32)
		dkiocGetBlockCount = 0x40086419 // _IOR('d', 25, uint64)
	)
	if blockSize, err := unix.IoctlGetUint32(fd, dkiocGetBlockSize); err == nil {
		blockCount, err := unix.IoctlGetInt(fd, dkiocGetBlockCount)
		if err != nil {
			return 0, fmt.Errorf("cannot get block count: %w", err)
		}
		return int64(blockSize) * int64(blockCount), nil
	}

	// Linux: BLKGETSIZE64
	const blkGetSize64 = 0x80081272
	sizeBytes, err := unix.IoctlGetInt(fd, blkGetSize64)
	if err != nil {
		return 0, fmt.Errorf("cannot determine device size: %w", err)
	}
	return int64(sizeBytes), nil
}

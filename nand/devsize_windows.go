//go:build windows

package nand

import (
	"io"
	"os"
)

// deviceSize returns the size in bytes of a regular file. Raw device
// access is not supported on Windows; use image files there.
func deviceSize(f *os.File) (int64, error) {
	st, err := f.Stat()
	if err == nil && st.Mode().IsRegular() {
		return st.Size(), nil
	}
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	_, _ = f.Seek(0, io.SeekStart)
	return size, nil
}

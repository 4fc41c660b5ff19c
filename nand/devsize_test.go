package nand

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDeviceSizeRegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.bin")
	if err := os.WriteFile(path, make([]byte, 3*BlockSize), 0644); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	size, err := deviceSize(f)
	if err != nil {
		t.Fatal(err)
	}
	if size != 3*BlockSize {
		t.Fatalf("deviceSize = %d, want %d", size, 3*BlockSize)
	}
}

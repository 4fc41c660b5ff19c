package bbfs

import (
	"fmt"

	"bbnand/nand"
)

// FileInfo describes one directory entry.
type FileInfo struct {
	Name string
	Size uint32
}

// List returns the directory in on-device order.
func (f *FS) List() []FileInfo {
	var out []FileInfo
	for i := range f.sb.dir {
		d := &f.sb.dir[i]
		if d.valid == 0 {
			continue
		}
		out = append(out, FileInfo{Name: joinName(d.base, d.ext), Size: d.size})
	}
	return out
}

// Find looks a name up in the directory.
func (f *FS) Find(name string) (FileInfo, error) {
	i := f.lookup(name)
	if i < 0 {
		return FileInfo{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	d := &f.sb.dir[i]
	return FileInfo{Name: joinName(d.base, d.ext), Size: d.size}, nil
}

func (f *FS) lookup(name string) int {
	for i := range f.sb.dir {
		d := &f.sb.dir[i]
		if d.valid != 0 && joinName(d.base, d.ext) == name {
			return i
		}
	}
	return -1
}

// chain walks the allocation table from a file's start block to its
// chain end, guarding against loops and links into non-file entries.
func (f *FS) chain(start int16) ([]uint32, error) {
	if start < 0 {
		return nil, nil // empty file
	}
	var blocks []uint32
	cur := uint32(start)
	for {
		if len(blocks) > len(f.sb.fat) {
			return nil, fmt.Errorf("%w: allocation chain loops at block %#x", ErrCorrupt, cur)
		}
		blocks = append(blocks, cur)
		next := f.sb.fat[cur]
		if next == fatEnd {
			return blocks, nil
		}
		if next == fatFree || next == fatBad || next == fatReserved || uint32(next) >= uint32(len(f.sb.fat)) {
			return nil, fmt.Errorf("%w: allocation chain broken at block %#x", ErrCorrupt, cur)
		}
		cur = uint32(next)
	}
}

// ReadFile returns a file's content by following its allocation chain.
// A bad or unreadable constituent block is a data error.
func (f *FS) ReadFile(name string) ([]byte, error) {
	i := f.lookup(name)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	d := &f.sb.dir[i]
	blocks, err := f.chain(d.start)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(blocks)*nand.BlockSize)
	for _, b := range blocks {
		if f.bad.IsBad(b) {
			return nil, fmt.Errorf("read %q: block %#x is bad", name, b)
		}
		data, _, err := f.dev.ReadBlock(b)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", name, err)
		}
		out = append(out, data...)
	}
	if uint32(len(out)) < d.size {
		return nil, fmt.Errorf("%w: %q has %d bytes allocated for size %d", ErrCorrupt, name, len(out), d.size)
	}
	return out[:d.size], nil
}

// freeBlocks returns allocatable block indices in ascending order:
// free in the allocation table and not in the bad-block table.
func (f *FS) freeBlocks() []uint32 {
	var out []uint32
	for i, v := range f.sb.fat {
		if v == fatFree && !f.bad.IsBad(uint32(i)) {
			out = append(out, uint32(i))
		}
	}
	return out
}

// WriteFile creates or replaces a file. New content goes to freshly
// allocated blocks first; only then is a superblock committed in which
// the new entry is live and any previous chain is freed. A failure at
// any point leaves the previous directory state authoritative.
func (f *FS) WriteFile(name string, data []byte) error {
	base, ext, err := splitName(name)
	if err != nil {
		return err
	}

	need := (len(data) + nand.BlockSize - 1) / nand.BlockSize
	free := f.freeBlocks()
	if len(free) < need {
		return fmt.Errorf("write %q: %w: need %d, have %d", name, ErrNoSpace, need, len(free))
	}
	alloc := free[:need]

	// Data blocks land on the device before anything references them.
	buf := make([]byte, nand.BlockSize)
	for i, b := range alloc {
		n := copy(buf, data[i*nand.BlockSize:])
		for j := n; j < nand.BlockSize; j++ {
			buf[j] = 0xFF
		}
		if err := f.dev.WriteBlock(b, buf, nand.SpareFor(buf)); err != nil {
			return fmt.Errorf("write %q: %w", name, err)
		}
	}

	fat := append([]uint16(nil), f.sb.fat...)
	dir := append([]dirEntry(nil), f.sb.dir...)

	slot := -1
	if old := f.lookup(name); old >= 0 {
		// Overwrite keeps the directory position; the old chain is
		// freed in the same commit that makes the new one live.
		prev, err := f.chain(dir[old].start)
		if err != nil {
			return err
		}
		for _, b := range prev {
			fat[b] = fatFree
		}
		slot = old
	} else {
		for i := range dir {
			if dir[i].valid == 0 {
				slot = i
				break
			}
		}
		if slot < 0 {
			return fmt.Errorf("write %q: %w: directory full", name, ErrNoSpace)
		}
	}

	for i, b := range alloc {
		if i+1 < len(alloc) {
			fat[b] = uint16(alloc[i+1])
		} else {
			fat[b] = fatEnd
		}
	}
	start := int16(-1)
	if need > 0 {
		start = int16(alloc[0])
	}
	dir[slot] = dirEntry{base: base, ext: ext, valid: 1, start: start, size: uint32(len(data))}

	return f.commit(fat, dir)
}

// Delete removes a file; its blocks return to the free set in the same
// commit.
func (f *FS) Delete(name string) error {
	i := f.lookup(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	blocks, err := f.chain(f.sb.dir[i].start)
	if err != nil {
		return err
	}

	fat := append([]uint16(nil), f.sb.fat...)
	dir := append([]dirEntry(nil), f.sb.dir...)
	for _, b := range blocks {
		fat[b] = fatFree
	}
	dir[i] = dirEntry{}
	return f.commit(fat, dir)
}

// Rename changes a file's name in place. The target name must not
// exist; on any failure both names are left unchanged.
func (f *FS) Rename(from, to string) error {
	base, ext, err := splitName(to)
	if err != nil {
		return err
	}
	i := f.lookup(from)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, from)
	}
	if f.lookup(to) >= 0 {
		return fmt.Errorf("%w: %q", ErrExists, to)
	}

	dir := append([]dirEntry(nil), f.sb.dir...)
	dir[i].base = base
	dir[i].ext = ext
	return f.commit(append([]uint16(nil), f.sb.fat...), dir)
}

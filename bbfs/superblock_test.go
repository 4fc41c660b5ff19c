package bbfs

import (
	"bytes"
	"errors"
	"testing"

	"bbnand/nand"
)

// testBlocks gives 64 secure-boot blocks, 16 data blocks and the
// 16-slot superblock arena.
const testBlocks = 96

func newTestFS(t *testing.T) (*nand.MemTransport, *FS) {
	t.Helper()
	m := nand.NewMemTransport(testBlocks)
	fs, err := Format(nand.Open(m))
	if err != nil {
		t.Fatal(err)
	}
	return m, fs
}

func TestMountBlankMedium(t *testing.T) {
	dev := nand.Open(nand.NewMemTransport(testBlocks))
	_, err := Mount(dev)
	if !errors.Is(err, ErrNoSuperblock) {
		t.Fatalf("mount of blank medium: %v, want ErrNoSuperblock", err)
	}
}

func TestFormatThenMount(t *testing.T) {
	m, fs := newTestFS(t)
	if fs.Seq() != 1 {
		t.Fatalf("Seq after format = %d, want 1", fs.Seq())
	}
	if files := fs.List(); len(files) != 0 {
		t.Fatalf("fresh directory lists %v", files)
	}

	mounted, err := Mount(nand.Open(m))
	if err != nil {
		t.Fatal(err)
	}
	if mounted.Seq() != 1 {
		t.Fatalf("Seq after remount = %d, want 1", mounted.Seq())
	}
}

func TestCommitRotation(t *testing.T) {
	m, fs := newTestFS(t)

	// Enough commits to wrap the arena.
	for i := 0; i < 20; i++ {
		if err := fs.WriteFile("counter", []byte{byte(i)}); err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
	}
	if fs.Seq() != 21 {
		t.Fatalf("Seq = %d, want 21", fs.Seq())
	}

	mounted, err := Mount(nand.Open(m))
	if err != nil {
		t.Fatal(err)
	}
	if mounted.Seq() != 21 {
		t.Fatalf("remounted Seq = %d, want 21", mounted.Seq())
	}
	data, err := mounted.ReadFile("counter")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte{19}) {
		t.Fatalf("counter = %v, want [19]", data)
	}
}

func TestCommitPreservesPreviousSuperblock(t *testing.T) {
	_, fs := newTestFS(t)
	prevSlot := fs.sb.slot
	if err := fs.WriteFile("a", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if fs.sb.slot == prevSlot {
		t.Fatal("commit reused the authoritative slot")
	}
	data, _, err := fs.dev.ReadBlock(slotBlock(fs.dev, prevSlot))
	if err != nil {
		t.Fatal(err)
	}
	old, ok := decodeSuperblock(data, fs.dev.Blocks())
	if !ok {
		t.Fatal("previous superblock no longer decodes")
	}
	if old.seq != 1 {
		t.Fatalf("previous superblock seq = %d, want 1", old.seq)
	}
}

func TestCommitSkipsBadSlots(t *testing.T) {
	m := nand.NewMemTransport(testBlocks)
	m.MarkBad(slotBlock(nand.Open(m), 1))
	fs, err := Format(nand.Open(m))
	if err != nil {
		t.Fatal(err)
	}
	if fs.sb.slot != 0 {
		t.Fatalf("format landed in slot %d", fs.sb.slot)
	}
	if err := fs.WriteFile("a", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if fs.sb.slot != 2 {
		t.Fatalf("commit landed in slot %d, want 2 (slot 1 is bad)", fs.sb.slot)
	}
}

func TestSuperblockIndexTracksAuthoritativeCopy(t *testing.T) {
	_, fs := newTestFS(t)
	first := fs.SuperblockIndex()
	if first != slotBlock(fs.dev, fs.sb.slot) {
		t.Fatalf("SuperblockIndex = %#x, slot says %#x", first, slotBlock(fs.dev, fs.sb.slot))
	}
	if err := fs.WriteFile("a", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if fs.SuperblockIndex() == first {
		t.Fatal("index did not follow the commit to a new slot")
	}
	data, _, err := fs.dev.ReadBlock(fs.SuperblockIndex())
	if err != nil {
		t.Fatal(err)
	}
	sb, ok := decodeSuperblock(data, fs.dev.Blocks())
	if !ok {
		t.Fatal("indexed block does not decode as a superblock")
	}
	if sb.seq != fs.Seq() {
		t.Fatalf("indexed copy has seq %d, in-memory seq is %d", sb.seq, fs.Seq())
	}
}

func TestMountPicksHighestSequence(t *testing.T) {
	m := nand.NewMemTransport(testBlocks)
	dev := nand.Open(m)

	write := func(slot, seq uint32) {
		sb := &superblock{
			seq: seq,
			fat: make([]uint16, testBlocks),
			dir: make([]dirEntry, dirCapacity(testBlocks)),
		}
		block := sb.encode(testBlocks)
		if err := dev.WriteBlock(slotBlock(dev, slot), block, nand.SpareFor(block)); err != nil {
			t.Fatal(err)
		}
	}
	write(5, 7)
	write(2, 9)
	write(11, 3)

	fs, err := Mount(dev)
	if err != nil {
		t.Fatal(err)
	}
	if fs.Seq() != 9 {
		t.Fatalf("Seq = %d, want 9", fs.Seq())
	}
	if fs.sb.slot != 2 {
		t.Fatalf("slot = %d, want 2", fs.sb.slot)
	}
}

func TestMountFallsBackPastCorruptCopy(t *testing.T) {
	m, fs := newTestFS(t)
	if err := fs.WriteFile("a", []byte("x")); err != nil {
		t.Fatal(err)
	}
	// Shred the latest copy; the seq-1 copy must take over.
	garbage := make([]byte, nand.BlockSize)
	for i := range garbage {
		garbage[i] = byte(i)
	}
	m.Poke(slotBlock(fs.dev, fs.sb.slot), garbage)

	mounted, err := Mount(nand.Open(m))
	if err != nil {
		t.Fatal(err)
	}
	if mounted.Seq() != 1 {
		t.Fatalf("Seq = %d, want 1", mounted.Seq())
	}
	if _, err := mounted.Find("a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("rolled-back directory still lists the file: %v", err)
	}
}

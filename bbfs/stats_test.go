package bbfs

import (
	"bytes"
	"testing"

	"bbnand/nand"
)

func checkCounters(t *testing.T, fs *FS) Stats {
	t.Helper()
	s := fs.Stats()
	if s.Free+s.Used+s.Bad != testBlocks {
		t.Fatalf("counters %+v do not sum to %d", s, testBlocks)
	}
	return s
}

func TestStats(t *testing.T) {
	m := nand.NewMemTransport(testBlocks)
	m.MarkBad(70) // inside the data area
	fs, err := Format(nand.Open(m))
	if err != nil {
		t.Fatal(err)
	}

	s := checkCounters(t, fs)
	if s.Bad != 1 {
		t.Fatalf("Bad = %d, want 1", s.Bad)
	}
	if s.Used != SKSABlocks+SuperblockSlots {
		t.Fatalf("Used = %d, want %d reserved blocks", s.Used, SKSABlocks+SuperblockSlots)
	}
	if s.Seq != 1 {
		t.Fatalf("Seq = %d, want 1", s.Seq)
	}
	free := s.Free

	if err := fs.WriteFile("save", make([]byte, 2*nand.BlockSize)); err != nil {
		t.Fatal(err)
	}
	s = checkCounters(t, fs)
	if s.Free != free-2 || s.Used != SKSABlocks+SuperblockSlots+2 {
		t.Fatalf("counters after write = %+v", s)
	}

	if err := fs.Delete("save"); err != nil {
		t.Fatal(err)
	}
	s = checkCounters(t, fs)
	if s.Free != free {
		t.Fatalf("Free = %d after delete, want %d", s.Free, free)
	}
}

func TestBlockInUse(t *testing.T) {
	m := nand.NewMemTransport(testBlocks)
	m.MarkBad(70)
	fs, err := Format(nand.Open(m))
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.WriteFile("save", []byte("x")); err != nil {
		t.Fatal(err)
	}

	start := uint32(fs.sb.dir[fs.lookup("save")].start)
	cases := []struct {
		index uint32
		want  bool
	}{
		{0, true},              // secure-boot area, reserved
		{testBlocks - 1, true}, // superblock arena, reserved
		{70, false},            // bad
		{start, true},          // file data
		{65, false},            // free
		{testBlocks + 5, false},
	}
	for _, c := range cases {
		if got := fs.BlockInUse(c.index); got != c.want {
			t.Errorf("BlockInUse(%d) = %v, want %v", c.index, got, c.want)
		}
	}
}

func TestReadSKSA(t *testing.T) {
	m := nand.NewMemTransport(testBlocks)
	dev := nand.Open(m)
	first := make([]byte, nand.BlockSize)
	last := make([]byte, nand.BlockSize)
	for i := range first {
		first[i] = 0x11
		last[i] = 0x99
	}
	m.Poke(0, first)
	m.Poke(SKSABlocks-1, last)

	blob, err := ReadSKSA(dev)
	if err != nil {
		t.Fatal(err)
	}
	if len(blob) != SKSABlocks*nand.BlockSize {
		t.Fatalf("blob is %d bytes", len(blob))
	}
	if !bytes.Equal(blob[:nand.BlockSize], first) {
		t.Error("first block differs")
	}
	if !bytes.Equal(blob[len(blob)-nand.BlockSize:], last) {
		t.Error("last block differs")
	}
}

func TestReadSKSATooSmall(t *testing.T) {
	dev := nand.Open(nand.NewMemTransport(10))
	if _, err := ReadSKSA(dev); err == nil {
		t.Fatal("expected an error for a device smaller than the secure-boot area")
	}
}

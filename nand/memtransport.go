package nand

import (
	"fmt"
	"io"
)

// MemTransport is an in-memory block+spare store. It backs tests and
// dry runs, with optional per-block fault injection via the ReadErr
// and WriteErr maps.
type MemTransport struct {
	data   []byte
	spare  []byte
	blocks uint32
	closed bool

	ReadErr  map[uint32]error
	WriteErr map[uint32]error
}

// NewMemTransport creates an erased (all-0xFF) medium of the given
// block count.
func NewMemTransport(blocks uint32) *MemTransport {
	m := &MemTransport{
		data:     make([]byte, int(blocks)*BlockSize),
		spare:    make([]byte, int(blocks)*SpareSize),
		blocks:   blocks,
		ReadErr:  make(map[uint32]error),
		WriteErr: make(map[uint32]error),
	}
	for i := range m.data {
		m.data[i] = 0xFF
	}
	for i := range m.spare {
		m.spare[i] = 0xFF
	}
	return m
}

// Blocks reports the medium's block count.
func (m *MemTransport) Blocks() uint32 { return m.blocks }

// ReadBlock returns copies of the block's data and spare.
func (m *MemTransport) ReadBlock(index uint32) ([]byte, []byte, error) {
	if m.closed {
		return nil, nil, io.ErrClosedPipe
	}
	if index >= m.blocks {
		return nil, nil, fmt.Errorf("block %#x out of range", index)
	}
	if err := m.ReadErr[index]; err != nil {
		return nil, nil, err
	}
	data := make([]byte, BlockSize)
	spare := make([]byte, SpareSize)
	copy(data, m.data[int(index)*BlockSize:])
	copy(spare, m.spare[int(index)*SpareSize:])
	return data, spare, nil
}

// WriteBlock stores the block's data and spare.
func (m *MemTransport) WriteBlock(index uint32, data, spare []byte) error {
	if m.closed {
		return io.ErrClosedPipe
	}
	if index >= m.blocks {
		return fmt.Errorf("block %#x out of range", index)
	}
	if err := m.WriteErr[index]; err != nil {
		return err
	}
	copy(m.data[int(index)*BlockSize:], data)
	copy(m.spare[int(index)*SpareSize:], spare)
	return nil
}

// Close marks the session closed; further I/O fails.
func (m *MemTransport) Close() error {
	m.closed = true
	return nil
}

// MarkBad sets the bad-block marker in a block's stored spare,
// bypassing fault injection.
func (m *MemTransport) MarkBad(index uint32) {
	m.spare[int(index)*SpareSize+spareBadMarker] = 0x00
}

// Peek returns the stored data of a block without going through the
// transport path.
func (m *MemTransport) Peek(index uint32) []byte {
	out := make([]byte, BlockSize)
	copy(out, m.data[int(index)*BlockSize:])
	return out
}

// Poke overwrites a block's stored data in place, bypassing the
// transport path. Useful for simulating on-media corruption.
func (m *MemTransport) Poke(index uint32, data []byte) {
	copy(m.data[int(index)*BlockSize:int(index+1)*BlockSize], data)
}

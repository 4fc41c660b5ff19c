// Package nand models a game console's NAND flash as a block+spare
// addressed device reached over an exclusive transport session, and
// provides the bulk dump/restore machinery built on top of it.
package nand

import "fmt"

// NAND geometry. Every block carries a 16-byte spare region holding the
// bad-block marker and ECC bytes alongside its 16 KiB data payload.
const (
	BlockSize = 0x4000
	SpareSize = 0x10
)

// Transport is the device-session collaborator: it moves single blocks
// and their spares over whatever link the console is attached through.
// Implementations perform no retries and no interpretation of content.
type Transport interface {
	ReadBlock(index uint32) (data, spare []byte, err error)
	WriteBlock(index uint32, data, spare []byte) error
	Blocks() uint32
	Close() error
}

// BlockError is an I/O failure at a specific block index.
type BlockError struct {
	Op    string
	Index uint32
	Err   error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("%s block %#x: %v", e.Op, e.Index, e.Err)
}

func (e *BlockError) Unwrap() error { return e.Err }

// Device is the block-addressable face of one console session. It owns
// the transport exclusively; callers wanting concurrency must serialize
// whole logical operations themselves.
type Device struct {
	t Transport
}

// Open wraps a transport session in a Device.
func Open(t Transport) *Device {
	return &Device{t: t}
}

// Blocks reports the total block count N of the attached medium.
func (d *Device) Blocks() uint32 { return d.t.Blocks() }

// ReadBlock reads one block and its spare. No caching: the result
// reflects device state at call time.
func (d *Device) ReadBlock(index uint32) (data, spare []byte, err error) {
	if index >= d.t.Blocks() {
		return nil, nil, &BlockError{Op: "read", Index: index, Err: fmt.Errorf("index out of range (device has %d blocks)", d.t.Blocks())}
	}
	data, spare, err = d.t.ReadBlock(index)
	if err != nil {
		return nil, nil, &BlockError{Op: "read", Index: index, Err: err}
	}
	if len(data) != BlockSize || len(spare) != SpareSize {
		return nil, nil, &BlockError{Op: "read", Index: index, Err: fmt.Errorf("transport returned %d+%d bytes", len(data), len(spare))}
	}
	return data, spare, nil
}

// WriteBlock writes one block and its spare. The write is atomic at
// block granularity from the caller's point of view; retry policy
// belongs to the caller.
func (d *Device) WriteBlock(index uint32, data, spare []byte) error {
	if index >= d.t.Blocks() {
		return &BlockError{Op: "write", Index: index, Err: fmt.Errorf("index out of range (device has %d blocks)", d.t.Blocks())}
	}
	if len(data) != BlockSize {
		return &BlockError{Op: "write", Index: index, Err: fmt.Errorf("data length %d, want %d", len(data), BlockSize)}
	}
	if len(spare) != SpareSize {
		return &BlockError{Op: "write", Index: index, Err: fmt.Errorf("spare length %d, want %d", len(spare), SpareSize)}
	}
	if err := d.t.WriteBlock(index, data, spare); err != nil {
		return &BlockError{Op: "write", Index: index, Err: err}
	}
	return nil
}

// Close tears down the underlying session.
func (d *Device) Close() error { return d.t.Close() }

package nand

import (
	"errors"
	"fmt"
)

// ErrSizeMismatch is returned before any block is touched when restore
// input streams are inconsistent with the geometry or the selection.
var ErrSizeMismatch = errors.New("size mismatch")

// TransferError aggregates per-block I/O failures from a bulk dump or
// restore so callers see exactly which indices failed instead of a
// bare first-error abort.
type TransferError struct {
	Op       string
	Failures []*BlockError
}

func (e *TransferError) Error() string {
	idx := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		idx[i] = fmt.Sprintf("%#x", f.Index)
	}
	return fmt.Sprintf("%s completed except for blocks %v: %v", e.Op, idx, e.Failures[0].Err)
}

func (e *TransferError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// RestoreReport records the per-index outcome of a restore.
type RestoreReport struct {
	Written []uint32
	Skipped []uint32 // known-bad targets, deliberately not written
	Failed  []uint32
}

// Dump reads every block of the device into two parallel streams, data
// and spare, in block order. Bad blocks are included: a dump is a
// faithful raw snapshot. Unreadable blocks are left zero-filled in the
// output and aggregated into a TransferError alongside the streams.
func Dump(d *Device) (data, spare []byte, err error) {
	n := d.Blocks()
	data = make([]byte, int(n)*BlockSize)
	spare = make([]byte, int(n)*SpareSize)
	var failures []*BlockError
	for i := uint32(0); i < n; i++ {
		bd, bs, rerr := d.ReadBlock(i)
		if rerr != nil {
			var be *BlockError
			if !errors.As(rerr, &be) {
				be = &BlockError{Op: "read", Index: i, Err: rerr}
			}
			failures = append(failures, be)
			continue
		}
		copy(data[int(i)*BlockSize:], bd)
		copy(spare[int(i)*SpareSize:], bs)
	}
	if len(failures) > 0 {
		return data, spare, &TransferError{Op: "dump", Failures: failures}
	}
	return data, spare, nil
}

// Restore applies a source image to the device, restricted to the
// selected block indices (nil selection means the whole image). Known
// bad blocks are skipped, never written: the destination is physically
// unusable, which is unrelated to the request. Stream sizes are
// validated before the first write so a malformed request is never
// partially applied. Individual write failures do not halt the rest of
// the selection; they are aggregated into a single TransferError.
//
// progress, when non-nil, is called once per selected index; a non-nil
// return aborts the remaining selection with that error.
func Restore(d *Device, bad *BadBlockTable, data, spare []byte, selection []uint32, progress func(index uint32, skipped bool) error) (*RestoreReport, error) {
	if len(data)%BlockSize != 0 {
		return nil, fmt.Errorf("%w: data stream is %d bytes, not a multiple of %#x", ErrSizeMismatch, len(data), BlockSize)
	}
	if len(spare)%SpareSize != 0 {
		return nil, fmt.Errorf("%w: spare stream is %d bytes, not a multiple of %#x", ErrSizeMismatch, len(spare), SpareSize)
	}
	count := uint32(len(data) / BlockSize)
	if sc := uint32(len(spare) / SpareSize); sc != count {
		return nil, fmt.Errorf("%w: data stream has %d blocks but spare stream has %d", ErrSizeMismatch, count, sc)
	}
	if selection == nil {
		if count < d.Blocks() {
			return nil, fmt.Errorf("%w: image has %d blocks, device has %d", ErrSizeMismatch, count, d.Blocks())
		}
		selection = make([]uint32, d.Blocks())
		for i := range selection {
			selection[i] = uint32(i)
		}
	} else {
		for _, i := range selection {
			if i >= count {
				return nil, fmt.Errorf("%w: selection names block %#x but image ends at %#x", ErrSizeMismatch, i, count)
			}
			if i >= d.Blocks() {
				return nil, fmt.Errorf("%w: selection names block %#x but device ends at %#x", ErrSizeMismatch, i, d.Blocks())
			}
		}
	}

	report := &RestoreReport{}
	var failures []*BlockError
	for _, i := range selection {
		if bad.IsBad(i) {
			report.Skipped = append(report.Skipped, i)
			if progress != nil {
				if err := progress(i, true); err != nil {
					return report, err
				}
			}
			continue
		}
		bd := data[int(i)*BlockSize : int(i+1)*BlockSize]
		bs := spare[int(i)*SpareSize : int(i+1)*SpareSize]
		if err := d.WriteBlock(i, bd, bs); err != nil {
			var be *BlockError
			if !errors.As(err, &be) {
				be = &BlockError{Op: "write", Index: i, Err: err}
			}
			failures = append(failures, be)
			report.Failed = append(report.Failed, i)
		} else {
			report.Written = append(report.Written, i)
		}
		if progress != nil {
			if err := progress(i, false); err != nil {
				return report, err
			}
		}
	}
	if len(failures) > 0 {
		return report, &TransferError{Op: "restore", Failures: failures}
	}
	return report, nil
}

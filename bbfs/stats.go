package bbfs

// Stats are the derived block counters of a mounted filesystem.
// Free + Used + Bad always equals the device block count; Used
// includes reserved/system blocks.
type Stats struct {
	Free uint32
	Used uint32
	Bad  uint32
	Seq  uint32
}

// BlockInUse reports whether the allocation table holds the block:
// chained into a file, or reserved for a system area.
func (f *FS) BlockInUse(index uint32) bool {
	if index >= uint32(len(f.sb.fat)) {
		return false
	}
	v := f.sb.fat[index]
	return v != fatFree && v != fatBad
}

// Stats derives the current counters from the allocation table and
// the session's bad-block table. Purely derived, no independent state.
func (f *FS) Stats() Stats {
	s := Stats{Seq: f.sb.seq}
	for i, v := range f.sb.fat {
		switch {
		case v == fatBad || f.bad.IsBad(uint32(i)):
			s.Bad++
		case v == fatFree:
			s.Free++
		default:
			s.Used++
		}
	}
	return s
}

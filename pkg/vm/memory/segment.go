package memory

import "fmt"

// cell is a single write-once memory location plus its access bit
// (spec §3 MemoryCell). A nil *cell in a segment's Data slice means the
// address has never been written.
type cell struct {
	value    MaybeRelocatable
	accessed bool
}

// Segment is an ordered, growable sequence of optional cells belonging to
// one segment index (spec §3/§4.9). Real segments and temporary segments
// are both represented by this type; which bucket a Segment lives in is
// tracked by Memory.
type Segment struct {
	Data []*cell
	// lastIndex is the highest offset ever written, or -1 if empty. Used
	// both to report the segment's effective (used) size and as a
	// shortcut when growing Data.
	lastIndex int
}

func emptySegment() *Segment {
	return &Segment{Data: make([]*cell, 0, 64), lastIndex: -1}
}

// Len returns the effective size of the segment: the highest written
// offset plus one, i.e. zero for a never-written segment.
func (s *Segment) Len() uint64 {
	return uint64(s.lastIndex + 1)
}

func (s *Segment) ensureCapacity(offset uint64) {
	if offset < uint64(len(s.Data)) {
		return
	}
	newLen := offset + 1
	if newLen < uint64(len(s.Data))*2 {
		newLen = uint64(len(s.Data)) * 2
	}
	grown := make([]*cell, newLen)
	copy(grown, s.Data)
	s.Data = grown
}

// write stores value at offset. Write-once: a second write to an
// already-filled cell with a different value is an error; writing the same
// value again is a silent no-op (spec §3).
func (s *Segment) write(offset uint64, value MaybeRelocatable) error {
	s.ensureCapacity(offset)
	if int(offset) > s.lastIndex {
		s.lastIndex = int(offset)
	}
	existing := s.Data[offset]
	if existing != nil {
		if existing.value.Equal(value) {
			return nil
		}
		return &InconsistentMemoryError{Existing: existing.value, New: value}
	}
	s.Data[offset] = &cell{value: value}
	return nil
}

// get returns the stored value, or (zero, false) if the cell was never
// written.
func (s *Segment) get(offset uint64) (MaybeRelocatable, bool) {
	if offset >= uint64(len(s.Data)) || s.Data[offset] == nil {
		return MaybeRelocatable{}, false
	}
	return s.Data[offset].value, true
}

func (s *Segment) markAccessed(offset uint64) {
	if offset < uint64(len(s.Data)) && s.Data[offset] != nil {
		s.Data[offset].accessed = true
	}
}

func (s *Segment) isAccessed(offset uint64) bool {
	return offset < uint64(len(s.Data)) && s.Data[offset] != nil && s.Data[offset].accessed
}

// countHoles returns the number of cells within [0, Len()) that were never
// written -- used by the segment manager's memory-hole accounting.
func (s *Segment) countHoles() uint64 {
	var holes uint64
	for i := uint64(0); i < s.Len(); i++ {
		if i >= uint64(len(s.Data)) || s.Data[i] == nil {
			holes++
		}
	}
	return holes
}

func (s *Segment) String() string {
	return fmt.Sprintf("segment(len=%d, cap=%d)", s.Len(), len(s.Data))
}

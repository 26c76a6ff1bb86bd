package memory

import "fmt"

// ValidationRule is installed per (real) segment by a builtin runner and
// invoked when a value is inserted into that segment (spec §4.6
// "add_validation_rule"). Once the rule succeeds for an address, that
// address is marked validated and the rule is not run for it again.
type ValidationRule func(mem *Memory, addr Relocatable) error

// Memory is the segmented, write-once store described in spec §3/§4.1. Real
// segments live in `segments` (index >= 0); temporary segments pending
// relocation live in `tempSegments`, addressed by a negative SegmentIndex
// (`-1` maps to tempSegments[0], `-2` to tempSegments[1], ...).
type Memory struct {
	segments     []*Segment
	tempSegments []*Segment

	validationRules map[int]ValidationRule
	validatedAddrs  map[Relocatable]bool

	// relocationRules maps a temporary segment index to the real address
	// its cells get concatenated onto (spec §4.1/§4.9). The rule's source
	// is always offset 0, so the map key is just the segment index.
	relocationRules map[int]Relocatable

	relocated bool
}

func NewMemory() *Memory {
	return &Memory{
		validationRules: make(map[int]ValidationRule),
		validatedAddrs:  make(map[Relocatable]bool),
		relocationRules: make(map[int]Relocatable),
	}
}

func (m *Memory) NumSegments() int {
	return len(m.segments)
}

func (m *Memory) NumTempSegments() int {
	return len(m.tempSegments)
}

// AllocateSegment appends a new, empty real segment and returns its base.
func (m *Memory) AllocateSegment() Relocatable {
	m.segments = append(m.segments, emptySegment())
	return NewRelocatable(len(m.segments)-1, 0)
}

// AllocateTempSegment appends a new temporary segment (negative index) and
// returns its base.
func (m *Memory) AllocateTempSegment() Relocatable {
	m.tempSegments = append(m.tempSegments, emptySegment())
	idx := -(len(m.tempSegments))
	return NewRelocatable(idx, 0)
}

func (m *Memory) segmentFor(segmentIndex int) (*Segment, error) {
	if segmentIndex >= 0 {
		if segmentIndex >= len(m.segments) {
			return nil, fmt.Errorf("%w: segment %d", ErrUnallocatedSegment, segmentIndex)
		}
		return m.segments[segmentIndex], nil
	}
	tempIdx := -segmentIndex - 1
	if tempIdx >= len(m.tempSegments) {
		return nil, fmt.Errorf("%w: temporary segment %d", ErrUnallocatedSegment, segmentIndex)
	}
	return m.tempSegments[tempIdx], nil
}

// Insert writes value at addr. Write-once: a conflicting second write to an
// already-filled cell fails with InconsistentMemoryError; an equal value is
// a silent no-op (spec §3/§4.1).
func (m *Memory) Insert(addr Relocatable, value MaybeRelocatable) error {
	seg, err := m.segmentFor(addr.SegmentIndex)
	if err != nil {
		return err
	}
	if err := seg.write(addr.Offset, value); err != nil {
		if ime, ok := err.(*InconsistentMemoryError); ok {
			ime.Addr = addr
		}
		return err
	}
	return m.validateAddress(addr)
}

// Get returns the value stored at addr, or (zero, false) if never written.
func (m *Memory) Get(addr Relocatable) (MaybeRelocatable, bool) {
	seg, err := m.segmentFor(addr.SegmentIndex)
	if err != nil {
		return MaybeRelocatable{}, false
	}
	return seg.get(addr.Offset)
}

// GetFelt reads addr and requires the stored value to be a Felt.
func (m *Memory) GetFelt(addr Relocatable) (Felt, error) {
	v, ok := m.Get(addr)
	if !ok {
		return Felt{}, fmt.Errorf("%w at %s", ErrUnknownMemoryCell, addr)
	}
	f, ok := v.GetFelt()
	if !ok {
		return Felt{}, fmt.Errorf("%w at %s", ErrExpectedInteger, addr)
	}
	return f, nil
}

// GetRelocatable reads addr and requires the stored value to be a
// Relocatable.
func (m *Memory) GetRelocatable(addr Relocatable) (Relocatable, error) {
	v, ok := m.Get(addr)
	if !ok {
		return Relocatable{}, fmt.Errorf("%w at %s", ErrUnknownMemoryCell, addr)
	}
	r, ok := v.GetRelocatable()
	if !ok {
		return Relocatable{}, fmt.Errorf("%w at %s", ErrExpectedRelocatable, addr)
	}
	return r, nil
}

// MarkAccessed flips the accessed bit for addr. The VM calls this for every
// operand address touched by a step (spec §4.7).
func (m *Memory) MarkAccessed(addr Relocatable) {
	if seg, err := m.segmentFor(addr.SegmentIndex); err == nil {
		seg.markAccessed(addr.Offset)
	}
}

// MarkAddressRangeAsAccessed marks n consecutive cells starting at base.
func (m *Memory) MarkAddressRangeAsAccessed(base Relocatable, n uint64) {
	for i := uint64(0); i < n; i++ {
		addr, err := base.AddUint(i)
		if err != nil {
			return
		}
		m.MarkAccessed(addr)
	}
}

func (m *Memory) IsAccessed(addr Relocatable) (bool, error) {
	seg, err := m.segmentFor(addr.SegmentIndex)
	if err != nil {
		return false, err
	}
	return seg.isAccessed(addr.Offset), nil
}

// LoadData writes values sequentially starting at base and returns the
// address one past the last written cell (spec §4.1 "load_data").
func (m *Memory) LoadData(base Relocatable, values []MaybeRelocatable) (Relocatable, error) {
	addr := base
	for _, v := range values {
		if err := m.Insert(addr, v); err != nil {
			return Relocatable{}, err
		}
		next, err := addr.AddUint(1)
		if err != nil {
			return Relocatable{}, err
		}
		addr = next
	}
	return addr, nil
}

// AddValidationRule installs rule for every future (and, via
// ValidateExistingMemory, every already-written) address in the given real
// segment.
func (m *Memory) AddValidationRule(segmentIndex int, rule ValidationRule) {
	m.validationRules[segmentIndex] = rule
}

// ValidateExistingMemory re-applies validation rules to every address
// already written -- used once builtin segments have rules installed after
// some cells were pre-populated (spec §4.10 step 4).
func (m *Memory) ValidateExistingMemory() error {
	for segIdx, seg := range m.segments {
		if _, ok := m.validationRules[segIdx]; !ok {
			continue
		}
		for offset := range seg.Data {
			if seg.Data[offset] == nil {
				continue
			}
			if err := m.validateAddress(NewRelocatable(segIdx, uint64(offset))); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Memory) validateAddress(addr Relocatable) error {
	if addr.IsTemporary() || m.validatedAddrs[addr] {
		return nil
	}
	rule, ok := m.validationRules[addr.SegmentIndex]
	if !ok {
		return nil
	}
	if err := rule(m, addr); err != nil {
		return err
	}
	m.validatedAddrs[addr] = true
	return nil
}

// AddRelocationRule records that temporary segment srcTemp.SegmentIndex
// should be concatenated onto dst once RelocateMemory runs (spec §4.1).
func (m *Memory) AddRelocationRule(srcTemp, dst Relocatable) error {
	if !srcTemp.IsTemporary() {
		return ErrAddressNotInTemporary
	}
	if srcTemp.Offset != 0 {
		return ErrNonZeroRelocationOffset
	}
	if _, exists := m.relocationRules[srcTemp.SegmentIndex]; exists {
		return ErrDuplicatedRelocation
	}
	m.relocationRules[srcTemp.SegmentIndex] = dst
	return nil
}

// relocateValue substitutes v if it is a relocatable pointing into a
// temporary segment that has a relocation rule; otherwise v is returned
// unchanged.
func (m *Memory) relocateValue(v MaybeRelocatable) MaybeRelocatable {
	r, ok := v.GetRelocatable()
	if !ok || !r.IsTemporary() {
		return v
	}
	dst, ok := m.relocationRules[r.SegmentIndex]
	if !ok {
		return v
	}
	return NewMaybeRelocatableRelocatable(NewRelocatable(dst.SegmentIndex, dst.Offset+r.Offset))
}

// RelocateMemory applies every recorded relocation rule: temporary-segment
// cells are concatenated onto their target real segment, and every
// relocatable value anywhere in memory that points into a relocated
// temporary segment is rewritten. Any relocatable value that still points
// into an un-relocated temporary segment afterwards is an error (spec
// §4.1/§8 idempotence).
func (m *Memory) RelocateMemory() error {
	if m.relocated {
		return ErrAlreadyRelocated
	}

	for tempIdx, dst := range m.relocationRules {
		seg, err := m.segmentFor(tempIdx)
		if err != nil {
			return err
		}
		for offset, c := range seg.Data {
			if c == nil {
				continue
			}
			targetAddr, err := dst.AddUint(uint64(offset))
			if err != nil {
				return err
			}
			relocated := m.relocateValue(c.value)
			if err := m.Insert(targetAddr, relocated); err != nil {
				return err
			}
			if c.accessed {
				m.MarkAccessed(targetAddr)
			}
		}
	}

	// Rewrite every remaining real-segment cell that still references a
	// relocated temporary segment.
	for segIdx, seg := range m.segments {
		for offset, c := range seg.Data {
			if c == nil {
				continue
			}
			c.value = m.relocateValue(c.value)
			if r, ok := c.value.GetRelocatable(); ok && r.IsTemporary() {
				if _, hasRule := m.relocationRules[r.SegmentIndex]; !hasRule {
					return fmt.Errorf("%w at (%d:%d)", ErrUnrelocatedTemporaryValue, segIdx, offset)
				}
			}
		}
	}

	m.tempSegments = nil
	m.relocated = true
	return nil
}

// RealSegment exposes a real segment for the segment manager's size/offset
// bookkeeping. It is not part of the VM-facing read/write API.
func (m *Memory) RealSegment(index int) (*Segment, error) {
	if index < 0 || index >= len(m.segments) {
		return nil, fmt.Errorf("%w: segment %d", ErrUnallocatedSegment, index)
	}
	return m.segments[index], nil
}

func (m *Memory) RealSegments() []*Segment {
	return m.segments
}

package memory

import "fmt"

// PublicMemoryPage records that a cell at a given segment offset belongs to
// public-memory "page" (spec §4.12); pages let a layout batch public memory
// per program/builtin segment.
type PublicMemoryPage struct {
	Offset uint64
	Page   uint64
}

// SegmentManager owns Memory and the bookkeeping needed to turn segmented
// addresses into the single flat address space a prover consumes (spec
// §3 "Segment manager", §4.9).
type SegmentManager struct {
	Memory *Memory

	// segmentUsedSizes caches ComputeEffectiveSizes' result, keyed by real
	// segment index.
	segmentUsedSizes map[int]uint64
	// segmentSizes are explicit overrides used for public-memory sizing
	// (e.g. the program segment is sized to the program's data length,
	// not merely the highest address touched).
	segmentSizes map[int]uint64
	// publicMemoryOffsets records, per real segment, the (offset, page)
	// pairs the public-input builder should emit.
	publicMemoryOffsets map[int][]PublicMemoryPage
}

func NewSegmentManager() *SegmentManager {
	return &SegmentManager{
		Memory:              NewMemory(),
		segmentUsedSizes:    make(map[int]uint64),
		segmentSizes:        make(map[int]uint64),
		publicMemoryOffsets: make(map[int][]PublicMemoryPage),
	}
}

func (sm *SegmentManager) AddSegment() Relocatable {
	return sm.Memory.AllocateSegment()
}

func (sm *SegmentManager) AddTempSegment() Relocatable {
	return sm.Memory.AllocateTempSegment()
}

func (sm *SegmentManager) LoadData(base Relocatable, values []MaybeRelocatable) (Relocatable, error) {
	return sm.Memory.LoadData(base, values)
}

// SetSegmentSize records an explicit size override for a segment, used by
// layouts/runner code that knows the "true" size independent of highest
// offset touched (spec §3 "segment_sizes").
func (sm *SegmentManager) SetSegmentSize(segmentIndex int, size uint64) {
	sm.segmentSizes[segmentIndex] = size
}

// SetPublicMemoryOffsets records the public-memory pages for a segment.
func (sm *SegmentManager) SetPublicMemoryOffsets(segmentIndex int, pages []PublicMemoryPage) {
	sm.publicMemoryOffsets[segmentIndex] = pages
}

func (sm *SegmentManager) PublicMemoryOffsets(segmentIndex int) []PublicMemoryPage {
	return sm.publicMemoryOffsets[segmentIndex]
}

// ComputeEffectiveSizes computes, for each real segment, the
// highest-offset-touched+1 (or the explicit override, if any) and caches
// the result (spec §4.10 step 6).
func (sm *SegmentManager) ComputeEffectiveSizes() map[int]uint64 {
	sm.segmentUsedSizes = make(map[int]uint64, len(sm.Memory.segments))
	for idx, seg := range sm.Memory.segments {
		if override, ok := sm.segmentSizes[idx]; ok {
			sm.segmentUsedSizes[idx] = override
			continue
		}
		sm.segmentUsedSizes[idx] = seg.Len()
	}
	return sm.segmentUsedSizes
}

// SegmentUsedSize returns the effective size computed by
// ComputeEffectiveSizes for a real segment.
func (sm *SegmentManager) SegmentUsedSize(segmentIndex int) (uint64, error) {
	size, ok := sm.segmentUsedSizes[segmentIndex]
	if !ok {
		return 0, fmt.Errorf("%w: effective size not computed for segment %d", ErrUnallocatedSegment, segmentIndex)
	}
	return size, nil
}

// RelocateSegments assigns every real segment a base in a single linear
// address space: base[0] = 1 (index 0 is reserved as null, spec §4.9),
// base[i+1] = base[i] + size[i]. ComputeEffectiveSizes must have been
// called first.
func (sm *SegmentManager) RelocateSegments() (map[int]uint64, error) {
	bases := make(map[int]uint64, len(sm.Memory.segments))
	next := uint64(1)
	for idx := range sm.Memory.segments {
		bases[idx] = next
		size, ok := sm.segmentUsedSizes[idx]
		if !ok {
			return nil, fmt.Errorf("%w: effective size not computed for segment %d", ErrUnallocatedSegment, idx)
		}
		next += size
	}
	return bases, nil
}

// RelocateMemory produces the final flat memory: index 0 is reserved
// (never emitted); index bases[seg]+offset holds the felt-valued contents
// of that cell, with relocatable values substituted by
// Felt(bases[target.Segment] + target.Offset) (spec §4.9/§6).
func (sm *SegmentManager) RelocateMemory(bases map[int]uint64) ([]*Felt, error) {
	if err := sm.Memory.RelocateMemory(); err != nil && err != ErrAlreadyRelocated {
		return nil, err
	}

	total := uint64(1)
	for idx, size := range sm.segmentUsedSizes {
		if end := bases[idx] + size; end > total {
			total = end
		}
	}

	flat := make([]*Felt, total)
	for idx, seg := range sm.Memory.segments {
		base, ok := bases[idx]
		if !ok {
			return nil, fmt.Errorf("no relocation base for segment %d", idx)
		}
		for offset, c := range seg.Data {
			if c == nil {
				continue
			}
			flatIdx := base + uint64(offset)
			felt, err := sm.relocatedFelt(c.value, bases)
			if err != nil {
				return nil, err
			}
			if int(flatIdx) >= len(flat) {
				grown := make([]*Felt, flatIdx+1)
				copy(grown, flat)
				flat = grown
			}
			flat[flatIdx] = &felt
		}
	}
	return flat, nil
}

func (sm *SegmentManager) relocatedFelt(v MaybeRelocatable, bases map[int]uint64) (Felt, error) {
	if f, ok := v.GetFelt(); ok {
		return f, nil
	}
	r, _ := v.GetRelocatable()
	if r.IsTemporary() {
		return Felt{}, fmt.Errorf("%w: %s", ErrUnrelocatedTemporaryValue, r)
	}
	base, ok := bases[r.SegmentIndex]
	if !ok {
		return Felt{}, fmt.Errorf("no relocation base for segment %d", r.SegmentIndex)
	}
	return FeltFromUint64(base + r.Offset), nil
}

// GetMemoryHoles counts, across every real segment whose index is not in
// builtinSegments, cells within the effective size that were never written.
// Builtin segments are excluded because their own used-vs-allocated gap is
// already accounted for by each builtin's GetUsedCellsAndAllocatedSizes
// check (spec §4.11).
func (sm *SegmentManager) GetMemoryHoles(builtinSegments map[int]bool) (uint64, error) {
	var holes uint64
	for idx, seg := range sm.Memory.segments {
		if builtinSegments[idx] {
			continue
		}
		holes += seg.countHoles()
	}
	return holes, nil
}

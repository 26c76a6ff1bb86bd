package builtins

import "github.com/shardlabs/cairo-vm-go/pkg/vm/memory"

const SegmentArenaName = "segment_arena"

// SegmentArenaCellsPerInstance tracks (info_segment_ptr, n_segments,
// n_finalized_segments) for dict/array segment bookkeeping done entirely
// by hint code; the builtin itself only owns the segment and never
// deduces a cell (spec §4.6 "segment_arena").
const SegmentArenaCellsPerInstance = 3

type SegmentArenaBuiltinRunner struct {
	base
	infoSegment memory.Relocatable
}

func NewSegmentArenaBuiltinRunner() *SegmentArenaBuiltinRunner {
	return &SegmentArenaBuiltinRunner{base: newBase(SegmentArenaName, 0, SegmentArenaCellsPerInstance)}
}

func (s *SegmentArenaBuiltinRunner) InitializeSegments(segments *memory.SegmentManager) {
	s.base.InitializeSegments(segments)
	s.infoSegment = segments.AddSegment()
}

// InitialStack pushes the info segment's base followed by two zero
// counters, n_segments and n_finalized_segments.
func (s *SegmentArenaBuiltinRunner) InitialStack() []memory.MaybeRelocatable {
	if !s.included {
		return nil
	}
	return []memory.MaybeRelocatable{
		memory.NewMaybeRelocatableRelocatable(s.infoSegment),
		memory.NewMaybeRelocatableFelt(memory.FeltZero()),
		memory.NewMaybeRelocatableFelt(memory.FeltZero()),
	}
}

func (s *SegmentArenaBuiltinRunner) DeduceMemoryCell(memory.Relocatable, *memory.Memory) (*memory.MaybeRelocatable, error) {
	return nil, nil
}

// GetAllocatedMemoryUnits overrides base: the arena's own segment is sized
// to exactly what was used, same as output.
func (s *SegmentArenaBuiltinRunner) GetAllocatedMemoryUnits(segments *memory.SegmentManager, _ uint64) (uint64, error) {
	return segments.SegmentUsedSize(s.segmentBase.SegmentIndex)
}

// GetUsedCellsAndAllocatedSizes overrides base too, since base's version
// calls base.GetAllocatedMemoryUnits rather than the override above.
func (s *SegmentArenaBuiltinRunner) GetUsedCellsAndAllocatedSizes(segments *memory.SegmentManager, _ uint64) (uint64, uint64, error) {
	used, err := segments.SegmentUsedSize(s.segmentBase.SegmentIndex)
	if err != nil {
		return 0, 0, err
	}
	return used, used, nil
}

package builtins

import "github.com/shardlabs/cairo-vm-go/pkg/vm/memory"

const OutputName = "output"

// OutputBuiltinRunner's segment just accumulates whatever the program
// writes to it sequentially; there's no ratio, ceiling, or deduction (spec
// §4.6 "output").
type OutputBuiltinRunner struct {
	base
}

func NewOutputBuiltinRunner() *OutputBuiltinRunner {
	return &OutputBuiltinRunner{base: newBase(OutputName, 0, 1)}
}

func (o *OutputBuiltinRunner) DeduceMemoryCell(memory.Relocatable, *memory.Memory) (*memory.MaybeRelocatable, error) {
	return nil, nil
}

// GetAllocatedMemoryUnits overrides base: output has no ratio-derived
// ceiling, it is sized to exactly what was used.
func (o *OutputBuiltinRunner) GetAllocatedMemoryUnits(segments *memory.SegmentManager, _ uint64) (uint64, error) {
	return segments.SegmentUsedSize(o.segmentBase.SegmentIndex)
}

func (o *OutputBuiltinRunner) GetUsedCellsAndAllocatedSizes(segments *memory.SegmentManager, currentStep uint64) (uint64, uint64, error) {
	used, err := segments.SegmentUsedSize(o.segmentBase.SegmentIndex)
	if err != nil {
		return 0, 0, err
	}
	return used, used, nil
}

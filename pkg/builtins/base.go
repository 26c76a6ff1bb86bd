package builtins

import (
	"github.com/shardlabs/cairo-vm-go/pkg/safemath"
	"github.com/shardlabs/cairo-vm-go/pkg/vm/memory"
)

// base holds the bookkeeping every builtin runner shares: its segment, its
// inclusion flag, and the ratio-based memory-unit accounting of spec
// §4.6/§4.11. Concrete builtins embed it, implement DeduceMemoryCell
// themselves, and override the other methods only where they differ.
type base struct {
	name                  string
	segmentBase           memory.Relocatable
	included              bool
	ratio                 uint64
	cellsPerInstance      uint64
	instancesPerComponent uint64
	stopPtr               *memory.Relocatable
}

func newBase(name string, ratio, cellsPerInstance uint64) base {
	return base{
		name:                  name,
		ratio:                 ratio,
		cellsPerInstance:      cellsPerInstance,
		instancesPerComponent: 1,
	}
}

func (b *base) Name() string { return b.name }

func (b *base) Base() memory.Relocatable { return b.segmentBase }

func (b *base) Included() bool { return b.included }

func (b *base) SetIncluded(v bool) { b.included = v }

func (b *base) InitializeSegments(segments *memory.SegmentManager) {
	b.segmentBase = segments.AddSegment()
}

func (b *base) InitialStack() []memory.MaybeRelocatable {
	if !b.included {
		return nil
	}
	return []memory.MaybeRelocatable{memory.NewMaybeRelocatableRelocatable(b.segmentBase)}
}

func (b *base) FinalStack(segments *memory.SegmentManager, pointer memory.Relocatable) (memory.Relocatable, error) {
	if !b.included {
		zero := memory.Relocatable{}
		b.stopPtr = &zero
		return pointer, nil
	}
	stopPtrAddr, stopPointer, err := readStopPointer(segments, b.name, b.segmentBase, pointer)
	if err != nil {
		return memory.Relocatable{}, err
	}
	used, err := segments.SegmentUsedSize(b.segmentBase.SegmentIndex)
	if err != nil {
		return memory.Relocatable{}, err
	}
	if stopPointer.Offset != used {
		return memory.Relocatable{}, NewErrInvalidStopPointer(b.name, used, stopPointer)
	}
	b.stopPtr = &stopPointer
	return stopPtrAddr, nil
}

// GetAllocatedMemoryUnits implements spec §4.11's per-builtin cell budget:
// ratio == 0 (the "dynamic" layout) sizes the segment to the next power of
// two of actually-used instances; any other ratio requires currentStep to
// have reached at least ratio*instancesPerComponent steps.
func (b *base) GetAllocatedMemoryUnits(segments *memory.SegmentManager, currentStep uint64) (uint64, error) {
	if b.ratio == 0 {
		used, err := segments.SegmentUsedSize(b.segmentBase.SegmentIndex)
		if err != nil {
			return 0, err
		}
		instances := safemath.DivCeil(used, b.cellsPerInstance)
		components := safemath.NextPowerOfTwo(instances / b.instancesPerComponent)
		return b.cellsPerInstance * b.instancesPerComponent * components, nil
	}
	minStep := b.ratio * b.instancesPerComponent
	if currentStep < minStep {
		return 0, NewErrMinStepNotReached(minStep, b.name)
	}
	value, err := safemath.SafeDiv(currentStep, b.ratio)
	if err != nil {
		return 0, err
	}
	return b.cellsPerInstance * value, nil
}

func (b *base) GetUsedCellsAndAllocatedSizes(segments *memory.SegmentManager, currentStep uint64) (uint64, uint64, error) {
	used, err := segments.SegmentUsedSize(b.segmentBase.SegmentIndex)
	if err != nil {
		return 0, 0, err
	}
	size, err := b.GetAllocatedMemoryUnits(segments, currentStep)
	if err != nil {
		return 0, 0, err
	}
	if used > size {
		return 0, 0, NewErrInsufficientAllocated(used, size)
	}
	return used, size, nil
}

func (b *base) MemorySegmentAddress() (string, memory.Relocatable, *memory.Relocatable) {
	return b.name, b.segmentBase, b.stopPtr
}

// RunSecurityChecks is a no-op shared by every builtin; none of the
// builtins in this package overrides it.
func (b *base) RunSecurityChecks(*memory.SegmentManager) error { return nil }

// AddValidationRule defaults to a no-op; only range-check and signature
// install one.
func (b *base) AddValidationRule(*memory.Memory) {}

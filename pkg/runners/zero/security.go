package zero

import (
	"errors"
	"fmt"

	"github.com/shardlabs/cairo-vm-go/pkg/builtins"
	"github.com/shardlabs/cairo-vm-go/pkg/safemath"
)

// memoryUnitsPerStep and publicMemoryFraction are the fixed AIR constants
// spec §4.11's memory-usage check folds currentStep against.
const (
	memoryUnitsPerStep   = 8
	publicMemoryFraction = 4
	instructionUnits     = 4
)

var (
	ErrMemoryUsageNotExact       = errors.New("zero: total memory units do not divide evenly by the public memory fraction")
	ErrMemoryUsageExceeded       = errors.New("zero: builtin and public/instruction memory usage exceeds the step-derived memory unit budget")
	ErrDilutedCheckExceeded      = errors.New("zero: diluted pool usage exceeds the step-derived unit budget")
	ErrRangeCheckOutOfBound      = errors.New("zero: range-check usage exceeds the 16-bit offset bound")
	ErrOutOfBoundsProgramSegment = errors.New("zero: program segment used size exceeds its declared size")
	ErrReturnValuesNotRead       = errors.New("zero: return values have not been read yet")
)

// RunSecurityChecks runs the full soundness sweep of spec §4.11: every
// builtin's own cell budget, the shared memory-unit accounting, the
// diluted-pool accounting, and the range-check offset bound -- all derived
// from CurrentStep, so this can only run after EndRun.
func (r *ZeroRunner) RunSecurityChecks() error {
	if !r.runEnded {
		return ErrRunNotFinished
	}
	if err := r.CheckUsedCells(); err != nil {
		return err
	}
	if err := r.CheckMemoryUsage(); err != nil {
		return err
	}
	if err := r.CheckDilutedCheckUsage(); err != nil {
		return err
	}
	if err := r.CheckRangeCheckUsage(); err != nil {
		return err
	}
	for _, b := range r.Vm.BuiltinRunners {
		if err := b.RunSecurityChecks(r.Vm.Segments); err != nil {
			return err
		}
	}
	return nil
}

// VerifySecureRunner performs the final out-of-bounds sweep of spec §4.11,
// run after ReadReturnValues has popped every builtin's stop pointer off the
// stack: no builtin's used cell count may exceed its declared stop pointer
// (OutOfBoundsBuiltinSegmentAccess), and the program segment's used size may
// not exceed its declared size (OutOfBoundsProgramSegmentAccess). It also
// re-runs the full RunSecurityChecks sweep, since every builtin's own
// security checks must pass for the run to be considered secure.
func (r *ZeroRunner) VerifySecureRunner() error {
	if !r.returnValuesRead {
		return ErrReturnValuesNotRead
	}
	if err := r.RunSecurityChecks(); err != nil {
		return err
	}

	programSeg, err := r.Vm.Segments.Memory.RealSegment(r.programBase.SegmentIndex)
	if err != nil {
		return err
	}
	if declared := r.declaredProgramSegmentSize(); programSeg.Len() > declared {
		return fmt.Errorf("%w: used=%d declared=%d", ErrOutOfBoundsProgramSegment, programSeg.Len(), declared)
	}

	for _, b := range r.Vm.BuiltinRunners {
		name, base, stopPtr := b.MemorySegmentAddress()
		if stopPtr == nil {
			continue
		}
		seg, err := r.Vm.Segments.Memory.RealSegment(base.SegmentIndex)
		if err != nil {
			return err
		}
		if used := seg.Len(); used > stopPtr.Offset {
			return builtins.NewErrOutOfBoundsSegment(name, used, stopPtr.Offset)
		}
	}
	return nil
}

// CheckMemoryUsage verifies that the memory units a run is allowed
// (memoryUnitsPerStep * CurrentStep, split into a public-memory share, the
// fixed instruction-fetch share, and the builtins' allocated cells) leave
// enough unused units to cover the actual memory holes (spec §4.11).
func (r *ZeroRunner) CheckMemoryUsage() error {
	total := memoryUnitsPerStep * r.Vm.CurrentStep
	publicMemoryUnits, err := safemath.SafeDiv(total, publicMemoryFraction)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMemoryUsageNotExact, err)
	}

	var builtinUnits uint64
	for _, b := range r.Vm.BuiltinRunners {
		_, size, err := b.GetUsedCellsAndAllocatedSizes(r.Vm.Segments, r.Vm.CurrentStep)
		if err != nil {
			return err
		}
		builtinUnits += size
	}

	usedUnits := publicMemoryUnits + instructionUnits*r.Vm.CurrentStep + builtinUnits
	if usedUnits > total {
		return fmt.Errorf("%w: used=%d total=%d", ErrMemoryUsageExceeded, usedUnits, total)
	}
	unusedUnits := total - usedUnits

	builtinSegments := make(map[int]bool, len(r.Vm.BuiltinRunners))
	for _, b := range r.Vm.BuiltinRunners {
		builtinSegments[b.Base().SegmentIndex] = true
	}
	holes, err := r.Vm.Segments.GetMemoryHoles(builtinSegments)
	if err != nil {
		return err
	}
	if unusedUnits < holes {
		return fmt.Errorf("%w: unused=%d holes=%d", ErrMemoryUsageExceeded, unusedUnits, holes)
	}
	return nil
}

// CheckDilutedCheckUsage verifies the bitwise/keccak diluted-form pool the
// layout budgets per step covers every diluted value the builtins actually
// consumed this run (spec §4.11, §5 layout parameters).
func (r *ZeroRunner) CheckDilutedCheckUsage() error {
	if r.Layout.RcUnitsPerStep == 0 {
		return nil
	}
	dilutedPoolSize := r.Layout.DilutedSpacing * (uint64(1) << r.Layout.DilutedNBits) * r.Vm.CurrentStep / r.Layout.RcUnitsPerStep

	var used uint64
	for _, b := range r.Vm.BuiltinRunners {
		switch b.(type) {
		case *builtins.BitwiseBuiltinRunner, *builtins.KeccakBuiltinRunner:
			_, size, err := b.GetUsedCellsAndAllocatedSizes(r.Vm.Segments, r.Vm.CurrentStep)
			if err != nil {
				return err
			}
			used += size
		}
	}
	if used > dilutedPoolSize {
		return fmt.Errorf("%w: used=%d budget=%d", ErrDilutedCheckExceeded, used, dilutedPoolSize)
	}
	return nil
}

// CheckRangeCheckUsage folds every range-check builtin's observed
// min/max 16-bit limb together with the VM's own instruction-offset
// rc_min/rc_max, and checks the resulting span fits the bound the step
// count allows (spec §4.11).
func (r *ZeroRunner) CheckRangeCheckUsage() error {
	min, max := r.Vm.RcMin, r.Vm.RcMax
	set := true

	for _, b := range r.Vm.BuiltinRunners {
		rc, ok := b.(*builtins.RangeCheckBuiltinRunner)
		if !ok {
			continue
		}
		bMin, bMax, ok := rc.GetRangeCheckUsage(r.Vm.Segments)
		if !ok {
			continue
		}
		if !set || int64(bMin) < min {
			min = int64(bMin)
		}
		if !set || int64(bMax) > max {
			max = int64(bMax)
		}
		set = true
	}
	if !set {
		return nil
	}

	rcUnitsPerStep := r.Layout.RcUnitsPerStep
	if rcUnitsPerStep == 0 {
		return nil
	}
	span := uint64(max - min)
	bound := rcUnitsPerStep * r.Vm.CurrentStep
	if span > bound {
		return fmt.Errorf("%w: span=%d bound=%d", ErrRangeCheckOutOfBound, span, bound)
	}
	return nil
}

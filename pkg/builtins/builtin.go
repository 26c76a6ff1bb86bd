// Package builtins implements the uniform BuiltinRunner contract of spec
// §4.6: each Cairo builtin (output, pedersen, range-check, bitwise, ec-op,
// keccak, poseidon, signature, segment-arena) owns one memory segment and
// exposes the same dispatch surface to the VM. The builtins' internal
// algorithms (the actual pedersen hash, ec-op curve law, keccak
// permutation, ...) are explicitly out of the core's scope (spec §1); what
// matters here is that every builtin honors the shared interface the VM's
// step loop and the Runner's finalize phase depend on.
package builtins

import (
	"errors"
	"fmt"

	"github.com/shardlabs/cairo-vm-go/pkg/vm/memory"
)

var (
	ErrNoStopPointer           = errors.New("builtins: no stop pointer found on the stack")
	ErrInvalidStopPointerIndex = errors.New("builtins: stop pointer does not belong to this builtin's segment")
	ErrInvalidStopPointer      = errors.New("builtins: stop pointer does not match the builtin's used cell count")
	ErrInsufficientAllocated   = errors.New("builtins: insufficient allocated cells for this builtin")
	ErrMinStepNotReached       = errors.New("builtins: current step count is below the builtin's minimum ratio step")
	ErrOutOfBoundsSegment      = errors.New("builtins: out of bounds builtin segment access")
)

func NewErrNoStopPointer(name string) error {
	return fmt.Errorf("%w: %s", ErrNoStopPointer, name)
}

func NewErrInvalidStopPointerIndex(name string, got, want memory.Relocatable) error {
	return fmt.Errorf("%w: %s expected segment %d, got %s", ErrInvalidStopPointerIndex, name, want.SegmentIndex, got)
}

func NewErrInvalidStopPointer(name string, wantOffset uint64, got memory.Relocatable) error {
	return fmt.Errorf("%w: %s expected offset %d, got %s", ErrInvalidStopPointer, name, wantOffset, got)
}

func NewErrInsufficientAllocated(used, allocated uint64) error {
	return fmt.Errorf("%w: used=%d allocated=%d", ErrInsufficientAllocated, used, allocated)
}

func NewErrMinStepNotReached(minStep uint64, name string) error {
	return fmt.Errorf("%w: %s needs at least %d steps", ErrMinStepNotReached, name, minStep)
}

// NewErrOutOfBoundsSegment reports a builtin whose segment's used cell count
// (the highest offset ever written, plus one) exceeds the stop pointer it
// declared on the stack (spec §4.11 OutOfBoundsBuiltinSegmentAccess).
func NewErrOutOfBoundsSegment(name string, used, stopOffset uint64) error {
	return fmt.Errorf("%w: %s used=%d stop=%d", ErrOutOfBoundsSegment, name, used, stopOffset)
}

// BuiltinRunner is the uniform interface every builtin exposes to the VM
// and Runner (spec §4.6).
type BuiltinRunner interface {
	// Name is the builtin's canonical identifier, e.g. "pedersen".
	Name() string
	// Base is the first address of the builtin's own memory segment.
	Base() memory.Relocatable
	// Included reports whether the running layout actually activated
	// this builtin (proof-mode layouts still instantiate excluded
	// builtins so overall segment numbering stays stable).
	Included() bool
	SetIncluded(bool)

	// InitializeSegments allocates the builtin's segment.
	InitializeSegments(segments *memory.SegmentManager)
	// InitialStack returns the values pushed onto the execution stack
	// before the program's main entrypoint (its own base, when included).
	InitialStack() []memory.MaybeRelocatable

	// DeduceMemoryCell attempts to deduce the value at addr. Returns
	// (nil, nil) when this builtin has no deduction for addr -- the VM
	// falls through to opcode-level deduction in that case.
	DeduceMemoryCell(addr memory.Relocatable, mem *memory.Memory) (*memory.MaybeRelocatable, error)
	// AddValidationRule installs this builtin's per-address validator.
	AddValidationRule(mem *memory.Memory)

	// FinalStack reads this builtin's stop pointer off the stack tail at
	// `pointer` and returns the address just before it.
	FinalStack(segments *memory.SegmentManager, pointer memory.Relocatable) (memory.Relocatable, error)
	// GetUsedCellsAndAllocatedSizes returns (used, allocated) cells for
	// the builtin's segment, failing if used exceeds allocated.
	GetUsedCellsAndAllocatedSizes(segments *memory.SegmentManager, currentStep uint64) (uint64, uint64, error)
	// RunSecurityChecks performs any builtin-specific soundness sweep
	// (spec §4.11).
	RunSecurityChecks(segments *memory.SegmentManager) error
	// MemorySegmentAddress returns (name, base, stop pointer) for the
	// public-input builder.
	MemorySegmentAddress() (string, memory.Relocatable, *memory.Relocatable)
}

// readStopPointer reads the relocatable one cell below `pointer` and
// validates that it belongs to `base`'s segment; shared by every builtin's
// FinalStack implementation.
func readStopPointer(segments *memory.SegmentManager, name string, base, pointer memory.Relocatable) (memory.Relocatable, memory.Relocatable, error) {
	if pointer.Offset == 0 {
		return memory.Relocatable{}, memory.Relocatable{}, NewErrNoStopPointer(name)
	}
	stopPtrAddr, err := pointer.SubUint(1)
	if err != nil {
		return memory.Relocatable{}, memory.Relocatable{}, err
	}
	stopPointer, err := segments.Memory.GetRelocatable(stopPtrAddr)
	if err != nil {
		return memory.Relocatable{}, memory.Relocatable{}, err
	}
	if stopPointer.SegmentIndex != base.SegmentIndex {
		return memory.Relocatable{}, memory.Relocatable{}, NewErrInvalidStopPointerIndex(name, stopPointer, base)
	}
	return stopPtrAddr, stopPointer, nil
}

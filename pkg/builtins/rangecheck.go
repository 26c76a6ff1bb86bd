package builtins

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shardlabs/cairo-vm-go/pkg/vm/memory"
)

const RangeCheckName = "range_check"

// RangeCheckNParts is the number of 16-bit limbs a range-check cell is
// split into by the AIR, giving a bound of 2^(16*RangeCheckNParts) (spec
// §4.6 "range_check").
const RangeCheckNParts = 8

var ErrOutOfRange = errors.New("range_check: value outside the builtin's bound")

// RangeCheckBuiltinRunner never deduces a value: every cell must be
// written directly by the program, and a validation rule rejects anything
// outside [0, 2^128).
type RangeCheckBuiltinRunner struct {
	base
	bound *big.Int
}

func NewRangeCheckBuiltinRunner(ratio uint64) *RangeCheckBuiltinRunner {
	bound := new(big.Int).Lsh(big.NewInt(1), 16*RangeCheckNParts)
	return &RangeCheckBuiltinRunner{base: newBase(RangeCheckName, ratio, 1), bound: bound}
}

func (r *RangeCheckBuiltinRunner) DeduceMemoryCell(memory.Relocatable, *memory.Memory) (*memory.MaybeRelocatable, error) {
	return nil, nil
}

func (r *RangeCheckBuiltinRunner) AddValidationRule(mem *memory.Memory) {
	bound := r.bound
	mem.AddValidationRule(r.segmentBase.SegmentIndex, func(m *memory.Memory, addr memory.Relocatable) error {
		v, ok := m.Get(addr)
		if !ok {
			return nil
		}
		f, ok := v.GetFelt()
		if !ok {
			return fmt.Errorf("%w: %s holds a relocatable", ErrOutOfRange, addr)
		}
		if f.ToBigInt().Cmp(bound) >= 0 {
			return fmt.Errorf("%w: %s = %s", ErrOutOfRange, addr, f)
		}
		return nil
	})
}

// GetRangeCheckUsage returns the minimum and maximum 16-bit limb observed
// across every cell written to this builtin's segment (spec §4.11's
// rc_min/rc_max bound, folded together with the VM's instruction-offset
// rc_limits by the runner).
func (r *RangeCheckBuiltinRunner) GetRangeCheckUsage(segments *memory.SegmentManager) (uint16, uint16, bool) {
	size, err := segments.SegmentUsedSize(r.segmentBase.SegmentIndex)
	if err != nil || size == 0 {
		return 0, 0, false
	}
	var min, max uint16
	set := false
	limbMask := big.NewInt(0xFFFF)
	for offset := uint64(0); offset < size; offset++ {
		addr := memory.NewRelocatable(r.segmentBase.SegmentIndex, offset)
		v, ok := segments.Memory.Get(addr)
		if !ok {
			continue
		}
		f, ok := v.GetFelt()
		if !ok {
			continue
		}
		value := f.ToBigInt()
		limb := new(big.Int)
		for i := 0; i < RangeCheckNParts; i++ {
			limb.Rsh(value, uint(16*i))
			limb.And(limb, limbMask)
			part := uint16(limb.Uint64())
			if !set {
				min, max, set = part, part, true
				continue
			}
			if part < min {
				min = part
			}
			if part > max {
				max = part
			}
		}
	}
	return min, max, set
}

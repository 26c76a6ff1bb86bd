package vm

import (
	"fmt"

	"github.com/shardlabs/cairo-vm-go/pkg/vm/memory"
)

// RunContext holds the three register relocatables the VM steps over
// (spec §3 "Run Context").
type RunContext struct {
	Pc memory.Relocatable
	Ap memory.Relocatable
	Fp memory.Relocatable
}

func (ctx *RunContext) String() string {
	return fmt.Sprintf("RunContext{pc:%s ap:%s fp:%s}", ctx.Pc, ctx.Ap, ctx.Fp)
}

func baseFor(ctx *RunContext, reg Register) memory.Relocatable {
	if reg == FP {
		return ctx.Fp
	}
	return ctx.Ap
}

// addOffset applies a signed biased offset to a base relocatable, spec
// §4.3 "negative offsets subtract from the base".
func addOffset(base memory.Relocatable, offset int64) (memory.Relocatable, error) {
	if offset >= 0 {
		return base.AddUint(uint64(offset))
	}
	return base.SubUint(uint64(-offset))
}

// ComputeDstAddr computes dst_addr = base(dst_reg) + off_dst (spec §4.3).
func (ctx *RunContext) ComputeDstAddr(inst *Instruction) (memory.Relocatable, error) {
	addr, err := addOffset(baseFor(ctx, inst.DstRegister), inst.OffDst)
	if err != nil {
		return memory.Relocatable{}, fmt.Errorf("dst addr: %w", err)
	}
	return addr, nil
}

// ComputeOp0Addr computes op0_addr = base(op0_reg) + off_op0 (spec §4.3).
func (ctx *RunContext) ComputeOp0Addr(inst *Instruction) (memory.Relocatable, error) {
	addr, err := addOffset(baseFor(ctx, inst.Op0Register), inst.OffOp0)
	if err != nil {
		return memory.Relocatable{}, fmt.Errorf("op0 addr: %w", err)
	}
	return addr, nil
}

// ComputeOp1Addr computes op1_addr according to op1_src (spec §4.3).
// op0 is the already-resolved op0 value, required only when op1_src=Op0.
func (ctx *RunContext) ComputeOp1Addr(inst *Instruction, op0 *memory.MaybeRelocatable) (memory.Relocatable, error) {
	var base memory.Relocatable
	switch inst.Op1Src {
	case Op1SrcFP:
		base = ctx.Fp
	case Op1SrcAP:
		base = ctx.Ap
	case Op1SrcImm:
		if inst.OffOp1 != 1 {
			return memory.Relocatable{}, ErrImmShouldBe1
		}
		base = ctx.Pc
	case Op1SrcOp0:
		if op0 == nil {
			return memory.Relocatable{}, ErrUnknownOp0
		}
		r, ok := op0.GetRelocatable()
		if !ok {
			return memory.Relocatable{}, fmt.Errorf("op1 addr: %w", ErrUnknownOp0)
		}
		base = r
	}
	addr, err := addOffset(base, inst.OffOp1)
	if err != nil {
		return memory.Relocatable{}, fmt.Errorf("op1 addr: %w", err)
	}
	return addr, nil
}

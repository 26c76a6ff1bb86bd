// Package vm implements the fetch-decode-execute loop of spec §4: a single
// VirtualMachine steps a RunContext over a write-once Memory, deducing
// missing operands, checking opcode assertions, and updating registers in
// a fixed FP, AP, PC order.
package vm

import (
	"fmt"

	"github.com/shardlabs/cairo-vm-go/pkg/builtins"
	"github.com/shardlabs/cairo-vm-go/pkg/hintrunner"
	"github.com/shardlabs/cairo-vm-go/pkg/vm/memory"
)

// Operands is the fully resolved set of values and addresses a step
// touches (spec §4.3/§4.4).
type Operands struct {
	DstAddr memory.Relocatable
	Op0Addr memory.Relocatable
	Op1Addr memory.Relocatable

	Dst memory.MaybeRelocatable
	Op0 memory.MaybeRelocatable
	Op1 memory.MaybeRelocatable
	Res *memory.MaybeRelocatable // nil when res_logic = Unconstrained
}

// VirtualMachine is the step engine: one RunContext over one
// SegmentManager, with a fixed set of builtin runners consulted for
// operand deduction and a trace recorded as it runs.
type VirtualMachine struct {
	Context        *RunContext
	Segments       *memory.SegmentManager
	BuiltinRunners []builtins.BuiltinRunner

	Trace          []TraceEntry
	RelocatedTrace []RelocatedTraceEntry

	TraceEnabled bool
	CurrentStep  uint64

	HintProcessor hintrunner.HintProcessor
	Scopes        *hintrunner.ExecutionScopes

	rcLimitsSet bool
	RcMin       int64
	RcMax       int64
}

func NewVirtualMachine(ctx RunContext, segments *memory.SegmentManager, runners []builtins.BuiltinRunner, traceEnabled bool) *VirtualMachine {
	return &VirtualMachine{
		Context:        &ctx,
		Segments:       segments,
		BuiltinRunners: runners,
		TraceEnabled:   traceEnabled,
		HintProcessor:  hintrunner.NoOpProcessor{},
		Scopes:         hintrunner.NewExecutionScopes(),
	}
}

func (vm *VirtualMachine) builtinFor(segmentIndex int) builtins.BuiltinRunner {
	for _, b := range vm.BuiltinRunners {
		if b.Base().SegmentIndex == segmentIndex {
			return b
		}
	}
	return nil
}

// getOrDeduce reads addr directly, falling back to the owning builtin's
// DeduceMemoryCell when the cell has not been written yet (spec §4.6). A
// successful deduction is written back into memory, matching the
// reference behavior of caching deduced builtin cells.
func (vm *VirtualMachine) getOrDeduce(addr memory.Relocatable) (memory.MaybeRelocatable, bool, error) {
	if v, ok := vm.Segments.Memory.Get(addr); ok {
		return v, true, nil
	}
	b := vm.builtinFor(addr.SegmentIndex)
	if b == nil {
		return memory.MaybeRelocatable{}, false, nil
	}
	deduced, err := b.DeduceMemoryCell(addr, vm.Segments.Memory)
	if err != nil {
		return memory.MaybeRelocatable{}, false, err
	}
	if deduced == nil {
		return memory.MaybeRelocatable{}, false, nil
	}
	if err := vm.Segments.Memory.Insert(addr, *deduced); err != nil {
		return memory.MaybeRelocatable{}, false, err
	}
	return *deduced, true, nil
}

// deduceOp0 implements spec §4.4's opcode-level op0 deduction, used only
// when op0's address held nothing and no builtin claimed it.
func deduceOp0(inst *Instruction, pc memory.Relocatable, dst, op1 *memory.MaybeRelocatable) (*memory.MaybeRelocatable, *memory.MaybeRelocatable, error) {
	switch inst.Opcode {
	case OpcodeCall:
		returnPc, err := pc.AddUint(inst.Size())
		if err != nil {
			return nil, nil, err
		}
		v := memory.NewMaybeRelocatableRelocatable(returnPc)
		return &v, nil, nil
	case OpcodeAssertEq:
		if dst == nil {
			return nil, nil, nil
		}
		switch inst.Res {
		case ResAdd:
			if op1 == nil {
				return nil, nil, nil
			}
			v, err := dst.Sub(*op1)
			if err != nil {
				return nil, nil, nil
			}
			return &v, dst, nil
		case ResMul:
			if op1 == nil || op1.IsZero() {
				return nil, nil, nil
			}
			v, err := dst.Div(*op1)
			if err != nil {
				return nil, nil, nil
			}
			return &v, dst, nil
		}
	}
	return nil, nil, nil
}

// deduceOp1 mirrors deduceOp0 for op1 (spec §4.4).
func deduceOp1(inst *Instruction, dst, op0 *memory.MaybeRelocatable) (*memory.MaybeRelocatable, *memory.MaybeRelocatable, error) {
	if inst.Opcode != OpcodeAssertEq {
		return nil, nil, nil
	}
	switch inst.Res {
	case ResOp1:
		if dst == nil {
			return nil, nil, nil
		}
		return dst, dst, nil
	case ResAdd:
		if dst == nil || op0 == nil {
			return nil, nil, nil
		}
		v, err := dst.Sub(*op0)
		if err != nil {
			return nil, nil, nil
		}
		return &v, dst, nil
	case ResMul:
		if dst == nil || op0 == nil || op0.IsZero() {
			return nil, nil, nil
		}
		v, err := dst.Div(*op0)
		if err != nil {
			return nil, nil, nil
		}
		return &v, dst, nil
	}
	return nil, nil, nil
}

// computeRes applies res_logic to known op0/op1 (spec §4.4 step 4).
func computeRes(inst *Instruction, op0, op1 memory.MaybeRelocatable) (*memory.MaybeRelocatable, error) {
	switch inst.Res {
	case ResOp1:
		return &op1, nil
	case ResAdd:
		v, err := op0.Add(op1)
		if err != nil {
			return nil, err
		}
		return &v, nil
	case ResMul:
		if !op0.IsFelt() || !op1.IsFelt() {
			return nil, ErrInvalidResLogicMul
		}
		v, err := op0.Mul(op1)
		if err != nil {
			return nil, err
		}
		return &v, nil
	case ResUnconstrained:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: unknown res logic", ErrInvalidFlagField)
}

// deduceDst deduces dst from the opcode when its cell was empty (spec
// §4.4 step 5).
func (vm *VirtualMachine) deduceDst(inst *Instruction, res *memory.MaybeRelocatable) (memory.MaybeRelocatable, bool) {
	switch inst.Opcode {
	case OpcodeAssertEq:
		if res == nil {
			return memory.MaybeRelocatable{}, false
		}
		return *res, true
	case OpcodeCall:
		return memory.NewMaybeRelocatableRelocatable(vm.Context.Fp), true
	}
	return memory.MaybeRelocatable{}, false
}

// ComputeOperands resolves dst/op0/op1/res for inst, deducing and writing
// back whatever the running program left implicit (spec §4.3/§4.4).
func (vm *VirtualMachine) ComputeOperands(inst *Instruction) (*Operands, error) {
	mem := vm.Segments.Memory

	dstAddr, err := vm.Context.ComputeDstAddr(inst)
	if err != nil {
		return nil, err
	}
	op0Addr, err := vm.Context.ComputeOp0Addr(inst)
	if err != nil {
		return nil, err
	}

	op0, op0Known, err := vm.getOrDeduce(op0Addr)
	if err != nil {
		return nil, err
	}

	var op0Ptr *memory.MaybeRelocatable
	if op0Known {
		op0Ptr = &op0
	}
	op1Addr, err := vm.Context.ComputeOp1Addr(inst, op0Ptr)
	if err != nil {
		return nil, err
	}
	op1, op1Known, err := vm.getOrDeduce(op1Addr)
	if err != nil {
		return nil, err
	}

	var dst memory.MaybeRelocatable
	dstKnown := false
	if v, ok := mem.Get(dstAddr); ok {
		dst, dstKnown = v, true
	}

	var dstPtr, op1PtrForOp0 *memory.MaybeRelocatable
	if dstKnown {
		dstPtr = &dst
	}
	if op1Known {
		op1PtrForOp0 = &op1
	}

	var res *memory.MaybeRelocatable

	if !op0Known {
		deduced, deducedRes, err := deduceOp0(inst, vm.Context.Pc, dstPtr, op1PtrForOp0)
		if err != nil {
			return nil, err
		}
		if deduced != nil {
			if err := mem.Insert(op0Addr, *deduced); err != nil {
				return nil, err
			}
			op0, op0Known = *deduced, true
			op0Ptr = &op0
		}
		if deducedRes != nil {
			res = deducedRes
		}
	}
	if !op0Known {
		return nil, ErrFailedToComputeOp0
	}

	if inst.Op1Src == Op1SrcOp0 {
		recomputed, err := vm.Context.ComputeOp1Addr(inst, op0Ptr)
		if err != nil {
			return nil, err
		}
		if !recomputed.Equal(op1Addr) {
			op1Addr = recomputed
			op1, op1Known, err = vm.getOrDeduce(op1Addr)
			if err != nil {
				return nil, err
			}
		}
	}

	if !op1Known {
		deduced, deducedRes, err := deduceOp1(inst, dstPtr, op0Ptr)
		if err != nil {
			return nil, err
		}
		if deduced != nil {
			if err := mem.Insert(op1Addr, *deduced); err != nil {
				return nil, err
			}
			op1, op1Known = *deduced, true
		}
		if deducedRes != nil && res == nil {
			res = deducedRes
		}
	}
	if !op1Known {
		return nil, ErrFailedToComputeOp1
	}

	if res == nil {
		computed, err := computeRes(inst, op0, op1)
		if err != nil {
			return nil, err
		}
		res = computed
	}

	if !dstKnown {
		deduced, ok := vm.deduceDst(inst, res)
		if !ok {
			return nil, ErrNoDst
		}
		if err := mem.Insert(dstAddr, deduced); err != nil {
			return nil, err
		}
		dst = deduced
	}

	return &Operands{
		DstAddr: dstAddr,
		Op0Addr: op0Addr,
		Op1Addr: op1Addr,
		Dst:     dst,
		Op0:     op0,
		Op1:     op1,
		Res:     res,
	}, nil
}

// opcodeAssertions checks the invariants an AssertEq/Call instruction must
// satisfy once its operands are resolved (spec §4.5).
func (vm *VirtualMachine) opcodeAssertions(inst *Instruction, ops *Operands) error {
	switch inst.Opcode {
	case OpcodeAssertEq:
		if ops.Res == nil {
			return ErrUnconstrainedResAssertEq
		}
		if !ops.Dst.Equal(*ops.Res) {
			return fmt.Errorf("%w: dst=%s res=%s", ErrDiffAssertValues, ops.Dst, ops.Res)
		}
	case OpcodeCall:
		expectedFp := memory.NewMaybeRelocatableRelocatable(vm.Context.Fp)
		if !ops.Dst.Equal(expectedFp) {
			return ErrCantWriteReturnFp
		}
		returnPc, err := vm.Context.Pc.AddUint(inst.Size())
		if err != nil {
			return err
		}
		if !ops.Op0.Equal(memory.NewMaybeRelocatableRelocatable(returnPc)) {
			return ErrCantWriteReturnPc
		}
	}
	return nil
}

// updateFp, updateAp, updatePc implement spec §4.7's register transition
// rules. They must run in FP, AP, PC order: a Call instruction's
// FpUpdateAPPlus2 must read ap before updateAp's Add2 bump moves it, and
// both must land before pc advances past the call site.
func (vm *VirtualMachine) updateFp(inst *Instruction, ops *Operands) error {
	switch inst.FpUpdate {
	case FpUpdateAPPlus2:
		fp, err := vm.Context.Ap.AddUint(2)
		if err != nil {
			return err
		}
		vm.Context.Fp = fp
	case FpUpdateDst:
		r, ok := ops.Dst.GetRelocatable()
		if !ok {
			return fmt.Errorf("%w: dst is not a relocatable", ErrInvalidFlagField)
		}
		vm.Context.Fp = r
	}
	return nil
}

func (vm *VirtualMachine) updateAp(inst *Instruction, ops *Operands) error {
	switch inst.ApUpdate {
	case ApUpdateAdd:
		if ops.Res == nil {
			return ErrApUpdateAddResUnconstrained
		}
		v, err := memory.NewMaybeRelocatableRelocatable(vm.Context.Ap).Add(*ops.Res)
		if err != nil {
			return err
		}
		r, ok := v.GetRelocatable()
		if !ok {
			return ErrInvalidApUpdate
		}
		vm.Context.Ap = r
	case ApUpdateAdd1:
		ap, err := vm.Context.Ap.AddUint(1)
		if err != nil {
			return err
		}
		vm.Context.Ap = ap
	case ApUpdateAdd2:
		ap, err := vm.Context.Ap.AddUint(2)
		if err != nil {
			return err
		}
		vm.Context.Ap = ap
	}
	return nil
}

func (vm *VirtualMachine) updatePc(inst *Instruction, ops *Operands) error {
	switch inst.PcUpdate {
	case PcUpdateRegular:
		pc, err := vm.Context.Pc.AddUint(inst.Size())
		if err != nil {
			return err
		}
		vm.Context.Pc = pc
	case PcUpdateJump:
		if ops.Res == nil {
			return ErrInvalidPcUpdate
		}
		r, ok := ops.Res.GetRelocatable()
		if !ok {
			return ErrInvalidPcUpdate
		}
		vm.Context.Pc = r
	case PcUpdateJumpRel:
		if ops.Res == nil || !ops.Res.IsFelt() {
			return ErrInvalidPcUpdate
		}
		f, _ := ops.Res.GetFelt()
		pc, err := vm.Context.Pc.AddFelt(f)
		if err != nil {
			return err
		}
		vm.Context.Pc = pc
	case PcUpdateJnz:
		if ops.Dst.IsZero() {
			pc, err := vm.Context.Pc.AddUint(inst.Size())
			if err != nil {
				return err
			}
			vm.Context.Pc = pc
		} else {
			v, err := memory.NewMaybeRelocatableRelocatable(vm.Context.Pc).Add(ops.Op1)
			if err != nil {
				return err
			}
			r, ok := v.GetRelocatable()
			if !ok {
				return ErrInvalidPcUpdate
			}
			vm.Context.Pc = r
		}
	}
	return nil
}

func (vm *VirtualMachine) updateRegisters(inst *Instruction, ops *Operands) error {
	if err := vm.updateFp(inst, ops); err != nil {
		return err
	}
	if err := vm.updateAp(inst, ops); err != nil {
		return err
	}
	return vm.updatePc(inst, ops)
}

// updateRcLimits folds the instruction's three signed offsets into RcMin/RcMax
// after re-centering them into [0, 2^16), the same frame the range-check
// builtin's limbs live in (spec §3, §4.7), so CheckRangeCheckUsage compares
// like with like.
func (vm *VirtualMachine) updateRcLimits(inst *Instruction) {
	for _, off := range [3]int64{inst.OffDst, inst.OffOp0, inst.OffOp1} {
		biased := off + biasOffset
		if !vm.rcLimitsSet {
			vm.RcMin, vm.RcMax = biased, biased
			vm.rcLimitsSet = true
			continue
		}
		if biased < vm.RcMin {
			vm.RcMin = biased
		}
		if biased > vm.RcMax {
			vm.RcMax = biased
		}
	}
}

// DecodeCurrentInstruction reads and decodes the instruction at pc.
func (vm *VirtualMachine) DecodeCurrentInstruction() (*Instruction, error) {
	f, err := vm.Segments.Memory.GetFelt(vm.Context.Pc)
	if err != nil {
		return nil, err
	}
	word, err := f.ToUint64()
	if err != nil {
		return nil, fmt.Errorf("decode instruction: %w", err)
	}
	return DecodeInstruction(word)
}

// Step fetches, decodes, and executes a single instruction, recording a
// trace entry (holding the pre-step register values) before the registers
// move (spec §4 fetch-decode-execute loop).
func (vm *VirtualMachine) Step() error {
	if vm.HintProcessor != nil {
		if err := vm.HintProcessor.ExecuteHints(vm.Context.Pc, vm.Scopes); err != nil {
			return err
		}
	}

	inst, err := vm.DecodeCurrentInstruction()
	if err != nil {
		return err
	}

	ops, err := vm.ComputeOperands(inst)
	if err != nil {
		return err
	}

	if err := vm.opcodeAssertions(inst, ops); err != nil {
		return err
	}

	vm.Segments.Memory.MarkAccessed(ops.DstAddr)
	vm.Segments.Memory.MarkAccessed(ops.Op0Addr)
	vm.Segments.Memory.MarkAccessed(ops.Op1Addr)
	vm.updateRcLimits(inst)

	if vm.TraceEnabled {
		vm.Trace = append(vm.Trace, TraceEntry{Pc: vm.Context.Pc, Ap: vm.Context.Ap, Fp: vm.Context.Fp})
	}

	if err := vm.updateRegisters(inst, ops); err != nil {
		return err
	}

	vm.CurrentStep++
	return nil
}

// RunUntilPC steps the machine until pc reaches target (spec §4.10
// "run until pc").
func (vm *VirtualMachine) RunUntilPC(target memory.Relocatable, maxSteps uint64) error {
	for !vm.Context.Pc.Equal(target) {
		if maxSteps > 0 && vm.CurrentStep >= maxSteps {
			return ErrStepLimitExceeded
		}
		if err := vm.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Relocate computes segment bases, relocates memory and (if enabled)
// the trace, populating RelocatedTrace (spec §4.8/§4.9).
func (vm *VirtualMachine) Relocate() ([]*memory.Felt, error) {
	vm.Segments.ComputeEffectiveSizes()
	bases, err := vm.Segments.RelocateSegments()
	if err != nil {
		return nil, err
	}
	flat, err := vm.Segments.RelocateMemory(bases)
	if err != nil {
		return nil, err
	}
	if vm.TraceEnabled {
		relocated, err := RelocateTrace(vm.Trace, bases)
		if err != nil {
			return nil, err
		}
		vm.RelocatedTrace = relocated
	}
	return flat, nil
}

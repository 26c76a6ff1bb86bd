package zero

import (
	"errors"
	"fmt"

	"github.com/shardlabs/cairo-vm-go/pkg/builtins"
	"github.com/shardlabs/cairo-vm-go/pkg/hintrunner"
	"github.com/shardlabs/cairo-vm-go/pkg/layouts"
	"github.com/shardlabs/cairo-vm-go/pkg/safemath"
	"github.com/shardlabs/cairo-vm-go/pkg/vm"
	"github.com/shardlabs/cairo-vm-go/pkg/vm/memory"
)

var (
	ErrNoMainIdentifier    = errors.New("zero: program has no __main__.main identifier")
	ErrBuiltinNotInLayout  = errors.New("zero: program requires a builtin the chosen layout does not provide")
	ErrRunTwice            = errors.New("zero: runner already ran once")
	ErrRunNotFinished      = errors.New("zero: run has not finished yet")
	ErrSegmentsNotFinal    = errors.New("zero: segments have not been finalized")
	ErrMissingPublicMemory = errors.New("zero: execution public memory was never recorded")
)

// ZeroRunner drives a compiled Cairo Zero program through the VM's
// fetch-decode-execute loop, following the init / run / end-run /
// finalize-segments lifecycle of spec §4.10.
type ZeroRunner struct {
	Program *Program
	Layout  layouts.Layout
	Vm      *vm.VirtualMachine

	proofMode            bool
	maxSteps             uint64
	allowMissingBuiltins bool
	programSegmentSize   uint64

	programBase   memory.Relocatable
	executionBase memory.Relocatable

	executionPublicMemory []uint64
	runEnded              bool
	segmentsFinalized     bool
	returnValuesRead      bool
}

type RunnerOptions struct {
	Layout               string
	ProofMode            bool
	MaxSteps             uint64
	AllowMissingBuiltins bool
	HintProcessor        hintrunner.HintProcessor
	// ProgramSegmentSize overrides the program segment's declared size used
	// by FinalizeSegments and VerifySecureRunner. Zero means "use the
	// program's data length" (spec §4.11).
	ProgramSegmentSize uint64
}

func NewRunner(program *Program, opts RunnerOptions) (*ZeroRunner, error) {
	layoutName := opts.Layout
	if layoutName == "" {
		layoutName = layouts.Plain
	}
	layout, err := layouts.Get(layoutName)
	if err != nil {
		return nil, err
	}

	segments := memory.NewSegmentManager()
	vmInstance := vm.NewVirtualMachine(vm.RunContext{}, segments, nil, true)
	if opts.HintProcessor != nil {
		vmInstance.HintProcessor = opts.HintProcessor
	}

	runner := &ZeroRunner{
		Program:              program,
		Layout:               layout,
		Vm:                   vmInstance,
		proofMode:            opts.ProofMode,
		maxSteps:             opts.MaxSteps,
		allowMissingBuiltins: opts.AllowMissingBuiltins,
		programSegmentSize:   opts.ProgramSegmentSize,
	}
	return runner, nil
}

// Initialize runs the full init sequence and returns the pc execution
// should stop at.
func (r *ZeroRunner) Initialize() (memory.Relocatable, error) {
	if err := r.initializeBuiltins(); err != nil {
		return memory.Relocatable{}, err
	}
	r.initializeSegments()
	end, err := r.initializeMainEntrypoint()
	if err != nil {
		return memory.Relocatable{}, err
	}
	if err := r.initializeVM(); err != nil {
		return memory.Relocatable{}, err
	}
	return end, nil
}

func (r *ZeroRunner) initializeBuiltins() error {
	requested := make(map[string]bool, len(r.Program.Builtins))
	for _, name := range r.Program.Builtins {
		requested[name] = true
	}

	all, err := layouts.NewBuiltinRunners(r.Layout)
	if err != nil {
		return err
	}

	var runners []builtins.BuiltinRunner
	for i, spec := range r.Layout.Builtins {
		included := requested[spec.Name]
		if included {
			delete(requested, spec.Name)
		} else if !r.proofMode {
			continue
		}
		all[i].SetIncluded(included)
		runners = append(runners, all[i])
	}

	if len(requested) != 0 && !r.allowMissingBuiltins {
		return fmt.Errorf("%w: %v", ErrBuiltinNotInLayout, requested)
	}

	r.Vm.BuiltinRunners = runners
	return nil
}

func (r *ZeroRunner) initializeSegments() {
	r.programBase = r.Vm.Segments.AddSegment()
	r.executionBase = r.Vm.Segments.AddSegment()
	for _, b := range r.Vm.BuiltinRunners {
		b.InitializeSegments(r.Vm.Segments)
	}
}

func (r *ZeroRunner) initializeState(entrypoint uint64, stack []memory.MaybeRelocatable) error {
	initialPc, err := r.programBase.AddUint(entrypoint)
	if err != nil {
		return err
	}
	r.Vm.Context.Pc = initialPc

	if _, err := r.Vm.Segments.LoadData(r.programBase, r.Program.Data); err != nil {
		return err
	}
	if _, err := r.Vm.Segments.LoadData(r.executionBase, stack); err != nil {
		return err
	}
	r.Vm.Segments.Memory.MarkAddressRangeAsAccessed(r.programBase, uint64(len(r.Program.Data)))
	return nil
}

func (r *ZeroRunner) initializeMainEntrypoint() (memory.Relocatable, error) {
	stack := make([]memory.MaybeRelocatable, 0, 16)
	for _, b := range r.Vm.BuiltinRunners {
		stack = append(stack, b.InitialStack()...)
	}

	if r.proofMode {
		startPc, ok := r.Program.Labels["__start__"]
		if !ok {
			return memory.Relocatable{}, errors.New("zero: proof mode requires a program compiled with __start__/__end__ labels")
		}
		endPc, ok := r.Program.Labels["__end__"]
		if !ok {
			return memory.Relocatable{}, errors.New("zero: proof mode requires a program compiled with __start__/__end__ labels")
		}

		basePlusTwo, err := r.executionBase.AddUint(2)
		if err != nil {
			return memory.Relocatable{}, err
		}
		stackPrefix := []memory.MaybeRelocatable{
			memory.NewMaybeRelocatableRelocatable(basePlusTwo),
			memory.NewMaybeRelocatableFelt(memory.FeltZero()),
		}
		stackPrefix = append(stackPrefix, stack...)

		publicMemory := make([]uint64, len(stackPrefix))
		for i := range stackPrefix {
			publicMemory[i] = uint64(i)
		}
		r.executionPublicMemory = publicMemory

		if err := r.initializeState(startPc, stackPrefix); err != nil {
			return memory.Relocatable{}, err
		}
		r.Vm.Context.Ap = basePlusTwo
		r.Vm.Context.Fp = basePlusTwo

		return r.programBase.AddUint(endPc)
	}

	returnFpBase := r.Vm.Segments.AddSegment()
	return r.initializeFunctionEntrypoint(r.Program.MainOffset, stack, returnFpBase)
}

func (r *ZeroRunner) initializeFunctionEntrypoint(entrypoint uint64, stack []memory.MaybeRelocatable, returnFp memory.Relocatable) (memory.Relocatable, error) {
	end := r.Vm.Segments.AddSegment()
	stack = append(stack, memory.NewMaybeRelocatableRelocatable(returnFp), memory.NewMaybeRelocatableRelocatable(end))

	initialFp, err := r.executionBase.AddUint(uint64(len(stack)))
	if err != nil {
		return memory.Relocatable{}, err
	}
	r.Vm.Context.Fp = initialFp
	r.Vm.Context.Ap = initialFp

	if err := r.initializeState(entrypoint, stack); err != nil {
		return memory.Relocatable{}, err
	}
	return end, nil
}

func (r *ZeroRunner) initializeVM() error {
	for _, b := range r.Vm.BuiltinRunners {
		b.AddValidationRule(r.Vm.Segments.Memory)
	}
	return r.Vm.Segments.Memory.ValidateExistingMemory()
}

// Run executes from main up to the computed end pc. Call EndRun afterward
// to pad the trace (proof mode) and finalize segment sizes.
func (r *ZeroRunner) Run() error {
	if r.runEnded {
		return ErrRunTwice
	}
	end, err := r.Initialize()
	if err != nil {
		return fmt.Errorf("zero: initialize: %w", err)
	}
	if err := r.Vm.RunUntilPC(end, r.maxSteps); err != nil {
		return fmt.Errorf("pc %s step %d: %w", r.Vm.Context.Pc, r.Vm.CurrentStep, err)
	}
	if r.proofMode {
		if err := r.runFor(1); err != nil {
			return err
		}
	}
	return nil
}

func (r *ZeroRunner) runFor(steps uint64) error {
	target := r.Vm.CurrentStep + steps
	return r.runUntilStep(target)
}

func (r *ZeroRunner) runUntilStep(target uint64) error {
	for r.Vm.CurrentStep < target {
		if r.maxSteps > 0 && r.Vm.CurrentStep >= r.maxSteps {
			return vm.ErrStepLimitExceeded
		}
		if err := r.Vm.Step(); err != nil {
			return fmt.Errorf("pc %s step %d: %w", r.Vm.Context.Pc, r.Vm.CurrentStep, err)
		}
	}
	return nil
}

// CheckUsedCells verifies every builtin's cell budget: its used cells must
// fit in its allocated size (spec §4.11). The range-check, memory, and
// diluted-pool usage checks are run by RunSecurityChecks.
func (r *ZeroRunner) CheckUsedCells() error {
	for _, b := range r.Vm.BuiltinRunners {
		if _, _, err := b.GetUsedCellsAndAllocatedSizes(r.Vm.Segments, r.Vm.CurrentStep); err != nil {
			return err
		}
	}
	return nil
}

// EndRun finalizes the trace: computes effective segment sizes and, in
// proof mode, keeps stepping one instruction at a time until the trace
// length is a power of two and every builtin's cell budget is satisfied
// (spec §4.10 "end_run").
func (r *ZeroRunner) EndRun() error {
	if r.runEnded {
		return ErrRunTwice
	}
	r.Vm.Segments.ComputeEffectiveSizes()

	if r.proofMode {
		for {
			target := safemath.NextPowerOfTwo(r.Vm.CurrentStep)
			if err := r.runUntilStep(target); err != nil {
				return err
			}
			if err := r.CheckUsedCells(); err != nil {
				if errors.Is(err, builtins.ErrInsufficientAllocated) {
					if err := r.runFor(1); err != nil {
						return err
					}
					continue
				}
				return err
			}
			break
		}
	}

	r.runEnded = true
	return nil
}

// FinalizeSegments records the public-memory pages for the program,
// execution, and output-builtin segments (spec §4.10 "finalize_segments").
func (r *ZeroRunner) FinalizeSegments() error {
	if r.segmentsFinalized {
		return nil
	}
	if !r.runEnded {
		return ErrRunNotFinished
	}

	programSize := r.declaredProgramSegmentSize()
	r.Vm.Segments.SetSegmentSize(r.programBase.SegmentIndex, programSize)
	programPages := make([]memory.PublicMemoryPage, programSize)
	for i := range programPages {
		programPages[i] = memory.PublicMemoryPage{Offset: uint64(i), Page: 0}
	}
	r.Vm.Segments.SetPublicMemoryOffsets(r.programBase.SegmentIndex, programPages)

	if r.proofMode {
		if r.executionPublicMemory == nil {
			return ErrMissingPublicMemory
		}
		execPages := make([]memory.PublicMemoryPage, len(r.executionPublicMemory))
		for i, off := range r.executionPublicMemory {
			execPages[i] = memory.PublicMemoryPage{Offset: off, Page: 0}
		}
		r.Vm.Segments.SetPublicMemoryOffsets(r.executionBase.SegmentIndex, execPages)
	}

	for _, b := range r.Vm.BuiltinRunners {
		used, size, err := b.GetUsedCellsAndAllocatedSizes(r.Vm.Segments, r.Vm.CurrentStep)
		if err != nil {
			return err
		}
		r.Vm.Segments.SetSegmentSize(b.Base().SegmentIndex, size)
		if b.Name() == builtins.OutputName {
			pages := make([]memory.PublicMemoryPage, used)
			for i := range pages {
				pages[i] = memory.PublicMemoryPage{Offset: uint64(i), Page: 0}
			}
			r.Vm.Segments.SetPublicMemoryOffsets(b.Base().SegmentIndex, pages)
		}
	}

	r.segmentsFinalized = true
	return nil
}

// ReadReturnValues pops every included builtin's stop pointer off the
// stack, in reverse initialization order, and (in proof mode) extends the
// execution public memory to cover the return values (spec §4.10
// "read_return_values").
func (r *ZeroRunner) ReadReturnValues() error {
	if !r.runEnded {
		return ErrRunNotFinished
	}

	pointer := r.Vm.Context.Ap
	for i := len(r.Vm.BuiltinRunners) - 1; i >= 0; i-- {
		newPointer, err := r.Vm.BuiltinRunners[i].FinalStack(r.Vm.Segments, pointer)
		if err != nil {
			return err
		}
		pointer = newPointer
	}

	if r.proofMode {
		begin := pointer.Offset - r.executionBase.Offset
		end := r.Vm.Context.Ap.Offset - r.executionBase.Offset
		for i := begin; i < end; i++ {
			r.executionPublicMemory = append(r.executionPublicMemory, i)
		}
	}
	r.returnValuesRead = true
	return nil
}

// declaredProgramSegmentSize returns the program-segment size FinalizeSegments
// and VerifySecureRunner bound the segment's used cells against: the
// explicit ProgramSegmentSize override, or the program's data length (spec
// §4.11).
func (r *ZeroRunner) declaredProgramSegmentSize() uint64 {
	if r.programSegmentSize != 0 {
		return r.programSegmentSize
	}
	return uint64(len(r.Program.Data))
}

// BuildProof relocates memory and trace and encodes both in the binary
// formats a STARK prover expects (spec §6).
func (r *ZeroRunner) BuildProof() ([]byte, []byte, error) {
	flat, err := r.Vm.Relocate()
	if err != nil {
		return nil, nil, err
	}
	return EncodeTrace(r.Vm.RelocatedTrace), EncodeMemory(flat), nil
}

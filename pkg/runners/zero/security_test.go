package zero

import (
	"testing"

	"github.com/shardlabs/cairo-vm-go/pkg/builtins"
	"github.com/shardlabs/cairo-vm-go/pkg/layouts"
	"github.com/shardlabs/cairo-vm-go/pkg/vm/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunner(t *testing.T, layoutName string) *ZeroRunner {
	t.Helper()
	r, err := NewRunner(&Program{}, RunnerOptions{Layout: layoutName})
	require.NoError(t, err)
	return r
}

func TestCheckMemoryUsagePassesWithNoSteps(t *testing.T) {
	r := newTestRunner(t, layouts.Plain)
	r.Vm.Segments.ComputeEffectiveSizes()
	assert.NoError(t, r.CheckMemoryUsage())
}

func TestCheckMemoryUsageRejectsExceededBudget(t *testing.T) {
	r := newTestRunner(t, layouts.Plain)
	r.Vm.CurrentStep = 1
	// total = memoryUnitsPerStep*1 = 8 units; public=2, instructions=4, so
	// 6 of 8 are accounted for, leaving only 2 unused units to cover holes.
	// Write a sparse segment (holes at offsets 0-2, value at offset 3) so
	// its 3 holes exceed that budget.
	base := r.Vm.Segments.AddSegment()
	addr, err := base.AddUint(3)
	require.NoError(t, err)
	require.NoError(t, r.Vm.Segments.Memory.Insert(addr, memory.NewMaybeRelocatableFelt(memory.FeltFromUint64(1))))
	r.Vm.Segments.ComputeEffectiveSizes()

	err = r.CheckMemoryUsage()
	assert.ErrorIs(t, err, ErrMemoryUsageExceeded)
}

func TestCheckDilutedCheckUsageSkipsZeroRcUnitsPerStep(t *testing.T) {
	r := newTestRunner(t, layouts.Plain)
	r.Layout.RcUnitsPerStep = 0
	assert.NoError(t, r.CheckDilutedCheckUsage())
}

func TestCheckDilutedCheckUsagePassesWithNoBuiltins(t *testing.T) {
	r := newTestRunner(t, layouts.Plain)
	r.Vm.CurrentStep = 10
	assert.NoError(t, r.CheckDilutedCheckUsage())
}

func TestCheckRangeCheckUsagePassesWithNoRangeCheckBuiltin(t *testing.T) {
	r := newTestRunner(t, layouts.Plain)
	r.Vm.CurrentStep = 10
	assert.NoError(t, r.CheckRangeCheckUsage())
}

func TestRunSecurityChecksRequiresRunEnded(t *testing.T) {
	r := newTestRunner(t, layouts.Plain)
	assert.ErrorIs(t, r.RunSecurityChecks(), ErrRunNotFinished)
}

func TestVerifySecureRunnerRequiresReturnValuesRead(t *testing.T) {
	r := newTestRunner(t, layouts.Plain)
	r.runEnded = true
	assert.ErrorIs(t, r.VerifySecureRunner(), ErrReturnValuesNotRead)
}

func TestVerifySecureRunnerPassesForValidRun(t *testing.T) {
	p := retOnlyProgram()
	r, err := NewRunner(p, RunnerOptions{Layout: layouts.Plain})
	require.NoError(t, err)
	require.NoError(t, r.Run())
	require.NoError(t, r.EndRun())
	require.NoError(t, r.ReadReturnValues())

	assert.NoError(t, r.VerifySecureRunner())
}

func TestVerifySecureRunnerDetectsOutOfBoundsProgramSegment(t *testing.T) {
	p := programWithData(2)
	r, err := NewRunner(p, RunnerOptions{Layout: layouts.Plain})
	require.NoError(t, err)
	require.NoError(t, r.initializeBuiltins())
	r.initializeSegments()

	for i := uint64(0); i < 3; i++ {
		addr, err := r.programBase.AddUint(i)
		require.NoError(t, err)
		require.NoError(t, r.Vm.Segments.Memory.Insert(addr, memory.NewMaybeRelocatableFelt(memory.FeltFromUint64(i))))
	}
	r.Vm.Segments.ComputeEffectiveSizes()

	r.Vm.CurrentStep = 1000
	r.runEnded = true
	r.returnValuesRead = true

	err = r.VerifySecureRunner()
	assert.ErrorIs(t, err, ErrOutOfBoundsProgramSegment)
}

func TestVerifySecureRunnerDetectsOutOfBoundsBuiltinSegment(t *testing.T) {
	p := &Program{Builtins: []string{builtins.OutputName}, Labels: map[string]uint64{}}
	r, err := NewRunner(p, RunnerOptions{Layout: layouts.Small})
	require.NoError(t, err)
	require.NoError(t, r.initializeBuiltins())
	r.initializeSegments()

	var output builtins.BuiltinRunner
	for _, b := range r.Vm.BuiltinRunners {
		if b.Name() == builtins.OutputName {
			output = b
		}
	}
	require.NotNil(t, output)
	outBase := output.Base()

	for i := uint64(0); i < 3; i++ {
		addr, err := outBase.AddUint(i)
		require.NoError(t, err)
		require.NoError(t, r.Vm.Segments.Memory.Insert(addr, memory.NewMaybeRelocatableFelt(memory.FeltFromUint64(i))))
	}
	r.Vm.Segments.ComputeEffectiveSizes()

	stopAddr, err := r.executionBase.AddUint(0)
	require.NoError(t, err)
	stopValue, err := outBase.AddUint(3)
	require.NoError(t, err)
	require.NoError(t, r.Vm.Segments.Memory.Insert(stopAddr, memory.NewMaybeRelocatableRelocatable(stopValue)))

	pointer, err := stopAddr.AddUint(1)
	require.NoError(t, err)
	_, err = output.FinalStack(r.Vm.Segments, pointer)
	require.NoError(t, err)

	// Grow the builtin's segment past its already-declared stop pointer.
	extraAddr, err := outBase.AddUint(5)
	require.NoError(t, err)
	require.NoError(t, r.Vm.Segments.Memory.Insert(extraAddr, memory.NewMaybeRelocatableFelt(memory.FeltFromUint64(9))))
	r.Vm.Segments.ComputeEffectiveSizes()

	r.Vm.CurrentStep = 1000
	r.runEnded = true
	r.returnValuesRead = true

	err = r.VerifySecureRunner()
	assert.ErrorIs(t, err, builtins.ErrOutOfBoundsSegment)
}

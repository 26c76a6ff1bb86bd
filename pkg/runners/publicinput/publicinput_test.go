package publicinput

import (
	"testing"

	"github.com/shardlabs/cairo-vm-go/pkg/vm"
	"github.com/shardlabs/cairo-vm-go/pkg/vm/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() []vm.RelocatedTraceEntry {
	return []vm.RelocatedTraceEntry{
		{Pc: 1, Ap: 10, Fp: 10},
		{Pc: 2, Ap: 11, Fp: 10},
		{Pc: 3, Ap: 12, Fp: 10},
	}
}

func TestBuildRejectsShortTrace(t *testing.T) {
	_, err := Build(layoutName, 0, 10, []vm.RelocatedTraceEntry{{Pc: 1, Ap: 1, Fp: 1}}, nil, nil, nil)
	assert.ErrorIs(t, err, ErrEmptyTrace)
}

const layoutName = "plain"

func TestBuildProgramAndExecutionSegments(t *testing.T) {
	trace := sampleTrace()
	pi, err := Build(layoutName, 0, 10, trace, nil, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, layoutName, pi.Layout)
	assert.Equal(t, int64(0), pi.RcMin)
	assert.Equal(t, int64(10), pi.RcMax)
	assert.Equal(t, uint64(len(trace)), pi.NSteps)

	prog := pi.MemorySegments["program"]
	assert.Equal(t, uint64(1), prog.BeginAddr)
	assert.Equal(t, uint64(3), prog.StopPtr)

	exec := pi.MemorySegments["execution"]
	assert.Equal(t, uint64(10), exec.BeginAddr)
	assert.Equal(t, uint64(12), exec.StopPtr)
}

func TestBuildIncludesBuiltinSegments(t *testing.T) {
	trace := sampleTrace()
	builtinSegments := []SegmentAddress{
		{Name: "output", BeginAddr: 100, StopPtr: 105},
	}
	pi, err := Build(layoutName, 0, 10, trace, nil, builtinSegments, nil)
	require.NoError(t, err)

	out := pi.MemorySegments["output"]
	assert.Equal(t, uint64(100), out.BeginAddr)
	assert.Equal(t, uint64(105), out.StopPtr)
}

func TestBuildPublicMemoryEntriesCarryHexValues(t *testing.T) {
	trace := sampleTrace()
	f := memory.FeltFromUint64(255)
	flat := []*memory.Felt{nil, &f}

	pi, err := Build(layoutName, 0, 10, trace, flat, nil, []PublicAddress{{Address: 1, Page: 0}})
	require.NoError(t, err)

	require.Len(t, pi.PublicMemory, 1)
	entry := pi.PublicMemory[0]
	assert.Equal(t, uint64(1), entry.Address)
	require.NotNil(t, entry.Value)
	assert.Equal(t, "0xff", *entry.Value)
}

func TestBuildRejectsMissingMemoryValue(t *testing.T) {
	trace := sampleTrace()
	flat := []*memory.Felt{nil}

	_, err := Build(layoutName, 0, 10, trace, flat, nil, []PublicAddress{{Address: 5, Page: 0}})
	assert.ErrorIs(t, err, ErrMemoryNotFound)
}

func TestBuildRejectsNilMemoryAtAddress(t *testing.T) {
	trace := sampleTrace()
	flat := []*memory.Felt{nil, nil}

	_, err := Build(layoutName, 0, 10, trace, flat, nil, []PublicAddress{{Address: 1, Page: 0}})
	assert.ErrorIs(t, err, ErrMemoryNotFound)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	trace := sampleTrace()
	f := memory.FeltFromUint64(7)
	flat := []*memory.Felt{nil, &f}

	pi, err := Build(layoutName, -5, 5, trace, flat, nil, []PublicAddress{{Address: 1, Page: 0}})
	require.NoError(t, err)

	raw, err := Encode(pi)
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)

	assert.Equal(t, pi.Layout, decoded.Layout)
	assert.Equal(t, pi.RcMin, decoded.RcMin)
	assert.Equal(t, pi.RcMax, decoded.RcMax)
	assert.Equal(t, pi.NSteps, decoded.NSteps)
	assert.Equal(t, pi.MemorySegments, decoded.MemorySegments)
	require.Len(t, decoded.PublicMemory, 1)
	assert.Equal(t, *pi.PublicMemory[0].Value, *decoded.PublicMemory[0].Value)
}

func TestDecodeRejectsInvalidJSON(t *testing.T) {
	_, err := Decode([]byte("not json"))
	assert.Error(t, err)
}

package zero

import (
	"testing"

	"github.com/shardlabs/cairo-vm-go/pkg/layouts"
	"github.com/shardlabs/cairo-vm-go/pkg/vm/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPublicInputRequiresFinalizedSegments(t *testing.T) {
	r := newTestRunner(t, layouts.Plain)
	_, err := r.BuildPublicInput()
	assert.ErrorIs(t, err, ErrSegmentsNotFinal)
}

func TestRelocateAddrUsesSegmentBase(t *testing.T) {
	bases := map[int]uint64{0: 1, 1: 10}

	addr, err := relocateAddr(memory.NewRelocatable(1, 3), bases)
	require.NoError(t, err)
	assert.Equal(t, uint64(13), addr)
}

func TestRelocateAddrRejectsUnknownSegment(t *testing.T) {
	bases := map[int]uint64{0: 1}

	_, err := relocateAddr(memory.NewRelocatable(5, 0), bases)
	assert.Error(t, err)
}

func TestBuildPublicInputAfterFullRunIncludesProgramSegment(t *testing.T) {
	// A lone ret step leaves a one-entry trace, which publicinput.Build
	// rejects, so a no-op instruction (dst=op0=[fp-2], op1=[fp-1], res=op1,
	// regular pc/ap/fp updates, opcode=nop) runs first to make the trace two
	// entries long.
	const bias = 1 << 15
	const mask = 0xFFFF
	const nopFlags = 1<<0 | 1<<1 | 2<<2
	nopWord := uint64(-2+bias)&mask | (uint64(-2+bias)&mask)<<16 | (uint64(-1+bias)&mask)<<32 | uint64(nopFlags)<<48
	p := &Program{
		Data: []memory.MaybeRelocatable{
			memory.NewMaybeRelocatableFelt(memory.FeltFromUint64(nopWord)),
			memory.NewMaybeRelocatableFelt(memory.FeltFromUint64(retWord())),
		},
		Labels: map[string]uint64{},
	}
	r, err := NewRunner(p, RunnerOptions{Layout: layouts.Plain})
	require.NoError(t, err)
	require.NoError(t, r.Run())
	require.NoError(t, r.EndRun())
	require.NoError(t, r.FinalizeSegments())
	require.NoError(t, r.ReadReturnValues())
	require.NoError(t, r.RunSecurityChecks())

	pi, err := r.BuildPublicInput()
	require.NoError(t, err)

	assert.Equal(t, layouts.Plain, pi.Layout)
	_, ok := pi.MemorySegments["program"]
	assert.True(t, ok)
	_, ok = pi.MemorySegments["execution"]
	assert.True(t, ok)
}

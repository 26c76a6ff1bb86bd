package builtins

import (
	"testing"

	"github.com/shardlabs/cairo-vm-go/pkg/vm/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoseidonPermuteIsDeterministic(t *testing.T) {
	state := [3]memory.Felt{memory.FeltFromUint64(1), memory.FeltFromUint64(2), memory.FeltFromUint64(3)}

	out1 := poseidonPermute(state)
	out2 := poseidonPermute(state)
	for i := range out1 {
		assert.True(t, out1[i].Equal(out2[i]))
	}
}

func TestPoseidonPermuteChangesState(t *testing.T) {
	state := [3]memory.Felt{memory.FeltZero(), memory.FeltZero(), memory.FeltZero()}
	out := poseidonPermute(state)

	allZero := out[0].Equal(memory.FeltZero()) && out[1].Equal(memory.FeltZero()) && out[2].Equal(memory.FeltZero())
	assert.False(t, allZero)
}

func TestPoseidonDeduceMemoryCellInputSlotsReturnNil(t *testing.T) {
	segments := memory.NewSegmentManager()
	p := NewPoseidonBuiltinRunner(32)
	p.SetIncluded(true)
	p.InitializeSegments(segments)

	for i := uint64(0); i < poseidonInputCells; i++ {
		addr, err := p.Base().AddUint(i)
		require.NoError(t, err)
		v, err := p.DeduceMemoryCell(addr, segments.Memory)
		require.NoError(t, err)
		assert.Nil(t, v)
	}
}

func TestPoseidonDeduceMemoryCellMissingInputsReturnsNil(t *testing.T) {
	segments := memory.NewSegmentManager()
	p := NewPoseidonBuiltinRunner(32)
	p.SetIncluded(true)
	p.InitializeSegments(segments)

	outAddr, err := p.Base().AddUint(3)
	require.NoError(t, err)
	v, err := p.DeduceMemoryCell(outAddr, segments.Memory)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestPoseidonDeduceMemoryCellMatchesPermute(t *testing.T) {
	segments := memory.NewSegmentManager()
	p := NewPoseidonBuiltinRunner(32)
	p.SetIncluded(true)
	p.InitializeSegments(segments)

	base := p.Base()
	input := [3]memory.Felt{memory.FeltFromUint64(7), memory.FeltFromUint64(8), memory.FeltFromUint64(9)}
	for i, f := range input {
		addr, err := base.AddUint(uint64(i))
		require.NoError(t, err)
		require.NoError(t, segments.Memory.Insert(addr, memory.NewMaybeRelocatableFelt(f)))
	}

	expected := poseidonPermute(input)
	for i := 0; i < 3; i++ {
		outAddr, err := base.AddUint(uint64(3 + i))
		require.NoError(t, err)
		got, err := p.DeduceMemoryCell(outAddr, segments.Memory)
		require.NoError(t, err)
		require.NotNil(t, got)
		gotFelt, err := got.GetFelt()
		require.NoError(t, err)
		assert.True(t, gotFelt.Equal(expected[i]))
	}
}

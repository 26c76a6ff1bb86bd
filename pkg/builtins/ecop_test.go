package builtins

import (
	"testing"

	"github.com/shardlabs/cairo-vm-go/pkg/vm/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEcOpDeduceMemoryCellInputSlotsReturnNil(t *testing.T) {
	segments := memory.NewSegmentManager()
	e := NewEcOpBuiltinRunner(256)
	e.SetIncluded(true)
	e.InitializeSegments(segments)

	for i := uint64(0); i < ecOpInputCells; i++ {
		addr, err := e.Base().AddUint(i)
		require.NoError(t, err)
		v, err := e.DeduceMemoryCell(addr, segments.Memory)
		require.NoError(t, err)
		assert.Nil(t, v)
	}
}

func TestEcOpDeduceMemoryCellMissingInputsReturnsNil(t *testing.T) {
	segments := memory.NewSegmentManager()
	e := NewEcOpBuiltinRunner(256)
	e.SetIncluded(true)
	e.InitializeSegments(segments)

	rxAddr, err := e.Base().AddUint(5)
	require.NoError(t, err)
	v, err := e.DeduceMemoryCell(rxAddr, segments.Memory)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestEcOpDeduceMemoryCellComputesPPlusScalarQ(t *testing.T) {
	segments := memory.NewSegmentManager()
	e := NewEcOpBuiltinRunner(256)
	e.SetIncluded(true)
	e.InitializeSegments(segments)

	g := generator()
	base := e.Base()
	write := func(offset uint64, f memory.Felt) {
		addr, err := base.AddUint(offset)
		require.NoError(t, err)
		require.NoError(t, segments.Memory.Insert(addr, memory.NewMaybeRelocatableFelt(f)))
	}
	write(0, g.x)
	write(1, g.y)
	write(2, g.x)
	write(3, g.y)
	write(4, memory.FeltOne())

	expected, err := g.add(g)
	require.NoError(t, err)

	rxAddr, err := base.AddUint(5)
	require.NoError(t, err)
	rxVal, err := e.DeduceMemoryCell(rxAddr, segments.Memory)
	require.NoError(t, err)
	require.NotNil(t, rxVal)
	rx, err := rxVal.GetFelt()
	require.NoError(t, err)
	assert.True(t, rx.Equal(expected.x))

	ryAddr, err := base.AddUint(6)
	require.NoError(t, err)
	ryVal, err := e.DeduceMemoryCell(ryAddr, segments.Memory)
	require.NoError(t, err)
	require.NotNil(t, ryVal)
	ry, err := ryVal.GetFelt()
	require.NoError(t, err)
	assert.True(t, ry.Equal(expected.y))
}

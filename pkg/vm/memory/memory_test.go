package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryInsertAndGet(t *testing.T) {
	m := NewMemory()
	base := m.AllocateSegment()

	v := NewMaybeRelocatableFelt(FeltFromUint64(7))
	require.NoError(t, m.Insert(base, v))

	got, ok := m.Get(base)
	require.True(t, ok)
	assert.True(t, got.Equal(v))
}

func TestMemoryWriteOnceSameValueIsNoOp(t *testing.T) {
	m := NewMemory()
	base := m.AllocateSegment()
	v := NewMaybeRelocatableFelt(FeltFromUint64(7))

	require.NoError(t, m.Insert(base, v))
	require.NoError(t, m.Insert(base, v))
}

func TestMemoryWriteOnceConflictFails(t *testing.T) {
	m := NewMemory()
	base := m.AllocateSegment()

	require.NoError(t, m.Insert(base, NewMaybeRelocatableFelt(FeltFromUint64(1))))
	err := m.Insert(base, NewMaybeRelocatableFelt(FeltFromUint64(2)))
	require.Error(t, err)
	var ime *InconsistentMemoryError
	assert.ErrorAs(t, err, &ime)
}

func TestMemoryGetFeltAndRelocatable(t *testing.T) {
	m := NewMemory()
	base := m.AllocateSegment()

	feltAddr, err := base.AddUint(0)
	require.NoError(t, err)
	require.NoError(t, m.Insert(feltAddr, NewMaybeRelocatableFelt(FeltFromUint64(9))))

	f, err := m.GetFelt(feltAddr)
	require.NoError(t, err)
	v, err := f.ToUint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(9), v)

	_, err = m.GetRelocatable(feltAddr)
	assert.ErrorIs(t, err, ErrExpectedRelocatable)

	unknown := NewRelocatable(base.SegmentIndex, 99)
	_, err = m.GetFelt(unknown)
	assert.ErrorIs(t, err, ErrUnknownMemoryCell)
}

func TestMemoryLoadData(t *testing.T) {
	m := NewMemory()
	base := m.AllocateSegment()

	values := []MaybeRelocatable{
		NewMaybeRelocatableFelt(FeltFromUint64(1)),
		NewMaybeRelocatableFelt(FeltFromUint64(2)),
		NewMaybeRelocatableFelt(FeltFromUint64(3)),
	}
	end, err := m.LoadData(base, values)
	require.NoError(t, err)
	assert.Equal(t, NewRelocatable(base.SegmentIndex, 3), end)

	for i, v := range values {
		addr, err := base.AddUint(uint64(i))
		require.NoError(t, err)
		got, ok := m.Get(addr)
		require.True(t, ok)
		assert.True(t, got.Equal(v))
	}
}

func TestMemoryValidationRule(t *testing.T) {
	m := NewMemory()
	base := m.AllocateSegment()

	var validatedCount int
	m.AddValidationRule(base.SegmentIndex, func(mem *Memory, addr Relocatable) error {
		validatedCount++
		return nil
	})

	addr, err := base.AddUint(0)
	require.NoError(t, err)
	require.NoError(t, m.Insert(addr, NewMaybeRelocatableFelt(FeltFromUint64(1))))
	assert.Equal(t, 1, validatedCount)

	// Re-inserting the same value does not re-trigger validation.
	require.NoError(t, m.Insert(addr, NewMaybeRelocatableFelt(FeltFromUint64(1))))
	assert.Equal(t, 1, validatedCount)
}

func TestMemoryRelocateTempSegment(t *testing.T) {
	m := NewMemory()
	real := m.AllocateSegment()
	temp := m.AllocateTempSegment()

	require.NoError(t, m.Insert(NewRelocatable(temp.SegmentIndex, 0), NewMaybeRelocatableFelt(FeltFromUint64(42))))
	require.NoError(t, m.Insert(NewRelocatable(temp.SegmentIndex, 1), NewMaybeRelocatableFelt(FeltFromUint64(43))))

	dst := NewRelocatable(real.SegmentIndex, 5)
	require.NoError(t, m.AddRelocationRule(temp, dst))
	require.NoError(t, m.RelocateMemory())

	v0, ok := m.Get(NewRelocatable(real.SegmentIndex, 5))
	require.True(t, ok)
	f0, _ := v0.GetFelt()
	n0, _ := f0.ToUint64()
	assert.Equal(t, uint64(42), n0)

	v1, ok := m.Get(NewRelocatable(real.SegmentIndex, 6))
	require.True(t, ok)
	f1, _ := v1.GetFelt()
	n1, _ := f1.ToUint64()
	assert.Equal(t, uint64(43), n1)
}

func TestMemoryRelocateLeavesUnrelocatedReferenceAsError(t *testing.T) {
	m := NewMemory()
	real := m.AllocateSegment()
	temp := m.AllocateTempSegment()

	require.NoError(t, m.Insert(NewRelocatable(real.SegmentIndex, 0), NewMaybeRelocatableRelocatable(temp)))

	err := m.RelocateMemory()
	assert.ErrorIs(t, err, ErrUnrelocatedTemporaryValue)
}

func TestMemoryRelocateTwiceFails(t *testing.T) {
	m := NewMemory()
	m.AllocateSegment()
	require.NoError(t, m.RelocateMemory())
	assert.ErrorIs(t, m.RelocateMemory(), ErrAlreadyRelocated)
}

func TestMemoryAddRelocationRuleRejectsNonTemporarySource(t *testing.T) {
	m := NewMemory()
	real := m.AllocateSegment()
	err := m.AddRelocationRule(real, NewRelocatable(0, 0))
	assert.ErrorIs(t, err, ErrAddressNotInTemporary)
}

func TestMemoryAddRelocationRuleRejectsNonZeroOffset(t *testing.T) {
	m := NewMemory()
	temp := m.AllocateTempSegment()
	err := m.AddRelocationRule(NewRelocatable(temp.SegmentIndex, 1), NewRelocatable(0, 0))
	assert.ErrorIs(t, err, ErrNonZeroRelocationOffset)
}

func TestMemoryAddRelocationRuleRejectsDuplicate(t *testing.T) {
	m := NewMemory()
	temp := m.AllocateTempSegment()
	require.NoError(t, m.AddRelocationRule(temp, NewRelocatable(0, 0)))
	err := m.AddRelocationRule(temp, NewRelocatable(0, 1))
	assert.ErrorIs(t, err, ErrDuplicatedRelocation)
}

func TestMemoryMarkAccessed(t *testing.T) {
	m := NewMemory()
	base := m.AllocateSegment()
	require.NoError(t, m.Insert(base, NewMaybeRelocatableFelt(FeltFromUint64(1))))

	accessed, err := m.IsAccessed(base)
	require.NoError(t, err)
	assert.False(t, accessed)

	m.MarkAccessed(base)
	accessed, err = m.IsAccessed(base)
	require.NoError(t, err)
	assert.True(t, accessed)
}

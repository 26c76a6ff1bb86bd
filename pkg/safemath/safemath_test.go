package safemath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeDiv(t *testing.T) {
	q, err := SafeDiv(10, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), q)

	_, err = SafeDiv(10, 0)
	assert.ErrorIs(t, err, ErrDivByZero)

	_, err = SafeDiv(10, 3)
	assert.ErrorIs(t, err, ErrNotDivisible)
}

func TestNextPowerOfTwo(t *testing.T) {
	cases := map[uint64]uint64{
		0:  1,
		1:  1,
		2:  2,
		3:  4,
		4:  4,
		5:  8,
		16: 16,
		17: 32,
	}
	for in, want := range cases {
		assert.Equal(t, want, NextPowerOfTwo(in), "NextPowerOfTwo(%d)", in)
	}
}

func TestMax(t *testing.T) {
	assert.Equal(t, uint64(5), Max(5, 3))
	assert.Equal(t, uint64(5), Max(3, 5))
	assert.Equal(t, uint64(5), Max(5, 5))
}

func TestDivCeil(t *testing.T) {
	assert.Equal(t, uint64(2), DivCeil(10, 5))
	assert.Equal(t, uint64(3), DivCeil(11, 5))
	assert.Equal(t, uint64(0), DivCeil(10, 0))
}

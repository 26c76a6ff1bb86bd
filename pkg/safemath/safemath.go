// Package safemath collects the small checked-arithmetic helpers the VM and
// its builtins lean on instead of raw operators, so overflow and
// division-by-zero surface as errors rather than silently wrapping.
package safemath

import "errors"

var (
	ErrDivByZero    = errors.New("safemath: division by zero")
	ErrNotDivisible = errors.New("safemath: dividend is not evenly divisible by divisor")
)

// SafeDiv divides a by b, requiring the division to be exact -- used for
// builtin memory-unit accounting where a remainder would indicate a
// miscounted step total.
func SafeDiv(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, ErrDivByZero
	}
	if a%b != 0 {
		return 0, ErrNotDivisible
	}
	return a / b, nil
}

// NextPowerOfTwo rounds n up to the next power of two (0 and 1 both map to
// 1), used for proof-mode trace padding and dynamic-layout builtin sizing.
func NextPowerOfTwo(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// Max returns the larger of a and b.
func Max(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// DivCeil divides a by b rounding up.
func DivCeil(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

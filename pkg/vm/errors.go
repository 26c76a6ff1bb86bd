package vm

import "errors"

// Decode errors (spec §7 "Decode").
var (
	ErrNonZeroHighBit    = errors.New("vm: instruction high bit must be zero")
	ErrInvalidFlagField  = errors.New("vm: invalid flag field")
)

// Math errors (spec §7 "Math") not already covered by the memory package.
var (
	ErrImmShouldBe1    = errors.New("vm: op1_src=Imm requires off_op1 == 1")
	ErrUnknownOp0      = errors.New("vm: op1_src=Op0 requires op0 to already be resolved")
)

// Execution errors (spec §7 "Execution").
var (
	ErrFailedToComputeOp0           = errors.New("vm: failed to compute or deduce op0")
	ErrFailedToComputeOp1           = errors.New("vm: failed to compute or deduce op1")
	ErrNoDst                        = errors.New("vm: failed to compute or deduce dst")
	ErrUnconstrainedResAssertEq     = errors.New("vm: res is unconstrained in an AssertEq instruction")
	ErrDiffAssertValues             = errors.New("vm: dst and res differ in an AssertEq instruction")
	ErrCantWriteReturnPc            = errors.New("vm: op0 does not hold the expected return pc in a Call instruction")
	ErrCantWriteReturnFp            = errors.New("vm: dst does not hold the expected return fp in a Call instruction")
	ErrApUpdateAddResUnconstrained  = errors.New("vm: ap_update=Add requires a constrained res")
	ErrInvalidPcUpdate              = errors.New("vm: invalid pc update")
	ErrInvalidApUpdate              = errors.New("vm: invalid ap update")
	ErrInvalidResLogicMul           = errors.New("vm: res_logic=Mul requires two field-element operands")
)

// Runner errors (spec §7 "Runner").
var (
	ErrStepLimitExceeded = errors.New("vm: max step limit exceeded")
)

package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeWord(offDst, offOp0, offOp1 int64, flags uint64) uint64 {
	dst := uint64(offDst+biasOffset) & offDstMask
	op0 := uint64(offOp0+biasOffset) & offOp0Mask
	op1 := uint64(offOp1+biasOffset) & offOp1Mask
	return dst | (op0 << 16) | (op1 << 32) | (flags << 48)
}

func TestDecodeInstructionOffsets(t *testing.T) {
	word := encodeWord(1, -1, 0, 0)
	inst, err := DecodeInstruction(word)
	require.NoError(t, err)
	assert.Equal(t, int64(1), inst.OffDst)
	assert.Equal(t, int64(-1), inst.OffOp0)
	assert.Equal(t, int64(0), inst.OffOp1)
}

func TestDecodeInstructionOffsetBoundaries(t *testing.T) {
	word := encodeWord(-(biasOffset), biasOffset-1, 0, 0)
	inst, err := DecodeInstruction(word)
	require.NoError(t, err)
	assert.Equal(t, int64(-biasOffset), inst.OffDst)
	assert.Equal(t, int64(biasOffset-1), inst.OffOp0)
}

func TestDecodeInstructionRegisters(t *testing.T) {
	// bit0 = dst register FP, bit1 = op0 register FP
	word := encodeWord(0, 0, 0, 0b11)
	inst, err := DecodeInstruction(word)
	require.NoError(t, err)
	assert.Equal(t, FP, inst.DstRegister)
	assert.Equal(t, FP, inst.Op0Register)

	word = encodeWord(0, 0, 0, 0)
	inst, err = DecodeInstruction(word)
	require.NoError(t, err)
	assert.Equal(t, AP, inst.DstRegister)
	assert.Equal(t, AP, inst.Op0Register)
}

func TestDecodeInstructionOp1Src(t *testing.T) {
	cases := []struct {
		bits uint64
		want Op1Src
	}{
		{0, Op1SrcOp0},
		{1, Op1SrcImm},
		{2, Op1SrcFP},
		{3, Op1SrcAP},
	}
	for _, c := range cases {
		word := encodeWord(0, 0, 0, c.bits<<2)
		inst, err := DecodeInstruction(word)
		require.NoError(t, err)
		assert.Equal(t, c.want, inst.Op1Src)
	}
}

func TestDecodeInstructionResLogic(t *testing.T) {
	cases := []struct {
		bits uint64
		want ResLogic
	}{
		{0, ResOp1},
		{1, ResAdd},
		{2, ResMul},
		{3, ResUnconstrained},
	}
	for _, c := range cases {
		word := encodeWord(0, 0, 0, c.bits<<4)
		inst, err := DecodeInstruction(word)
		require.NoError(t, err)
		assert.Equal(t, c.want, inst.Res)
	}
}

func TestDecodeInstructionPcAndApUpdate(t *testing.T) {
	word := encodeWord(0, 0, 0, (uint64(PcUpdateJumpRel)<<6)|(uint64(ApUpdateAdd2)<<8))
	inst, err := DecodeInstruction(word)
	require.NoError(t, err)
	assert.Equal(t, PcUpdateJumpRel, inst.PcUpdate)
	assert.Equal(t, ApUpdateAdd2, inst.ApUpdate)
}

func TestDecodeInstructionOpcodeDrivesFpUpdate(t *testing.T) {
	word := encodeWord(0, 0, 0, uint64(OpcodeCall)<<10)
	inst, err := DecodeInstruction(word)
	require.NoError(t, err)
	assert.Equal(t, OpcodeCall, inst.Opcode)
	assert.Equal(t, FpUpdateAPPlus2, inst.FpUpdate)

	word = encodeWord(0, 0, 0, uint64(OpcodeRet)<<10)
	inst, err = DecodeInstruction(word)
	require.NoError(t, err)
	assert.Equal(t, OpcodeRet, inst.Opcode)
	assert.Equal(t, FpUpdateDst, inst.FpUpdate)

	word = encodeWord(0, 0, 0, uint64(OpcodeAssertEq)<<10)
	inst, err = DecodeInstruction(word)
	require.NoError(t, err)
	assert.Equal(t, FpUpdateRegular, inst.FpUpdate)
}

func TestDecodeInstructionRejectsBit63(t *testing.T) {
	_, err := DecodeInstruction(1 << 63)
	assert.ErrorIs(t, err, ErrNonZeroHighBit)
}

func TestDecodeInstructionRejectsFlagBit15(t *testing.T) {
	word := encodeWord(0, 0, 0, 1<<15)
	_, err := DecodeInstruction(word)
	assert.ErrorIs(t, err, ErrNonZeroHighBit)
}

func TestDecodeInstructionRejectsReservedFlagBits(t *testing.T) {
	word := encodeWord(0, 0, 0, 1<<12)
	_, err := DecodeInstruction(word)
	assert.ErrorIs(t, err, ErrInvalidFlagField)
}

func TestInstructionSize(t *testing.T) {
	immInst := &Instruction{Op1Src: Op1SrcImm}
	assert.Equal(t, uint64(2), immInst.Size())

	nonImmInst := &Instruction{Op1Src: Op1SrcFP}
	assert.Equal(t, uint64(1), nonImmInst.Size())
}

package vm

import (
	"fmt"

	"github.com/shardlabs/cairo-vm-go/pkg/vm/memory"
)

// Register names an AP/FP-relative operand base.
type Register uint8

const (
	AP Register = iota
	FP
)

type Op1Src uint8

const (
	Op1SrcOp0 Op1Src = iota
	Op1SrcImm
	Op1SrcFP
	Op1SrcAP
)

type ResLogic uint8

const (
	ResOp1 ResLogic = iota
	ResAdd
	ResMul
	ResUnconstrained
)

type PcUpdate uint8

const (
	PcUpdateRegular PcUpdate = iota
	PcUpdateJump
	PcUpdateJumpRel
	PcUpdateJnz
)

type ApUpdate uint8

const (
	ApUpdateRegular ApUpdate = iota
	ApUpdateAdd
	ApUpdateAdd1
	ApUpdateAdd2
)

type Opcode uint8

const (
	OpcodeNOp Opcode = iota
	OpcodeAssertEq
	OpcodeCall
	OpcodeRet
)

type FpUpdate uint8

const (
	FpUpdateRegular FpUpdate = iota
	FpUpdateAPPlus2
	FpUpdateDst
)

// biasOffset is the bias applied to the three 16-bit instruction offsets,
// yielding the signed range [-2^15, 2^15) (spec §3 Instruction).
const biasOffset = 1 << 15

const (
	offDstMask = 0xFFFF
	offOp0Mask = 0xFFFF
	offOp1Mask = 0xFFFF
)

// Instruction is the decoded form of one 64-bit Cairo instruction word
// (spec §3/§4.2). The encoding used here groups the three biased offsets in
// the low 48 bits and a 16-bit flag field in the high bits, with the
// instruction's top bit (the 16th flag bit) always zero.
type Instruction struct {
	OffDst int64
	OffOp0 int64
	OffOp1 int64

	DstRegister Register
	Op0Register Register
	Op1Src      Op1Src
	Res         ResLogic
	PcUpdate    PcUpdate
	ApUpdate    ApUpdate
	Opcode      Opcode
	FpUpdate    FpUpdate
}

// Size returns the instruction's footprint in memory cells: 2 when the
// instruction carries an immediate (op1 = [pc + 1]), 1 otherwise.
func (i *Instruction) Size() uint64 {
	if i.Op1Src == Op1SrcImm {
		return 2
	}
	return 1
}

func (i *Instruction) String() string {
	return fmt.Sprintf(
		"Instruction{off_dst:%d off_op0:%d off_op1:%d op1_src:%d res:%d pc:%d ap:%d opcode:%d}",
		i.OffDst, i.OffOp0, i.OffOp1, i.Op1Src, i.Res, i.PcUpdate, i.ApUpdate, i.Opcode,
	)
}

// DecodeInstruction unbiases the offsets and parses the flag bitfield out of
// an encoded word, previously read from memory and converted to a u64 (spec
// §4.2).
func DecodeInstruction(encoded uint64) (*Instruction, error) {
	if encoded&(1<<63) != 0 {
		return nil, ErrNonZeroHighBit
	}

	offDst := int64(encoded&offDstMask) - biasOffset
	offOp0 := int64((encoded>>16)&offOp0Mask) - biasOffset
	offOp1 := int64((encoded>>32)&offOp1Mask) - biasOffset

	flags := (encoded >> 48) & 0xFFFF
	if flags&(1<<15) != 0 {
		return nil, ErrNonZeroHighBit
	}
	if flags&(0b111<<12) != 0 {
		return nil, fmt.Errorf("%w: reserved flag bits set", ErrInvalidFlagField)
	}

	dstReg := AP
	if flags&1 != 0 {
		dstReg = FP
	}
	op0Reg := AP
	if flags&(1<<1) != 0 {
		op0Reg = FP
	}

	op1Src, err := decodeOp1Src((flags >> 2) & 0b11)
	if err != nil {
		return nil, err
	}
	res, err := decodeResLogic((flags >> 4) & 0b11)
	if err != nil {
		return nil, err
	}
	pcUpdate, err := decodePcUpdate((flags >> 6) & 0b11)
	if err != nil {
		return nil, err
	}
	apUpdate, err := decodeApUpdate((flags >> 8) & 0b11)
	if err != nil {
		return nil, err
	}
	opcode, err := decodeOpcode((flags >> 10) & 0b11)
	if err != nil {
		return nil, err
	}

	return &Instruction{
		OffDst:      offDst,
		OffOp0:      offOp0,
		OffOp1:      offOp1,
		DstRegister: dstReg,
		Op0Register: op0Reg,
		Op1Src:      op1Src,
		Res:         res,
		PcUpdate:    pcUpdate,
		ApUpdate:    apUpdate,
		Opcode:      opcode,
		FpUpdate:    fpUpdateFromOpcode(opcode),
	}, nil
}

func fpUpdateFromOpcode(op Opcode) FpUpdate {
	switch op {
	case OpcodeCall:
		return FpUpdateAPPlus2
	case OpcodeRet:
		return FpUpdateDst
	default:
		return FpUpdateRegular
	}
}

func decodeOp1Src(bits uint64) (Op1Src, error) {
	switch bits {
	case 0:
		return Op1SrcOp0, nil
	case 1:
		return Op1SrcImm, nil
	case 2:
		return Op1SrcFP, nil
	case 3:
		return Op1SrcAP, nil
	}
	return 0, fmt.Errorf("%w: op1_src", ErrInvalidFlagField)
}

func decodeResLogic(bits uint64) (ResLogic, error) {
	switch bits {
	case 0:
		return ResOp1, nil
	case 1:
		return ResAdd, nil
	case 2:
		return ResMul, nil
	case 3:
		return ResUnconstrained, nil
	}
	return 0, fmt.Errorf("%w: res_logic", ErrInvalidFlagField)
}

func decodePcUpdate(bits uint64) (PcUpdate, error) {
	switch bits {
	case 0:
		return PcUpdateRegular, nil
	case 1:
		return PcUpdateJump, nil
	case 2:
		return PcUpdateJumpRel, nil
	case 3:
		return PcUpdateJnz, nil
	}
	return 0, fmt.Errorf("%w: pc_update", ErrInvalidFlagField)
}

func decodeApUpdate(bits uint64) (ApUpdate, error) {
	switch bits {
	case 0:
		return ApUpdateRegular, nil
	case 1:
		return ApUpdateAdd, nil
	case 2:
		return ApUpdateAdd1, nil
	case 3:
		return ApUpdateAdd2, nil
	}
	return 0, fmt.Errorf("%w: ap_update", ErrInvalidFlagField)
}

func decodeOpcode(bits uint64) (Opcode, error) {
	switch bits {
	case 0:
		return OpcodeNOp, nil
	case 1:
		return OpcodeAssertEq, nil
	case 2:
		return OpcodeCall, nil
	case 3:
		return OpcodeRet, nil
	}
	return 0, fmt.Errorf("%w: opcode", ErrInvalidFlagField)
}

// offsetAsFelt is used when an instruction word's offsets must be embedded
// back into a felt (e.g. when a program encodes instructions as plain
// field elements). Not used on the hot decode path.
func offsetAsFelt(off int64) memory.Felt {
	if off >= 0 {
		return memory.FeltFromUint64(uint64(off))
	}
	return memory.Felt{}.Sub(memory.FeltZero(), memory.FeltFromUint64(uint64(-off)))
}

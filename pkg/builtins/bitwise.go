package builtins

import (
	"math/big"

	"github.com/shardlabs/cairo-vm-go/pkg/vm/memory"
)

const BitwiseName = "bitwise"

// BitwiseCellsPerInstance groups (x, y, x&y, x^y, x|y) per instance; the
// first two cells are inputs, the last three are deduced (spec §4.6
// "bitwise").
const BitwiseCellsPerInstance = 5
const bitwiseInputCells = 2

// BitwiseBuiltinRunner deduces the &, ^, | of two felts the program
// writes at the first two cells of each 5-cell instance.
type BitwiseBuiltinRunner struct {
	base
}

func NewBitwiseBuiltinRunner(ratio uint64) *BitwiseBuiltinRunner {
	b := &BitwiseBuiltinRunner{base: newBase(BitwiseName, ratio, BitwiseCellsPerInstance)}
	b.instancesPerComponent = 1
	return b
}

func (b *BitwiseBuiltinRunner) DeduceMemoryCell(addr memory.Relocatable, mem *memory.Memory) (*memory.MaybeRelocatable, error) {
	indexInInstance := addr.Offset % BitwiseCellsPerInstance
	if indexInInstance < bitwiseInputCells {
		return nil, nil
	}
	instanceBase := addr.Offset - indexInInstance

	xAddr := memory.NewRelocatable(addr.SegmentIndex, instanceBase)
	yAddr := memory.NewRelocatable(addr.SegmentIndex, instanceBase+1)

	x, err := mem.GetFelt(xAddr)
	if err != nil {
		return nil, nil
	}
	y, err := mem.GetFelt(yAddr)
	if err != nil {
		return nil, nil
	}

	xBig, yBig := x.ToBigInt(), y.ToBigInt()
	var result big.Int
	switch indexInInstance {
	case 2:
		result.And(xBig, yBig)
	case 3:
		result.Xor(xBig, yBig)
	case 4:
		result.Or(xBig, yBig)
	}

	felt := memory.FeltFromBigInt(&result)
	v := memory.NewMaybeRelocatableFelt(felt)
	return &v, nil
}

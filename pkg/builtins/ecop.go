package builtins

import "github.com/shardlabs/cairo-vm-go/pkg/vm/memory"

const EcOpName = "ec_op"

// EcOpCellsPerInstance lays out one instance as p.x, p.y, q.x, q.y, m,
// r.x, r.y -- the first five are inputs, the last two (r = p + m*q) are
// deduced (spec §4.6 "ec_op").
const EcOpCellsPerInstance = 7
const ecOpInputCells = 5

type EcOpBuiltinRunner struct {
	base
	scalarHeight uint
}

func NewEcOpBuiltinRunner(ratio uint64) *EcOpBuiltinRunner {
	return &EcOpBuiltinRunner{base: newBase(EcOpName, ratio, EcOpCellsPerInstance), scalarHeight: 252}
}

func (e *EcOpBuiltinRunner) DeduceMemoryCell(addr memory.Relocatable, mem *memory.Memory) (*memory.MaybeRelocatable, error) {
	indexInInstance := addr.Offset % EcOpCellsPerInstance
	if indexInInstance < ecOpInputCells {
		return nil, nil
	}
	instanceBase := addr.Offset - indexInInstance

	read := func(offset uint64) (memory.Felt, error) {
		return mem.GetFelt(memory.NewRelocatable(addr.SegmentIndex, instanceBase+offset))
	}
	px, err := read(0)
	if err != nil {
		return nil, nil
	}
	py, err := read(1)
	if err != nil {
		return nil, nil
	}
	qx, err := read(2)
	if err != nil {
		return nil, nil
	}
	qy, err := read(3)
	if err != nil {
		return nil, nil
	}
	m, err := read(4)
	if err != nil {
		return nil, nil
	}

	p := point{x: px, y: py}
	q := point{x: qx, y: qy}
	mq, err := q.scalarMul(m)
	if err != nil {
		return nil, err
	}
	r, err := p.add(mq)
	if err != nil {
		return nil, err
	}

	var result memory.Felt
	if indexInInstance == 5 {
		result = r.x
	} else {
		result = r.y
	}
	v := memory.NewMaybeRelocatableFelt(result)
	return &v, nil
}

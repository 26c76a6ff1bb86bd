package builtins

import "github.com/shardlabs/cairo-vm-go/pkg/vm/memory"

const PedersenName = "pedersen"

// PedersenCellsPerInstance groups (a, b, hash(a,b)); the first two cells
// are inputs, the third is deduced (spec §4.6 "pedersen").
const PedersenCellsPerInstance = 3
const pedersenInputCells = 2

var pedersenShiftPoint = func() point {
	g := generator()
	shifted, err := g.scalarMul(memory.FeltFromUint64(2))
	if err != nil {
		panic(err)
	}
	return shifted
}()

var pedersenSecondGenerator = func() point {
	g := generator()
	h, err := g.scalarMul(memory.FeltFromUint64(3))
	if err != nil {
		panic(err)
	}
	return h
}()

// pedersenHash combines a and b through the curve: shift_point + a*G +
// b*H, returning the result's x-coordinate.
func pedersenHash(a, b memory.Felt) (memory.Felt, error) {
	aG, err := generator().scalarMul(a)
	if err != nil {
		return memory.Felt{}, err
	}
	bH, err := pedersenSecondGenerator.scalarMul(b)
	if err != nil {
		return memory.Felt{}, err
	}
	acc, err := pedersenShiftPoint.add(aG)
	if err != nil {
		return memory.Felt{}, err
	}
	acc, err = acc.add(bH)
	if err != nil {
		return memory.Felt{}, err
	}
	return acc.x, nil
}

// PedersenBuiltinRunner deduces the hash cell of each 3-cell instance from
// the two input cells that precede it.
type PedersenBuiltinRunner struct {
	base
}

func NewPedersenBuiltinRunner(ratio uint64) *PedersenBuiltinRunner {
	return &PedersenBuiltinRunner{base: newBase(PedersenName, ratio, PedersenCellsPerInstance)}
}

func (p *PedersenBuiltinRunner) DeduceMemoryCell(addr memory.Relocatable, mem *memory.Memory) (*memory.MaybeRelocatable, error) {
	if addr.Offset%PedersenCellsPerInstance != pedersenInputCells {
		return nil, nil
	}
	instanceBase := addr.Offset - pedersenInputCells

	a, err := mem.GetFelt(memory.NewRelocatable(addr.SegmentIndex, instanceBase))
	if err != nil {
		return nil, nil
	}
	b, err := mem.GetFelt(memory.NewRelocatable(addr.SegmentIndex, instanceBase+1))
	if err != nil {
		return nil, nil
	}

	hash, err := pedersenHash(a, b)
	if err != nil {
		return nil, err
	}
	v := memory.NewMaybeRelocatableFelt(hash)
	return &v, nil
}

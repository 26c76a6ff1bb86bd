package builtins

import (
	"golang.org/x/crypto/sha3"

	"github.com/shardlabs/cairo-vm-go/pkg/vm/memory"
)

const KeccakName = "keccak"

// KeccakCellsPerInstance lays out one instance as two 128-bit input limbs
// followed by two 128-bit output limbs holding keccak256(input) (spec
// §4.6 "keccak").
const KeccakCellsPerInstance = 4
const keccakInputCells = 2

type KeccakBuiltinRunner struct {
	base
}

func NewKeccakBuiltinRunner(ratio uint64) *KeccakBuiltinRunner {
	return &KeccakBuiltinRunner{base: newBase(KeccakName, ratio, KeccakCellsPerInstance)}
}

func (k *KeccakBuiltinRunner) DeduceMemoryCell(addr memory.Relocatable, mem *memory.Memory) (*memory.MaybeRelocatable, error) {
	indexInInstance := addr.Offset % KeccakCellsPerInstance
	if indexInInstance < keccakInputCells {
		return nil, nil
	}
	instanceBase := addr.Offset - indexInInstance

	lo, err := mem.GetFelt(memory.NewRelocatable(addr.SegmentIndex, instanceBase))
	if err != nil {
		return nil, nil
	}
	hi, err := mem.GetFelt(memory.NewRelocatable(addr.SegmentIndex, instanceBase+1))
	if err != nil {
		return nil, nil
	}

	loBytes := lo.LeBytes()
	hiBytes := hi.LeBytes()
	input := make([]byte, 0, 32)
	input = append(input, loBytes[:16]...)
	input = append(input, hiBytes[:16]...)

	digest := sha3.NewLegacyKeccak256()
	digest.Write(input)
	sum := digest.Sum(nil)

	var outLo, outHi [32]byte
	copy(outLo[:16], sum[:16])
	copy(outHi[:16], sum[16:32])

	outLoFelt, err := memory.FeltFromLeBytes(&outLo)
	if err != nil {
		return nil, err
	}
	outHiFelt, err := memory.FeltFromLeBytes(&outHi)
	if err != nil {
		return nil, err
	}

	var result memory.Felt
	if indexInInstance == 2 {
		result = outLoFelt
	} else {
		result = outHiFelt
	}
	v := memory.NewMaybeRelocatableFelt(result)
	return &v, nil
}

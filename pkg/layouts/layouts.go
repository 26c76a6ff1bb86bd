// Package layouts defines the named Cairo layouts: which builtins a run
// activates, in which fixed segment order, and at what ratio (spec §4.6
// "layout", §5).
package layouts

import (
	"fmt"

	"github.com/shardlabs/cairo-vm-go/pkg/builtins"
)

// BuiltinSpec names one builtin slot in a layout's canonical ordering,
// together with the ratio it runs at (0 means "dynamic": sized to actual
// usage rather than a fixed step ratio).
type BuiltinSpec struct {
	Name  string
	Ratio uint64
}

// Layout is a named, ordered set of builtins plus the diluted-pool
// parameters the bitwise/keccak builtins rely on for their cell-unit
// accounting (spec §4.11).
type Layout struct {
	Name            string
	Builtins        []BuiltinSpec
	DilutedSpacing  uint64
	DilutedNBits    uint64
	RcUnitsPerStep  uint64
}

const (
	Plain     = "plain"
	Small     = "small"
	Dynamic   = "dynamic"
	AllCairo  = "all_cairo"
	Recursive = "recursive"
	Starknet  = "starknet"
)

var registry = map[string]Layout{
	Plain: {
		Name:           Plain,
		Builtins:       nil,
		DilutedSpacing: 4,
		DilutedNBits:   16,
		RcUnitsPerStep: 16,
	},
	Small: {
		Name: Small,
		Builtins: []BuiltinSpec{
			{builtins.OutputName, 0},
			{builtins.PedersenName, 8},
			{builtins.RangeCheckName, 8},
			{builtins.SignatureName, 512},
		},
		DilutedSpacing: 4,
		DilutedNBits:   16,
		RcUnitsPerStep: 16,
	},
	Recursive: {
		Name: Recursive,
		Builtins: []BuiltinSpec{
			{builtins.OutputName, 0},
			{builtins.PedersenName, 128},
			{builtins.RangeCheckName, 8},
			{builtins.BitwiseName, 8},
		},
		DilutedSpacing: 4,
		DilutedNBits:   16,
		RcUnitsPerStep: 4,
	},
	Starknet: {
		Name: Starknet,
		Builtins: []BuiltinSpec{
			{builtins.OutputName, 0},
			{builtins.PedersenName, 32},
			{builtins.RangeCheckName, 16},
			{builtins.EcOpName, 1024},
			{builtins.BitwiseName, 64},
			{builtins.SignatureName, 2048},
			{builtins.PoseidonName, 32},
		},
		DilutedSpacing: 4,
		DilutedNBits:   16,
		RcUnitsPerStep: 4,
	},
	AllCairo: {
		Name: AllCairo,
		Builtins: []BuiltinSpec{
			{builtins.OutputName, 0},
			{builtins.PedersenName, 256},
			{builtins.RangeCheckName, 8},
			{builtins.EcOpName, 256},
			{builtins.BitwiseName, 16},
			{builtins.KeccakName, 2048},
			{builtins.PoseidonName, 256},
			{builtins.SegmentArenaName, 0},
		},
		DilutedSpacing: 4,
		DilutedNBits:   16,
		RcUnitsPerStep: 4,
	},
	Dynamic: {
		Name: Dynamic,
		Builtins: []BuiltinSpec{
			{builtins.OutputName, 0},
			{builtins.PedersenName, 0},
			{builtins.RangeCheckName, 0},
			{builtins.EcOpName, 0},
			{builtins.BitwiseName, 0},
			{builtins.KeccakName, 0},
			{builtins.PoseidonName, 0},
			{builtins.SignatureName, 0},
			{builtins.SegmentArenaName, 0},
		},
		DilutedSpacing: 4,
		DilutedNBits:   16,
		RcUnitsPerStep: 16,
	},
}

func Get(name string) (Layout, error) {
	l, ok := registry[name]
	if !ok {
		return Layout{}, fmt.Errorf("layouts: unknown layout %q", name)
	}
	return l, nil
}

// NewBuiltinRunners instantiates, in the layout's fixed order, one runner
// per builtin slot.
func NewBuiltinRunners(l Layout) ([]builtins.BuiltinRunner, error) {
	runners := make([]builtins.BuiltinRunner, 0, len(l.Builtins))
	for _, spec := range l.Builtins {
		runner, err := newRunner(spec)
		if err != nil {
			return nil, err
		}
		runners = append(runners, runner)
	}
	return runners, nil
}

func newRunner(spec BuiltinSpec) (builtins.BuiltinRunner, error) {
	switch spec.Name {
	case builtins.OutputName:
		return builtins.NewOutputBuiltinRunner(), nil
	case builtins.PedersenName:
		return builtins.NewPedersenBuiltinRunner(spec.Ratio), nil
	case builtins.RangeCheckName:
		return builtins.NewRangeCheckBuiltinRunner(spec.Ratio), nil
	case builtins.BitwiseName:
		return builtins.NewBitwiseBuiltinRunner(spec.Ratio), nil
	case builtins.EcOpName:
		return builtins.NewEcOpBuiltinRunner(spec.Ratio), nil
	case builtins.KeccakName:
		return builtins.NewKeccakBuiltinRunner(spec.Ratio), nil
	case builtins.PoseidonName:
		return builtins.NewPoseidonBuiltinRunner(spec.Ratio), nil
	case builtins.SignatureName:
		return builtins.NewSignatureBuiltinRunner(spec.Ratio), nil
	case builtins.SegmentArenaName:
		return builtins.NewSegmentArenaBuiltinRunner(), nil
	default:
		return nil, fmt.Errorf("layouts: unknown builtin %q", spec.Name)
	}
}

// ByName looks up the slot order index of a builtin within a layout, or
// -1 if absent.
func ByName(l Layout, name string) int {
	for i, b := range l.Builtins {
		if b.Name == name {
			return i
		}
	}
	return -1
}

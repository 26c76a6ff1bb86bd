// Package publicinput assembles and serializes the structure a STARK
// prover and verifier consume: layout, range-check limits, step count,
// named segment ranges, and the public memory cells themselves (spec
// §4.12, §6 "Public input (JSON)").
package publicinput

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shardlabs/cairo-vm-go/pkg/vm"
	"github.com/shardlabs/cairo-vm-go/pkg/vm/memory"
)

var (
	ErrEmptyTrace    = errors.New("publicinput: relocated trace has fewer than 2 entries")
	ErrMemoryNotFound = errors.New("publicinput: no memory value at a listed public address")
)

// SegmentRange is the {begin_addr, stop_ptr} pair recorded per named
// memory segment.
type SegmentRange struct {
	BeginAddr uint64 `json:"begin_addr"`
	StopPtr   uint64 `json:"stop_ptr"`
}

// MemoryEntry is one public-memory cell: value is nil (serializing as
// JSON null) for an address with no recorded value.
type MemoryEntry struct {
	Address uint64  `json:"address"`
	Page    uint64  `json:"page"`
	Value   *string `json:"value"`
}

// PublicInput is the full structure handed to the prover (spec §4.12).
type PublicInput struct {
	Layout         string                  `json:"layout"`
	RcMin          int64                   `json:"rc_min"`
	RcMax          int64                   `json:"rc_max"`
	NSteps         uint64                  `json:"n_steps"`
	MemorySegments map[string]SegmentRange `json:"memory_segments"`
	PublicMemory   []MemoryEntry           `json:"public_memory"`
}

// SegmentAddress names one builtin's (begin_addr, stop_ptr) pair in the
// already-relocated flat address space.
type SegmentAddress struct {
	Name      string
	BeginAddr uint64
	StopPtr   uint64
}

// PublicAddress is one (address, page) pair the public-memory section
// should cover.
type PublicAddress struct {
	Address uint64
	Page    uint64
}

// Build assembles a PublicInput from a relocated run: the trace supplies
// the synthetic "program" and "execution" segment ranges (first/last pc,
// first/last ap); builtinSegments supplies one range per included
// builtin; publicAddrs lists every address the public-memory section
// should cover, reading its value out of flatMemory (spec §4.12).
func Build(
	layout string,
	rcMin, rcMax int64,
	relocatedTrace []vm.RelocatedTraceEntry,
	flatMemory []*memory.Felt,
	builtinSegments []SegmentAddress,
	publicAddrs []PublicAddress,
) (*PublicInput, error) {
	if len(relocatedTrace) < 2 {
		return nil, ErrEmptyTrace
	}

	first, last := relocatedTrace[0], relocatedTrace[len(relocatedTrace)-1]

	segments := map[string]SegmentRange{
		"program":   {BeginAddr: first.Pc, StopPtr: last.Pc},
		"execution": {BeginAddr: first.Ap, StopPtr: last.Ap},
	}
	for _, s := range builtinSegments {
		segments[s.Name] = SegmentRange{BeginAddr: s.BeginAddr, StopPtr: s.StopPtr}
	}

	entries := make([]MemoryEntry, len(publicAddrs))
	for i, pa := range publicAddrs {
		entry := MemoryEntry{Address: pa.Address, Page: pa.Page}
		if int(pa.Address) >= len(flatMemory) || flatMemory[pa.Address] == nil {
			return nil, fmt.Errorf("%w: address %d", ErrMemoryNotFound, pa.Address)
		}
		hex := flatMemory[pa.Address].Hex()
		entry.Value = &hex
		entries[i] = entry
	}

	return &PublicInput{
		Layout:         layout,
		RcMin:          rcMin,
		RcMax:          rcMax,
		NSteps:         uint64(len(relocatedTrace)),
		MemorySegments: segments,
		PublicMemory:   entries,
	}, nil
}

// Encode serializes a PublicInput to its documented JSON wire format.
func Encode(pi *PublicInput) ([]byte, error) {
	return json.MarshalIndent(pi, "", "  ")
}

// Decode parses the JSON wire format back into a PublicInput.
func Decode(raw []byte) (*PublicInput, error) {
	var pi PublicInput
	if err := json.Unmarshal(raw, &pi); err != nil {
		return nil, fmt.Errorf("publicinput: decoding json: %w", err)
	}
	return &pi, nil
}

package zero

import (
	"encoding/binary"

	"github.com/shardlabs/cairo-vm-go/pkg/vm"
	"github.com/shardlabs/cairo-vm-go/pkg/vm/memory"
)

// traceEntrySize is 3 little-endian uint64s: ap, fp, pc, in that order
// (spec §6 "trace file format").
const traceEntrySize = 3 * 8

// EncodeTrace serializes a relocated trace to the binary layout a STARK
// prover reads: one 24-byte (ap, fp, pc) record per step.
func EncodeTrace(trace []vm.RelocatedTraceEntry) []byte {
	content := make([]byte, 0, len(trace)*traceEntrySize)
	for _, e := range trace {
		content = binary.LittleEndian.AppendUint64(content, e.Ap)
		content = binary.LittleEndian.AppendUint64(content, e.Fp)
		content = binary.LittleEndian.AppendUint64(content, e.Pc)
	}
	return content
}

// DecodeTrace parses the binary trace format back into relocated entries.
func DecodeTrace(content []byte) []vm.RelocatedTraceEntry {
	trace := make([]vm.RelocatedTraceEntry, 0, len(content)/traceEntrySize)
	for i := 0; i < len(content); i += traceEntrySize {
		trace = append(trace, vm.RelocatedTraceEntry{
			Ap: binary.LittleEndian.Uint64(content[i : i+8]),
			Fp: binary.LittleEndian.Uint64(content[i+8 : i+16]),
			Pc: binary.LittleEndian.Uint64(content[i+16 : i+24]),
		})
	}
	return trace
}

const (
	addrSize = 8
	feltSize = 32
)

// EncodeMemory serializes the relocated, flat memory array as consecutive
// (8-byte little-endian address, 32-byte little-endian felt) records, one
// per non-nil cell. Index 0 is reserved and never emitted (spec §6 "memory
// file format").
func EncodeMemory(flat []*memory.Felt) []byte {
	nonNil := 0
	for _, c := range flat {
		if c != nil {
			nonNil++
		}
	}
	content := make([]byte, nonNil*(addrSize+feltSize))

	count := 0
	for i, c := range flat {
		if c == nil {
			continue
		}
		j := count * (addrSize + feltSize)
		binary.LittleEndian.PutUint64(content[j:j+addrSize], uint64(i))
		leBytes := c.LeBytes()
		copy(content[j+addrSize:j+addrSize+feltSize], leBytes[:])
		count++
	}
	return content
}

// DecodeMemory parses the binary memory format back into a flat, sparse
// felt array.
func DecodeMemory(content []byte) ([]*memory.Felt, error) {
	if len(content) == 0 {
		return nil, nil
	}
	lastRecord := len(content) - (addrSize + feltSize)
	lastIndex := binary.LittleEndian.Uint64(content[lastRecord : lastRecord+addrSize])

	flat := make([]*memory.Felt, lastIndex+1)
	for i := 0; i < len(content); i += addrSize + feltSize {
		index := binary.LittleEndian.Uint64(content[i : i+addrSize])
		var leBytes [32]byte
		copy(leBytes[:], content[i+addrSize:i+addrSize+feltSize])
		felt, err := memory.FeltFromLeBytes(&leBytes)
		if err != nil {
			return nil, err
		}
		flat[index] = &felt
	}
	return flat, nil
}

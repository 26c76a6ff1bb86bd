package vm

import (
	"errors"

	"github.com/shardlabs/cairo-vm-go/pkg/vm/memory"
)

var (
	ErrTraceNotEnabled       = errors.New("vm: trace not enabled")
	ErrTraceAlreadyRelocated = errors.New("vm: trace already relocated")
	ErrTraceNoRelocation     = errors.New("vm: no relocation table available to relocate trace")
)

// TraceEntry is one (pc, ap, fp) triple recorded before a step executes
// (spec §3 "Trace Entry").
type TraceEntry struct {
	Pc memory.Relocatable
	Ap memory.Relocatable
	Fp memory.Relocatable
}

// RelocatedTraceEntry is a TraceEntry after every field has been rewritten
// to a flat usize index (spec §4.8).
type RelocatedTraceEntry struct {
	Pc uint64
	Ap uint64
	Fp uint64
}

func relocateRelocatable(r memory.Relocatable, bases map[int]uint64) (uint64, error) {
	base, ok := bases[r.SegmentIndex]
	if !ok {
		return 0, ErrTraceNoRelocation
	}
	return base + r.Offset, nil
}

// RelocateTrace rewrites every trace entry's three relocatables into flat
// indices using bases (the segment relocation table from
// SegmentManager.RelocateSegments). Precondition: len(bases) >= 2 (spec
// §4.8).
func RelocateTrace(trace []TraceEntry, bases map[int]uint64) ([]RelocatedTraceEntry, error) {
	if len(bases) < 2 {
		return nil, ErrTraceNoRelocation
	}
	out := make([]RelocatedTraceEntry, len(trace))
	for i, e := range trace {
		pc, err := relocateRelocatable(e.Pc, bases)
		if err != nil {
			return nil, err
		}
		ap, err := relocateRelocatable(e.Ap, bases)
		if err != nil {
			return nil, err
		}
		fp, err := relocateRelocatable(e.Fp, bases)
		if err != nil {
			return nil, err
		}
		out[i] = RelocatedTraceEntry{Pc: pc, Ap: ap, Fp: fp}
	}
	return out, nil
}

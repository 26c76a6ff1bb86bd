package zero

import (
	"fmt"

	"github.com/shardlabs/cairo-vm-go/pkg/runners/publicinput"
	"github.com/shardlabs/cairo-vm-go/pkg/vm/memory"
)

// BuildPublicInput relocates memory and trace (if not already done) and
// assembles the prover-facing structure of spec §4.12: the program and
// execution segment ranges come from the relocated trace's first/last
// entries, one range per included builtin comes from its stop pointer,
// and the public-memory section covers every page recorded by
// FinalizeSegments.
func (r *ZeroRunner) BuildPublicInput() (*publicinput.PublicInput, error) {
	if !r.segmentsFinalized {
		return nil, ErrSegmentsNotFinal
	}

	flat, err := r.Vm.Relocate()
	if err != nil {
		return nil, err
	}
	bases, err := r.Vm.Segments.RelocateSegments()
	if err != nil {
		return nil, err
	}

	builtinSegments := make([]publicinput.SegmentAddress, 0, len(r.Vm.BuiltinRunners))
	for _, b := range r.Vm.BuiltinRunners {
		if !b.Included() {
			continue
		}
		name, base, stopPtr := b.MemorySegmentAddress()
		if stopPtr == nil {
			return nil, fmt.Errorf("zero: builtin %s has no stop pointer recorded", name)
		}
		flatBase, err := relocateAddr(base, bases)
		if err != nil {
			return nil, err
		}
		flatStop, err := relocateAddr(*stopPtr, bases)
		if err != nil {
			return nil, err
		}
		builtinSegments = append(builtinSegments, publicinput.SegmentAddress{
			Name:      name,
			BeginAddr: flatBase,
			StopPtr:   flatStop,
		})
	}

	publicAddrs := make([]publicinput.PublicAddress, 0, len(r.Program.Data))
	for _, page := range r.Vm.Segments.PublicMemoryOffsets(r.programBase.SegmentIndex) {
		addr, err := relocateAddr(memory.NewRelocatable(r.programBase.SegmentIndex, page.Offset), bases)
		if err != nil {
			return nil, err
		}
		publicAddrs = append(publicAddrs, publicinput.PublicAddress{Address: addr, Page: page.Page})
	}
	for _, page := range r.Vm.Segments.PublicMemoryOffsets(r.executionBase.SegmentIndex) {
		addr, err := relocateAddr(memory.NewRelocatable(r.executionBase.SegmentIndex, page.Offset), bases)
		if err != nil {
			return nil, err
		}
		publicAddrs = append(publicAddrs, publicinput.PublicAddress{Address: addr, Page: page.Page})
	}
	for _, b := range r.Vm.BuiltinRunners {
		if b.Name() != "output" {
			continue
		}
		for _, page := range r.Vm.Segments.PublicMemoryOffsets(b.Base().SegmentIndex) {
			addr, err := relocateAddr(memory.NewRelocatable(b.Base().SegmentIndex, page.Offset), bases)
			if err != nil {
				return nil, err
			}
			publicAddrs = append(publicAddrs, publicinput.PublicAddress{Address: addr, Page: page.Page})
		}
	}

	return publicinput.Build(r.Layout.Name, r.Vm.RcMin, r.Vm.RcMax, r.Vm.RelocatedTrace, flat, builtinSegments, publicAddrs)
}

func relocateAddr(r memory.Relocatable, bases map[int]uint64) (uint64, error) {
	base, ok := bases[r.SegmentIndex]
	if !ok {
		return 0, fmt.Errorf("zero: no relocation base for segment %d", r.SegmentIndex)
	}
	return base + r.Offset, nil
}

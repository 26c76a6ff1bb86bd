package vm

import (
	"testing"

	"github.com/shardlabs/cairo-vm-go/pkg/vm/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelocateTraceAppliesSegmentBases(t *testing.T) {
	trace := []TraceEntry{
		{Pc: memory.NewRelocatable(0, 0), Ap: memory.NewRelocatable(1, 2), Fp: memory.NewRelocatable(1, 2)},
		{Pc: memory.NewRelocatable(0, 1), Ap: memory.NewRelocatable(1, 3), Fp: memory.NewRelocatable(1, 2)},
	}
	bases := map[int]uint64{0: 1, 1: 10}

	relocated, err := RelocateTrace(trace, bases)
	require.NoError(t, err)
	require.Len(t, relocated, 2)

	assert.Equal(t, RelocatedTraceEntry{Pc: 1, Ap: 12, Fp: 12}, relocated[0])
	assert.Equal(t, RelocatedTraceEntry{Pc: 2, Ap: 13, Fp: 12}, relocated[1])
}

func TestRelocateTraceRejectsFewerThanTwoBases(t *testing.T) {
	trace := []TraceEntry{{Pc: memory.NewRelocatable(0, 0)}}
	_, err := RelocateTrace(trace, map[int]uint64{0: 1})
	assert.ErrorIs(t, err, ErrTraceNoRelocation)
}

func TestRelocateTraceRejectsUnknownSegment(t *testing.T) {
	trace := []TraceEntry{{Pc: memory.NewRelocatable(5, 0), Ap: memory.NewRelocatable(0, 0), Fp: memory.NewRelocatable(0, 0)}}
	bases := map[int]uint64{0: 1, 1: 10}

	_, err := RelocateTrace(trace, bases)
	assert.ErrorIs(t, err, ErrTraceNoRelocation)
}

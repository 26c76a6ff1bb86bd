package zero

import (
	"testing"

	"github.com/shardlabs/cairo-vm-go/pkg/vm"
	"github.com/shardlabs/cairo-vm-go/pkg/vm/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeTraceRoundTrip(t *testing.T) {
	trace := []vm.RelocatedTraceEntry{
		{Pc: 1, Ap: 2, Fp: 3},
		{Pc: 4, Ap: 5, Fp: 6},
	}
	encoded := EncodeTrace(trace)
	assert.Len(t, encoded, len(trace)*traceEntrySize)

	decoded := DecodeTrace(encoded)
	assert.Equal(t, trace, decoded)
}

func TestEncodeTraceByteOrderIsApFpPc(t *testing.T) {
	trace := []vm.RelocatedTraceEntry{{Pc: 0x03, Ap: 0x01, Fp: 0x02}}
	encoded := EncodeTrace(trace)
	require.Len(t, encoded, 24)
	assert.Equal(t, byte(0x01), encoded[0])
	assert.Equal(t, byte(0x02), encoded[8])
	assert.Equal(t, byte(0x03), encoded[16])
}

func TestEncodeDecodeMemoryRoundTrip(t *testing.T) {
	f1 := memory.FeltFromUint64(11)
	f2 := memory.FeltFromUint64(22)
	flat := []*memory.Felt{nil, &f1, nil, &f2}

	encoded := EncodeMemory(flat)
	decoded, err := DecodeMemory(encoded)
	require.NoError(t, err)

	require.Len(t, decoded, 4)
	assert.Nil(t, decoded[0])
	require.NotNil(t, decoded[1])
	assert.True(t, decoded[1].Equal(f1))
	assert.Nil(t, decoded[2])
	require.NotNil(t, decoded[3])
	assert.True(t, decoded[3].Equal(f2))
}

func TestDecodeMemoryEmptyContent(t *testing.T) {
	decoded, err := DecodeMemory(nil)
	require.NoError(t, err)
	assert.Nil(t, decoded)
}

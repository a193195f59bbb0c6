package boundary

import (
	"math"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffers_NullPointer(t *testing.T) {
	b, status := Bytes(nil, 0)
	assert.Equal(t, StatusOK, status)
	assert.Nil(t, b)

	_, status = Bytes(nil, 3)
	assert.Equal(t, StatusNullPointer, status)

	f, status := Float64s(nil, 0)
	assert.Equal(t, StatusOK, status)
	assert.Nil(t, f)

	_, status = Float64s(nil, 1)
	assert.Equal(t, StatusNullPointer, status)

	_, status = Int32s(nil, 2)
	assert.Equal(t, StatusNullPointer, status)
}

func TestBuffers_ViewsAliasCallerMemory(t *testing.T) {
	features := []float64{1, 2, 3}
	view, status := Float64s(unsafe.Pointer(&features[0]), 3)
	require.Equal(t, StatusOK, status)
	assert.Equal(t, features, view)

	labels := make([]int32, 2)
	out, status := Int32s(unsafe.Pointer(&labels[0]), 2)
	require.Equal(t, StatusOK, status)
	out[1] = 7
	assert.Equal(t, int32(7), labels[1])
}

func TestBuffers_BytesCopies(t *testing.T) {
	text := []byte("svm_type c_svc\n")
	buf, status := Bytes(unsafe.Pointer(&text[0]), uint64(len(text)))
	require.Equal(t, StatusOK, status)

	text[0] = 'x'
	assert.Equal(t, "svm_type c_svc\n", string(buf))

	empty, status := Bytes(unsafe.Pointer(&text[0]), 0)
	require.Equal(t, StatusOK, status)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestBuffers_OversizedCountsAreRejected(t *testing.T) {
	var one [1]float64
	p := unsafe.Pointer(&one[0])

	tests := []struct {
		name string
		call func() Status
	}{
		{"bytes max uint64", func() Status { _, s := Bytes(p, math.MaxUint64); return s }},
		{"bytes past 2^48", func() Status { _, s := Bytes(p, 1<<48); return s }},
		{"doubles max uint64", func() Status { _, s := Float64s(p, math.MaxUint64); return s }},
		{"doubles past max int", func() Status { _, s := Float64s(p, uint64(maxInt)+1); return s }},
		{"doubles past 2^45", func() Status { _, s := Float64s(p, 1<<45); return s }},
		{"int32s max uint64", func() Status { _, s := Int32s(p, math.MaxUint64); return s }},
		{"int32s past 2^46", func() Status { _, s := Int32s(p, 1<<46); return s }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var status Status
			require.NotPanics(t, func() { status = tt.call() })
			assert.Equal(t, StatusInvalidArgument, status)
		})
	}
}

package boundary

import (
	"unsafe"
)

// Caller buffers arrive as a pointer and a 64-bit element count. The views
// below reject counts a Go slice of that element type cannot address instead
// of faulting, and a null pointer is only accepted for an empty buffer.

// Bytes copies n bytes at p into Go memory
func Bytes(p unsafe.Pointer, n uint64) ([]byte, Status) {
	src, status := view[byte](p, n)
	if status != StatusOK || p == nil {
		return nil, status
	}
	buf := make([]byte, len(src))
	copy(buf, src)
	return buf, StatusOK
}

// Float64s views n doubles at p without copying
func Float64s(p unsafe.Pointer, n uint64) ([]float64, Status) {
	return view[float64](p, n)
}

// Int32s views n int32 values at p without copying
func Int32s(p unsafe.Pointer, n uint64) ([]int32, Status) {
	return view[int32](p, n)
}

func view[T any](p unsafe.Pointer, n uint64) ([]T, Status) {
	if p == nil {
		if n != 0 {
			return nil, StatusNullPointer
		}
		return nil, StatusOK
	}

	var zero T
	if n > maxBufferBytes()/uint64(unsafe.Sizeof(zero)) {
		return nil, StatusInvalidArgument
	}
	return unsafe.Slice((*T)(p), int(n)), StatusOK
}

// maxBufferBytes is the largest caller buffer a slice may view. The runtime
// refuses slices past 1<<47 bytes on 64-bit targets.
func maxBufferBytes() uint64 {
	return min(uint64(maxInt), 1<<47)
}

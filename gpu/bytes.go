package gpu

import "unsafe"

// Float32Bytes returns a byte view of f sharing its memory.
func Float32Bytes(f []float32) []byte {
	if len(f) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&f[0])), len(f)*4)
}

// BytesFloat32 returns a float32 view of b sharing its memory. Trailing
// bytes that do not form a whole float are ignored.
func BytesFloat32(b []byte) []float32 {
	if len(b) < 4 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/4)
}

// Uint32Bytes returns a byte view of u sharing its memory.
func Uint32Bytes(u []uint32) []byte {
	if len(u) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&u[0])), len(u)*4)
}

// BytesUint32 returns a uint32 view of b sharing its memory.
func BytesUint32(b []byte) []uint32 {
	if len(b) < 4 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), len(b)/4)
}

// HostMemory is implemented by buffers whose storage is addressable from
// the host. Host kernels use it to reach their bindings.
type HostMemory interface {
	Bytes() []byte
}

// HostFloat32 returns the float32 view of a host-addressable buffer, or nil.
func HostFloat32(b Buffer) []float32 {
	if hm, ok := b.(HostMemory); ok {
		return BytesFloat32(hm.Bytes())
	}
	return nil
}

// HostUint32 returns the uint32 view of a host-addressable buffer, or nil.
func HostUint32(b Buffer) []uint32 {
	if hm, ok := b.(HostMemory); ok {
		return BytesUint32(hm.Bytes())
	}
	return nil
}

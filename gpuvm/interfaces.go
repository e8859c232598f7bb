package gpuvm

import "unsafe"

//go:generate mockgen -source interfaces.go -destination mocks/mocks.go -package mock_gpuvm

// GPUVAddr is an address in the emulated GPU virtual address space.
type GPUVAddr uint64

// VAddr is an address in the guest CPU virtual address space. Mapped GPU
// pages record the VAddr of the memory backing them.
type VAddr uint64

// CacheAddr is the tag the rasterizer keys its caches with. It is derived
// from a host pointer; only equality and contiguity are meaningful.
type CacheAddr uintptr

// ToCacheAddr projects a host pointer into the rasterizer's cache key space.
func ToCacheAddr(ptr unsafe.Pointer) CacheAddr {
	return CacheAddr(uintptr(ptr))
}

// MemoryBus resolves guest CPU addresses to host memory. Pointers returned
// from GetPointer are borrowed: the bus owns the memory behind them and must
// keep it alive for as long as any mapping referencing it exists.
type MemoryBus interface {
	GetPointer(addr VAddr) unsafe.Pointer
}

// Rasterizer receives the cache-coherence callouts issued around guest
// memory traffic. All three calls are synchronous by contract: even when the
// backend runs GPU work asynchronously, the effect must have fully retired
// by the time the call returns.
type Rasterizer interface {
	FlushRegion(addr CacheAddr, size int)
	InvalidateRegion(addr CacheAddr, size int)
	FlushAndInvalidateRegion(addr CacheAddr, size int)
}

// DeviceMapper toggles the kernel-side DeviceMapped attribute on guest CPU
// memory as GPU mappings over it come and go. A non-nil error return is
// treated as a caller bug and panics.
type DeviceMapper interface {
	SetDeviceMapped(addr VAddr, size uint64, mapped bool) error
}

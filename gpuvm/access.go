package gpuvm

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// Scalar constrains the fixed-width integers the typed hot path operates on.
type Scalar interface {
	uint8 | uint16 | uint32 | uint64
}

// scalarSize returns sizeof(T). unsafe.Sizeof cannot take a type-parameter
// operand, so the widths are enumerated; the switch collapses to a constant
// per instantiation.
func scalarSize[T Scalar](value T) uintptr {
	switch any(value).(type) {
	case uint8:
		return 1
	case uint16:
		return 2
	case uint32:
		return 4
	default:
		return 8
	}
}

// Read loads a value of type T from addr. The value must not straddle a page
// boundary; use ReadBlock for boundary-safe reads. Reads from unmapped pages
// return zero and bump the access fault counter. No rasterizer
// synchronization happens here: callers must know the range is not cached.
func Read[T Scalar](m *MemoryManager, addr GPUVAddr) T {
	if !m.IsAddressValid(addr) {
		return 0
	}

	var value T
	size := scalarSize(value)

	if pagePointer := m.pageTable.pointers[addr>>pageBits]; pagePointer != nil {
		// NOTE: avoid adding any extra logic to this fast path
		src := unsafe.Slice((*byte)(unsafe.Add(pagePointer, addr&pageMask)), size)
		copy(unsafe.Slice((*byte)(unsafe.Pointer(&value)), size), src)
		return value
	}

	switch m.pageTable.attributes[addr>>pageBits] {
	case PageUnmapped:
		m.accessFaultCount++
		m.logger.Error("Unmapped GPU read",
			slog.Int("Bits", int(size)*8),
			slog.Uint64("GPUVAddr", uint64(addr)))
		return 0
	case PageMemory:
		panic(errors.AssertionFailedf("mapped memory page without a pointer at 0x%016x", uint64(addr)))
	}
	return 0
}

// Write stores value at addr. The value must not straddle a page boundary;
// use WriteBlock for boundary-safe writes. Writes to unmapped pages are
// dropped and bump the access fault counter. No rasterizer synchronization
// happens here: callers must know the range is not cached.
func Write[T Scalar](m *MemoryManager, addr GPUVAddr, value T) {
	if !m.IsAddressValid(addr) {
		return
	}

	size := scalarSize(value)

	if pagePointer := m.pageTable.pointers[addr>>pageBits]; pagePointer != nil {
		// NOTE: avoid adding any extra logic to this fast path
		dest := unsafe.Slice((*byte)(unsafe.Add(pagePointer, addr&pageMask)), size)
		copy(dest, unsafe.Slice((*byte)(unsafe.Pointer(&value)), size))
		return
	}

	switch m.pageTable.attributes[addr>>pageBits] {
	case PageUnmapped:
		m.accessFaultCount++
		m.logger.Error("Unmapped GPU write",
			slog.Int("Bits", int(size)*8),
			slog.Uint64("Value", uint64(value)),
			slog.Uint64("GPUVAddr", uint64(addr)))
	case PageMemory:
		panic(errors.AssertionFailedf("mapped memory page without a pointer at 0x%016x", uint64(addr)))
	}
}

// GetPointer returns the borrowed host pointer for addr, or nil when the
// page is unmapped. Misses are logged once per page and counted.
func (m *MemoryManager) GetPointer(addr GPUVAddr) unsafe.Pointer {
	if !m.IsAddressValid(addr) {
		return nil
	}

	if pagePointer := m.pageTable.pointers[addr>>pageBits]; pagePointer != nil {
		return unsafe.Add(pagePointer, addr&pageMask)
	}

	m.accessFaultCount++
	page := uint64(addr) >> pageBits
	if _, reported := m.reportedPages.Get(page); !reported {
		m.reportedPages.Put(page, struct{}{})
		m.logger.Error("Unknown GetPointer", slog.Uint64("GPUVAddr", uint64(addr)))
	}
	return nil
}

// AccessFaultCount returns the number of neutralized accesses to unmapped
// pages since construction. Accesses to addresses outside the address space
// are neutralized as well but are neither counted nor logged.
func (m *MemoryManager) AccessFaultCount() uint64 {
	return m.accessFaultCount
}

package gpuvm

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slices"
)

// ReadBlock copies len(dest) bytes starting at src into dest, walking pages.
// Every touched page is flushed through the rasterizer first so that reads
// observe all retired GPU writes, even under an asynchronous backend. The
// whole range must be mapped.
func (m *MemoryManager) ReadBlock(src GPUVAddr, dest []byte) {
	remaining := len(dest)
	pageIndex := uint64(src) >> pageBits
	pageOffset := int(src & pageMask)

	for remaining > 0 {
		copyAmount := min(PageSize-pageOffset, remaining)

		switch m.pageTable.attributes[pageIndex] {
		case PageMemory:
			srcPtr := unsafe.Add(m.pageTable.pointers[pageIndex], pageOffset)
			m.rasterizer.FlushRegion(ToCacheAddr(srcPtr), copyAmount)
			copy(dest[:copyAmount], unsafe.Slice((*byte)(srcPtr), copyAmount))
		default:
			panic(errors.AssertionFailedf("block read from unmapped page at 0x%016x", pageIndex<<pageBits))
		}

		pageIndex++
		pageOffset = 0
		dest = dest[copyAmount:]
		remaining -= copyAmount
	}
}

// ReadBlockUnsafe is ReadBlock without rasterizer callouts. Unmapped pages
// zero-fill the destination instead of faulting. Callers must have
// established cache ordering externally.
func (m *MemoryManager) ReadBlockUnsafe(src GPUVAddr, dest []byte) {
	remaining := len(dest)
	pageIndex := uint64(src) >> pageBits
	pageOffset := int(src & pageMask)

	for remaining > 0 {
		copyAmount := min(PageSize-pageOffset, remaining)

		if pagePointer := m.pageTable.pointers[pageIndex]; pagePointer != nil {
			srcPtr := unsafe.Add(pagePointer, pageOffset)
			copy(dest[:copyAmount], unsafe.Slice((*byte)(srcPtr), copyAmount))
		} else {
			clear(dest[:copyAmount])
		}

		pageIndex++
		pageOffset = 0
		dest = dest[copyAmount:]
		remaining -= copyAmount
	}
}

// WriteBlock copies src into guest memory starting at dest, walking pages.
// Every touched page is invalidated through the rasterizer first so that
// stale cached interpretations are discarded before the bytes land. The
// whole range must be mapped.
func (m *MemoryManager) WriteBlock(dest GPUVAddr, src []byte) {
	remaining := len(src)
	pageIndex := uint64(dest) >> pageBits
	pageOffset := int(dest & pageMask)

	for remaining > 0 {
		copyAmount := min(PageSize-pageOffset, remaining)

		switch m.pageTable.attributes[pageIndex] {
		case PageMemory:
			destPtr := unsafe.Add(m.pageTable.pointers[pageIndex], pageOffset)
			m.rasterizer.InvalidateRegion(ToCacheAddr(destPtr), copyAmount)
			copy(unsafe.Slice((*byte)(destPtr), copyAmount), src[:copyAmount])
		default:
			panic(errors.AssertionFailedf("block write to unmapped page at 0x%016x", pageIndex<<pageBits))
		}

		pageIndex++
		pageOffset = 0
		src = src[copyAmount:]
		remaining -= copyAmount
	}
}

// WriteBlockUnsafe is WriteBlock without rasterizer callouts. Writes landing
// on unmapped pages are skipped. Callers must have established cache
// ordering externally.
func (m *MemoryManager) WriteBlockUnsafe(dest GPUVAddr, src []byte) {
	remaining := len(src)
	pageIndex := uint64(dest) >> pageBits
	pageOffset := int(dest & pageMask)

	for remaining > 0 {
		copyAmount := min(PageSize-pageOffset, remaining)

		if pagePointer := m.pageTable.pointers[pageIndex]; pagePointer != nil {
			destPtr := unsafe.Add(pagePointer, pageOffset)
			copy(unsafe.Slice((*byte)(destPtr), copyAmount), src[:copyAmount])
		}

		pageIndex++
		pageOffset = 0
		src = src[copyAmount:]
		remaining -= copyAmount
	}
}

// CopyBlock copies size bytes from src to dest inside guest memory. Source
// pages are flushed before reading and the write side invalidates through
// WriteBlock, so the copy is coherent with the rasterizer caches. Both
// ranges must be mapped.
func (m *MemoryManager) CopyBlock(dest GPUVAddr, src GPUVAddr, size int) {
	remaining := size
	pageIndex := uint64(src) >> pageBits
	pageOffset := int(src & pageMask)

	for remaining > 0 {
		copyAmount := min(PageSize-pageOffset, remaining)

		switch m.pageTable.attributes[pageIndex] {
		case PageMemory:
			srcPtr := unsafe.Add(m.pageTable.pointers[pageIndex], pageOffset)
			m.rasterizer.FlushRegion(ToCacheAddr(srcPtr), copyAmount)
			m.WriteBlock(dest, unsafe.Slice((*byte)(srcPtr), copyAmount))
		default:
			panic(errors.AssertionFailedf("block copy from unmapped page at 0x%016x", pageIndex<<pageBits))
		}

		pageIndex++
		pageOffset = 0
		dest += GPUVAddr(copyAmount)
		remaining -= copyAmount
	}
}

// CopyBlockUnsafe copies size bytes from src to dest with no rasterizer
// callouts, buffering through a scratch vector so sparse and overlapping
// ranges behave like a read followed by a write.
func (m *MemoryManager) CopyBlockUnsafe(dest GPUVAddr, src GPUVAddr, size int) {
	m.copyScratch = slices.Grow(m.copyScratch[:0], size)
	scratch := m.copyScratch[:size]

	m.ReadBlockUnsafe(src, scratch)
	m.WriteBlockUnsafe(dest, scratch)
}

// IsBlockContinuous reports whether [start, start+size) maps to one
// contiguous host range, letting callers elide scatter copies.
func (m *MemoryManager) IsBlockContinuous(start GPUVAddr, size int) bool {
	innerSize := size - 1
	end := start + GPUVAddr(innerSize)
	hostStart := uintptr(m.GetPointer(start))
	hostEnd := uintptr(m.GetPointer(end))
	return hostEnd-hostStart == uintptr(innerSize)
}

// Package gpuvm implements the guest GPU memory manager: a software-managed
// 40-bit GPU address space that mediates between guest mapping requests and
// the host memory owned by the emulator's memory bus.
//
// The manager keeps two views of the address space that are always bit-exact
// with each other: an ordered map of virtual memory areas, and a flat
// per-page table the hot read/write path indexes directly. Cache-coherence
// callouts to the rasterizer make guest-visible memory appear synchronous
// even under an asynchronous GPU backend.
//
// All operations run on the GPU command-processing thread; the manager
// carries no internal locking.
package gpuvm

import (
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/tbeck1/yuzu/memutils"
	"golang.org/x/exp/slog"
)

// ErrAddressSpaceExhausted is returned when no free region large enough for
// the requested size exists.
var ErrAddressSpaceExhausted = errors.New("gpu address space exhausted")

// MemoryManager owns the GPU virtual address space of one emulated GPU
// channel.
type MemoryManager struct {
	logger       *slog.Logger
	bus          MemoryBus
	rasterizer   Rasterizer
	deviceMapper DeviceMapper

	vmas      *vmaMap
	pageTable *pageTable

	accessFaultCount uint64
	reportedPages    *swiss.Map[uint64, struct{}]
	copyScratch      []byte
}

// NewMemoryManager creates a manager whose address space consists of a
// single free region. A nil logger falls back to slog.Default.
func NewMemoryManager(bus MemoryBus, rasterizer Rasterizer, deviceMapper DeviceMapper, logger *slog.Logger) *MemoryManager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &MemoryManager{
		logger:        logger,
		bus:           bus,
		rasterizer:    rasterizer,
		deviceMapper:  deviceMapper,
		vmas:          newVMAMap(),
		pageTable:     newPageTable(),
		reportedPages: swiss.NewMap[uint64, struct{}](42),
	}

	initial := &VirtualMemoryArea{
		Base: addressSpaceBase,
		Size: uint64(addressSpaceEnd),
		Type: VMAUnmapped,
	}
	m.vmas.insert(initial)
	// The zero-valued page table is already the projection of a fully
	// unmapped address space; writing it out would dirty every page of the
	// three flat slices.

	return m
}

// AllocateSpace reserves size bytes (rounded up to page granularity) at the
// lowest free address and returns it.
func (m *MemoryManager) AllocateSpace(size uint64) (GPUVAddr, error) {
	alignedSize := memutils.AlignUp(size, PageSize)

	gpuAddr, err := m.FindFreeRegion(addressSpaceBase, alignedSize)
	if err != nil {
		return 0, err
	}

	m.allocateMemory(gpuAddr, 0, alignedSize)
	memutils.DebugValidate(m)

	return gpuAddr, nil
}

// AllocateSpaceAt reserves size bytes (rounded up to page granularity) at
// gpuAddr. Reserving over an existing mapping is a no-op; re-reserving an
// Allocated range is idempotent.
func (m *MemoryManager) AllocateSpaceAt(gpuAddr GPUVAddr, size uint64) GPUVAddr {
	checkPageAligned(uint64(gpuAddr), "gpu address")
	alignedSize := memutils.AlignUp(size, PageSize)

	m.allocateMemory(gpuAddr, 0, alignedSize)
	memutils.DebugValidate(m)

	return gpuAddr
}

// MapBuffer maps size bytes of guest CPU memory at cpuAddr into the lowest
// free GPU region and returns its address. The kernel DeviceMapped attribute
// is raised over the CPU range.
func (m *MemoryManager) MapBuffer(cpuAddr VAddr, size uint64) (GPUVAddr, error) {
	alignedSize := memutils.AlignUp(size, PageSize)

	gpuAddr, err := m.FindFreeRegion(addressSpaceBase, alignedSize)
	if err != nil {
		return 0, err
	}

	m.mapBackingMemory(gpuAddr, m.bus.GetPointer(cpuAddr), alignedSize, cpuAddr)
	m.setDeviceMapped(cpuAddr, size, true)
	memutils.DebugValidate(m)

	return gpuAddr, nil
}

// MapBufferAt maps size bytes of guest CPU memory at cpuAddr onto the fixed
// GPU address gpuAddr. Mapping over a range that is already Mapped leaves the
// live mapping in place, even when the extents differ; guests re-issue
// mappings over live buffers and rely on this. The kernel DeviceMapped
// attribute is still raised over the new CPU range in that case.
func (m *MemoryManager) MapBufferAt(cpuAddr VAddr, gpuAddr GPUVAddr, size uint64) GPUVAddr {
	checkPageAligned(uint64(gpuAddr), "gpu address")
	alignedSize := memutils.AlignUp(size, PageSize)

	m.mapBackingMemory(gpuAddr, m.bus.GetPointer(cpuAddr), alignedSize, cpuAddr)
	m.setDeviceMapped(cpuAddr, size, true)
	memutils.DebugValidate(m)

	return gpuAddr
}

// UnmapBuffer removes the mapping at [gpuAddr, gpuAddr+size). The range
// stays Allocated so later re-maps at the same GPU address keep working.
// The rasterizer flushes and invalidates the host region first, and the
// kernel DeviceMapped attribute is dropped on the CPU side.
func (m *MemoryManager) UnmapBuffer(gpuAddr GPUVAddr, size uint64) GPUVAddr {
	checkPageAligned(uint64(gpuAddr), "gpu address")
	alignedSize := memutils.AlignUp(size, PageSize)

	cacheAddr := ToCacheAddr(m.GetPointer(gpuAddr))
	cpuAddr, ok := m.GpuToCpuAddress(gpuAddr)
	if !ok {
		panic(errors.AssertionFailedf("unmapping 0x%016x which has no backing address", uint64(gpuAddr)))
	}

	m.rasterizer.FlushAndInvalidateRegion(cacheAddr, int(alignedSize))

	m.unmapRange(gpuAddr, alignedSize)
	m.setDeviceMapped(cpuAddr, size, false)
	memutils.DebugValidate(m)

	return gpuAddr
}

// FindFreeRegion returns the lowest address at or above regionStart where a
// free region of size bytes fits. The chosen address honors a regionStart
// that lands inside a free area.
func (m *MemoryManager) FindFreeRegion(regionStart GPUVAddr, size uint64) (GPUVAddr, error) {
	var (
		result GPUVAddr
		found  bool
	)

	m.vmas.ascend(func(vma *VirtualMemoryArea) bool {
		if vma.Type != VMAUnmapped {
			return true
		}

		candidate := max(regionStart, vma.Base)
		if candidate+GPUVAddr(size) <= vma.End() {
			result = candidate
			found = true
			return false
		}
		return true
	})

	if !found {
		return 0, errors.Wrapf(ErrAddressSpaceExhausted, "no free region of 0x%x bytes at or above 0x%016x", size, uint64(regionStart))
	}
	return result, nil
}

// GpuToCpuAddress translates a GPU address to the guest CPU address backing
// it. The second return is false when the page has no backing address.
func (m *MemoryManager) GpuToCpuAddress(addr GPUVAddr) (VAddr, bool) {
	if !m.IsAddressValid(addr) {
		return 0, false
	}

	cpuAddr := m.pageTable.backingAddrs[addr>>pageBits]
	if cpuAddr == 0 {
		return 0, false
	}

	return cpuAddr + VAddr(addr&pageMask), true
}

// IsAddressValid reports whether addr falls inside the managed address
// space.
func (m *MemoryManager) IsAddressValid(addr GPUVAddr) bool {
	return (addr >> pageBits) < numPages
}

func (m *MemoryManager) setDeviceMapped(cpuAddr VAddr, size uint64, mapped bool) {
	if err := m.deviceMapper.SetDeviceMapped(cpuAddr, size, mapped); err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "kernel rejected DeviceMapped=%t over 0x%016x+0x%x", mapped, uint64(cpuAddr), size))
	}
}

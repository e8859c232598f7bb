package gpuvm

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/google/btree"
)

// VMAType describes the state of a virtual memory area.
type VMAType uint32

const (
	// VMAUnmapped regions are free; FindFreeRegion may hand them out.
	VMAUnmapped VMAType = iota
	// VMAAllocated regions are reserved in the GPU address space but have no
	// host memory behind them yet.
	VMAAllocated
	// VMAMapped regions are backed by host memory at a known pointer and a
	// known guest CPU address.
	VMAMapped
)

var vmaTypeMapping = map[VMAType]string{
	VMAUnmapped:  "Unmapped",
	VMAAllocated: "Allocated",
	VMAMapped:    "Mapped",
}

func (t VMAType) String() string {
	return vmaTypeMapping[t]
}

// VirtualMemoryArea is a maximal contiguous interval of the GPU address
// space with uniform state. The map of VMAs tiles the whole address space
// with no gaps and no overlap, and no two adjacent VMAs are mergeable.
//
// Pointers returned from lookups are owned by the manager and stay valid
// only until the next mutating operation.
type VirtualMemoryArea struct {
	Base GPUVAddr
	Size uint64
	Type VMAType

	// Offset into the logical allocation this VMA was carved from. Only
	// meaningful for Allocated areas; it keeps split halves mergeable.
	Offset uint64

	// BackingMemory is the borrowed host pointer to the first byte of this
	// area. Only set for Mapped areas.
	BackingMemory unsafe.Pointer

	// BackingAddr is the guest CPU address of the first byte of this area.
	// Only set for Mapped areas.
	BackingAddr VAddr
}

// End returns the first address past the area.
func (vma *VirtualMemoryArea) End() GPUVAddr {
	return vma.Base + GPUVAddr(vma.Size)
}

// Contains reports whether addr falls inside the area.
func (vma *VirtualMemoryArea) Contains(addr GPUVAddr) bool {
	return addr >= vma.Base && addr < vma.End()
}

// CanBeMergedWith reports whether next can be absorbed into this area
// without changing any observable mapping state. next must be the area
// immediately following this one.
func (vma *VirtualMemoryArea) CanBeMergedWith(next *VirtualMemoryArea) bool {
	if vma.End() != next.Base {
		panic(errors.AssertionFailedf("merge test on non-adjacent areas: 0x%x+0x%x vs 0x%x", uint64(vma.Base), vma.Size, uint64(next.Base)))
	}
	if vma.Type != next.Type {
		return false
	}
	if vma.Type == VMAAllocated && vma.Offset+vma.Size != next.Offset {
		return false
	}
	if vma.Type == VMAMapped && unsafe.Add(vma.BackingMemory, vma.Size) != next.BackingMemory {
		return false
	}
	return true
}

// vmaMap is the ordered interval map, keyed by VMA base address.
type vmaMap struct {
	tree *btree.BTreeG[*VirtualMemoryArea]
}

func newVMAMap() *vmaMap {
	return &vmaMap{
		tree: btree.NewG[*VirtualMemoryArea](16, func(a, b *VirtualMemoryArea) bool {
			return a.Base < b.Base
		}),
	}
}

func (m *vmaMap) insert(vma *VirtualMemoryArea) {
	if _, present := m.tree.ReplaceOrInsert(vma); present {
		panic(errors.AssertionFailedf("duplicate VMA base 0x%x", uint64(vma.Base)))
	}
}

func (m *vmaMap) remove(vma *VirtualMemoryArea) {
	if _, present := m.tree.Delete(vma); !present {
		panic(errors.AssertionFailedf("removing absent VMA base 0x%x", uint64(vma.Base)))
	}
}

// containing returns the area with the greatest base not above addr.
func (m *vmaMap) containing(addr GPUVAddr) *VirtualMemoryArea {
	var result *VirtualMemoryArea
	m.tree.DescendLessOrEqual(&VirtualMemoryArea{Base: addr}, func(vma *VirtualMemoryArea) bool {
		result = vma
		return false
	})
	return result
}

func (m *vmaMap) next(vma *VirtualMemoryArea) *VirtualMemoryArea {
	var result *VirtualMemoryArea
	m.tree.AscendGreaterOrEqual(&VirtualMemoryArea{Base: vma.Base + 1}, func(item *VirtualMemoryArea) bool {
		result = item
		return false
	})
	return result
}

func (m *vmaMap) prev(vma *VirtualMemoryArea) *VirtualMemoryArea {
	if vma.Base == 0 {
		return nil
	}
	var result *VirtualMemoryArea
	m.tree.DescendLessOrEqual(&VirtualMemoryArea{Base: vma.Base - 1}, func(item *VirtualMemoryArea) bool {
		result = item
		return false
	})
	return result
}

func (m *vmaMap) ascend(visit func(vma *VirtualMemoryArea) bool) {
	m.tree.Ascend(visit)
}

func (m *vmaMap) len() int {
	return m.tree.Len()
}

// FindVMA returns the unique area containing target, or nil when target is
// outside the managed address space.
func (m *MemoryManager) FindVMA(target GPUVAddr) *VirtualMemoryArea {
	if target >= addressSpaceEnd {
		return nil
	}
	return m.vmas.containing(target)
}

// splitVMA cuts vma at offsetInVMA, inserts the right half as a new area and
// returns it. The two halves stay merge-compatible.
func (m *MemoryManager) splitVMA(vma *VirtualMemoryArea, offsetInVMA uint64) *VirtualMemoryArea {
	if offsetInVMA == 0 || offsetInVMA >= vma.Size {
		panic(errors.AssertionFailedf("bad split offset 0x%x in VMA of size 0x%x", offsetInVMA, vma.Size))
	}

	newVMA := *vma
	vma.Size = offsetInVMA
	newVMA.Base += GPUVAddr(offsetInVMA)
	newVMA.Size -= offsetInVMA

	switch newVMA.Type {
	case VMAUnmapped:
	case VMAAllocated:
		newVMA.Offset += offsetInVMA
	case VMAMapped:
		newVMA.BackingMemory = unsafe.Add(newVMA.BackingMemory, offsetInVMA)
		newVMA.BackingAddr += VAddr(offsetInVMA)
	}

	if !vma.CanBeMergedWith(&newVMA) {
		panic(errors.AssertionFailedf("split halves at 0x%x are not merge-compatible", uint64(vma.Base)))
	}

	m.vmas.insert(&newVMA)
	return &newVMA
}

// mergeAdjacent absorbs the successor and predecessor of vma when they carry
// the same state. Merging never cascades further because the map was
// canonical before the mutation that produced vma.
func (m *MemoryManager) mergeAdjacent(vma *VirtualMemoryArea) *VirtualMemoryArea {
	if next := m.vmas.next(vma); next != nil && vma.CanBeMergedWith(next) {
		vma.Size += next.Size
		m.vmas.remove(next)
	}

	if prev := m.vmas.prev(vma); prev != nil && prev.CanBeMergedWith(vma) {
		prev.Size += vma.Size
		m.vmas.remove(vma)
		vma = prev
	}

	return vma
}

// carveVMA cuts the area [base, base+size) out of the enclosing VMA and
// returns it. When the enclosing VMA is already Mapped it is returned
// unchanged: guests re-allocate over live mappings and expect a no-op.
func (m *MemoryManager) carveVMA(base GPUVAddr, size uint64) *VirtualMemoryArea {
	checkPageAligned(uint64(base), "base")
	checkPageAligned(size, "size")
	checkRange(base, size)

	vma := m.FindVMA(base)
	if vma == nil {
		panic(errors.AssertionFailedf("carve outside the managed range: 0x%x", uint64(base)))
	}

	if vma.Type == VMAMapped {
		return vma
	}

	startInVMA := uint64(base - vma.Base)
	endInVMA := startInVMA + size
	if endInVMA > vma.Size {
		panic(errors.AssertionFailedf("carve of 0x%x bytes at 0x%x exceeds the enclosing VMA of size 0x%x", size, uint64(base), vma.Size))
	}

	if endInVMA < vma.Size {
		m.splitVMA(vma, endInVMA)
	}
	if startInVMA != 0 {
		vma = m.splitVMA(vma, startInVMA)
	}

	return vma
}

// carveVMARange splits at target and target+size so the covered areas align
// exactly with the range, and returns the first of them. Returns nil when
// any covered area is Unmapped.
func (m *MemoryManager) carveVMARange(target GPUVAddr, size uint64) *VirtualMemoryArea {
	checkPageAligned(uint64(target), "target")
	checkPageAligned(size, "size")
	checkRange(target, size)

	targetEnd := target + GPUVAddr(size)

	for vma := m.vmas.containing(target); vma != nil && vma.Base < targetEnd; vma = m.vmas.next(vma) {
		if vma.Type == VMAUnmapped {
			return nil
		}
	}

	beginVMA := m.vmas.containing(target)
	if target != beginVMA.Base {
		beginVMA = m.splitVMA(beginVMA, uint64(target-beginVMA.Base))
	}

	if targetEnd < addressSpaceEnd {
		endVMA := m.vmas.containing(targetEnd)
		if targetEnd != endVMA.Base {
			m.splitVMA(endVMA, uint64(targetEnd-endVMA.Base))
		}
	}

	return beginVMA
}

// allocate transitions vma to the Allocated state, drops its backing and
// re-establishes the canonical form around it.
func (m *MemoryManager) allocate(vma *VirtualMemoryArea) *VirtualMemoryArea {
	vma.Type = VMAAllocated
	vma.BackingAddr = 0
	vma.BackingMemory = nil
	m.updatePageTableForVMA(vma)

	return m.mergeAdjacent(vma)
}

// allocateMemory reserves [target, target+size) in the address space.
// Allocating over an existing mapping is a no-op returning the live VMA.
func (m *MemoryManager) allocateMemory(target GPUVAddr, offset uint64, size uint64) *VirtualMemoryArea {
	vma := m.carveVMA(target, size)
	if vma.Type == VMAMapped {
		return vma
	}

	if vma.Size != size {
		panic(errors.AssertionFailedf("carved VMA size 0x%x does not match requested size 0x%x", vma.Size, size))
	}

	vma.Offset = offset
	return m.allocate(vma)
}

// mapBackingMemory backs [target, target+size) with host memory. Mapping
// over an existing mapping is a no-op returning the live VMA.
func (m *MemoryManager) mapBackingMemory(target GPUVAddr, memory unsafe.Pointer, size uint64, backingAddr VAddr) *VirtualMemoryArea {
	vma := m.carveVMA(target, size)
	if vma.Type == VMAMapped {
		return vma
	}

	if vma.Size != size {
		panic(errors.AssertionFailedf("carved VMA size 0x%x does not match requested size 0x%x", vma.Size, size))
	}

	vma.Type = VMAMapped
	vma.BackingMemory = memory
	vma.BackingAddr = backingAddr
	m.updatePageTableForVMA(vma)

	return m.mergeAdjacent(vma)
}

// unmapRange returns every mapped area in [target, target+size) to the
// Allocated state. The addresses stay reserved: guests unmap buffers and
// re-map the same GPU addresses later, so handing the range back to
// FindFreeRegion would break them.
func (m *MemoryManager) unmapRange(target GPUVAddr, size uint64) {
	vma := m.carveVMARange(target, size)
	if vma == nil {
		panic(errors.AssertionFailedf("unmapping a range that is not fully resident: 0x%x+0x%x", uint64(target), size))
	}

	targetEnd := target + GPUVAddr(size)

	// Walk by address, not by handle: each allocate call may merge with
	// neighbors and invalidate the handles around it.
	for vma != nil && vma.Base < targetEnd {
		merged := m.allocate(vma)
		nextBase := merged.End()
		if nextBase >= addressSpaceEnd {
			break
		}
		vma = m.vmas.containing(nextBase)
	}

	if found := m.FindVMA(target); found == nil || found.Size < size {
		panic(errors.AssertionFailedf("unmap of 0x%x+0x%x left a fragmented range", uint64(target), size))
	}
}

package gpuvm

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

const (
	addressSpaceWidth = 40
	pageBits          = 12

	// PageSize is the granularity of every mapping operation.
	PageSize = 1 << pageBits

	pageMask = PageSize - 1
	numPages = 1 << (addressSpaceWidth - pageBits)

	addressSpaceBase GPUVAddr = 0
	addressSpaceEnd  GPUVAddr = 1 << addressSpaceWidth
)

// PageAttribute tags a page table slot.
type PageAttribute uint8

const (
	// PageUnmapped slots have no host memory behind them. Both Unmapped and
	// Allocated areas project to this attribute: an unbacked allocation has
	// nothing a pointer could refer to.
	PageUnmapped PageAttribute = iota
	// PageMemory slots are backed by host memory and carry a non-nil pointer.
	PageMemory
)

var pageAttributeMapping = map[PageAttribute]string{
	PageUnmapped: "Unmapped",
	PageMemory:   "Memory",
}

func (a PageAttribute) String() string {
	return pageAttributeMapping[a]
}

// pageTable is the flat projection of the VMA map: one slot per page over
// the whole address space, so the hot path is a single shift+index. The
// slices are written only by the projector; everything else reads them.
type pageTable struct {
	pointers     []unsafe.Pointer
	backingAddrs []VAddr
	attributes   []PageAttribute
}

func newPageTable() *pageTable {
	// The slices cover 2^28 pages but stay untouched until projected over,
	// so the host VM subsystem never commits the unused tail.
	return &pageTable{
		pointers:     make([]unsafe.Pointer, numPages),
		backingAddrs: make([]VAddr, numPages),
		attributes:   make([]PageAttribute, numPages),
	}
}

func checkPageAligned(value uint64, name string) {
	if value&pageMask != 0 {
		panic(errors.AssertionFailedf("non-page aligned %s: 0x%016x", name, value))
	}
}

func checkRange(base GPUVAddr, size uint64) {
	if size == 0 {
		panic(errors.AssertionFailedf("zero-sized range at 0x%016x", uint64(base)))
	}
	end := uint64(base) + size
	if end < uint64(base) || end > uint64(addressSpaceEnd) {
		panic(errors.AssertionFailedf("range 0x%016x+0x%x leaves the address space", uint64(base), size))
	}
}

// mapPages writes count page table slots starting at page index base. With a
// nil memory pointer every slot gets the same backing address; otherwise
// pointer and backing address advance one page per slot.
func (m *MemoryManager) mapPages(base uint64, count uint64, memory unsafe.Pointer, attribute PageAttribute, backingAddr VAddr) {
	end := base + count
	if end > numPages {
		panic(errors.AssertionFailedf("out of range mapping at page 0x%x", end))
	}

	m.logger.Debug("Mapping pages",
		slog.Uint64("GPUVAddr", base<<pageBits),
		slog.Uint64("Pages", count),
		slog.String("Attribute", attribute.String()))

	for page := base; page < end; page++ {
		m.pageTable.attributes[page] = attribute
	}

	if memory == nil {
		for page := base; page < end; page++ {
			m.pageTable.pointers[page] = nil
			m.pageTable.backingAddrs[page] = backingAddr
		}
		return
	}

	for page := base; page < end; page++ {
		m.pageTable.pointers[page] = memory
		m.pageTable.backingAddrs[page] = backingAddr
		memory = unsafe.Add(memory, PageSize)
		backingAddr += PageSize
	}
}

func (m *MemoryManager) mapMemoryRegion(base GPUVAddr, size uint64, memory unsafe.Pointer, backingAddr VAddr) {
	checkPageAligned(uint64(base), "base")
	checkPageAligned(size, "size")
	m.mapPages(uint64(base)>>pageBits, size>>pageBits, memory, PageMemory, backingAddr)
}

func (m *MemoryManager) unmapRegion(base GPUVAddr, size uint64) {
	checkPageAligned(uint64(base), "base")
	checkPageAligned(size, "size")
	m.mapPages(uint64(base)>>pageBits, size>>pageBits, nil, PageUnmapped, 0)
}

// updatePageTableForVMA projects vma into the page table. It is the sole
// writer of the table and must run after every mutation of the area.
func (m *MemoryManager) updatePageTableForVMA(vma *VirtualMemoryArea) {
	switch vma.Type {
	case VMAUnmapped:
		m.unmapRegion(vma.Base, vma.Size)
	case VMAAllocated:
		// An unbacked allocation projects as unmapped: there is no host
		// memory a page pointer could refer to.
		checkPageAligned(uint64(vma.Base), "base")
		checkPageAligned(vma.Size, "size")
		m.mapPages(uint64(vma.Base)>>pageBits, vma.Size>>pageBits, nil, PageUnmapped, vma.BackingAddr)
	case VMAMapped:
		m.mapMemoryRegion(vma.Base, vma.Size, vma.BackingMemory, vma.BackingAddr)
	}
}

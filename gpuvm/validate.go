package gpuvm

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/tbeck1/yuzu/memutils"
	"golang.org/x/exp/slices"
)

// Validate performs internal consistency checks over the VMA map and its
// page table projection: full coverage with no gaps or overlap, canonical
// form (no mergeable neighbors), per-state field sanity, and a per-area
// spot check that the page table matches the projection rules. It is meant
// to run under memutils.DebugValidate after mutations; when the manager is
// functioning correctly it cannot return an error.
func (m *MemoryManager) Validate() error {
	if m.vmas.len() == 0 {
		return errors.New("the VMA map is empty")
	}

	var areas []*VirtualMemoryArea
	m.vmas.ascend(func(vma *VirtualMemoryArea) bool {
		areas = append(areas, vma)
		return true
	})

	if !slices.IsSortedFunc(areas, func(a, b *VirtualMemoryArea) bool {
		return a.Base < b.Base
	}) {
		return errors.New("the VMA map is not sorted by base address")
	}

	if areas[0].Base != addressSpaceBase {
		return errors.Newf("the first VMA starts at 0x%x, not at the address space base", uint64(areas[0].Base))
	}
	if areas[len(areas)-1].End() != addressSpaceEnd {
		return errors.Newf("the last VMA ends at 0x%x, not at the address space end", uint64(areas[len(areas)-1].End()))
	}

	for i, vma := range areas {
		if vma.Size == 0 {
			return errors.Newf("zero-sized VMA at 0x%x", uint64(vma.Base))
		}
		if !memutils.IsAligned(uint64(vma.Base), PageSize) || !memutils.IsAligned(vma.Size, PageSize) {
			return errors.Newf("VMA 0x%x+0x%x is not page aligned", uint64(vma.Base), vma.Size)
		}

		switch vma.Type {
		case VMAUnmapped, VMAAllocated:
			if vma.BackingMemory != nil || vma.BackingAddr != 0 {
				return errors.Newf("%s VMA at 0x%x carries backing state", vma.Type, uint64(vma.Base))
			}
		case VMAMapped:
			if vma.BackingMemory == nil {
				return errors.Newf("mapped VMA at 0x%x has no backing memory", uint64(vma.Base))
			}
		default:
			return errors.Newf("VMA at 0x%x has invalid type %d", uint64(vma.Base), uint32(vma.Type))
		}

		if i+1 < len(areas) {
			next := areas[i+1]
			if vma.End() != next.Base {
				return errors.Newf("gap or overlap between VMA 0x%x+0x%x and VMA 0x%x", uint64(vma.Base), vma.Size, uint64(next.Base))
			}
			if vma.CanBeMergedWith(next) {
				return errors.Newf("adjacent VMAs at 0x%x and 0x%x are mergeable", uint64(vma.Base), uint64(next.Base))
			}
		}

		if err := m.validateProjection(vma); err != nil {
			return err
		}
	}

	return nil
}

// validateProjection spot-checks the first, middle and last page of an area
// against the projection rules. Checking every page of a terabyte-scale area
// would make validation unusable.
func (m *MemoryManager) validateProjection(vma *VirtualMemoryArea) error {
	firstPage := uint64(vma.Base) >> pageBits
	lastPage := (uint64(vma.End()) >> pageBits) - 1

	for _, page := range []uint64{firstPage, firstPage + (lastPage-firstPage)/2, lastPage} {
		pageOffset := (page << pageBits) - uint64(vma.Base)

		switch vma.Type {
		case VMAUnmapped, VMAAllocated:
			if m.pageTable.attributes[page] != PageUnmapped {
				return errors.Newf("page 0x%x of %s VMA 0x%x projects as %s", page, vma.Type, uint64(vma.Base), m.pageTable.attributes[page])
			}
			if m.pageTable.pointers[page] != nil {
				return errors.Newf("page 0x%x of %s VMA 0x%x has a host pointer", page, vma.Type, uint64(vma.Base))
			}
		case VMAMapped:
			if m.pageTable.attributes[page] != PageMemory {
				return errors.Newf("page 0x%x of mapped VMA 0x%x projects as %s", page, uint64(vma.Base), m.pageTable.attributes[page])
			}
			if m.pageTable.pointers[page] != unsafe.Add(vma.BackingMemory, pageOffset) {
				return errors.Newf("page 0x%x of mapped VMA 0x%x has a stale host pointer", page, uint64(vma.Base))
			}
			if m.pageTable.backingAddrs[page] != vma.BackingAddr+VAddr(pageOffset) {
				return errors.Newf("page 0x%x of mapped VMA 0x%x has a stale backing address", page, uint64(vma.Base))
			}
		}
	}

	return nil
}

package gpuvm

import (
	"fmt"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/tbeck1/yuzu/memutils"
)

// AddressSpaceStats aggregates the VMA map by state.
type AddressSpaceStats struct {
	Unmapped  memutils.DetailedStatistics
	Allocated memutils.DetailedStatistics
	Mapped    memutils.DetailedStatistics
}

func (s *AddressSpaceStats) Clear() {
	s.Unmapped.Clear()
	s.Allocated.Clear()
	s.Mapped.Clear()
}

// CalculateStatistics walks the VMA map and aggregates region counts and
// byte totals per state.
func (m *MemoryManager) CalculateStatistics(stats *AddressSpaceStats) {
	stats.Clear()

	m.vmas.ascend(func(vma *VirtualMemoryArea) bool {
		switch vma.Type {
		case VMAUnmapped:
			stats.Unmapped.AddRegion(vma.Size)
		case VMAAllocated:
			stats.Allocated.AddRegion(vma.Size)
		case VMAMapped:
			stats.Mapped.AddRegion(vma.Size)
		}
		return true
	})
}

// BuildStatsString renders the VMA map and its aggregate statistics as a
// JSON document for diagnostics.
func (m *MemoryManager) BuildStatsString() string {
	writer := jwriter.NewWriter()

	obj := writer.Object()

	var stats AddressSpaceStats
	m.CalculateStatistics(&stats)

	statsObj := obj.Name("AddressSpace").Object()
	writeStateStats(&statsObj, "Unmapped", &stats.Unmapped)
	writeStateStats(&statsObj, "Allocated", &stats.Allocated)
	writeStateStats(&statsObj, "Mapped", &stats.Mapped)
	statsObj.End()

	obj.Name("AccessFaults").Int(int(m.accessFaultCount))

	regions := obj.Name("Regions").Array()
	m.vmas.ascend(func(vma *VirtualMemoryArea) bool {
		regionObj := regions.Object()
		regionObj.Name("Base").String(fmt.Sprintf("0x%x", uint64(vma.Base)))
		regionObj.Name("Size").String(fmt.Sprintf("0x%x", vma.Size))
		regionObj.Name("Type").String(vma.Type.String())
		switch vma.Type {
		case VMAAllocated:
			regionObj.Name("Offset").String(fmt.Sprintf("0x%x", vma.Offset))
		case VMAMapped:
			regionObj.Name("BackingAddr").String(fmt.Sprintf("0x%x", uint64(vma.BackingAddr)))
		}
		regionObj.End()
		return true
	})
	regions.End()

	obj.End()

	return string(writer.Bytes())
}

func writeStateStats(obj *jwriter.ObjectState, name string, stats *memutils.DetailedStatistics) {
	stateObj := obj.Name(name).Object()
	stateObj.Name("RegionCount").Int(stats.RegionCount)
	stateObj.Name("RegionBytes").String(fmt.Sprintf("0x%x", stats.RegionBytes))
	stateObj.End()
}

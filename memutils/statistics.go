package memutils

import "math"

// Statistics aggregates counts over a set of address-space regions.
type Statistics struct {
	RegionCount int
	RegionBytes uint64
}

func (s *Statistics) Clear() {
	s.RegionCount = 0
	s.RegionBytes = 0
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.RegionCount += other.RegionCount
	s.RegionBytes += other.RegionBytes
}

// DetailedStatistics extends Statistics with the size extremes of the regions
// that were aggregated into it.
type DetailedStatistics struct {
	Statistics
	RegionSizeMin uint64
	RegionSizeMax uint64
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.RegionSizeMin = math.MaxUint64
	s.RegionSizeMax = 0
}

func (s *DetailedStatistics) AddRegion(size uint64) {
	s.RegionCount++
	s.RegionBytes += size

	if size < s.RegionSizeMin {
		s.RegionSizeMin = size
	}

	if size > s.RegionSizeMax {
		s.RegionSizeMax = size
	}
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)

	if other.RegionSizeMin < s.RegionSizeMin {
		s.RegionSizeMin = other.RegionSizeMin
	}

	if other.RegionSizeMax > s.RegionSizeMax {
		s.RegionSizeMax = other.RegionSizeMax
	}
}

package memutils_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tbeck1/yuzu/memutils"
)

func TestAlignUp(t *testing.T) {
	require.Equal(t, uint64(0x1000), memutils.AlignUp(uint64(0x1), 0x1000))
	require.Equal(t, uint64(0x1000), memutils.AlignUp(uint64(0x1000), 0x1000))
	require.Equal(t, uint64(0x2000), memutils.AlignUp(uint64(0x1001), 0x1000))
	require.Equal(t, uint64(0), memutils.AlignUp(uint64(0), 0x1000))
}

func TestAlignDown(t *testing.T) {
	require.Equal(t, uint64(0), memutils.AlignDown(uint64(0xFFF), 0x1000))
	require.Equal(t, uint64(0x1000), memutils.AlignDown(uint64(0x1FFF), 0x1000))
	require.Equal(t, uint64(0x1000), memutils.AlignDown(uint64(0x1000), 0x1000))
}

func TestIsAligned(t *testing.T) {
	require.True(t, memutils.IsAligned(uint64(0x2000), 0x1000))
	require.False(t, memutils.IsAligned(uint64(0x2001), 0x1000))
}

func TestCheckPow2(t *testing.T) {
	require.NoError(t, memutils.CheckPow2(4096, "page size"))
	err := memutils.CheckPow2(4097, "page size")
	require.ErrorIs(t, err, memutils.PowerOfTwoError)
}

func TestCheckAligned(t *testing.T) {
	require.NoError(t, memutils.CheckAligned(uint64(0x3000), 0x1000, "base"))
	err := memutils.CheckAligned(uint64(0x3001), 0x1000, "base")
	require.ErrorIs(t, err, memutils.AlignmentError)
}

func TestDetailedStatistics(t *testing.T) {
	var stats memutils.DetailedStatistics
	stats.Clear()

	stats.AddRegion(0x1000)
	stats.AddRegion(0x4000)
	stats.AddRegion(0x2000)

	require.Equal(t, 3, stats.RegionCount)
	require.Equal(t, uint64(0x7000), stats.RegionBytes)
	require.Equal(t, uint64(0x1000), stats.RegionSizeMin)
	require.Equal(t, uint64(0x4000), stats.RegionSizeMax)

	var other memutils.DetailedStatistics
	other.Clear()
	other.AddRegion(0x800)

	stats.AddDetailedStatistics(&other)
	require.Equal(t, 4, stats.RegionCount)
	require.Equal(t, uint64(0x800), stats.RegionSizeMin)
}

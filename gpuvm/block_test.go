package gpuvm_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tbeck1/yuzu/gpuvm"
	mock_gpuvm "github.com/tbeck1/yuzu/gpuvm/mocks"
	"go.uber.org/mock/gomock"
)

func TestBlockRoundTripAcrossPageBoundary(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager

	_, err := m.MapBuffer(cpuArenaBase, 0x3000)
	require.NoError(t, err)

	src := make([]byte, 0x30)
	for i := range src {
		src[i] = byte(i + 1)
	}

	m.WriteBlock(0xFF0, src)

	dest := make([]byte, 0x30)
	m.ReadBlock(0xFF0, dest)
	require.Equal(t, src, dest)

	// The write crossed from page 0 into page 1, so the rasterizer saw one
	// invalidate per touched page; the read likewise flushed each page.
	invalidates := env.rasterizer.ops("invalidate")
	require.Len(t, invalidates, 2)
	require.Equal(t, 0x10, invalidates[0].size)
	require.Equal(t, 0x20, invalidates[1].size)

	flushes := env.rasterizer.ops("flush")
	require.Len(t, flushes, 2)
	require.Equal(t, 0x10, flushes[0].size)
	require.Equal(t, 0x20, flushes[1].size)
}

func TestWriteBlockInvalidatesPerPage(t *testing.T) {
	ctrl := gomock.NewController(t)

	bus := newTestBus(1 << 20)
	rasterizer := mock_gpuvm.NewMockRasterizer(ctrl)
	mapper := mock_gpuvm.NewMockDeviceMapper(ctrl)
	mapper.EXPECT().SetDeviceMapped(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	m := gpuvm.NewMemoryManager(bus, rasterizer, mapper, nil)

	_, err := m.MapBuffer(cpuArenaBase, 0x2000)
	require.NoError(t, err)

	rasterizer.EXPECT().InvalidateRegion(gomock.Any(), 0x10)
	rasterizer.EXPECT().InvalidateRegion(gomock.Any(), 0x20)

	m.WriteBlock(0xFF0, make([]byte, 0x30))
}

func TestReadBlockUnsafeZeroFillsSparseRanges(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager

	// Pages 0 and 2 are mapped; page 1 stays a hole.
	m.MapBufferAt(cpuArenaBase, 0x0, 0x1000)
	m.MapBufferAt(cpuArenaBase+0x4000, 0x2000, 0x1000)

	for i := range env.bus.at(cpuArenaBase, 0x1000) {
		env.bus.at(cpuArenaBase, 0x1000)[i] = 0xAA
	}
	for i := range env.bus.at(cpuArenaBase+0x4000, 0x1000) {
		env.bus.at(cpuArenaBase+0x4000, 0x1000)[i] = 0xBB
	}

	dest := bytes.Repeat([]byte{0xFF}, 0x3000)
	m.ReadBlockUnsafe(0x0, dest)

	require.Equal(t, bytes.Repeat([]byte{0xAA}, 0x1000), dest[:0x1000])
	require.Equal(t, make([]byte, 0x1000), dest[0x1000:0x2000])
	require.Equal(t, bytes.Repeat([]byte{0xBB}, 0x1000), dest[0x2000:])

	// Unsafe traffic never reaches the rasterizer.
	require.Empty(t, env.rasterizer.calls)
}

func TestWriteBlockUnsafeSkipsHoles(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager

	m.MapBufferAt(cpuArenaBase, 0x0, 0x1000)

	m.WriteBlockUnsafe(0xFF0, bytes.Repeat([]byte{0xCC}, 0x30))

	// Only the mapped page received bytes.
	require.Equal(t, bytes.Repeat([]byte{0xCC}, 0x10), env.bus.at(cpuArenaBase+0xFF0, 0x10))
	require.Empty(t, env.rasterizer.calls)
}

func TestCopyBlock(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager

	_, err := m.MapBuffer(cpuArenaBase, 0x2000)
	require.NoError(t, err)

	src := make([]byte, 0x1000)
	for i := range src {
		src[i] = byte(i)
	}
	m.WriteBlockUnsafe(0x0, src)
	env.rasterizer.calls = nil

	m.CopyBlock(0x1000, 0x0, 0x1000)

	dest := make([]byte, 0x1000)
	m.ReadBlockUnsafe(0x1000, dest)
	require.Equal(t, src, dest)

	// The source page flushed, the destination page invalidated.
	require.Len(t, env.rasterizer.ops("flush"), 1)
	require.Len(t, env.rasterizer.ops("invalidate"), 1)
}

func TestCopyBlockUnsafeSparse(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager

	m.MapBufferAt(cpuArenaBase, 0x0, 0x1000)
	m.MapBufferAt(cpuArenaBase+0x4000, 0x3000, 0x1000)

	for i := range env.bus.at(cpuArenaBase, 0x1000) {
		env.bus.at(cpuArenaBase, 0x1000)[i] = 0x11
	}

	// Source covers a mapped page and a hole; the hole copies as zeros.
	m.CopyBlockUnsafe(0x3000, 0x0, 0x1000)
	m.CopyBlockUnsafe(0x3000, 0x1000, 0x1000)

	got := make([]byte, 0x1000)
	m.ReadBlockUnsafe(0x3000, got)
	require.Equal(t, make([]byte, 0x1000), got)

	m.CopyBlockUnsafe(0x3000, 0x0, 0x1000)
	m.ReadBlockUnsafe(0x3000, got)
	require.Equal(t, bytes.Repeat([]byte{0x11}, 0x1000), got)

	require.Empty(t, env.rasterizer.calls)
}

func TestIsBlockContinuous(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager

	// One mapping is contiguous in host memory by construction.
	_, err := m.MapBuffer(cpuArenaBase, 0x2000)
	require.NoError(t, err)
	require.True(t, m.IsBlockContinuous(0x0, 0x2000))
	require.True(t, m.IsBlockContinuous(0x800, 0x1000))

	// Two mappings whose host backings are not adjacent are not.
	m.MapBufferAt(cpuArenaBase+0x8000, 0x2000, 0x1000)
	require.False(t, m.IsBlockContinuous(0x1000, 0x2000))
}

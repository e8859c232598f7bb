package gpuvm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tbeck1/yuzu/gpuvm"
	"golang.org/x/exp/slog"
)

// countingHandler counts the Error-level records it receives.
type countingHandler struct {
	errorCount *int
}

func (h countingHandler) Enabled(ctx context.Context, level slog.Level) bool { return true }

func (h countingHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level == slog.LevelError {
		*h.errorCount++
	}
	return nil
}

func (h countingHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }

func (h countingHandler) WithGroup(name string) slog.Handler { return h }

func TestTypedReadWriteWidths(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager

	_, err := m.MapBuffer(cpuArenaBase, 0x1000)
	require.NoError(t, err)

	gpuvm.Write(m, 0x10, uint8(0xAB))
	require.Equal(t, uint8(0xAB), gpuvm.Read[uint8](m, 0x10))

	gpuvm.Write(m, 0x20, uint16(0xBEEF))
	require.Equal(t, uint16(0xBEEF), gpuvm.Read[uint16](m, 0x20))

	gpuvm.Write(m, 0x31, uint32(0x01020304))
	require.Equal(t, uint32(0x01020304), gpuvm.Read[uint32](m, 0x31))

	gpuvm.Write(m, 0x40, uint64(0x1122334455667788))
	require.Equal(t, uint64(0x1122334455667788), gpuvm.Read[uint64](m, 0x40))

	require.Zero(t, m.AccessFaultCount())
}

func TestUnmappedAccessIsNeutralized(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager

	require.Equal(t, uint32(0), gpuvm.Read[uint32](m, 0x5000))
	require.Equal(t, uint64(1), m.AccessFaultCount())

	gpuvm.Write(m, 0x5000, uint32(0x12345678))
	require.Equal(t, uint64(2), m.AccessFaultCount())

	// The dropped write left nothing behind once the page is mapped.
	m.MapBufferAt(cpuArenaBase, 0x5000, 0x1000)
	require.Equal(t, uint32(0), gpuvm.Read[uint32](m, 0x5000))
}

func TestOutOfRangeAccessReturnsZero(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager

	require.False(t, m.IsAddressValid(1<<41))
	require.Equal(t, uint64(0), gpuvm.Read[uint64](m, 1<<41))

	_, ok := m.GpuToCpuAddress(1 << 41)
	require.False(t, ok)
}

func TestGetPointerLogsOncePerPage(t *testing.T) {
	errorCount := 0
	logger := slog.New(countingHandler{errorCount: &errorCount})

	bus := newTestBus(1 << 20)
	m := gpuvm.NewMemoryManager(bus, &recordingRasterizer{}, &recordingMapper{}, logger)

	require.Nil(t, m.GetPointer(0x7000))
	require.Nil(t, m.GetPointer(0x7008))
	require.Nil(t, m.GetPointer(0x8000))

	// Two distinct pages missed, each reported once; every miss counted.
	require.Equal(t, 2, errorCount)
	require.Equal(t, uint64(3), m.AccessFaultCount())
}

func TestGpuToCpuAddressOnAllocated(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager

	_, err := m.AllocateSpace(0x1000)
	require.NoError(t, err)

	// Reserved but unbacked pages have no CPU translation.
	_, ok := m.GpuToCpuAddress(0x0)
	require.False(t, ok)
}

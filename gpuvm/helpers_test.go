package gpuvm_test

import (
	"testing"
	"unsafe"

	"github.com/tbeck1/yuzu/gpuvm"
)

// cpuArenaBase is where the fake memory bus exposes its arena in the guest
// CPU address space.
const cpuArenaBase gpuvm.VAddr = 0x10_0000

// testBus backs a window of guest CPU address space with a byte arena.
type testBus struct {
	arena []byte
}

func newTestBus(size int) *testBus {
	return &testBus{arena: make([]byte, size)}
}

func (b *testBus) GetPointer(addr gpuvm.VAddr) unsafe.Pointer {
	offset := int64(addr) - int64(cpuArenaBase)
	if offset < 0 || offset >= int64(len(b.arena)) {
		return nil
	}
	return unsafe.Pointer(&b.arena[offset])
}

// at returns the arena slice holding [addr, addr+size) of guest CPU memory.
func (b *testBus) at(addr gpuvm.VAddr, size int) []byte {
	offset := int(addr - cpuArenaBase)
	return b.arena[offset : offset+size]
}

type rasterCall struct {
	op   string
	addr gpuvm.CacheAddr
	size int
}

// recordingRasterizer records every callout in issue order.
type recordingRasterizer struct {
	calls []rasterCall
}

func (r *recordingRasterizer) FlushRegion(addr gpuvm.CacheAddr, size int) {
	r.calls = append(r.calls, rasterCall{"flush", addr, size})
}

func (r *recordingRasterizer) InvalidateRegion(addr gpuvm.CacheAddr, size int) {
	r.calls = append(r.calls, rasterCall{"invalidate", addr, size})
}

func (r *recordingRasterizer) FlushAndInvalidateRegion(addr gpuvm.CacheAddr, size int) {
	r.calls = append(r.calls, rasterCall{"flushAndInvalidate", addr, size})
}

func (r *recordingRasterizer) ops(op string) []rasterCall {
	var result []rasterCall
	for _, call := range r.calls {
		if call.op == op {
			result = append(result, call)
		}
	}
	return result
}

type mapperCall struct {
	addr   gpuvm.VAddr
	size   uint64
	mapped bool
}

// recordingMapper records DeviceMapped attribute transitions.
type recordingMapper struct {
	calls []mapperCall
}

func (m *recordingMapper) SetDeviceMapped(addr gpuvm.VAddr, size uint64, mapped bool) error {
	m.calls = append(m.calls, mapperCall{addr, size, mapped})
	return nil
}

type testEnv struct {
	manager    *gpuvm.MemoryManager
	bus        *testBus
	rasterizer *recordingRasterizer
	mapper     *recordingMapper
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	bus := newTestBus(1 << 20)
	rasterizer := &recordingRasterizer{}
	mapper := &recordingMapper{}

	return &testEnv{
		manager:    gpuvm.NewMemoryManager(bus, rasterizer, mapper, nil),
		bus:        bus,
		rasterizer: rasterizer,
		mapper:     mapper,
	}
}

package uploadheap

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"github.com/ozgrakkurt/d3d12mem/gpu"
	"github.com/ozgrakkurt/d3d12mem/internal/fakegpu"
)

func newTestHeap(t *testing.T, device *fakegpu.Device, executor *fakegpu.Executor, opts CreateOptions) *UploadHeap {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard))
	return New(logger, device, executor, opts)
}

func mkDesc(size int64) gpu.ResourceDesc {
	return gpu.ResourceDesc{WidthInBytes: size}
}

func TestBeginUploadToGpuRoundTrip(t *testing.T) {
	device := &fakegpu.Device{}
	executor := fakegpu.NewExecutor()
	h := newTestHeap(t, device, executor, CreateOptions{})

	dstRes, err := device.CreateCommittedResource(0, 0, mkDesc(64), 0)
	require.NoError(t, err)

	src := []byte("0123456789abcdef0123456789abcdef")
	event, err := h.BeginUploadToGpu(dstRes, 8, 0, src)
	require.NoError(t, err)

	executor.FireAll()
	require.True(t, event.Signaled())

	got := dstRes.(*fakegpu.Resource).Bytes()[8 : 8+len(src)]
	require.Equal(t, src, got)
}

func TestBeginUploadToGpuGrowsChunkOnlyWhenNeeded(t *testing.T) {
	device := &fakegpu.Device{}
	executor := fakegpu.NewExecutor()
	h := newTestHeap(t, device, executor, CreateOptions{MinChunkSize: 1024})

	dstRes, err := device.CreateCommittedResource(0, 0, mkDesc(1024), 0)
	require.NoError(t, err)

	_, err = h.BeginUploadToGpu(dstRes, 0, 0, make([]byte, 300))
	require.NoError(t, err)
	require.Len(t, h.chunks, 1)

	_, err = h.BeginUploadToGpu(dstRes, 0, 0, make([]byte, 200))
	require.NoError(t, err)
	require.Len(t, h.chunks, 1, "200 bytes fits in the first chunk's remaining room, no growth expected")
}

func TestBeginUploadToGpuAppendsChunkWhenNoRoom(t *testing.T) {
	device := &fakegpu.Device{}
	executor := fakegpu.NewExecutor()
	h := newTestHeap(t, device, executor, CreateOptions{MinChunkSize: 1024})

	dstRes, err := device.CreateCommittedResource(0, 0, mkDesc(4096), 0)
	require.NoError(t, err)

	// Neither upload's event is fired in between, so the first
	// allocation stays live and the second request has no room left in
	// the only chunk.
	_, err = h.BeginUploadToGpu(dstRes, 0, 0, make([]byte, 900))
	require.NoError(t, err)
	require.Len(t, h.chunks, 1)

	_, err = h.BeginUploadToGpu(dstRes, 0, 0, make([]byte, 900))
	require.NoError(t, err)
	require.Len(t, h.chunks, 2, "second 900-byte request has no room left in the first 1024-byte chunk")
}

func TestReclaimAllocationsDropsSignaledUnlocked(t *testing.T) {
	device := &fakegpu.Device{}
	executor := fakegpu.NewExecutor()
	h := newTestHeap(t, device, executor, CreateOptions{MinChunkSize: 1024})

	dstRes, err := device.CreateCommittedResource(0, 0, mkDesc(4096), 0)
	require.NoError(t, err)

	_, err = h.BeginUploadToGpu(dstRes, 0, 0, make([]byte, 100))
	require.NoError(t, err)
	require.Equal(t, 1, h.chunks[0].allocations.Len())

	executor.FireAll()

	_, err = h.BeginUploadToGpu(dstRes, 0, 0, make([]byte, 100))
	require.NoError(t, err)
	require.Equal(t, 1, h.chunks[0].allocations.Len(), "the first allocation's event had fired, so it was reclaimed before the second was placed")
}

// A locked cached-upload entry sitting ahead of later, unlocked, signaled
// allocations in the same chunk must not block their reclamation.
func TestReclaimAllocationsRemovesUnlockedBehindLockedEntry(t *testing.T) {
	device := &fakegpu.Device{}
	executor := fakegpu.NewExecutor()
	h := newTestHeap(t, device, executor, CreateOptions{MinChunkSize: 1024, MaxReusableCommandLists: 4})

	dstRes, err := device.CreateCommittedResource(0, 0, mkDesc(4096), 0)
	require.NoError(t, err)

	_, err = h.BeginReusableUploadToGpu(dstRes, 0, 0, make([]byte, 32))
	require.NoError(t, err)

	_, err = h.BeginUploadToGpu(dstRes, 0, 0, make([]byte, 32))
	require.NoError(t, err)
	_, err = h.BeginUploadToGpu(dstRes, 0, 0, make([]byte, 32))
	require.NoError(t, err)

	require.Len(t, h.chunks, 1)
	require.Equal(t, 3, h.chunks[0].allocations.Len())

	executor.FireAll()
	h.reclaimAllocations()

	require.Equal(t, 1, h.chunks[0].allocations.Len(), "the two unlocked allocations behind the locked one should still be reclaimed")
	require.True(t, h.chunks[0].front().locked, "the surviving allocation should be the locked cached entry")
}

// Two reusable uploads with the same (dst, offset, size) key allocate
// exactly one staging slot and execute the command list twice, with the
// second call's event distinct from the first's and stored as the staging
// slot's doneEvent.
func TestBeginReusableUploadToGpuCacheHit(t *testing.T) {
	device := &fakegpu.Device{}
	executor := fakegpu.NewExecutor()
	h := newTestHeap(t, device, executor, CreateOptions{MaxReusableCommandLists: 4})

	dstRes, err := device.CreateCommittedResource(0, 0, mkDesc(64), 0)
	require.NoError(t, err)

	event1, err := h.BeginReusableUploadToGpu(dstRes, 0, 0, make([]byte, 64))
	require.NoError(t, err)

	event2, err := h.BeginReusableUploadToGpu(dstRes, 0, 0, make([]byte, 64))
	require.NoError(t, err)

	require.Equal(t, 1, h.cache.len())
	require.Equal(t, 1, h.chunks[0].allocations.Len(), "the cache hit must not reserve a second staging slot")
	require.Len(t, executor.Executed, 2)
	require.NotEqual(t, event1, event2)

	entry, ok := h.cache.peek(reusableCopyKey{dstResource: dstRes, dstOffset: 0, srcSizeInBytes: 64})
	require.True(t, ok)
	require.Same(t, event2, entry.staging().doneEvent)

	executor.FireAll()
	require.True(t, event2.Signaled())
}

// With a cache bounded at 2 entries, a third distinct key evicts the
// first key's entry, queuing its command list and allocator for deferred
// release and unlocking its staging slot.
func TestBeginReusableUploadToGpuLRUEviction(t *testing.T) {
	device := &fakegpu.Device{}
	executor := fakegpu.NewExecutor()
	h := newTestHeap(t, device, executor, CreateOptions{MaxReusableCommandLists: 2})

	dstA, err := device.CreateCommittedResource(0, 0, mkDesc(64), 0)
	require.NoError(t, err)
	dstB, err := device.CreateCommittedResource(0, 0, mkDesc(64), 0)
	require.NoError(t, err)
	dstC, err := device.CreateCommittedResource(0, 0, mkDesc(64), 0)
	require.NoError(t, err)

	_, err = h.BeginReusableUploadToGpu(dstA, 0, 0, make([]byte, 32))
	require.NoError(t, err)
	keyA := reusableCopyKey{dstResource: dstA, dstOffset: 0, srcSizeInBytes: 32}
	entryA, ok := h.cache.peek(keyA)
	require.True(t, ok)

	_, err = h.BeginReusableUploadToGpu(dstB, 0, 0, make([]byte, 32))
	require.NoError(t, err)
	require.Equal(t, 2, h.cache.len())

	_, err = h.BeginReusableUploadToGpu(dstC, 0, 0, make([]byte, 32))
	require.NoError(t, err)

	require.Equal(t, 2, h.cache.len())
	_, stillCached := h.cache.peek(keyA)
	require.False(t, stillCached, "key A should have been evicted to make room for key C")
	require.False(t, entryA.staging().locked, "evicted entry's staging allocation must be unlocked")
	require.Contains(t, executor.Referenced, entryA.cmdList)
	require.Contains(t, executor.Referenced, entryA.cmdAllocator)
}

func TestTrimNeverDropsChunkWithLockedAllocation(t *testing.T) {
	device := &fakegpu.Device{}
	executor := fakegpu.NewExecutor()
	h := newTestHeap(t, device, executor, CreateOptions{MaxReusableCommandLists: 4})

	dstRes, err := device.CreateCommittedResource(0, 0, mkDesc(64), 0)
	require.NoError(t, err)

	_, err = h.BeginReusableUploadToGpu(dstRes, 0, 0, make([]byte, 32))
	require.NoError(t, err)

	executor.FireAll()
	h.Trim()

	require.Len(t, h.chunks, 1, "the chunk backing the locked cached entry must survive Trim even though its event has fired")
}

func TestTrimDropsEmptyChunks(t *testing.T) {
	device := &fakegpu.Device{}
	executor := fakegpu.NewExecutor()
	h := newTestHeap(t, device, executor, CreateOptions{MinChunkSize: 256})

	dstRes, err := device.CreateCommittedResource(0, 0, mkDesc(64), 0)
	require.NoError(t, err)

	_, err = h.BeginUploadToGpu(dstRes, 0, 0, make([]byte, 32))
	require.NoError(t, err)
	require.Len(t, h.chunks, 1)

	executor.FireAll()
	h.Trim()

	require.Len(t, h.chunks, 0)
}

func TestDumpStatsReflectsChunkCount(t *testing.T) {
	device := &fakegpu.Device{}
	executor := fakegpu.NewExecutor()
	h := newTestHeap(t, device, executor, CreateOptions{MinChunkSize: 256})

	dstRes, err := device.CreateCommittedResource(0, 0, mkDesc(64), 0)
	require.NoError(t, err)
	_, err = h.BeginUploadToGpu(dstRes, 0, 0, make([]byte, 32))
	require.NoError(t, err)

	data, err := h.DumpStats()
	require.NoError(t, err)
	require.Contains(t, string(data), "chunkCount")
}

func TestBeginUploadToGpuRejectsEmptySource(t *testing.T) {
	device := &fakegpu.Device{}
	executor := fakegpu.NewExecutor()
	h := newTestHeap(t, device, executor, CreateOptions{})

	dstRes, err := device.CreateCommittedResource(0, 0, mkDesc(64), 0)
	require.NoError(t, err)

	_, err = h.BeginUploadToGpu(dstRes, 0, 0, nil)
	require.ErrorIs(t, err, ErrEmptySource)
}

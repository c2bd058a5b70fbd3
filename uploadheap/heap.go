package uploadheap

import (
	"unsafe"

	"golang.org/x/exp/slog"

	"github.com/ozgrakkurt/d3d12mem/gpu"
	"github.com/ozgrakkurt/d3d12mem/internal/dbg"
)

const (
	defaultAllocationAlignment int64 = 256
	defaultMinChunkSize        int64 = 1 << 20 // 1 MiB
	defaultMaxReusableCommandLists = 32
)

// CreateOptions configures a new UploadHeap.
type CreateOptions struct {
	HeapProperties gpu.HeapProperties
	HeapFlags      gpu.HeapFlags
	ResourceFlags  gpu.ResourceFlags

	// AllocationAlignment is a power-of-two >= 4 bytes. Zero defaults to
	// 256, a typical upload-buffer alignment.
	AllocationAlignment int64
	// MinChunkSize is the smallest chunk the heap will create. Zero
	// defaults to 1 MiB.
	MinChunkSize int64
	// MaxReusableCommandLists bounds the LRU cache used by
	// BeginReusableUploadToGpu. Zero defaults to 32.
	MaxReusableCommandLists int
	// CopySourceState is the resource state staging chunks are assumed
	// to be in when used as a copy source.
	CopySourceState gpu.ResourceState
	// CopyDestState is stored on the heap but not passed to the executor:
	// the upload paths hand the caller's dstState to the executor, which
	// issues any transition around the copy.
	CopyDestState gpu.ResourceState
}

// UploadHeap owns a growing list of CPU-writable staging chunks and
// streams CPU->GPU copies through them. It assumes a single submission
// thread and takes no internal lock.
type UploadHeap struct {
	logger   *slog.Logger
	device   gpu.Device
	executor gpu.Executor

	heapProperties gpu.HeapProperties
	heapFlags      gpu.HeapFlags
	resourceFlags  gpu.ResourceFlags

	allocationAlignment int64
	minChunkSize        int64
	copySourceState     gpu.ResourceState
	copyDestState       gpu.ResourceState

	chunks        []*chunk
	totalCapacity int64

	cache *reusableCache
}

// New constructs an UploadHeap against device and executor.
func New(logger *slog.Logger, device gpu.Device, executor gpu.Executor, opts CreateOptions) *UploadHeap {
	alignment := opts.AllocationAlignment
	if alignment <= 0 {
		alignment = defaultAllocationAlignment
	}
	minChunkSize := opts.MinChunkSize
	if minChunkSize <= 0 {
		minChunkSize = defaultMinChunkSize
	}
	maxReusable := opts.MaxReusableCommandLists
	if maxReusable <= 0 {
		maxReusable = defaultMaxReusableCommandLists
	}

	return &UploadHeap{
		logger:              logger,
		device:              device,
		executor:            executor,
		heapProperties:      opts.HeapProperties,
		heapFlags:           opts.HeapFlags,
		resourceFlags:       opts.ResourceFlags,
		allocationAlignment: alignment,
		minChunkSize:        minChunkSize,
		copySourceState:     opts.CopySourceState,
		copyDestState:       opts.CopyDestState,
		cache:               newReusableCache(maxReusable),
	}
}

// BeginUploadToGpu copies src into dst starting at dstOffset and returns
// the completion event that fires once the copy has retired.
func (h *UploadHeap) BeginUploadToGpu(dst gpu.Resource, dstOffset int64, dstState gpu.ResourceState, src []byte) (gpu.CompletionEvent, error) {
	if len(src) == 0 {
		return nil, ErrEmptySource
	}

	dbg.DebugValidateFunc(h.validate)

	h.reclaimAllocations()

	c, offset, err := h.reserveOffset(int64(len(src)))
	if err != nil {
		return nil, err
	}

	if err := h.mapAndCopy(c, offset, src); err != nil {
		return nil, err
	}

	if err := h.executor.CopyBufferRegion(dst, dstOffset, dstState, c.resource, offset, h.copySourceState, int64(len(src))); err != nil {
		return nil, wrapError(ErrorKindExecutionFailure, err, "issue copy to destination resource")
	}

	doneEvent := h.executor.GetCurrentCompletionEvent()
	c.allocations.PushBack(&stagingAllocation{
		sizeInBytes:   int64(len(src)),
		offsetInChunk: offset,
		doneEvent:     doneEvent,
		locked:        false,
	})

	dbg.DebugValidateFunc(h.validate)

	return doneEvent, nil
}

// BeginReusableUploadToGpu behaves like BeginUploadToGpu but caches the
// recorded copy command list keyed by (dst, dstOffset, len(src)), so that
// repeated uploads of the same shape skip recording cost.
func (h *UploadHeap) BeginReusableUploadToGpu(dst gpu.Resource, dstOffset int64, dstState gpu.ResourceState, src []byte) (gpu.CompletionEvent, error) {
	if len(src) == 0 {
		return nil, ErrEmptySource
	}

	dbg.DebugValidateFunc(h.validate)

	key := reusableCopyKey{dstResource: dst, dstOffset: dstOffset, srcSizeInBytes: int64(len(src))}

	if entry, hit := h.cache.get(key); hit {
		event, err := h.reuseCachedEntry(entry, src)
		if err != nil {
			return nil, err
		}
		dbg.DebugValidateFunc(h.validate)
		return event, nil
	}

	if h.cache.full() {
		h.evictOldestCachedEntry()
	}

	h.reclaimAllocations()

	event, err := h.createCachedEntry(key, dst, dstOffset, dstState, src)
	if err != nil {
		return nil, err
	}

	dbg.DebugValidateFunc(h.validate)

	return event, nil
}

func (h *UploadHeap) reuseCachedEntry(entry *reusableEntry, src []byte) (gpu.CompletionEvent, error) {
	staging := entry.staging()

	if err := h.mapAndCopy(entry.chunk, staging.offsetInChunk, src); err != nil {
		return nil, err
	}

	event, err := h.executor.ExecuteCommandList(entry.cmdList)
	if err != nil {
		return nil, wrapError(ErrorKindExecutionFailure, err, "re-execute cached command list")
	}

	// Refresh doneEvent so the staging slot is not reclaimed too early:
	// this execution's completion is later than the one recorded at
	// creation time.
	staging.doneEvent = event

	return event, nil
}

// evictOldestCachedEntry evicts the LRU cache's oldest entry: it queues
// the entry's command list and allocator for deferred release after GPU
// completion, unlocks its staging allocation, and drops it from the
// cache. This MUST happen before reclamation runs in the same call so the
// evictee's allocation can be freed within the same call if its event has
// already signaled.
func (h *UploadHeap) evictOldestCachedEntry() {
	entry := h.cache.evictOldest()
	if entry == nil {
		return
	}
	h.executor.QueueReference(entry.cmdList)
	h.executor.QueueReference(entry.cmdAllocator)
	entry.staging().locked = false
}

func (h *UploadHeap) createCachedEntry(key reusableCopyKey, dst gpu.Resource, dstOffset int64, dstState gpu.ResourceState, src []byte) (gpu.CompletionEvent, error) {
	c, offset, err := h.reserveOffset(int64(len(src)))
	if err != nil {
		return nil, err
	}

	if err := h.mapAndCopy(c, offset, src); err != nil {
		return nil, err
	}

	cmdAllocator, err := h.device.CreateCommandAllocator(h.executor.GetCommandListTypeForQueue())
	if err != nil {
		return nil, wrapError(ErrorKindOutOfDeviceMemory, err, "create command allocator for cached upload")
	}
	cmdList, err := h.device.CreateCommandList(h.executor.GetCommandListTypeForQueue(), cmdAllocator)
	if err != nil {
		return nil, wrapError(ErrorKindOutOfDeviceMemory, err, "create command list for cached upload")
	}

	if err := h.executor.RecordCopyBufferRegion(cmdList, dst, dstOffset, dstState, c.resource, offset, h.copySourceState, int64(len(src))); err != nil {
		return nil, wrapError(ErrorKindExecutionFailure, err, "record cached copy command list")
	}
	if err := cmdList.Close(); err != nil {
		return nil, wrapError(ErrorKindExecutionFailure, err, "close cached command list")
	}

	event, err := h.executor.ExecuteCommandList(cmdList)
	if err != nil {
		return nil, wrapError(ErrorKindExecutionFailure, err, "execute cached command list")
	}

	elem := c.allocations.PushBack(&stagingAllocation{
		sizeInBytes:   int64(len(src)),
		offsetInChunk: offset,
		doneEvent:     event,
		locked:        true,
	})

	h.cache.put(&reusableEntry{
		key:          key,
		chunk:        c,
		allocElem:    elem,
		cmdAllocator: cmdAllocator,
		cmdList:      cmdList,
	})

	return event, nil
}

// reserveOffset finds a chunk able to place size bytes, creating a new
// one if none can, per the ring-buffer placement algorithm.
func (h *UploadHeap) reserveOffset(size int64) (*chunk, int64, error) {
	for _, c := range h.chunks {
		if offset, ok := findOffsetForAllocation(c, size, h.allocationAlignment); ok {
			return c, offset, nil
		}
	}

	newCapacity := h.totalCapacity
	if h.minChunkSize > newCapacity {
		newCapacity = h.minChunkSize
	}
	if size > newCapacity {
		newCapacity = size
	}

	c, err := h.appendChunk(newCapacity)
	if err != nil {
		return nil, 0, err
	}
	return c, 0, nil
}

func (h *UploadHeap) appendChunk(capacity int64) (*chunk, error) {
	resource, err := h.device.CreateCommittedResource(h.heapProperties, h.heapFlags, gpu.ResourceDesc{WidthInBytes: capacity, Flags: h.resourceFlags}, 0)
	if err != nil {
		return nil, wrapError(ErrorKindOutOfDeviceMemory, err, "create staging chunk of %d bytes", capacity)
	}

	c := newChunk(resource, capacity)
	h.chunks = append(h.chunks, c)
	h.totalCapacity += capacity
	return c, nil
}

func (h *UploadHeap) mapAndCopy(c *chunk, offset int64, src []byte) error {
	ptr, err := h.device.Map(c.resource)
	if err != nil {
		return wrapError(ErrorKindDeviceLost, err, "map staging chunk")
	}

	dest := unsafe.Slice((*byte)(unsafe.Add(ptr, offset)), len(src))
	copy(dest, src)

	if err := h.device.Unmap(c.resource); err != nil {
		return wrapError(ErrorKindDeviceLost, err, "unmap staging chunk")
	}
	return nil
}

// reclaimAllocations drops every allocation in each chunk's list whose
// locked == false and whose doneEvent has fired, wherever it sits in the
// list. A locked entry can otherwise pin unlocked, signaled allocations
// behind it; findOffsetForAllocation only reads front()/back(), so a
// middle removal still leaves the live span's outer bounds correct.
func (h *UploadHeap) reclaimAllocations() {
	for _, c := range h.chunks {
		for e := c.allocations.Front(); e != nil; {
			next := e.Next()
			alloc := e.Value.(*stagingAllocation)
			if !alloc.locked && alloc.doneEvent.Signaled() {
				c.allocations.Remove(e)
			}
			e = next
		}
	}
}

// Trim reclaims finished allocations, drops every chunk whose allocation
// list is empty, and recomputes total capacity. It never drops a chunk
// containing any locked allocation, even though emptiness is the only
// thing a naive remove_if would check — a locked allocation's cached
// command list captured a raw pointer to this chunk's resource, and
// dropping the chunk out from under it would dangle.
func (h *UploadHeap) Trim() {
	dbg.DebugValidateFunc(h.validate)

	h.reclaimAllocations()

	kept := h.chunks[:0]
	var newTotal int64
	for _, c := range h.chunks {
		if c.allocations.Len() == 0 {
			continue
		}
		kept = append(kept, c)
		newTotal += c.capacityInBytes
	}
	h.chunks = kept
	h.totalCapacity = newTotal

	dbg.DebugValidateFunc(h.validate)
}

package uploadheap

import (
	"container/list"

	"github.com/ozgrakkurt/d3d12mem/gpu"
)

// stagingAllocation is a single sub-allocation within a chunk's ring
// buffer. doneEvent is the GPU completion event at or after which the
// bytes may be overwritten; locked inhibits reclamation even once
// doneEvent has fired, because a cached command list still references
// this exact byte range.
type stagingAllocation struct {
	sizeInBytes   int64
	offsetInChunk int64
	doneEvent     gpu.CompletionEvent
	locked        bool
}

// chunk is a single CPU-writable staging buffer used as a ring by the
// upload heap. allocations is insertion-ordered and pointer-stable
// (container/list node addresses do not move on insertion/removal
// elsewhere in the list), which the cached-copy path depends on: it keeps
// a raw *list.Element across other operations.
type chunk struct {
	capacityInBytes int64
	resource        gpu.Resource
	allocations     *list.List // of *stagingAllocation
}

func newChunk(resource gpu.Resource, capacityInBytes int64) *chunk {
	return &chunk{
		capacityInBytes: capacityInBytes,
		resource:        resource,
		allocations:     list.New(),
	}
}

func (c *chunk) front() *stagingAllocation {
	e := c.allocations.Front()
	if e == nil {
		return nil
	}
	return e.Value.(*stagingAllocation)
}

func (c *chunk) back() *stagingAllocation {
	e := c.allocations.Back()
	if e == nil {
		return nil
	}
	return e.Value.(*stagingAllocation)
}

func align(offset, alignment int64) int64 {
	return (offset + alignment - 1) / alignment * alignment
}

// findOffsetForAllocation attempts to place a size-byte allocation within
// c per the ring-buffer placement algorithm. ok is false if
// c cannot accept the request at all (too small, or no room in either the
// tail or the wrap-around gap).
func findOffsetForAllocation(c *chunk, size, alignment int64) (offset int64, ok bool) {
	if c.capacityInBytes < size {
		return 0, false
	}

	if c.allocations.Len() == 0 {
		return 0, true
	}

	last := c.back()
	first := c.front()
	candidate := align(last.offsetInChunk+last.sizeInBytes, alignment)

	if candidate+size < candidate {
		// overflow
		return 0, false
	}

	if first.offsetInChunk <= last.offsetInChunk {
		// Case A: live span does not wrap.
		if candidate+size <= c.capacityInBytes {
			return candidate, true
		}
		if size <= first.offsetInChunk {
			return 0, true
		}
		return 0, false
	}

	// Case B: live span wraps.
	if candidate+size <= first.offsetInChunk {
		return candidate, true
	}
	return 0, false
}

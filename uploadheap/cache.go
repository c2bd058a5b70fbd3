package uploadheap

import (
	"container/list"

	"github.com/ozgrakkurt/d3d12mem/gpu"
	"github.com/ozgrakkurt/d3d12mem/internal/lru"
)

// reusableCopyKey identifies a cacheable copy shape: repeated uploads of
// the same shape to the same destination skip command-list recording
// cost.
type reusableCopyKey struct {
	dstResource    gpu.Resource
	dstOffset      int64
	srcSizeInBytes int64
}

// reusableEntry is the payload stored per cached copy. allocElem is a
// raw reference into the owning chunk's allocation list — valid because
// that list is pointer-stable (container/list) across other chunk
// mutations.
type reusableEntry struct {
	key          reusableCopyKey
	chunk        *chunk
	allocElem    *list.Element
	cmdAllocator gpu.CommandAllocator
	cmdList      gpu.CommandList
}

func (e *reusableEntry) staging() *stagingAllocation {
	return e.allocElem.Value.(*stagingAllocation)
}

// reusableCache is the LRU-bounded index of prerecorded copy command
// lists, keyed by destination and source shape rather than allocation
// handle.
type reusableCache struct {
	lru *lru.LRU[reusableCopyKey, *reusableEntry]
}

func newReusableCache(maxEntries int) *reusableCache {
	return &reusableCache{lru: lru.New[reusableCopyKey, *reusableEntry](maxEntries)}
}

func (c *reusableCache) get(key reusableCopyKey) (*reusableEntry, bool) {
	return c.lru.Get(key)
}

// peek looks up key without affecting recency order.
func (c *reusableCache) peek(key reusableCopyKey) (*reusableEntry, bool) {
	return c.lru.Peek(key)
}

func (c *reusableCache) full() bool {
	return c.lru.Full()
}

func (c *reusableCache) evictOldest() *reusableEntry {
	key, v, ok := c.lru.Oldest()
	if !ok {
		return nil
	}
	c.lru.Remove(key)
	return v
}

func (c *reusableCache) put(entry *reusableEntry) {
	c.lru.Put(entry.key, entry)
}

func (c *reusableCache) len() int {
	return c.lru.Len()
}

package uploadheap

import (
	"container/list"
	"testing"

	"github.com/stretchr/testify/require"
)

func pushAlloc(c *chunk, offset, size int64) *list.Element {
	return c.allocations.PushBack(&stagingAllocation{offsetInChunk: offset, sizeInBytes: size})
}

func TestAlign(t *testing.T) {
	require.EqualValues(t, 304, align(300, 16))
	require.EqualValues(t, 112, align(100, 16))
	require.EqualValues(t, 0, align(0, 16))
}

func TestFindOffsetForAllocationEmptyChunk(t *testing.T) {
	c := newChunk(nil, 1024)
	offset, ok := findOffsetForAllocation(c, 300, 16)
	require.True(t, ok)
	require.EqualValues(t, 0, offset)
}

// Ring-buffer placement: a first allocation lands at offset 0, and a
// second allocation after it lands at align(300,16)=304.
func TestFindOffsetForAllocationNonWrapTail(t *testing.T) {
	c := newChunk(nil, 1024)
	pushAlloc(c, 0, 300)

	offset, ok := findOffsetForAllocation(c, 200, 16)
	require.True(t, ok)
	require.EqualValues(t, 304, offset)
}

// Once the chunk's tail runs out of room, a request that does fit before
// the live span's head is granted at offset 0 instead.
func TestFindOffsetForAllocationNonWrapFitsBeforeHead(t *testing.T) {
	c := newChunk(nil, 550)
	pushAlloc(c, 100, 400) // live span [100,500), tail at 500, head at 100; tail room=50, head room=100

	offset, ok := findOffsetForAllocation(c, 90, 16)
	require.True(t, ok)
	require.EqualValues(t, 0, offset)
}

// And a request that fits neither the tail's remaining room nor the gap
// before the head is refused outright.
func TestFindOffsetForAllocationNonWrapNoRoom(t *testing.T) {
	c := newChunk(nil, 600)
	pushAlloc(c, 100, 400) // tail at 500, head at 100; tail room=100, head room=100

	_, ok := findOffsetForAllocation(c, 150, 16)
	require.False(t, ok)
}

// Wrap case, the literal scenario from the placement algorithm: a chunk
// whose live span wraps (head at a higher offset than the tail) places a
// new allocation in the gap between the tail and the head.
func TestFindOffsetForAllocationWrap(t *testing.T) {
	c := newChunk(nil, 1024)
	pushAlloc(c, 600, 200) // head
	pushAlloc(c, 0, 100)   // tail

	offset, ok := findOffsetForAllocation(c, 400, 16)
	require.True(t, ok)
	require.EqualValues(t, 112, offset)
}

func TestFindOffsetForAllocationWrapNoRoom(t *testing.T) {
	c := newChunk(nil, 1024)
	pushAlloc(c, 600, 200)
	pushAlloc(c, 0, 100)

	_, ok := findOffsetForAllocation(c, 500, 16)
	require.False(t, ok)
}

func TestFindOffsetForAllocationTooLargeForChunk(t *testing.T) {
	c := newChunk(nil, 1024)
	_, ok := findOffsetForAllocation(c, 2048, 16)
	require.False(t, ok)
}

// A 600-byte request after reclaiming a 300-byte head allocation lands
// at align(304+200,16)=512, provided the chunk is large enough to hold
// it there (512+600=1112). A 1024-byte chunk as such is too small for
// this placement; this case exercises the formula at a capacity that can
// actually satisfy it, capacity and request sizes taken independently
// from the scenario's "no room after 1024" follow-up.
func TestFindOffsetForAllocationAfterReclaimLandsAtComputedOffset(t *testing.T) {
	c := newChunk(nil, 1112)
	pushAlloc(c, 304, 200) // the 200-byte allocation from offset 304 remains live

	offset, ok := findOffsetForAllocation(c, 600, 16)
	require.True(t, ok)
	require.EqualValues(t, 512, offset)
}

// In a 1024-byte chunk, the same 600-byte request has no room in the
// tail (512+600 > 1024) and no room before the head (600 > 304), so it
// is refused and the caller must append a new chunk.
func TestFindOffsetForAllocationNoRoomForcesNewChunk(t *testing.T) {
	c := newChunk(nil, 1024)
	pushAlloc(c, 304, 200)

	_, ok := findOffsetForAllocation(c, 600, 16)
	require.False(t, ok)
}

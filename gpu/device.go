package gpu

import "unsafe"

// Device is the capability interface both allocators require from the
// driver layer: heap and resource creation, tile mapping, and
// map/unmap of CPU-visible resources. A concrete implementation wraps a
// real device and command queue; this module never constructs one.
type Device interface {
	CreateHeap(props HeapProperties, flags HeapFlags, sizeInBytes int64) (Heap, error)
	CreatePlacedResource(heap Heap, offsetInHeap int64, desc ResourceDesc, initialState ResourceState) (Resource, error)
	CreateCommittedResource(props HeapProperties, flags HeapFlags, desc ResourceDesc, initialState ResourceState) (Resource, error)
	CreateReservedResource(desc ResourceDesc, initialState ResourceState) (Resource, error)
	UpdateTileMappings(resource Resource, tileRanges []TileRange, heapRanges []HeapRange) error

	CreateCommandAllocator(queueType CommandListType) (CommandAllocator, error)
	CreateCommandList(queueType CommandListType, allocator CommandAllocator) (CommandList, error)

	Map(resource Resource) (unsafe.Pointer, error)
	Unmap(resource Resource) error

	// SupportsTiledResources reports whether this device can back a
	// reserved resource with independently-mapped tiles. Queried once at
	// allocator construction and cached, never re-queried per allocation.
	SupportsTiledResources() bool
}

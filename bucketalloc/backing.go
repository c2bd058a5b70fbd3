package bucketalloc

import (
	"github.com/ozgrakkurt/d3d12mem/gpu"
)

// backingResource is a device resource handle plus a monotonically
// increasing resourceId. IDs never collide across the allocator's
// lifetime; they exist to make resource identity assertable in tests and
// debug logs independent of the underlying driver handle's identity.
type backingResource struct {
	resourceId  int64
	sizeInBytes int64
	resource    gpu.Resource
	// heaps backing this resource. For the untiled path this is exactly
	// one heap; for the tiled path it is every heap the resource's tiles
	// were mapped across.
	heaps []gpu.Heap
}

// createBacking allocates a fresh backingResource of bucketSize(index)
// bytes, using the tiled path if the device supports it and tiling is
// enabled, or the untiled placed/committed path otherwise.
func (a *Allocator) createBacking(index int) (*backingResource, error) {
	size := bucketSize(index)
	if a.tilingEnabled {
		return a.createTiledBacking(size)
	}
	return a.createUntiledBacking(size)
}

// createTiledBacking creates a reserved buffer resource of tiles*64KiB,
// allocates heaps whose tile counts sum to tiles (each capped at
// maxHeapSizeInTiles), and binds each tile range to its heap region with a
// static, identity tile mapping established once at creation.
func (a *Allocator) createTiledBacking(size int64) (*backingResource, error) {
	tiles := int((size + tileSizeInBytes - 1) / tileSizeInBytes)

	resource, err := a.device.CreateReservedResource(gpu.ResourceDesc{
		WidthInBytes: int64(tiles) * tileSizeInBytes,
		Flags:        a.resourceFlags,
	}, a.initialState)
	if err != nil {
		return nil, wrapError(ErrorKindOutOfDeviceMemory, err, "create reserved resource for %d tiles", tiles)
	}

	heaps := make([]gpu.Heap, 0, (tiles+a.maxHeapSizeInTiles-1)/a.maxHeapSizeInTiles)
	var tileRanges []gpu.TileRange
	var heapRanges []gpu.HeapRange

	remaining := tiles
	startTile := 0
	for remaining > 0 {
		heapTiles := remaining
		if heapTiles > a.maxHeapSizeInTiles {
			heapTiles = a.maxHeapSizeInTiles
		}

		heap, err := a.device.CreateHeap(a.heapProperties, a.heapFlags, int64(heapTiles)*tileSizeInBytes)
		if err != nil {
			return nil, wrapError(ErrorKindOutOfDeviceMemory, err, "create tile heap (%d tiles)", heapTiles)
		}
		heaps = append(heaps, heap)

		tileRanges = append(tileRanges, gpu.TileRange{StartTile: startTile, TileCount: heapTiles})
		heapRanges = append(heapRanges, gpu.HeapRange{Heap: heap, StartTile: 0, TileCount: heapTiles})

		startTile += heapTiles
		remaining -= heapTiles
	}

	if err := a.device.UpdateTileMappings(resource, tileRanges, heapRanges); err != nil {
		return nil, wrapError(ErrorKindOutOfDeviceMemory, err, "bind tile mappings for %d tiles across %d heaps", tiles, len(heaps))
	}

	return &backingResource{
		resourceId:  a.nextResourceID(),
		sizeInBytes: int64(tiles) * tileSizeInBytes,
		resource:    resource,
		heaps:       heaps,
	}, nil
}

// createUntiledBacking creates a placed resource inside a dedicated heap
// of exactly size bytes, or a committed resource when the
// UseCommittedResources option is set. One heap per allocation.
func (a *Allocator) createUntiledBacking(size int64) (*backingResource, error) {
	desc := gpu.ResourceDesc{WidthInBytes: size, Flags: a.resourceFlags}

	if a.useCommittedResources {
		resource, err := a.device.CreateCommittedResource(a.heapProperties, a.heapFlags, desc, a.initialState)
		if err != nil {
			return nil, wrapError(ErrorKindOutOfDeviceMemory, err, "create committed resource of %d bytes", size)
		}
		return &backingResource{resourceId: a.nextResourceID(), sizeInBytes: size, resource: resource}, nil
	}

	heap, err := a.device.CreateHeap(a.heapProperties, a.heapFlags, size)
	if err != nil {
		return nil, wrapError(ErrorKindOutOfDeviceMemory, err, "create heap of %d bytes", size)
	}

	resource, err := a.device.CreatePlacedResource(heap, 0, desc, a.initialState)
	if err != nil {
		return nil, wrapError(ErrorKindOutOfDeviceMemory, err, "create placed resource of %d bytes", size)
	}

	return &backingResource{
		resourceId:  a.nextResourceID(),
		sizeInBytes: size,
		resource:    resource,
		heaps:       []gpu.Heap{heap},
	}, nil
}

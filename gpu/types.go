// Package gpu declares the minimal capability surface that the bucket
// allocator and pooled upload heap require from a graphics driver and its
// command submission layer. Nothing in this package talks to real hardware;
// concrete drivers live outside this module and satisfy these interfaces.
package gpu

// HeapProperties describes the memory pool a heap is carved from (e.g.
// default/device-local vs. upload/host-visible). The concrete values are
// driver-defined; this package only moves them around opaquely.
type HeapProperties uint32

// HeapFlags are driver-defined bit flags passed through to heap creation.
type HeapFlags uint32

// ResourceFlags are driver-defined bit flags passed through to resource
// creation.
type ResourceFlags uint32

// ResourceState is a driver-defined resource state/barrier value (e.g.
// copy-dest, common, generic-read).
type ResourceState uint32

// CommandListType selects which command queue a command list targets
// (e.g. copy, compute, direct).
type CommandListType uint32

// ResourceDesc is the minimal description needed to create a buffer
// resource. Width is the resource's byte size; non-buffer descriptors are
// out of scope for this module.
type ResourceDesc struct {
	WidthInBytes int64
	Flags        ResourceFlags
}

// Heap is an opaque handle to a block of device memory.
type Heap interface {
	// SizeInBytes reports the heap's total capacity.
	SizeInBytes() int64
}

// Resource is an opaque handle to a buffer resource, whether committed,
// placed, or reserved.
type Resource interface {
	// SizeInBytes reports the resource's logical size as it was created.
	SizeInBytes() int64
}

// CommandAllocator is an opaque handle to a command allocator.
type CommandAllocator interface{}

// CommandList is an opaque handle to a recorded (or recordable) command
// list.
type CommandList interface {
	// Close finishes recording; no further commands may be appended.
	Close() error
}

// CompletionEvent represents a point in a command queue's timeline. It is
// monotonic: an event minted later than another will not fire before it.
type CompletionEvent interface {
	// Signaled reports whether all work submitted at or before this event
	// has retired on the GPU.
	Signaled() bool
}

// TileRange describes a contiguous run of tiles within a reserved
// resource's virtual tile space.
type TileRange struct {
	StartTile int
	TileCount int
}

// HeapRange describes a contiguous run of tiles within a heap that backs a
// TileRange.
type HeapRange struct {
	Heap      Heap
	StartTile int
	TileCount int
}

// BufferRegion is a logical view over a (possibly larger) backing
// resource: callers must honor Offset/Size rather than assume the resource
// is exactly their requested size.
type BufferRegion struct {
	Resource Resource
	Offset   int64
	Size     int64
}

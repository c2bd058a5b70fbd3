package bucketalloc

import "github.com/ozgrakkurt/d3d12mem/gpu"

// Ptr is the opaque handle returned by Alloc. It is a value type wrapping
// an allocationId, not a pointer into caller-owned memory and not a type
// with a Free method of its own — the arena-plus-handle redesign called
// for in place of the source's cyclic AllocationInfo/allocator ownership.
// The zero Ptr never corresponds to a live allocation (allocationId 0 is
// reserved), so it doubles as a null value.
type Ptr struct {
	id int64
}

// IsNil reports whether p is the zero value.
func (p Ptr) IsNil() bool { return p.id == 0 }

// AllocationInfo is the per-live-allocation record returned by
// GetAllocationInfo.
type AllocationInfo struct {
	Ptr            Ptr
	BucketIndex    int
	RequestedSize  int64
	BackingSize    int64
	Rounding       RoundingMode
	AllocationID   int64
	resourceHandle *backingResource
}

// allocationInfo is the mutable, allocator-owned slot addressed by
// allocationId. Callers never see this type directly.
type allocationInfo struct {
	allocationId  int64
	bucketIndex   int
	backing       *backingResource
	requestedSize int64
	backingSize   int64
	rounding      RoundingMode
}

func (a *allocationInfo) toPublic(p Ptr) AllocationInfo {
	return AllocationInfo{
		Ptr:            p,
		BucketIndex:    a.bucketIndex,
		RequestedSize:  a.requestedSize,
		BackingSize:    a.backingSize,
		Rounding:       a.rounding,
		AllocationID:   a.allocationId,
		resourceHandle: a.backing,
	}
}

func (info AllocationInfo) resource() gpu.Resource {
	return info.resourceHandle.resource
}

package bucketalloc

import (
	"sync"

	"github.com/dolthub/swiss"
	"golang.org/x/exp/slog"

	"github.com/ozgrakkurt/d3d12mem/gpu"
	"github.com/ozgrakkurt/d3d12mem/internal/dbg"
)

// CreateOptions configures a new Allocator.
type CreateOptions struct {
	HeapProperties gpu.HeapProperties
	HeapFlags      gpu.HeapFlags
	ResourceFlags  gpu.ResourceFlags
	InitialState   gpu.ResourceState

	// TilingEnabled requests the tiled backing path when the device also
	// reports tiled-resource support. Queried once at construction and
	// cached, not re-queried per call.
	TilingEnabled bool
	// MaxHeapSizeInTiles bounds the tile count of a single heap created
	// by the tiled path. Zero defaults to 512 (32 MiB).
	MaxHeapSizeInTiles int
	// UseCommittedResources selects committed resources over
	// heap+placed-resource pairs on the untiled path.
	UseCommittedResources bool
}

// Allocator serves opaque device pointers for tensor storage, backed by
// per-size-class free lists of reusable GPU resources. All public methods
// are safe for concurrent use: a single mutex is held for the duration of
// each call, since multiple producers may call concurrently.
type Allocator struct {
	logger *slog.Logger
	device gpu.Device

	heapProperties         gpu.HeapProperties
	heapFlags              gpu.HeapFlags
	resourceFlags          gpu.ResourceFlags
	initialState           gpu.ResourceState
	tilingEnabled          bool
	maxHeapSizeInTiles     int
	useCommittedResources  bool

	mu sync.Mutex

	defaultRounding RoundingMode
	buckets         []*bucket

	allocationsByID    *swiss.Map[int64, *allocationInfo]
	freeAllocationIDs  []int64
	currentAllocationID int64

	nextResourceIDCounter int64
}

// New constructs an Allocator against device, querying its tiled-resource
// support once and caching the result.
func New(logger *slog.Logger, device gpu.Device, opts CreateOptions) *Allocator {
	maxHeapSizeInTiles := opts.MaxHeapSizeInTiles
	if maxHeapSizeInTiles <= 0 {
		maxHeapSizeInTiles = defaultMaxHeapSizeInTiles
	}

	return &Allocator{
		logger:                logger,
		device:                device,
		heapProperties:        opts.HeapProperties,
		heapFlags:             opts.HeapFlags,
		resourceFlags:         opts.ResourceFlags,
		initialState:          opts.InitialState,
		tilingEnabled:         opts.TilingEnabled && device.SupportsTiledResources(),
		maxHeapSizeInTiles:    maxHeapSizeInTiles,
		useCommittedResources: opts.UseCommittedResources,
		defaultRounding:       RoundingEnabled,
		allocationsByID:       swiss.NewMap[int64, *allocationInfo](64),
	}
}

func (a *Allocator) nextResourceID() int64 {
	a.nextResourceIDCounter++
	return a.nextResourceIDCounter
}

// SetDefaultRoundingMode switches between Enabled (round up to bucket,
// reuse via free lists) and Disabled (exact-sized dedicated resource, no
// reuse) for future Alloc calls.
func (a *Allocator) SetDefaultRoundingMode(mode RoundingMode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.defaultRounding = mode
}

// Alloc reserves a device-visible buffer of at least sizeInBytes and
// returns an opaque pointer identifying it.
func (a *Allocator) Alloc(sizeInBytes int64) (Ptr, error) {
	if sizeInBytes <= 0 {
		return Ptr{}, newError(ErrorKindInvalidArgument, "allocation size must be positive, got %d", sizeInBytes)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	rounding := a.defaultRounding

	var (
		backing     *backingResource
		bucketIdx   int
		backingSize int64
		err         error
	)

	if rounding == RoundingEnabled {
		backingSize = computeRequiredSize(sizeInBytes)
		bucketIdx = bucketIndex(backingSize)
		b := a.bucketAt(bucketIdx)

		if backing = b.pop(); backing == nil {
			backing, err = a.createBacking(bucketIdx)
			if err != nil {
				return Ptr{}, err
			}
		}
	} else {
		bucketIdx = -1
		backing, err = a.createDedicatedBacking(sizeInBytes)
		if err != nil {
			return Ptr{}, err
		}
		backingSize = backing.sizeInBytes
	}

	id, err := a.reserveAllocationID()
	if err != nil {
		// Roll back: return the backing to its bucket (or just drop the
		// dedicated one) so allocator state matches the pre-call state.
		if rounding == RoundingEnabled {
			a.bucketAt(bucketIdx).push(backing)
		}
		return Ptr{}, err
	}

	info := &allocationInfo{
		allocationId:  id,
		bucketIndex:   bucketIdx,
		backing:       backing,
		requestedSize: sizeInBytes,
		backingSize:   backingSize,
		rounding:      rounding,
	}
	a.allocationsByID.Put(id, info)

	dbg.DebugValidateFunc(a.validateLocked)

	return Ptr{id: id}, nil
}

// createDedicatedBacking creates a resource bypassing buckets, for
// RoundingDisabled allocations. It reuses the tiled/untiled selection
// logic at the requested size rather than a bucket size: the untiled path
// creates a resource of exactly that size, the tiled path rounds it up to
// a whole number of 64 KiB tiles.
func (a *Allocator) createDedicatedBacking(size int64) (*backingResource, error) {
	if a.tilingEnabled {
		return a.createTiledBacking(size)
	}
	return a.createUntiledBacking(size)
}

func (a *Allocator) bucketAt(index int) *bucket {
	for len(a.buckets) <= index {
		a.buckets = append(a.buckets, newBucket(len(a.buckets)))
	}
	return a.buckets[index]
}

// Free returns ptr's backing resource to its bucket's free list (or drops
// it, if it bypassed buckets) and releases its allocationId. No device
// calls are made. Freeing an unknown pointer is a programmer error.
func (a *Allocator) Free(p Ptr) error {
	if p.IsNil() {
		return ErrNilPointer
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	info, ok := a.allocationsByID.Get(p.id)
	if !ok {
		dbg.DebugAssert(false, "Free called with a pointer that does not correspond to a live allocation")
		return ErrUnknownPointer
	}

	if info.rounding == RoundingEnabled {
		a.bucketAt(info.bucketIndex).push(info.backing)
	}

	a.allocationsByID.Delete(p.id)
	a.releaseAllocationID(p.id)

	dbg.DebugValidateFunc(a.validateLocked)

	return nil
}

// CreateBufferRegion returns a logical view over ptr's backing resource.
// The physical resource may be larger than size due to bucket rounding;
// callers must honor the returned offset and size.
func (a *Allocator) CreateBufferRegion(p Ptr, size int64) (gpu.BufferRegion, error) {
	if p.IsNil() {
		return gpu.BufferRegion{}, ErrNilPointer
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	info, ok := a.allocationsByID.Get(p.id)
	if !ok {
		return gpu.BufferRegion{}, ErrUnknownPointer
	}

	return gpu.BufferRegion{
		Resource: info.backing.resource,
		Offset:   0,
		Size:     size,
	}, nil
}

// GetAllocationInfo returns the live record for ptr in O(1).
func (a *Allocator) GetAllocationInfo(p Ptr) (AllocationInfo, error) {
	if p.IsNil() {
		return AllocationInfo{}, ErrNilPointer
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	info, ok := a.allocationsByID.Get(p.id)
	if !ok {
		return AllocationInfo{}, ErrUnknownPointer
	}

	return info.toPublic(p), nil
}

// reserveAllocationID prefers popping from freeAllocationIDs (the most
// recently released ID is reused first, LIFO; a freed ID always reappears
// before currentAllocationID advances); otherwise it increments
// currentAllocationID, which starts at 0 so the first minted ID is 1. ID 0
// is never handed out.
func (a *Allocator) reserveAllocationID() (int64, error) {
	n := len(a.freeAllocationIDs)
	if n > 0 {
		id := a.freeAllocationIDs[n-1]
		a.freeAllocationIDs = a.freeAllocationIDs[:n-1]
		return id, nil
	}

	if a.currentAllocationID == 1<<32-1 {
		return 0, newError(ErrorKindAllocationIDsExhausted, "32-bit allocation id space exhausted")
	}

	a.currentAllocationID++
	return a.currentAllocationID, nil
}

func (a *Allocator) releaseAllocationID(id int64) {
	a.freeAllocationIDs = append(a.freeAllocationIDs, id)
}

// Destroy reports any allocations that were never freed. It is a no-op
// in release builds; in debugmem builds it logs each leaked pointer's
// allocation id and size.
func (a *Allocator) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !dbg.Enabled() {
		return
	}

	count := a.allocationsByID.Count()
	if count == 0 {
		return
	}

	a.allocationsByID.Iter(func(id int64, info *allocationInfo) (stop bool) {
		a.logger.Error("unreleased bucket allocation at shutdown",
			slog.Int64("allocationId", id),
			slog.Int64("requestedSize", info.requestedSize),
			slog.Int64("backingSize", info.backingSize))
		return false
	})
}

// Validate walks allocator state and returns an error describing the
// first invariant violation found. The allocator's own debugmem checks
// call validateLocked through dbg.DebugValidateFunc instead, since they
// already hold the lock.
func (a *Allocator) Validate() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.validateLocked()
}

func (a *Allocator) validateLocked() error {
	var firstMismatch error
	a.allocationsByID.Iter(func(id int64, info *allocationInfo) (stop bool) {
		if info.allocationId != id {
			firstMismatch = newError(ErrorKindInvalidArgument, "allocationsByID[%d].allocationId == %d", id, info.allocationId)
			return true
		}
		return false
	})
	if firstMismatch != nil {
		return firstMismatch
	}

	for _, b := range a.buckets {
		want := bucketSize(b.index)
		for _, r := range b.idle {
			if r.sizeInBytes != want {
				return newError(ErrorKindInvalidArgument, "bucket %d holds a resource of size %d, want %d", b.index, r.sizeInBytes, want)
			}
		}
	}
	return nil
}

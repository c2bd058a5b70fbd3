// Package fakegpu provides in-memory implementations of gpu.Device and
// gpu.Executor for tests. They hold real Go byte slices behind Map/Unmap
// and track submitted copies so tests can assert on them without a real
// graphics driver.
package fakegpu

import (
	"unsafe"

	"github.com/cockroachdb/errors"

	"github.com/ozgrakkurt/d3d12mem/gpu"
)

type Heap struct {
	size int64
}

func (h *Heap) SizeInBytes() int64 { return h.size }

type Resource struct {
	size int64
	data []byte
}

func (r *Resource) SizeInBytes() int64 { return r.size }

// Bytes exposes the resource's backing storage directly, for tests that
// want to assert on bytes written by a copy without going through Map.
func (r *Resource) Bytes() []byte { return r.data }

type CommandAllocator struct{}

// CommandList is a fake recorded command list. It remembers the single
// copy it was asked to record so that replaying it via ExecuteCommandList
// actually moves bytes, the way a real re-executed command list would.
type CommandList struct {
	closed  bool
	dst     *Resource
	dstOff  int64
	src     *Resource
	srcOff  int64
	size    int64
}

func (c *CommandList) Close() error {
	c.closed = true
	return nil
}

// CompletionEvent is a fake completion token. It is signaled once the
// executor's watermark reaches its sequence number, so firing the
// latest-minted event implicitly signals every earlier one too -
// matching the real contract that completion events are monotonic per
// queue.
type CompletionEvent struct {
	seq       int
	watermark *int
}

func (e *CompletionEvent) Signaled() bool { return *e.watermark >= e.seq }

// Device is a fake gpu.Device that allocates real Go memory for every
// heap and resource it is asked to create.
type Device struct {
	SupportsTiling bool
	// FailNextCreate, if set, makes the next heap/resource creation or
	// UpdateTileMappings call return this error instead of succeeding,
	// then clears itself.
	FailNextCreate error
}

func (d *Device) maybeFail() error {
	if d.FailNextCreate != nil {
		err := d.FailNextCreate
		d.FailNextCreate = nil
		return err
	}
	return nil
}

func (d *Device) CreateHeap(props gpu.HeapProperties, flags gpu.HeapFlags, sizeInBytes int64) (gpu.Heap, error) {
	if err := d.maybeFail(); err != nil {
		return nil, err
	}
	return &Heap{size: sizeInBytes}, nil
}

func (d *Device) CreatePlacedResource(heap gpu.Heap, offsetInHeap int64, desc gpu.ResourceDesc, initialState gpu.ResourceState) (gpu.Resource, error) {
	if err := d.maybeFail(); err != nil {
		return nil, err
	}
	return &Resource{size: desc.WidthInBytes, data: make([]byte, desc.WidthInBytes)}, nil
}

func (d *Device) CreateCommittedResource(props gpu.HeapProperties, flags gpu.HeapFlags, desc gpu.ResourceDesc, initialState gpu.ResourceState) (gpu.Resource, error) {
	if err := d.maybeFail(); err != nil {
		return nil, err
	}
	return &Resource{size: desc.WidthInBytes, data: make([]byte, desc.WidthInBytes)}, nil
}

func (d *Device) CreateReservedResource(desc gpu.ResourceDesc, initialState gpu.ResourceState) (gpu.Resource, error) {
	if err := d.maybeFail(); err != nil {
		return nil, err
	}
	return &Resource{size: desc.WidthInBytes, data: make([]byte, desc.WidthInBytes)}, nil
}

func (d *Device) UpdateTileMappings(resource gpu.Resource, tileRanges []gpu.TileRange, heapRanges []gpu.HeapRange) error {
	return d.maybeFail()
}

func (d *Device) CreateCommandAllocator(queueType gpu.CommandListType) (gpu.CommandAllocator, error) {
	return &CommandAllocator{}, nil
}

func (d *Device) CreateCommandList(queueType gpu.CommandListType, allocator gpu.CommandAllocator) (gpu.CommandList, error) {
	return &CommandList{}, nil
}

func (d *Device) Map(resource gpu.Resource) (unsafe.Pointer, error) {
	r, ok := resource.(*Resource)
	if !ok || len(r.data) == 0 {
		return nil, errors.New("cannot map a zero-length or foreign resource")
	}
	return unsafe.Pointer(&r.data[0]), nil
}

func (d *Device) Unmap(resource gpu.Resource) error {
	return nil
}

func (d *Device) SupportsTiledResources() bool {
	return d.SupportsTiling
}

// CopyCall records one CopyBufferRegion invocation for assertions.
type CopyCall struct {
	Dst       gpu.Resource
	DstOffset int64
	Src       gpu.Resource
	SrcOffset int64
	Size      int64
}

// Executor is a fake gpu.Executor that performs copies immediately
// against fakegpu.Resource byte slices and mints incrementing completion
// events.
type Executor struct {
	QueueType  gpu.CommandListType
	Copies     []CopyCall
	Executed   []gpu.CommandList
	Referenced []any

	seq       int
	watermark int
}

func NewExecutor() *Executor {
	return &Executor{}
}

func (e *Executor) CopyBufferRegion(dst gpu.Resource, dstOffset int64, dstState gpu.ResourceState, src gpu.Resource, srcOffset int64, srcState gpu.ResourceState, size int64) error {
	dstRes, ok := dst.(*Resource)
	if !ok {
		return errors.New("fake executor requires *fakegpu.Resource destinations")
	}
	srcRes, ok := src.(*Resource)
	if !ok {
		return errors.New("fake executor requires *fakegpu.Resource sources")
	}
	if dstOffset+size > dstRes.size || srcOffset+size > srcRes.size {
		return errors.New("copy out of bounds")
	}
	copy(dstRes.data[dstOffset:dstOffset+size], srcRes.data[srcOffset:srcOffset+size])
	e.Copies = append(e.Copies, CopyCall{Dst: dst, DstOffset: dstOffset, Src: src, SrcOffset: srcOffset, Size: size})
	e.mintEvent()
	return nil
}

func (e *Executor) RecordCopyBufferRegion(list gpu.CommandList, dst gpu.Resource, dstOffset int64, dstState gpu.ResourceState, src gpu.Resource, srcOffset int64, srcState gpu.ResourceState, size int64) error {
	cl, ok := list.(*CommandList)
	if !ok {
		return errors.New("fake executor requires *fakegpu.CommandList")
	}
	dstRes, ok := dst.(*Resource)
	if !ok {
		return errors.New("fake executor requires *fakegpu.Resource destinations")
	}
	srcRes, ok := src.(*Resource)
	if !ok {
		return errors.New("fake executor requires *fakegpu.Resource sources")
	}
	cl.dst, cl.dstOff, cl.src, cl.srcOff, cl.size = dstRes, dstOffset, srcRes, srcOffset, size
	return nil
}

func (e *Executor) ExecuteCommandList(list gpu.CommandList) (gpu.CompletionEvent, error) {
	cl, ok := list.(*CommandList)
	if ok && cl.src != nil {
		copy(cl.dst.data[cl.dstOff:cl.dstOff+cl.size], cl.src.data[cl.srcOff:cl.srcOff+cl.size])
	}
	e.Executed = append(e.Executed, list)
	return e.mintEvent(), nil
}

func (e *Executor) mintEvent() *CompletionEvent {
	e.seq++
	return &CompletionEvent{seq: e.seq, watermark: &e.watermark}
}

func (e *Executor) GetCurrentCompletionEvent() gpu.CompletionEvent {
	return &CompletionEvent{seq: e.seq, watermark: &e.watermark}
}

func (e *Executor) GetCommandListTypeForQueue() gpu.CommandListType {
	return e.QueueType
}

func (e *Executor) QueueReference(obj any) {
	e.Referenced = append(e.Referenced, obj)
}

// FireAll marks every completion event minted so far as signaled,
// simulating GPU retirement up to "now".
func (e *Executor) FireAll() {
	e.watermark = e.seq
}

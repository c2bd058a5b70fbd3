package bucketalloc

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// DumpStats renders a JSON snapshot of allocator state: live allocation
// count and, per bucket, its size class and idle-resource count.
func (a *Allocator) DumpStats() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	w := jwriter.NewWriter()
	obj := w.Object()

	obj.Name("liveAllocations").Int(a.allocationsByID.Count())
	obj.Name("currentAllocationId").Int(int(a.currentAllocationID))
	obj.Name("freeAllocationIds").Int(len(a.freeAllocationIDs))

	buckets := obj.Name("buckets").Array()
	for _, b := range a.buckets {
		bo := buckets.Object()
		bo.Name("index").Int(b.index)
		bo.Name("sizeInBytes").Int(int(bucketSize(b.index)))
		bo.Name("idleCount").Int(len(b.idle))
		bo.End()
	}
	buckets.End()

	obj.End()

	if err := w.Error(); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

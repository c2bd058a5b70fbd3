package uploadheap

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// DumpStats renders a JSON snapshot of heap state: total chunk capacity,
// per-chunk allocation counts, and the reusable copy cache's occupancy.
// Grounded on the same teacher BuildStatsString pattern as
// bucketalloc.DumpStats.
func (h *UploadHeap) DumpStats() ([]byte, error) {
	w := jwriter.NewWriter()
	obj := w.Object()

	obj.Name("chunkCount").Int(len(h.chunks))
	obj.Name("totalCapacityInBytes").Int(int(h.totalCapacity))
	obj.Name("reusableCacheLen").Int(h.cache.len())

	chunks := obj.Name("chunks").Array()
	for _, c := range h.chunks {
		co := chunks.Object()
		co.Name("capacityInBytes").Int(int(c.capacityInBytes))
		co.Name("allocationCount").Int(c.allocations.Len())
		co.End()
	}
	chunks.End()

	obj.End()

	if err := w.Error(); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

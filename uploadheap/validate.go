package uploadheap

// validate checks internal invariants that must hold between calls:
// every chunk's allocation list stays within its capacity and, when the
// live span wraps, the wrapped span's two pieces do not overlap. It is
// only run through dbg.DebugValidateFunc, which no-ops unless the
// debugmem build tag is set.
func (h *UploadHeap) validate() error {
	for _, c := range h.chunks {
		if c.allocations.Len() == 0 {
			continue
		}
		first := c.front()
		last := c.back()
		lastEnd := last.offsetInChunk + last.sizeInBytes
		if lastEnd > c.capacityInBytes {
			return newError(ErrorKindInvalidArgument, "chunk allocation ends at %d past capacity %d", lastEnd, c.capacityInBytes)
		}
		if first.offsetInChunk > last.offsetInChunk && lastEnd > first.offsetInChunk {
			return newError(ErrorKindInvalidArgument, "wrapped chunk allocations overlap: tail ends at %d, head starts at %d", lastEnd, first.offsetInChunk)
		}
	}
	return nil
}

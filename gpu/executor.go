package gpu

// Executor is the capability interface the pooled upload heap requires
// from the command submission layer: issuing copies, executing cached
// command lists, and minting/inspecting completion events. The real
// implementation lives in the ML runtime this module plugs into.
type Executor interface {
	// CopyBufferRegion issues a copy, plus any state transitions, onto
	// this executor's implicitly-current command list and submits it
	// immediately. Used by the non-cached upload path.
	CopyBufferRegion(dst Resource, dstOffset int64, dstState ResourceState, src Resource, srcOffset int64, srcState ResourceState, size int64) error

	// RecordCopyBufferRegion records a copy, plus any state transitions,
	// into list without submitting it. Used by the cached upload path to
	// build a reusable command list that is submitted later (and again,
	// repeatedly) via ExecuteCommandList.
	RecordCopyBufferRegion(list CommandList, dst Resource, dstOffset int64, dstState ResourceState, src Resource, srcOffset int64, srcState ResourceState, size int64) error

	// ExecuteCommandList submits a prerecorded command list and returns
	// the completion event that fires once it has retired.
	ExecuteCommandList(list CommandList) (CompletionEvent, error)

	// GetCurrentCompletionEvent returns an event that fires once
	// everything enqueued so far on this executor's queue has retired.
	GetCurrentCompletionEvent() CompletionEvent

	GetCommandListTypeForQueue() CommandListType

	// QueueReference keeps obj alive until the current completion event
	// fires. Used to pin command allocators/lists referenced by work that
	// has been submitted but not yet retired.
	QueueReference(obj any)
}

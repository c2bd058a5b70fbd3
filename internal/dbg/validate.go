// Package dbg hosts debug-only instrumentation shared by bucketalloc and
// uploadheap: invariant checking, assertions, and the Enabled toggle that
// gates bucketalloc's report of unreleased allocations, all of which
// release builds must not pay for. Build with the debugmem tag to enable
// it; see validate_debug.go and validate_prod.go.
package dbg

// Validatable is implemented by anything whose internal invariants can be
// walked and checked. DebugValidate no-ops on it unless the debugmem
// build tag is present.
type Validatable interface {
	Validate() error
}

// Enabled reports whether this binary was built with the debugmem tag.
// Callers can use it to skip building a diagnostic payload (e.g. an
// outstanding-allocation dump) when debug checking is compiled out.
func Enabled() bool {
	return enabled
}

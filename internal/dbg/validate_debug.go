//go:build debugmem

package dbg

import "github.com/pkg/errors"

const enabled = true

// DebugValidate calls Validate on v and panics if it returns an error.
// This is a contract-violation check, not a runtime condition: it exists
// to catch invariant breaks during development, not to be handled by
// callers.
func DebugValidate(v Validatable) {
	if err := v.Validate(); err != nil {
		panic(err)
	}
}

// DebugValidateFunc calls fn and panics if it returns an error. Used by
// callers that need to validate while already holding a lock that
// Validate() would otherwise try to re-acquire.
func DebugValidateFunc(fn func() error) {
	if err := fn(); err != nil {
		panic(err)
	}
}

// DebugAssert panics with msg if cond is false.
func DebugAssert(cond bool, msg string) {
	if !cond {
		panic(errors.New(msg))
	}
}

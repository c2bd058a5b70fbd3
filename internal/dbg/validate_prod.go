//go:build !debugmem

package dbg

const enabled = false

// DebugValidate no-ops unless the debugmem build tag is present.
func DebugValidate(v Validatable) {}

// DebugValidateFunc no-ops unless the debugmem build tag is present.
func DebugValidateFunc(fn func() error) {}

// DebugAssert no-ops unless the debugmem build tag is present.
func DebugAssert(cond bool, msg string) {}

package bucketalloc

import "github.com/cockroachdb/errors"

// ErrorKind classifies the errors this package returns, per the error
// taxonomy shared across both allocators.
type ErrorKind int

const (
	// ErrorKindOutOfDeviceMemory indicates the device refused a heap or
	// resource creation.
	ErrorKindOutOfDeviceMemory ErrorKind = iota
	// ErrorKindAllocationIDsExhausted indicates the 32-bit allocation-ID
	// space wrapped. Not expected in practice.
	ErrorKindAllocationIDsExhausted
	// ErrorKindInvalidArgument indicates a contract violation such as a
	// nil pointer passed to Free or GetAllocationInfo.
	ErrorKindInvalidArgument
	// ErrorKindDeviceLost indicates the device reported a fatal,
	// unrecoverable error.
	ErrorKindDeviceLost
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindOutOfDeviceMemory:
		return "OutOfDeviceMemory"
	case ErrorKindAllocationIDsExhausted:
		return "AllocationIDsExhausted"
	case ErrorKindInvalidArgument:
		return "InvalidArgument"
	case ErrorKindDeviceLost:
		return "DeviceLost"
	default:
		return "Unknown"
	}
}

// Error wraps an underlying error with a classification so callers can
// branch on kind via errors.As.
type Error struct {
	Kind  ErrorKind
	cause error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error { return e.cause }

func newError(kind ErrorKind, format string, args ...interface{}) error {
	return &Error{Kind: kind, cause: errors.Newf(format, args...)}
}

func wrapError(kind ErrorKind, cause error, format string, args ...interface{}) error {
	return &Error{Kind: kind, cause: errors.Wrapf(cause, format, args...)}
}

var (
	// ErrNilPointer is returned by Free and GetAllocationInfo when
	// passed the zero Ptr value.
	ErrNilPointer = newError(ErrorKindInvalidArgument, "nil allocation pointer")
	// ErrUnknownPointer is returned by Free, CreateBufferRegion, and
	// GetAllocationInfo when the pointer does not correspond to a live
	// allocation. Freeing an unknown pointer is a programmer error; in
	// debug builds it is additionally a fatal assertion.
	ErrUnknownPointer = newError(ErrorKindInvalidArgument, "pointer does not correspond to a live allocation")
)

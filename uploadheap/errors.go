package uploadheap

import "github.com/cockroachdb/errors"

// ErrorKind classifies the errors this package returns.
type ErrorKind int

const (
	// ErrorKindInvalidArgument indicates a contract violation such as an
	// empty source buffer or a non-buffer destination resource.
	ErrorKindInvalidArgument ErrorKind = iota
	// ErrorKindOutOfDeviceMemory indicates a staging chunk's heap/resource
	// creation was refused.
	ErrorKindOutOfDeviceMemory
	// ErrorKindExecutionFailure indicates the executor failed to record,
	// close, or execute a copy or command list.
	ErrorKindExecutionFailure
	// ErrorKindDeviceLost indicates a map/unmap call failed fatally.
	ErrorKindDeviceLost
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindInvalidArgument:
		return "InvalidArgument"
	case ErrorKindOutOfDeviceMemory:
		return "OutOfDeviceMemory"
	case ErrorKindExecutionFailure:
		return "ExecutionFailure"
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

// ErrEmptySource is returned by BeginUploadToGpu/BeginReusableUploadToGpu
// when src is empty.
var ErrEmptySource = newError(ErrorKindInvalidArgument, "source buffer must be non-empty")

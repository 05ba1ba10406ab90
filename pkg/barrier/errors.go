package barrier

import "errors"

var (
	// ErrInvalidArgument reports a nil or destroyed handle, a zero
	// participant count, or an unrecognized attribute value.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrBusy reports an operation on a barrier that is currently in use.
	ErrBusy = errors.New("barrier is in use")

	// ErrExhausted reports that the registry's barrier capacity is spent.
	ErrExhausted = errors.New("barrier registry exhausted")

	// ErrUnsupported reports a request for process-shared barriers, which
	// this implementation cannot provide.
	ErrUnsupported = errors.New("process-shared barriers are not supported")
)

package fs

import "errors"

// OpError is the error type returned by namespace operations.
//
// These are domain errors (path not found, name already taken, etc.) as
// opposed to infrastructure errors (device I/O failure). Callers switch on
// Code; Message and Path are for humans.
type OpError struct {
	// Code is the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Path is the path the operation was given, if applicable.
	Path string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *OpError) Unwrap() error { return e.Err }

// CodeOf extracts the ErrorCode from err, or ErrIOFailure if err is not an
// OpError.
func CodeOf(err error) ErrorCode {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Code
	}
	return ErrIOFailure
}

// ErrorCode categorizes operation failures.
type ErrorCode int

const (
	// ErrInvalidPath indicates a malformed component (too long) or a
	// traversal through a missing or non-directory intermediate component.
	ErrInvalidPath ErrorCode = iota

	// ErrNotFound indicates the last component is absent from its parent.
	ErrNotFound

	// ErrAlreadyExists indicates a create found the last component already
	// resolving to an existing inode.
	ErrAlreadyExists

	// ErrAllocationFailure indicates free space was exhausted or inode
	// initialization failed. Any storage already allocated for the call
	// has been released.
	ErrAllocationFailure

	// ErrBusyDirectory indicates a remove targeted the caller's own
	// working directory.
	ErrBusyDirectory

	// ErrNotADirectory indicates a directory was expected and a file found.
	ErrNotADirectory

	// ErrIOFailure indicates a collaborator failed for infrastructure
	// reasons (device I/O, cache trouble).
	ErrIOFailure
)

// String returns the mnemonic for the code.
func (c ErrorCode) String() string {
	switch c {
	case ErrInvalidPath:
		return "invalid path"
	case ErrNotFound:
		return "not found"
	case ErrAlreadyExists:
		return "already exists"
	case ErrAllocationFailure:
		return "allocation failure"
	case ErrBusyDirectory:
		return "busy directory"
	case ErrNotADirectory:
		return "not a directory"
	case ErrIOFailure:
		return "i/o failure"
	default:
		return "unknown"
	}
}

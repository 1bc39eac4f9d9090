package vfs

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the container wraps exactly one of these.
var (
	ErrCorrupt          = errors.New("container corrupt")
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrNotEmpty         = errors.New("directory not empty")
	ErrIO               = errors.New("I/O error")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrNoSpace          = errors.New("no free cluster")
)

// Corruption details
var (
	ErrSignatureMismatch = fmt.Errorf("%w: signature mismatch", ErrCorrupt)
	ErrChecksumMismatch  = fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	ErrVersionMismatch   = fmt.Errorf("%w: unsupported version", ErrCorrupt)
	ErrRootNotFound      = fmt.Errorf("%w: root directory not found", ErrCorrupt)
	ErrLostAndFound      = fmt.Errorf("%w: lost and found", ErrCorrupt)
	ErrBrokenChain       = fmt.Errorf("%w: broken cluster chain", ErrCorrupt)
)

// Invalid operation details
var (
	ErrNotOpen      = fmt.Errorf("%w: container not open", ErrInvalidOperation)
	ErrInvalidName  = fmt.Errorf("%w: invalid name", ErrInvalidOperation)
	ErrRejected     = fmt.Errorf("%w: change rejected", ErrInvalidOperation)
	ErrStaleStream  = fmt.Errorf("%w: stream belongs to a previous container state", ErrInvalidOperation)
	ErrClosed       = fmt.Errorf("%w: stream closed", ErrInvalidOperation)
	ErrOutOfRange   = fmt.Errorf("%w: out of range", ErrInvalidOperation)
	ErrClusterSize  = fmt.Errorf("%w: unsupported cluster size", ErrInvalidOperation)
	ErrIsDirectory  = fmt.Errorf("%w: is a directory", ErrInvalidOperation)
	ErrNotDirectory = fmt.Errorf("%w: not a directory", ErrInvalidOperation)
)

// Error carries the operation and object an error occurred on.
type Error struct {
	Err    error  // Underlying kind
	Op     string // Operation that failed
	Object string // Path, cluster or node the operation was working on
	Detail string // Additional detail
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Err.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Object != "" {
		msg += " (" + e.Object + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// newError creates a new container error
func newError(err error, op, object, detail string) *Error {
	return &Error{
		Err:    err,
		Op:     op,
		Object: object,
		Detail: detail,
	}
}

// ioError wraps a host I/O failure. Errors that already carry a kind are returned unchanged.
func ioError(op, object string, err error) error {
	if err == nil || hasKind(err) {
		return err
	}
	return &Error{Err: fmt.Errorf("%w: %w", ErrIO, err), Op: op, Object: object}
}

func hasKind(err error) bool {
	for _, kind := range []error{ErrCorrupt, ErrNotFound, ErrAlreadyExists, ErrNotEmpty, ErrIO, ErrInvalidOperation, ErrNoSpace} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// IsCorrupt returns true if the error reports on-disk corruption
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorrupt)
}

// IsNotFound returns true if the error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists returns true if the error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsNotEmpty returns true if the error is a directory not empty error
func IsNotEmpty(err error) bool {
	return errors.Is(err, ErrNotEmpty)
}

// IsIO returns true if the error is a host I/O error
func IsIO(err error) bool {
	return errors.Is(err, ErrIO)
}

// IsInvalidOperation returns true if the operation was not allowed in the current state
func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

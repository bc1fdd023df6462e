package base

import (
	"errors"
	"fmt"
)

var (
	// ErrResourceExhausted is returned when a handle or mapping could not be
	// allocated.
	ErrResourceExhausted = errors.New("bedrock: resource exhausted")

	// ErrIO matches every IOError.
	ErrIO = errors.New("bedrock: io failure")

	// ErrInvalidState is returned by operations on a closed or shut down
	// resource.
	ErrInvalidState = errors.New("bedrock: invalid state")

	// ErrTimeout is returned when a bounded wait elapsed without completing.
	ErrTimeout = errors.New("bedrock: timeout")

	// ErrLocked is wrapped by the IOError returned when a file lock is
	// already held.
	ErrLocked = errors.New("bedrock: file already locked")
)

// IOError describes a failed read/write/map/unmap/flush call on a named
// resource.
type IOError struct {
	Op   string
	Name string
	Err  error
}

// NewIOError returns nil if err is nil.
func NewIOError(op, name string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Name: name, Err: err}
}

func (e *IOError) Error() string {
	return fmt.Sprintf("bedrock: %s %s: %v", e.Op, e.Name, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

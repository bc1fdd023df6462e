package env

import (
	"errors"

	"bedrock/internal/base"
)

var (
	ErrResourceExhausted = base.ErrResourceExhausted
	ErrIO                = base.ErrIO
	ErrInvalidState      = base.ErrInvalidState
	ErrTimeout           = base.ErrTimeout
	ErrLocked            = base.ErrLocked

	ErrInvalidConfig = errors.New("bedrock: invalid config")
)

// IOError carries the operation and file name of a failed system call.
type IOError = base.IOError

package env

import (
	"time"

	"go.uber.org/zap"
)

type Option func(*PosixEnv)

// WithBackgroundThreads sets the number of workers behind Schedule.
func WithBackgroundThreads(n int) Option {
	return func(e *PosixEnv) {
		e.threads = n
	}
}

// WithDirectIO makes NewWritableFile bypass the page cache.
func WithDirectIO(enabled bool) Option {
	return func(e *PosixEnv) {
		e.directIO = enabled
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *PosixEnv) {
		if logger != nil {
			e.log = logger
		}
	}
}

// WithMapSize sets the first and largest region of memory mapped writable
// files. Zero keeps the default.
func WithMapSize(initial, max int) Option {
	return func(e *PosixEnv) {
		if initial != 0 {
			e.mapInitial = initial
		}
		if max != 0 {
			e.mapMax = max
		}
	}
}

func WithIdleWait(d time.Duration) Option {
	return func(e *PosixEnv) {
		e.idleWait = d
	}
}

// WithShutdownTimeout bounds how long Close waits for queued tasks. Zero
// waits indefinitely.
func WithShutdownTimeout(d time.Duration) Option {
	return func(e *PosixEnv) {
		e.shutdownTimeout = d
	}
}

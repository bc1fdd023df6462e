package env

import (
	"sync"
	"sync/atomic"
)

var (
	defaultOnce sync.Once
	defaultEnv  atomic.Pointer[PosixEnv]
)

// Default returns the process-wide env, creating it with default options on
// first use. After CloseDefault it keeps returning the closed env, whose
// Schedule reports false.
func Default() *PosixEnv {
	defaultOnce.Do(func() {
		e, err := New()
		if err != nil {
			// Default options always validate.
			panic(err)
		}
		defaultEnv.Store(e)
	})
	return defaultEnv.Load()
}

// CloseDefault shuts down the process-wide env if it was ever created.
// Everything scheduled on it must be finished, or at least safe to run
// during the drain, before this is called.
func CloseDefault() error {
	if e := defaultEnv.Load(); e != nil {
		return e.Close()
	}
	return nil
}

package pool

import (
	"time"

	"go.uber.org/zap"
)

const (
	DefaultWorkers = 5

	// DefaultIdleWait bounds how long an idle worker sleeps before it looks
	// at its own state again, and so how long a shutdown request can go
	// unnoticed.
	DefaultIdleWait = 20 * time.Millisecond
)

type Option func(*Pool)

func WithLogger(logger *zap.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.log = logger
		}
	}
}

func WithIdleWait(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.idleWait = d
		}
	}
}

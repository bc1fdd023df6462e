package port

import (
	"sync"
	"time"
)

// Infinite makes a wait block until it is signaled.
const Infinite time.Duration = -1

type ResetMode uint8

const (
	// ManualReset signals stay set until Clear is called and release every
	// waiter.
	ManualReset ResetMode = iota

	// AutoReset signals release exactly one waiter and clear themselves.
	AutoReset
)

// Signal is a binary event. A manual-reset signal is a gate: while set,
// every Wait returns immediately. An auto-reset signal is a token: each
// Raise is consumed by at most one Wait, and raising an already set signal
// has no further effect.
type Signal struct {
	mode ResetMode

	// Manual-reset state. ch is closed while the signal is set.
	mu  sync.Mutex
	set bool

	// For auto-reset signals ch has capacity one and holds the token.
	ch chan struct{}
}

func NewSignal(initial bool, mode ResetMode) *Signal {
	s := &Signal{mode: mode}
	if mode == AutoReset {
		s.ch = make(chan struct{}, 1)
	} else {
		s.ch = make(chan struct{})
	}
	if initial {
		s.Raise()
	}
	return s
}

// Raise sets the signal.
func (s *Signal) Raise() {
	if s.mode == AutoReset {
		select {
		case s.ch <- struct{}{}:
		default:
		}
		return
	}

	s.mu.Lock()
	if !s.set {
		s.set = true
		close(s.ch)
	}
	s.mu.Unlock()
}

// Clear unsets the signal.
func (s *Signal) Clear() {
	if s.mode == AutoReset {
		select {
		case <-s.ch:
		default:
		}
		return
	}

	s.mu.Lock()
	if s.set {
		s.set = false
		s.ch = make(chan struct{})
	}
	s.mu.Unlock()
}

func (s *Signal) IsSet() bool {
	if s.mode == AutoReset {
		return len(s.ch) == 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set
}

// Wait blocks until the signal is set or the timeout elapses, and reports
// whether it was signaled. A zero timeout polls; Infinite never times out.
func (s *Signal) Wait(timeout time.Duration) bool {
	var ch chan struct{}
	if s.mode == AutoReset {
		ch = s.ch
	} else {
		s.mu.Lock()
		ch = s.ch
		s.mu.Unlock()
	}

	if timeout < 0 {
		<-ch
		return true
	}

	select {
	case <-ch:
		return true
	default:
	}
	if timeout == 0 {
		return false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}

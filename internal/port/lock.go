package port

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Lock is a non-reentrant mutual exclusion lock. The zero value is an
// unlocked, unchecked lock.
//
// A checked lock (NewCheckedLock) records the goroutine that acquired it so
// that AssertHeld can verify ownership. Recording the owner requires a stack
// capture on every acquire, which is why it is opt-in.
type Lock struct {
	mu      sync.Mutex
	owner   atomic.Int64
	checked bool
}

var _ sync.Locker = (*Lock)(nil)

func NewLock() *Lock {
	return &Lock{}
}

// NewCheckedLock returns a lock with the owner diagnostic enabled.
func NewCheckedLock() *Lock {
	return &Lock{checked: true}
}

// Lock blocks until the lock is acquired.
func (l *Lock) Lock() {
	l.mu.Lock()
	l.acquired()
}

// TryLock acquires the lock if it is free and reports whether it did. It
// never blocks.
func (l *Lock) TryLock() bool {
	if !l.mu.TryLock() {
		return false
	}
	l.acquired()
	return true
}

func (l *Lock) Unlock() {
	if l.checked {
		l.owner.Store(0)
	}
	l.mu.Unlock()
}

// AssertHeld panics if the calling goroutine does not hold a checked lock.
// It does nothing on an unchecked lock.
func (l *Lock) AssertHeld() {
	if !l.checked {
		return
	}
	if owner, self := l.owner.Load(), goid(); owner != self {
		panic(fmt.Sprintf("port: lock held by goroutine %d, not %d", owner, self))
	}
}

func (l *Lock) acquired() {
	if l.checked {
		l.owner.Store(goid())
	}
}

package port

import (
	"fmt"
	"time"

	"bedrock/internal/base"
)

const (
	// DefaultDrainTimeout bounds how long Close waits for woken waiters to
	// hand their handles back.
	DefaultDrainTimeout = 5 * time.Second

	// drainRecheck caps the latency between a handle being returned and
	// Close noticing it, should the notification race the check.
	drainRecheck = 10 * time.Millisecond
)

// Cond is the surface shared by CondVar and NativeCond. Every method except
// Close must be called with the bound Lock held. Waits do not report why
// they returned: callers re-check the guarded state in a loop.
type Cond interface {
	Wait()
	TimedWait(timeout time.Duration)
	Signal()
	SignalAll()
	Close() error
}

type runState uint8

const (
	running runState = iota
	shutdown
)

type CondOption func(*CondVar)

// WithDrainTimeout sets the bound on Close's wait for outstanding waiters.
func WithDrainTimeout(d time.Duration) CondOption {
	return func(c *CondVar) {
		c.drainTimeout = d
	}
}

// CondVar is a condition variable built from auto-reset signals. Each waiter
// borrows a handle from a free list (allocating one when the list is empty),
// parks on it, and returns it afterwards so handles are recycled rather than
// created per wait.
//
// Wakeup order is LIFO: Signal releases the most recently registered waiter.
// Nothing in this module depends on fairness between waiters.
//
// The handle count invariant is allocated >= len(free) + len(waiting); the
// difference is the number of waiters between wakeup and hand-back.
type CondVar struct {
	user *Lock
	mu   Lock

	state     runState
	waiting   []*Signal
	free      []*Signal
	allocated int

	// returned is raised each time a handle goes back on the free list.
	returned     *Signal
	drainTimeout time.Duration
}

var _ Cond = (*CondVar)(nil)

func NewCondVar(user *Lock, opts ...CondOption) *CondVar {
	c := &CondVar{
		user:         user,
		returned:     NewSignal(false, AutoReset),
		drainTimeout: DefaultDrainTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CondVar) Wait() {
	c.TimedWait(Infinite)
}

// TimedWait releases the bound lock, waits for a signal or the timeout, and
// reacquires the lock. Once the variable is closed it returns immediately
// without releasing the lock.
func (c *CondVar) TimedWait(timeout time.Duration) {
	c.mu.Lock()
	if c.state != running {
		c.mu.Unlock()
		return
	}
	h := c.register()
	c.mu.Unlock()

	c.user.Unlock()
	if h.Wait(timeout) {
		c.recycle(h)
	} else {
		c.mu.Lock()
		if c.unregister(h) {
			c.free = append(c.free, h)
			c.mu.Unlock()
			c.returned.Raise()
		} else {
			// A signaler popped the handle before it could be withdrawn and
			// is about to raise it. Take that wakeup so the handle is clear
			// when it is reused.
			c.mu.Unlock()
			h.Wait(Infinite)
			c.recycle(h)
		}
	}
	c.user.Lock()
}

// Signal wakes one waiter, if any.
func (c *CondVar) Signal() {
	c.mu.Lock()
	n := len(c.waiting)
	if n == 0 {
		c.mu.Unlock()
		return
	}
	h := c.waiting[n-1]
	c.waiting[n-1] = nil
	c.waiting = c.waiting[:n-1]
	c.mu.Unlock()

	h.Raise()
}

// SignalAll wakes every current waiter. The waiter list is detached before
// any handle is raised so that woken goroutines re-registering do not
// contend with the wakeup loop.
func (c *CondVar) SignalAll() {
	c.mu.Lock()
	handles := c.waiting
	c.waiting = nil
	c.mu.Unlock()

	for i := len(handles) - 1; i >= 0; i-- {
		handles[i].Raise()
	}
}

// Close shuts the variable down, wakes every waiter and waits until all
// handles are back on the free list before dropping them. It returns
// ErrTimeout if waiters are still out after the drain timeout. Close may be
// called with or without the bound lock held.
func (c *CondVar) Close() error {
	c.mu.Lock()
	if c.state == shutdown {
		c.mu.Unlock()
		return nil
	}
	c.state = shutdown
	c.mu.Unlock()

	c.SignalAll()

	deadline := time.Now().Add(c.drainTimeout)
	for {
		c.mu.Lock()
		out := c.allocated - len(c.free)
		if out == 0 {
			c.free = nil
			c.allocated = 0
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()

		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: %d condition variable waiters still out", base.ErrTimeout, out)
		}
		c.returned.Wait(drainRecheck)
	}
}

// register must be called with c.mu held.
func (c *CondVar) register() *Signal {
	var h *Signal
	if n := len(c.free); n > 0 {
		h = c.free[n-1]
		c.free[n-1] = nil
		c.free = c.free[:n-1]
	} else {
		h = NewSignal(false, AutoReset)
		c.allocated++
	}
	c.waiting = append(c.waiting, h)
	return h
}

// unregister removes h from the waiter list and reports whether it was
// still there. Must be called with c.mu held.
func (c *CondVar) unregister(h *Signal) bool {
	for i := len(c.waiting) - 1; i >= 0; i-- {
		if c.waiting[i] == h {
			copy(c.waiting[i:], c.waiting[i+1:])
			c.waiting[len(c.waiting)-1] = nil
			c.waiting = c.waiting[:len(c.waiting)-1]
			return true
		}
	}
	return false
}

func (c *CondVar) recycle(h *Signal) {
	c.mu.Lock()
	c.free = append(c.free, h)
	c.mu.Unlock()
	c.returned.Raise()
}

package port

import (
	"sync"
	"time"
)

// NativeCond passes through to sync.Cond.
type NativeCond struct {
	l *Lock
	c *sync.Cond
}

var _ Cond = (*NativeCond)(nil)

func NewNativeCond(l *Lock) *NativeCond {
	return &NativeCond{l: l, c: sync.NewCond(l)}
}

func (n *NativeCond) Wait() {
	n.c.Wait()
}

// TimedWait arms a timer that broadcasts under the bound lock, so it cannot
// fire before this goroutine is parked. Other waiters may see the broadcast
// as a spurious wakeup.
func (n *NativeCond) TimedWait(timeout time.Duration) {
	if timeout < 0 {
		n.c.Wait()
		return
	}
	t := time.AfterFunc(timeout, func() {
		n.l.Lock()
		n.c.Broadcast()
		n.l.Unlock()
	})
	n.c.Wait()
	t.Stop()
}

func (n *NativeCond) Signal() {
	n.c.Signal()
}

func (n *NativeCond) SignalAll() {
	n.c.Broadcast()
}

// Close wakes all waiters. Waiter lifetime remains the caller's concern.
func (n *NativeCond) Close() error {
	n.c.Broadcast()
	return nil
}

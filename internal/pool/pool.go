package pool

import (
	"container/list"
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"bedrock/internal/base"
	"bedrock/internal/port"
)

// Task is a deferred call run on a worker goroutine.
type Task func()

// Pool runs submitted tasks on a resizable set of worker goroutines.
//
// Tasks leave the queue in submission order, but once several workers are
// idle which of them picks up the next task is a race. Tasks are not
// isolated: a panicking task takes the process down with it, and nothing is
// retried.
//
// Two locks guard the pool. The state lock covers worker membership and is
// taken in read mode by workers on every iteration and in write mode only
// when workers join or leave. The task lock covers the queue and the
// accepting flag. Whenever both are held the state lock is taken first, and
// the task lock is never held while blocking on anything else.
type Pool struct {
	log      *zap.Logger
	idleWait time.Duration

	states  *port.RWLock
	workers map[uint64]*worker
	nextID  uint64

	tasks     *port.Lock
	queue     *list.List
	accepting atomic.Bool

	// hasTask wakes one idle worker. drained is raised once shutdown has
	// begun and the last worker has exited.
	hasTask *port.Signal
	drained *port.Signal
}

// New starts a pool with n workers.
func New(n int, opts ...Option) *Pool {
	p := &Pool{
		log:      zap.NewNop(),
		idleWait: DefaultIdleWait,
		states:   port.NewRWLock(),
		workers:  make(map[uint64]*worker),
		tasks:    port.NewLock(),
		queue:    list.New(),
		hasTask:  port.NewSignal(false, port.AutoReset),
		drained:  port.NewSignal(false, port.ManualReset),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.accepting.Store(true)

	_ = p.SetCount(max(n, 0))
	return p
}

// Submit queues task and wakes an idle worker. It returns false, without
// queuing, once shutdown has begun or when task is nil.
func (p *Pool) Submit(task Task) bool {
	if task == nil {
		return false
	}

	p.tasks.Lock()
	if !p.accepting.Load() {
		p.tasks.Unlock()
		return false
	}
	p.queue.PushBack(task)
	p.tasks.Unlock()

	p.hasTask.Raise()
	return true
}

// SetCount grows or shrinks the pool to n live workers. New workers start
// in Preparing. When shrinking, idle workers are retired first and busy ones
// only if there are not enough idle ones; a busy worker finishes its task
// before it exits.
func (p *Pool) SetCount(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: negative worker count %d", base.ErrInvalidState, n)
	}

	p.states.WriteLock()
	defer p.states.WriteUnlock()

	if !p.accepting.Load() {
		return fmt.Errorf("%w: pool is shut down", base.ErrInvalidState)
	}

	live := p.liveLocked()
	switch {
	case n > live:
		for i := live; i < n; i++ {
			p.spawnLocked()
		}
	case n < live:
		retired := p.retireLocked(live - n)
		p.log.Debug("workers retired", zap.Int("count", retired), zap.Int("target", n))
	}
	return nil
}

// Count returns the number of workers not in ShutDown.
func (p *Pool) Count() int {
	p.states.ReadLock()
	defer p.states.ReadUnlock()
	return p.liveLocked()
}

// Pending returns the number of queued tasks not yet picked up.
func (p *Pool) Pending() int {
	p.tasks.Lock()
	defer p.tasks.Unlock()
	return p.queue.Len()
}

// States returns how many workers are in each state, including retired
// workers that have not exited yet.
func (p *Pool) States() map[WorkerState]int {
	p.states.ReadLock()
	defer p.states.ReadUnlock()

	states := make(map[WorkerState]int, 4)
	for _, w := range p.workers {
		states[w.load()]++
	}
	return states
}

// Shutdown stops accepting tasks, retires every worker and blocks until all
// of them have exited. Tasks queued before shutdown still run: retired
// workers keep draining the queue until it is empty. Shutdown returns an
// error wrapping ErrTimeout and the context's error if ctx ends first; the
// pool keeps draining in the background and Shutdown may be called again.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.tasks.Lock()
	first := p.accepting.Swap(false)
	p.tasks.Unlock()

	if first {
		p.states.WriteLock()
		for _, w := range p.workers {
			w.retire()
		}
		p.log.Debug("pool shutting down", zap.Int("pending", p.Pending()))
		finished := len(p.workers) == 0 && p.drainLocked()
		p.states.WriteUnlock()

		if finished {
			p.drained.Raise()
		}
		p.hasTask.Raise()
	}

	for !p.drained.Wait(p.idleWait) {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: pool drain: %w", base.ErrTimeout, err)
		}
	}
	return nil
}

// Close shuts the pool down and waits for it to drain however long that
// takes.
func (p *Pool) Close() error {
	return p.Shutdown(context.Background())
}

func (p *Pool) run(w *worker) {
	w.transition(Idle, Preparing)

	for {
		p.states.ReadLock()
		retired := w.load() == ShutDown
		if retired && p.accepting.Load() {
			p.states.ReadUnlock()
			break
		}

		p.tasks.Lock()
		task, more := p.pop()
		p.tasks.Unlock()

		if task == nil {
			if retired {
				// Shutting down and nothing is left to drain.
				p.states.ReadUnlock()
				break
			}
			w.transition(Idle, Working)
			p.states.ReadUnlock()

			p.hasTask.Wait(p.idleWait)
			continue
		}

		w.transition(Working, Idle, Preparing)
		p.states.ReadUnlock()

		// Pass the wakeup on so a burst is not served by one worker alone.
		if more {
			p.hasTask.Raise()
		}
		task()
	}

	p.exit(w)
}

func (p *Pool) exit(w *worker) {
	p.states.WriteLock()
	p.log.Debug("worker exited", zap.Uint64("worker", w.id))
	delete(p.workers, w.id)
	finished := false
	if len(p.workers) == 0 && !p.accepting.Load() {
		finished = p.drainLocked()
	}
	p.states.WriteUnlock()

	if finished {
		p.drained.Raise()
	}
}

// drainLocked runs once shutdown has begun and no workers remain. If tasks
// are still queued it starts a retired worker to drain them and returns
// false; otherwise the pool is finished and drained may be raised. The state
// lock must be held in write mode.
func (p *Pool) drainLocked() bool {
	if p.Pending() > 0 {
		p.spawnLocked().retire()
		return false
	}
	p.log.Debug("pool drained")
	return true
}

func (p *Pool) spawnLocked() *worker {
	p.nextID++
	w := newWorker(p.nextID)
	p.workers[w.id] = w
	go p.run(w)

	p.log.Debug("worker started", zap.Uint64("worker", w.id))
	return w
}

func (p *Pool) retireLocked(n int) int {
	retired := 0
	for _, w := range p.workers {
		if retired == n {
			return retired
		}
		if w.transition(ShutDown, Idle) {
			retired++
		}
	}
	for _, w := range p.workers {
		if retired == n {
			break
		}
		if w.retire() {
			retired++
		}
	}
	return retired
}

func (p *Pool) liveLocked() int {
	live := 0
	for _, w := range p.workers {
		if w.load() != ShutDown {
			live++
		}
	}
	return live
}

// pop must be called with the task lock held. It also reports whether more
// tasks remain.
func (p *Pool) pop() (Task, bool) {
	e := p.queue.Front()
	if e == nil {
		return nil, false
	}
	p.queue.Remove(e)
	return e.Value.(Task), p.queue.Len() > 0
}

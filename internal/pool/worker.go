package pool

import (
	"fmt"
	"sync/atomic"
)

// WorkerState is the lifecycle of one worker:
//
//	Preparing -> Idle <-> Working -> ... -> ShutDown
//
// ShutDown is terminal. A worker that reaches it exits once its current
// task, if any, returns.
type WorkerState int32

const (
	Preparing WorkerState = iota
	Idle
	Working
	ShutDown
)

func (s WorkerState) String() string {
	switch s {
	case Preparing:
		return "preparing"
	case Idle:
		return "idle"
	case Working:
		return "working"
	case ShutDown:
		return "shutdown"
	default:
		return fmt.Sprintf("WorkerState(%d)", int32(s))
	}
}

// worker is the pool's record of one worker goroutine. Membership in the
// pool's worker map is guarded by the state lock in write mode; state itself
// is changed under read mode, hence the atomic.
type worker struct {
	id    uint64
	state atomic.Int32
}

func newWorker(id uint64) *worker {
	w := &worker{id: id}
	w.state.Store(int32(Preparing))
	return w
}

func (w *worker) load() WorkerState {
	return WorkerState(w.state.Load())
}

// transition moves the worker from one of the given states to next. It never
// leaves ShutDown.
func (w *worker) transition(next WorkerState, from ...WorkerState) bool {
	for _, f := range from {
		if w.state.CompareAndSwap(int32(f), int32(next)) {
			return true
		}
	}
	return false
}

// retire marks the worker ShutDown and reports whether it was live before.
func (w *worker) retire() bool {
	return WorkerState(w.state.Swap(int32(ShutDown))) != ShutDown
}

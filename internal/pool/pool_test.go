package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"bedrock/internal/base"
)

func newTestPool(t *testing.T, n int) *Pool {
	t.Helper()
	p := New(n, WithLogger(zaptest.NewLogger(t)))
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPoolRunsEveryTaskOnce(t *testing.T) {
	p := newTestPool(t, DefaultWorkers)

	const n = 200
	var runs [n]atomic.Int32
	for i := 0; i < n; i++ {
		i := i
		require.True(t, p.Submit(func() { runs[i].Add(1) }))
	}
	require.NoError(t, p.Close())

	for i := range runs {
		assert.Equal(t, int32(1), runs[i].Load(), "task %d", i)
	}
	assert.Zero(t, p.Count())
	assert.Zero(t, p.Pending())
	assert.Empty(t, p.States())
}

func TestPoolConcurrentSubmitters(t *testing.T) {
	p := newTestPool(t, DefaultWorkers)

	const submitters, perSubmitter = 8, 125
	var counter atomic.Int64
	var g errgroup.Group
	for s := 0; s < submitters; s++ {
		g.Go(func() error {
			for i := 0; i < perSubmitter; i++ {
				if !p.Submit(func() { counter.Add(1) }) {
					return fmt.Errorf("task %d rejected", i)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.NoError(t, p.Close())
	assert.Equal(t, int64(submitters*perSubmitter), counter.Load())
}

func TestPoolSetCount(t *testing.T) {
	for _, n := range []int{0, 1, 3, 10} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			p := newTestPool(t, 4)
			require.NoError(t, p.SetCount(n))
			assert.Equal(t, n, p.Count())

			// Retired workers leave the map within an idle wait or two.
			require.Eventually(t, func() bool {
				return p.States()[ShutDown] == 0
			}, time.Second, 5*time.Millisecond)

			// Every live worker settles into Idle.
			require.Eventually(t, func() bool {
				return p.States()[Idle] == n
			}, time.Second, 5*time.Millisecond)
		})
	}
}

func TestPoolSetCountInvalid(t *testing.T) {
	p := newTestPool(t, 1)
	assert.ErrorIs(t, p.SetCount(-1), base.ErrInvalidState)
	assert.Equal(t, 1, p.Count())

	require.NoError(t, p.Close())
	assert.ErrorIs(t, p.SetCount(2), base.ErrInvalidState)
}

func TestPoolShrinkPrefersIdle(t *testing.T) {
	p := newTestPool(t, 3)

	release := make(chan struct{})
	started := make(chan struct{})
	var finished atomic.Bool
	require.True(t, p.Submit(func() {
		close(started)
		<-release
		finished.Store(true)
	}))
	<-started
	require.Eventually(t, func() bool {
		s := p.States()
		return s[Working] == 1 && s[Idle] == 2
	}, time.Second, time.Millisecond)

	require.NoError(t, p.SetCount(1))
	assert.Equal(t, 1, p.Count())
	assert.Equal(t, 1, p.States()[Working])

	// Shrinking below the busy worker lets its task complete.
	require.NoError(t, p.SetCount(0))
	assert.Zero(t, p.Count())
	assert.False(t, finished.Load())
	close(release)

	require.Eventually(t, func() bool {
		return finished.Load() && len(p.States()) == 0
	}, time.Second, time.Millisecond)
}

func TestPoolSubmitAfterShutdown(t *testing.T) {
	p := newTestPool(t, 2)
	require.NoError(t, p.Close())

	var ran atomic.Bool
	assert.False(t, p.Submit(func() { ran.Store(true) }))
	assert.False(t, p.Submit(nil))
	assert.Zero(t, p.Pending())
	assert.False(t, ran.Load())

	// Shutdown is idempotent.
	require.NoError(t, p.Close())
}

func TestPoolShutdownDrainsWithoutWorkers(t *testing.T) {
	p := newTestPool(t, 0)

	var counter atomic.Int32
	for i := 0; i < 10; i++ {
		require.True(t, p.Submit(func() { counter.Add(1) }))
	}
	assert.Equal(t, 10, p.Pending())

	require.NoError(t, p.Close())
	assert.Equal(t, int32(10), counter.Load())
	assert.Zero(t, p.Pending())
}

func TestPoolShutdownDeadline(t *testing.T) {
	p := New(1, WithLogger(zaptest.NewLogger(t)))

	release := make(chan struct{})
	started := make(chan struct{})
	require.True(t, p.Submit(func() {
		close(started)
		<-release
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := p.Shutdown(ctx)
	assert.ErrorIs(t, err, base.ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, p.Close())
	assert.Empty(t, p.States())
}

func TestPoolSingleWorkerFIFO(t *testing.T) {
	p := newTestPool(t, 1)

	var mu sync.Mutex
	var order []int
	for i := 0; i < 50; i++ {
		i := i
		require.True(t, p.Submit(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}
	require.NoError(t, p.Close())

	require.Len(t, order, 50)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestPoolGrowWhileBusy(t *testing.T) {
	p := newTestPool(t, 1)

	var wg sync.WaitGroup
	wg.Add(20)
	for i := 0; i < 20; i++ {
		require.True(t, p.Submit(func() {
			time.Sleep(time.Millisecond)
			wg.Done()
		}))
	}
	require.NoError(t, p.SetCount(4))
	assert.Equal(t, 4, p.Count())
	wg.Wait()
}

func TestWorkerTransitions(t *testing.T) {
	w := newWorker(1)
	assert.Equal(t, Preparing, w.load())

	assert.False(t, w.transition(Working, Idle))
	assert.True(t, w.transition(Idle, Preparing))
	assert.True(t, w.transition(Working, Idle))
	assert.True(t, w.transition(Idle, Working))

	assert.True(t, w.retire())
	assert.False(t, w.retire())
	assert.False(t, w.transition(Idle, Preparing, Working))
	assert.Equal(t, ShutDown, w.load())
	assert.Equal(t, "shutdown", w.load().String())
}

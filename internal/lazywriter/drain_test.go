package lazywriter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/Borislavv/go-lazy-writeback/config"
	"github.com/Borislavv/go-lazy-writeback/internal/workqueue"
)

// newRunningWriter builds a writer on the real clock with millisecond scan
// delays and its worker pool running.
func newRunningWriter(t *testing.T, mod func(*config.Config)) (*Writer, *fakeFlusher) {
	t.Helper()
	cfg := testCfg(func(c *config.Config) {
		c.Scan.FirstDelay = time.Millisecond
		c.Scan.IdleDelay = time.Millisecond
		if mod != nil {
			mod(c)
		}
	})
	pool := workqueue.New(testContext(t), cfg.Workers, testLogger())
	fl := newFakeFlusher()
	w := New(testContext(t), cfg, testLogger(), clock.New(), pool, fl)
	pool.Run()
	t.Cleanup(func() { _ = w.Close() })
	return w, fl
}

// TestDrain_CompletesAfterPriorFlush verifies the barrier: work queued
// before the drain call is executed before the drain returns, even with a
// single worker.
func TestDrain_CompletesAfterPriorFlush(t *testing.T) {
	w, fl := newRunningWriter(t, func(cfg *config.Config) {
		cfg.Workers.PoolSize = 1
	})

	a := w.Register("a", 1024, false, false)
	w.MarkDirty(a, 10)

	require.NoError(t, w.WaitForCurrentActivity())
	require.Contains(t, fl.recorded(), "a:10")
	require.Equal(t, 0, w.TotalDirtyPages())
}

// TestDrain_ConcurrentCallersAllComplete verifies concurrent drains each
// get their own barrier and all return.
func TestDrain_ConcurrentCallersAllComplete(t *testing.T) {
	w, _ := newRunningWriter(t, func(cfg *config.Config) {
		cfg.Workers.PoolSize = 1
	})

	a := w.Register("a", 1024, false, false)
	w.MarkDirty(a, 50)

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = w.WaitForCurrentActivity()
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int64(3), w.counters.drains.Load())
}

// TestDrain_ConcurrentWhileIdleArmsOneTick verifies two drains racing
// against an idle writer arm a single immediate tick between them.
func TestDrain_ConcurrentWhileIdleArmsOneTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testCfg(nil)
	mock := clock.NewMock()
	pool := workqueue.New(ctx, cfg.Workers, testLogger())
	w := New(ctx, cfg, testLogger(), mock, pool, newFakeFlusher())

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = w.WaitForCurrentActivity()
		}()
	}

	require.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return len(w.postTick) == 2 && w.scanActive
	}, time.Second, time.Millisecond)

	// Fire whatever was armed: exactly one scan task must come out.
	mock.Add(time.Millisecond)
	express, regular := pool.PendingByLane()
	require.Zero(t, express)
	require.Equal(t, 1, regular)

	// The pool never runs in this test; release the waiters.
	cancel()
	wg.Wait()
	for _, err := range errs {
		require.ErrorIs(t, err, context.Canceled)
	}
}

// TestDrain_ResourceExhaustion verifies the drain surfaces work item budget
// exhaustion instead of blocking.
func TestDrain_ResourceExhaustion(t *testing.T) {
	w, pool, _, _ := newPausedWriter(t, func(cfg *config.Config) {
		cfg.Workers.QueueCapacity = 1
	})

	_, ok := pool.Allocate()
	require.True(t, ok)

	require.ErrorIs(t, w.WaitForCurrentActivity(), ErrInsufficientResources)
	require.Zero(t, w.counters.drains.Load())
}

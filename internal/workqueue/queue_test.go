package workqueue

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Borislavv/go-lazy-writeback/config"
	"github.com/Borislavv/go-lazy-writeback/internal/fault"
	"github.com/Borislavv/go-lazy-writeback/internal/stream"
)

type fakeExec struct {
	mu          sync.Mutex
	order       []string
	gates       map[string]chan struct{}
	requeueLeft atomic.Int32
	flushErr    error
	scans       atomic.Int32
}

func newFakeExec() *fakeExec {
	return &fakeExec{gates: make(map[string]chan struct{})}
}

func (f *fakeExec) gate(name string) chan struct{} {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[name] = ch
	f.mu.Unlock()
	return ch
}

func (f *fakeExec) record(ev string) {
	f.mu.Lock()
	f.order = append(f.order, ev)
	f.mu.Unlock()
}

func (f *fakeExec) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

func (f *fakeExec) ExecFlush(ctx context.Context, s *stream.Stream) (bool, error) {
	f.mu.Lock()
	gate := f.gates[s.Name()]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.record("flush:" + s.Name())
	if f.requeueLeft.Add(-1) >= 0 {
		return true, nil
	}
	return false, f.flushErr
}

func (f *fakeExec) ExecReadAhead(ctx context.Context, s *stream.Stream) error {
	f.record("readahead:" + s.Name())
	return nil
}

func (f *fakeExec) ExecScan(ctx context.Context) {
	f.scans.Add(1)
}

func newTestPool(t *testing.T, size, capacity int, exec Executor, onIdle func(bool)) *Pool {
	t.Helper()
	cfg := &config.WorkersCfg{PoolSize: size, QueueCapacity: capacity}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := New(testContext(t), cfg, logger)
	p.Bind(exec, onIdle)
	return p.Run()
}

func postFlush(t *testing.T, p *Pool, s *stream.Stream, lane Lane) {
	t.Helper()
	it, ok := p.Allocate()
	require.True(t, ok)
	it.SetFlush(s)
	p.Post(it, lane)
}

// TestPool_AllocateBudget verifies the outstanding-item budget bounds allocation.
func TestPool_AllocateBudget(t *testing.T) {
	exec := newFakeExec()
	p := newTestPool(t, 1, 2, exec, nil)

	a, ok := p.Allocate()
	require.True(t, ok)
	_, ok = p.Allocate()
	require.True(t, ok)
	_, ok = p.Allocate()
	require.False(t, ok)

	p.Free(a)
	_, ok = p.Allocate()
	require.True(t, ok)

	_, _, allocFailures, _ := p.Metrics()
	require.Equal(t, int64(1), allocFailures)
}

// TestPool_ExpressPriority verifies the express lane is always drained first.
func TestPool_ExpressPriority(t *testing.T) {
	exec := newFakeExec()
	gate := exec.gate("blocker")
	p := newTestPool(t, 1, 16, exec, nil)

	blocker := stream.New("blocker", 1, false)
	r1 := stream.New("r1", 1, false)
	e1 := stream.New("e1", 1, false)

	postFlush(t, p, blocker, Regular)
	require.Eventually(t, func() bool {
		ex, reg := p.PendingByLane()
		return ex == 0 && reg == 0 // blocker claimed by the worker
	}, time.Second, time.Millisecond)

	postFlush(t, p, r1, Regular)
	postFlush(t, p, e1, Express)
	close(gate)

	require.Eventually(t, func() bool {
		return len(exec.recorded()) == 3
	}, time.Second, time.Millisecond)
	require.Equal(t, []string{"flush:blocker", "flush:e1", "flush:r1"}, exec.recorded())
}

// TestPool_Requeue verifies a "more work remains" outcome re-appends the
// same item to the tail of its source lane.
func TestPool_Requeue(t *testing.T) {
	exec := newFakeExec()
	exec.requeueLeft.Store(1)
	p := newTestPool(t, 1, 16, exec, nil)

	postFlush(t, p, stream.New("a", 1, false), Regular)

	require.Eventually(t, func() bool {
		return len(exec.recorded()) == 2
	}, time.Second, time.Millisecond)
	require.Equal(t, []string{"flush:a", "flush:a"}, exec.recorded())

	executed, requeued, _, _ := p.Metrics()
	require.Equal(t, int64(1), requeued)
	require.Equal(t, int64(1), executed)
}

// TestPool_NotifyThrottle verifies a notify barrier throttles worker
// activation until every prior task has completed, then fires exactly once.
func TestPool_NotifyThrottle(t *testing.T) {
	exec := newFakeExec()
	gate1 := exec.gate("f1")
	gate2 := exec.gate("f2")
	p := newTestPool(t, 2, 16, exec, nil)

	postFlush(t, p, stream.New("f1", 1, false), Regular)
	postFlush(t, p, stream.New("f2", 1, false), Regular)

	done := make(chan struct{})
	it, ok := p.Allocate()
	require.True(t, ok)
	it.SetNotify(done)
	p.Post(it, Regular)

	// First worker finishes and must park instead of firing the notify
	// while the second is still active.
	close(gate1)
	require.Eventually(t, func() bool {
		_, _, _, throttles := p.Metrics()
		return throttles == 1
	}, time.Second, time.Millisecond)
	select {
	case <-done:
		t.Fatal("notify fired while a prior task was still running")
	default:
	}

	// Once the last active worker drains, the notify fires.
	close(gate2)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("notify never fired")
	}

	// The throttle is dropped afterwards: new work still gets a worker.
	postFlush(t, p, stream.New("f3", 1, false), Regular)
	require.Eventually(t, func() bool {
		for _, ev := range exec.recorded() {
			if ev == "flush:f3" {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
}

// TestPool_ExpectedErrorAbandonsTask verifies allow-listed errors abandon
// the one task without propagating.
func TestPool_ExpectedErrorAbandonsTask(t *testing.T) {
	exec := newFakeExec()
	exec.flushErr = fault.ErrStreamBusy
	p := newTestPool(t, 1, 16, exec, nil)

	postFlush(t, p, stream.New("busy", 1, false), Regular)
	postFlush(t, p, stream.New("ok", 1, false), Regular)

	require.Eventually(t, func() bool {
		return len(exec.recorded()) == 2
	}, time.Second, time.Millisecond)
}

// TestPool_OnIdleHook verifies the park hook runs once the lanes drain.
func TestPool_OnIdleHook(t *testing.T) {
	exec := newFakeExec()
	var idles atomic.Int32
	var lastOK atomic.Bool
	p := newTestPool(t, 1, 16, exec, func(flushOK bool) {
		lastOK.Store(flushOK)
		idles.Add(1)
	})

	postFlush(t, p, stream.New("a", 1, false), Regular)

	require.Eventually(t, func() bool {
		return idles.Load() >= 1
	}, time.Second, time.Millisecond)
	require.True(t, lastOK.Load())
}

// TestPool_ScanTask verifies scan items invoke the scan body.
func TestPool_ScanTask(t *testing.T) {
	exec := newFakeExec()
	p := newTestPool(t, 1, 16, exec, nil)

	it, ok := p.Allocate()
	require.True(t, ok)
	it.SetScan()
	p.Post(it, Regular)

	require.Eventually(t, func() bool {
		return exec.scans.Load() == 1
	}, time.Second, time.Millisecond)
}

// testContext stands in for testing.T.Context, which needs Go 1.24+:
// a context canceled when the test finishes.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

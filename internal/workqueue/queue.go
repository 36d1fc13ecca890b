package workqueue

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Borislavv/go-lazy-writeback/config"
	"github.com/Borislavv/go-lazy-writeback/internal/fault"
	"github.com/Borislavv/go-lazy-writeback/internal/stream"
)

// Executor supplies the task bodies. Implemented by the lazy writer so the
// pool stays free of scheduling policy.
type Executor interface {
	// ExecFlush writes back one stream. A true requeue means "more work
	// remains, try later": the item is re-appended to the tail of its
	// source lane instead of completing.
	ExecFlush(ctx context.Context, s *stream.Stream) (requeue bool, err error)
	ExecReadAhead(ctx context.Context, s *stream.Stream) error
	ExecScan(ctx context.Context)
}

// Pool dispatches flush/close/notify tasks to a fixed set of workers over
// two FIFO lanes; express is always preferred. A throttle flag, once set,
// prevents activating further workers until the pending notify barrier has
// fired.
type Pool struct {
	ctx    context.Context
	cfg    *config.WorkersCfg
	logger *slog.Logger

	exec   Executor
	onIdle func(lastFlushOK bool)

	mu       sync.Mutex
	express  []*Item
	regular  []*Item
	throttle bool
	idle     []chan struct{}
	active   int

	outstanding atomic.Int64
	counters    *poolCounters

	wakes []chan struct{}
	wg    sync.WaitGroup
}

func New(ctx context.Context, cfg *config.WorkersCfg, logger *slog.Logger) *Pool {
	p := &Pool{
		ctx:      ctx,
		cfg:      cfg,
		logger:   logger,
		counters: newPoolCounters(),
	}
	for i := 0; i < cfg.PoolSize; i++ {
		wake := make(chan struct{}, 1)
		p.wakes = append(p.wakes, wake)
		p.idle = append(p.idle, wake)
	}
	return p
}

// Bind wires the task bodies and the park hook; must precede Run.
func (p *Pool) Bind(exec Executor, onIdle func(lastFlushOK bool)) {
	p.exec = exec
	p.onIdle = onIdle
}

// Run starts the workers. They begin parked and are activated by Post.
func (p *Pool) Run() *Pool {
	p.logger.Info("write-back worker pool is running", "workers", p.cfg.PoolSize, "queue_capacity", p.cfg.QueueCapacity)
	for _, wake := range p.wakes {
		wake := wake
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.worker(wake)
		}()
	}
	return p
}

// Wait blocks until all workers exited (after ctx cancellation).
func (p *Pool) Wait() {
	p.wg.Wait()
	p.logger.Info("write-back worker pool is stopped")
}

func (p *Pool) Metrics() (executed, requeued, allocFailures, throttles int64) {
	return p.counters.snapshot()
}

// PendingByLane reports queued-but-unexecuted items per lane.
func (p *Pool) PendingByLane() (express, regular int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.express), len(p.regular)
}

// Allocate claims an item against the outstanding-work budget. A false
// return means resource exhaustion; callers degrade softly and retry on a
// later trigger.
func (p *Pool) Allocate() (*Item, bool) {
	if p.outstanding.Add(1) > int64(p.cfg.QueueCapacity) {
		p.outstanding.Add(-1)
		p.counters.allocFailures.Add(1)
		return nil, false
	}
	return &Item{}, true
}

// Free returns an item's budget slot after execution.
func (p *Pool) Free(it *Item) {
	p.outstanding.Add(-1)
}

// Post appends the item to the lane and, unless throttled, activates one
// parked worker.
func (p *Pool) Post(it *Item, lane Lane) {
	it.lane = lane

	p.mu.Lock()
	p.push(it, lane)
	var wake chan struct{}
	if !p.throttle && len(p.idle) > 0 {
		wake = p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		p.active++
	}
	p.mu.Unlock()

	if wake != nil {
		wake <- struct{}{}
	}
}

func (p *Pool) push(it *Item, lane Lane) {
	if lane == Express {
		p.express = append(p.express, it)
	} else {
		p.regular = append(p.regular, it)
	}
}

func (p *Pool) worker(wake chan struct{}) {
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-wake:
			p.serve(wake)
		}
	}
}

// serve drains the lanes until both are empty or a notify barrier forces a
// stop, then parks the worker back on the idle list.
func (p *Pool) serve(wake chan struct{}) {
	var (
		requeue      *Item
		dropThrottle bool
		lastFlushOK  bool
	)

	for {
		p.mu.Lock()

		// A completed notify barrier releases the throttle.
		if dropThrottle {
			p.throttle = false
			dropThrottle = false
		}

		// A requeued flush goes to the tail of its source lane.
		if requeue != nil {
			p.push(requeue, requeue.lane)
			requeue = nil
		}

		var lane *[]*Item
		if len(p.express) > 0 {
			lane = &p.express
		} else if len(p.regular) > 0 {
			lane = &p.regular
		} else {
			break // park, lock still held
		}

		// A notify must observe completion of everything queued before
		// it: with more than one active worker, set the throttle and
		// stop so the others drain first.
		it := (*lane)[0]
		if it.kind == KindNotify && p.active > 1 {
			p.throttle = true
			p.counters.throttles.Add(1)
			break
		}

		*lane = (*lane)[1:]
		p.mu.Unlock()

		req, flushOK := p.execute(it)
		if it.kind == KindFlush {
			lastFlushOK = flushOK
		}
		if it.kind == KindNotify {
			dropThrottle = true
		}
		if req {
			requeue = it
			p.counters.requeued.Add(1)
		} else {
			p.Free(it)
			p.counters.executed.Add(1)
		}
	}

	p.idle = append(p.idle, wake)
	p.active--
	p.mu.Unlock()

	if p.onIdle != nil {
		p.onIdle(lastFlushOK)
	}
}

// execute runs one task body behind the fault barrier: benign errors
// abandon the task, anything unexpected terminates the process.
func (p *Pool) execute(it *Item) (requeue, flushOK bool) {
	defer func() {
		if v := recover(); v != nil {
			fault.Recovered(v, "task body panicked")
		}
	}()

	switch it.kind {
	case KindFlush:
		req, err := p.exec.ExecFlush(p.ctx, it.stream)
		if err != nil {
			if fault.Expected(err) {
				p.logger.Debug("flush task abandoned", "stream", it.stream.Name(), "err", err)
				return false, false
			}
			fault.Bugcheck(err, "flush task failed")
		}
		return req, !req

	case KindReadAhead:
		if err := p.exec.ExecReadAhead(p.ctx, it.stream); err != nil {
			if fault.Expected(err) {
				p.logger.Debug("read-ahead task abandoned", "stream", it.stream.Name(), "err", err)
				return false, false
			}
			fault.Bugcheck(err, "read-ahead task failed")
		}
		return false, false

	case KindNotify:
		close(it.done)
		return false, false

	case KindScan:
		p.exec.ExecScan(p.ctx)
		return false, false
	}
	return false, false
}

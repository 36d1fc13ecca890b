package workqueue

import "sync/atomic"

type poolCounters struct {
	executed      atomic.Int64
	requeued      atomic.Int64
	allocFailures atomic.Int64
	throttles     atomic.Int64
}

func (c *poolCounters) snapshot() (executed, requeued, allocFailures, throttles int64) {
	return c.executed.Load(), c.requeued.Load(), c.allocFailures.Load(), c.throttles.Load()
}

func newPoolCounters() *poolCounters {
	return &poolCounters{}
}

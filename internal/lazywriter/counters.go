package lazywriter

import "sync/atomic"

type writerCounters struct {
	scans           atomic.Int64
	flushesQueued   atomic.Int64
	pagesWritten    atomic.Int64
	lazyCloses      atomic.Int64
	drains          atomic.Int64
	rescans         atomic.Int64
	idleTransitions atomic.Int64
	deferredPosted  atomic.Int64
}

func (c *writerCounters) snapshot() (scans, flushesQueued, pagesWritten, lazyCloses, drains, rescans int64) {
	return c.scans.Load(), c.flushesQueued.Load(), c.pagesWritten.Load(),
		c.lazyCloses.Load(), c.drains.Load(), c.rescans.Load()
}

func newWriterCounters() *writerCounters {
	return &writerCounters{}
}

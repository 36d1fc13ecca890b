package telemetry

// WriterMetrics and PoolMetrics are the counter sources sampled each
// telemetry interval.
type WriterMetrics interface {
	Metrics() (scans, flushesQueued, pagesWritten, lazyCloses, drains, rescans int64)
	TotalDirtyPages() int
}

type PoolMetrics interface {
	Metrics() (executed, requeued, allocFailures, throttles int64)
}

type sampler struct {
	writer WriterMetrics
	pool   PoolMetrics
}

func newSampler(w WriterMetrics, p PoolMetrics) sampler {
	return sampler{writer: w, pool: p}
}

// snapshot holds cumulative counters (monotonic).
type snapshot struct {
	scans         uint64
	flushesQueued uint64
	pagesWritten  uint64
	lazyCloses    uint64
	drains        uint64
	rescans       uint64

	executed      uint64
	requeued      uint64
	allocFailures uint64
	throttles     uint64
}

func (s sampler) snapshot() snapshot {
	scans, queued, written, closes, drains, rescans := s.writer.Metrics()
	executed, requeued, allocFails, throttles := s.pool.Metrics()

	return snapshot{
		scans:         uint64(max(scans, 0)),
		flushesQueued: uint64(max(queued, 0)),
		pagesWritten:  uint64(max(written, 0)),
		lazyCloses:    uint64(max(closes, 0)),
		drains:        uint64(max(drains, 0)),
		rescans:       uint64(max(rescans, 0)),

		executed:      uint64(max(executed, 0)),
		requeued:      uint64(max(requeued, 0)),
		allocFailures: uint64(max(allocFails, 0)),
		throttles:     uint64(max(throttles, 0)),
	}
}

// deltaSnapshot converts cumulative snapshots to per-interval deltas.
// If counters reset (cur < prev), it treats cur as the delta.
func deltaSnapshot(prev, cur snapshot) snapshot {
	return snapshot{
		scans:         delta(prev.scans, cur.scans),
		flushesQueued: delta(prev.flushesQueued, cur.flushesQueued),
		pagesWritten:  delta(prev.pagesWritten, cur.pagesWritten),
		lazyCloses:    delta(prev.lazyCloses, cur.lazyCloses),
		drains:        delta(prev.drains, cur.drains),
		rescans:       delta(prev.rescans, cur.rescans),

		executed:      delta(prev.executed, cur.executed),
		requeued:      delta(prev.requeued, cur.requeued),
		allocFailures: delta(prev.allocFailures, cur.allocFailures),
		throttles:     delta(prev.throttles, cur.throttles),
	}
}

func delta(prev, cur uint64) uint64 {
	if cur >= prev {
		return cur - prev
	}
	return cur
}

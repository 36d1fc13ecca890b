package lazywriter

// postDeferredWrites retries parked writes in FIFO order, pacing attempts
// with the rate limiter. The first still-blocked write stops the pass and
// keeps its place at the head of the queue. A single poster runs at a time.
func (w *Writer) postDeferredWrites() {
	if !w.posting.TryLock() {
		return
	}
	defer w.posting.Unlock()

	for {
		fn, ok := w.deferred.TryPeek()
		if !ok {
			return
		}
		w.limiter.Take()
		if !fn() {
			return
		}
		w.deferred.TryPop()
		w.counters.deferredPosted.Add(1)
	}
}

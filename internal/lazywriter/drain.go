package lazywriter

import "errors"

// ErrInsufficientResources is returned when the drain barrier item cannot
// be allocated. Resource exhaustion is the only failure the drain surfaces;
// it never blocks forever on it.
var ErrInsufficientResources = errors.New("notify work item budget exhausted")

// WaitForCurrentActivity blocks until everything queued before the call
// (directly or transitively via the forced scan) has executed.
//
// The notify item goes on the post-tick queue, not the regular lane: the
// scan enqueues post-tick items strictly after its own generated work, and
// the worker throttle then guarantees the notify fires only once all prior
// work is done.
//
// Must not be called from within a task body, and the caller must not hold
// anything that could block a task.
func (w *Writer) WaitForCurrentActivity() error {
	it, ok := w.pool.Allocate()
	if !ok {
		return ErrInsufficientResources
	}
	done := make(chan struct{})
	it.SetNotify(done)

	w.mu.Lock()
	w.postTick = append(w.postTick, it)
	w.otherWork = true
	if !w.scanActive {
		w.scheduleLocked(true)
	}
	w.mu.Unlock()

	w.counters.drains.Add(1)

	select {
	case <-done:
		return nil
	case <-w.ctx.Done():
		return w.ctx.Err()
	}
}

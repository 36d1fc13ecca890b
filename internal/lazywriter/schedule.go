package lazywriter

import (
	"time"

	"github.com/Borislavv/go-lazy-writeback/internal/workqueue"
)

// scheduleLocked arms the timer for the next scan tick; the caller holds
// the master lock (the scan itself re-acquires it around this call).
//
// The active flag must be set before the timer is armed on the activation
// paths: once armed, a concurrent tick could legally observe and clear the
// flag, and setting it afterwards would lose that wake-up.
func (w *Writer) scheduleLocked(fast bool) {
	switch {
	case fast:
		w.scanActive = true
		w.arm(0)
	case w.scanActive:
		w.arm(w.cfg.Scan.IdleDelay)
	default:
		// Idle to active: delay a little longer so a foreground burst can
		// finish before lazy work starts competing for I/O.
		w.scanActive = true
		w.arm(w.cfg.Scan.FirstDelay)
	}
}

func (w *Writer) arm(d time.Duration) {
	if w.timer == nil {
		w.timer = w.clk.AfterFunc(d, w.timerFired)
		return
	}
	w.timer.Reset(d)
}

// timerFired posts one scan task to the regular lane. It never runs the
// scan inline. On allocation failure the scheduler degrades safely: mark
// the scan inactive and rely on a future dirtying or other-work event to
// re-arm it.
func (w *Writer) timerFired() {
	it, ok := w.pool.Allocate()
	if !ok {
		w.mu.Lock()
		w.scanActive = false
		w.mu.Unlock()
		w.logger.Warn("scan tick dropped: work item budget exhausted, going inactive")
		return
	}

	it.SetScan()
	w.pool.Post(it, workqueue.Regular)
}

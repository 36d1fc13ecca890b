package lazywriter

import (
	"context"

	"github.com/Borislavv/go-lazy-writeback/internal/stream"
	"github.com/Borislavv/go-lazy-writeback/internal/workqueue"
)

// Long-proven write-back policy values. Tests pin the resulting behavior;
// do not re-derive them.
const (
	// yieldEveryLoops bounds lock-hold latency: after this many ring
	// iterations without issuing work, the lock is briefly dropped.
	yieldEveryLoops = 20

	// noCoalesceWriteFraction caps exclusive-write streams with a large
	// backlog to 1/8 of their dirty pages per pass so one slow stream
	// does not dominate the budget.
	noCoalesceWriteFraction = 8

	// backlogBurstMultiplier: a stream with at least this many times the
	// max write-behind size is flushed even when its write mode would
	// otherwise defer it.
	backlogBurstMultiplier = 4
)

// scan is one lazy-write tick: compute the page budget, walk the dirty
// ring from the cursor, issue flush and lazy-close tasks, reposition the
// cursor and reschedule (or go idle).
func (w *Writer) scan(ctx context.Context) {
	w.counters.scans.Add(1)
	w.mu.Lock()

	// No dirty pages and no other work: go idle, unless deferred writes
	// may be unblocked by now. The writer must keep poking those since it
	// may have no bytes to write itself.
	if w.totalDirty == 0 && !w.otherWork {
		if w.cfg.Scan.VerifyIdle {
			w.verifyIdleLocked()
		}
		if w.deferred == nil || w.deferred.Empty() {
			w.scanActive = false
			w.counters.idleTransitions.Add(1)
			w.mu.Unlock()
			return
		}
		w.mu.Unlock()

		w.postDeferredWrites()

		w.mu.Lock()
		w.scheduleLocked(false)
		w.mu.Unlock()
		return
	}

	// Capture the post-tick items now: anything queued from here on
	// belongs to the next tick. This is the basis of the drain guarantee.
	postTick := w.postTick
	w.postTick = nil
	w.otherWork = false

	pagesToWrite := w.budgetLocked()

	cursor := w.ring.Cursor()
	s := w.ring.Next(cursor)

	// The walk normally visits every stream once and stops back at
	// firstVisited; the cursor bound guards against an unbounded loop if
	// firstVisited is concurrently removed.
	var firstVisited *stream.Stream
	var alreadyMoved, moveBehind bool
	loopsWithLockHeld := 0

	for s != firstVisited && s != cursor {
		if firstVisited == nil {
			firstVisited = s
		}

		if w.selectLocked(s, pagesToWrite) {
			// Per-stream budget: everything, or 1/8 for exclusive-write
			// streams with a heavy backlog.
			toWrite := s.DirtyPages()
			if s.Flags().Has(stream.FlagModifiedWriteDisabled) &&
				toWrite >= backlogBurstMultiplier*w.cfg.Scan.MaxWriteBehindPages &&
				!w.cfg.Scan.SmallSystem {
				toWrite /= noCoalesceWriteFraction
			}
			s.SetPagesToWrite(toWrite)

			// The first stream to exhaust the budget decides cursor
			// placement. Exclusive-write streams, and the first-visited
			// stream on its forced-progress pass, push the cursor behind
			// them so later streams are not starved; otherwise resume on
			// this same stream next tick to keep writes sequential.
			if !alreadyMoved {
				if s.PagesToWrite() >= pagesToWrite {
					if s.Flags().Has(stream.FlagModifiedWriteDisabled) ||
						(firstVisited == s && s.PassAligned()) {
						moveBehind = true
					} else {
						w.ring.ResumeOn(s)
					}
					pagesToWrite = 0
					alreadyMoved = true
				} else {
					pagesToWrite -= s.PagesToWrite()
				}
			}

			// Pin the stream while the lock is dropped for allocation.
			s.SetFlags(stream.FlagWriteQueued)
			s.AddDirty(1)
			w.mu.Unlock()

			it, ok := w.pool.Allocate()
			if !ok {
				// Fail soft: undo and abort the walk; the remaining
				// candidates are found again on the next tick.
				w.mu.Lock()
				s.ClearFlags(stream.FlagWriteQueued)
				s.AddDirty(-1)
				break
			}
			it.SetFlush(s)

			w.mu.Lock()
			s.AddDirty(-1)
			if s.Flags().Has(stream.FlagWaitingForTeardown) {
				w.pool.Post(it, workqueue.Express)
			} else {
				w.pool.Post(it, workqueue.Regular)
			}
			w.counters.flushesQueued.Add(1)
			loopsWithLockHeld = 0
		} else {
			// Cooperative yield: bound the time other lock waiters can
			// starve during a long walk. Never changes a decision.
			loopsWithLockHeld++
			if loopsWithLockHeld >= yieldEveryLoops &&
				!s.Flags().Has(stream.FlagWriteQueued|stream.FlagCursor) {
				s.SetFlags(stream.FlagWriteQueued)
				s.AddDirty(1)
				w.mu.Unlock()
				loopsWithLockHeld = 0
				w.mu.Lock()
				s.ClearFlags(stream.FlagWriteQueued)
				s.AddDirty(-1)
			}
		}

		// Capture next before any cursor move so a deferred reposition
		// cannot cut the walk short.
		next := w.ring.Next(s)
		if moveBehind {
			w.ring.ResumeAfter(s)
			moveBehind = false
		}
		s = next
	}

	// Post-tick items run strictly after all work generated this tick.
	for _, it := range postTick {
		w.pool.Post(it, workqueue.Regular)
	}
	w.mu.Unlock()

	// One more poke: all dirty pages may sit on exclusive-write streams
	// while an external backpressure condition holds cached IO deferred.
	if w.deferred != nil && !w.deferred.Empty() {
		w.postDeferredWrites()
	}

	w.mu.Lock()
	w.scheduleLocked(false)
	w.mu.Unlock()
}

// budgetLocked computes this tick's page budget: the usual fraction of the
// backlog, corrected upward when the projected backlog would overshoot the
// dirty page target.
func (w *Writer) budgetLocked() int {
	pages := w.totalDirty
	if pages > w.cfg.Scan.MaxAgeTarget {
		pages /= w.cfg.Scan.MaxAgeTarget
	}

	// Pages produced by the foreground since the last tick; throw out
	// anything that would not produce a positive rate.
	foregroundRate := 0
	if w.totalDirty+w.pagesWrittenLastTime > w.dirtyPagesLastScan {
		foregroundRate = w.totalDirty + w.pagesWrittenLastTime - w.dirtyPagesLastScan
	}

	estimatedNext := w.totalDirty - pages + foregroundRate
	if estimatedNext > w.cfg.Scan.DirtyPageTarget {
		pages += estimatedNext - w.cfg.Scan.DirtyPageTarget
	}

	w.dirtyPagesLastScan = w.totalDirty
	w.pagesYetToWrite = pages
	w.pagesWrittenLastTime = pages
	return pages
}

// selectLocked decides whether s gets a task this pass. Evaluation order
// matters: the pass counter only advances on passes that reach it.
func (w *Writer) selectLocked(s *stream.Stream, pagesToWrite int) bool {
	if s.Flags().Has(stream.FlagWriteQueued | stream.FlagCursor) {
		return false
	}

	if s.DirtyPages() != 0 {
		if s.Flags().Has(stream.FlagWaitingForTeardown) {
			return true
		}
		if pagesToWrite != 0 {
			forced := s.BumpPass()
			eligible := forced ||
				!s.Flags().Has(stream.FlagModifiedWriteDisabled) ||
				w.cfg.Scan.SmallSystem ||
				s.DirtyPages() >= backlogBurstMultiplier*w.cfg.Scan.MaxWriteBehindPages
			throttled := !s.Temporary() || s.OpenCount() == 0 || !w.canWrite(s)
			if eligible && throttled {
				return true
			}
		}
	}

	// Lazy close: nothing keeps the stream alive and nothing is dirty
	// (or the stream is empty).
	return (s.OpenCount() == 0 && s.DirtyPages() == 0) || s.Size() == 0
}

// verifyIdleLocked is a debug sweep run before going idle: no stream still
// waiting for teardown may sit in the ring without a queued write, unless
// deferred writes explain the stall.
func (w *Writer) verifyIdleLocked() {
	if w.deferred != nil && !w.deferred.Empty() {
		return
	}

	stuck := 0
	cursor := w.ring.Cursor()
	for s := w.ring.Next(cursor); s != cursor; s = w.ring.Next(s) {
		if s.Flags().Has(stream.FlagWaitingForTeardown) && !s.Flags().Has(stream.FlagWriteQueued) {
			stuck++
		}
	}
	if stuck > 0 {
		w.logger.Error("going idle with teardown-waiting streams still in the dirty ring", "count", stuck)
	}
}

// ExecScan runs one tick as a task body.
func (w *Writer) ExecScan(ctx context.Context) {
	w.scan(ctx)
}

package lazywriter

import (
	"context"

	"github.com/Borislavv/go-lazy-writeback/internal/stream"
)

// ExecFlush is the flush task body. The actual storage write happens with
// the master lock released; accounting and ring maintenance re-acquire it.
func (w *Writer) ExecFlush(ctx context.Context, s *stream.Stream) (requeue bool, err error) {
	w.mu.Lock()
	pages := min(s.PagesToWrite(), s.DirtyPages())
	w.mu.Unlock()

	written, outcome, err := w.flusher.Flush(ctx, s, pages)

	w.mu.Lock()
	defer w.mu.Unlock()

	if written > 0 {
		if written > s.DirtyPages() {
			written = s.DirtyPages()
		}
		s.AddDirty(-written)
		w.totalDirty -= written
		w.counters.pagesWritten.Add(int64(written))
	}

	if err != nil {
		s.ClearFlags(stream.FlagWriteQueued)
		return false, err
	}
	if outcome == OutcomeRequeue {
		// The task stays outstanding, so WriteQueued stays set and the
		// scan keeps skipping this stream.
		return true, nil
	}

	s.ClearFlags(stream.FlagWriteQueued)

	if s.DirtyPages() == 0 {
		if s.OpenCount() <= 0 || s.Flags().Has(stream.FlagWaitingForTeardown) || s.Size() == 0 {
			// Lazy close: fully flushed and nothing keeps it alive.
			s.ClearFlags(stream.FlagWaitingForTeardown)
			w.ring.Remove(s)
			delete(w.streams, s.Key())
			w.counters.lazyCloses.Add(1)
			w.logger.Debug("stream lazily closed", "stream", s.Name())
		} else {
			// Clean and open: a clean stream is never kept resident in
			// the dirty ring.
			w.ring.Remove(s)
		}
	}
	return false, nil
}

// ExecReadAhead is the read-ahead task body.
func (w *Writer) ExecReadAhead(ctx context.Context, s *stream.Stream) error {
	if w.readAhead == nil {
		return nil
	}
	return w.readAhead.ReadAhead(ctx, s)
}

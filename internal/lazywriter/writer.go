package lazywriter

import (
	"context"
	"log/slog"
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/ratelimit"

	"github.com/Borislavv/go-lazy-writeback/config"
	"github.com/Borislavv/go-lazy-writeback/internal/shared/queue"
	"github.com/Borislavv/go-lazy-writeback/internal/stream"
	"github.com/Borislavv/go-lazy-writeback/internal/workqueue"
)

type Outcome uint8

const (
	// OutcomeSuccess means the stream's scheduled pages were written.
	OutcomeSuccess Outcome = iota

	// OutcomeRequeue means more work remains; the flush task is
	// re-appended to the tail of its source lane instead of completing.
	OutcomeRequeue
)

// Flusher is the opaque storage write-back capability. Flush runs with the
// master lock released; pages is the per-pass budget the scan computed for
// the stream (zero for a pure lazy close). Benign errors (see the fault
// package) abandon the task; anything else is treated as unrecoverable.
type Flusher interface {
	Flush(ctx context.Context, s *stream.Stream, pages int) (pagesWritten int, outcome Outcome, err error)
}

// ReadAheader is an optional capability of a Flusher.
type ReadAheader interface {
	ReadAhead(ctx context.Context, s *stream.Stream) error
}

// WritePermitter is an optional capability of a Flusher used to throttle
// temporary streams that still have openers.
type WritePermitter interface {
	CanWrite(s *stream.Stream) bool
}

// DeferredWrite retries a write that could not be issued immediately.
// It reports whether the write was issued; a false return leaves it queued.
type DeferredWrite func() bool

// Writer is the lazy write-back scheduling core. One master lock guards the
// dirty ring, the cursor, the stream registry, the global page counters and
// the post-tick queue; it is never held across a blocking flush call.
type Writer struct {
	ctx    context.Context
	cfg    *config.Config
	logger *slog.Logger
	clk    clock.Clock
	pool   *workqueue.Pool

	flusher   Flusher
	readAhead ReadAheader
	permitter WritePermitter

	mu      sync.Mutex // master lock
	ring    *stream.Ring
	streams map[uint64]*stream.Stream

	totalDirty           int
	dirtyPagesLastScan   int
	pagesWrittenLastTime int
	pagesYetToWrite      int
	otherWork            bool
	scanActive           bool
	postTick             []*workqueue.Item
	timer                *clock.Timer

	deferred *queue.Queue[DeferredWrite]
	limiter  ratelimit.Limiter
	posting  sync.Mutex // serializes deferred-write posting

	counters *writerCounters
}

func New(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	clk clock.Clock,
	pool *workqueue.Pool,
	fl Flusher,
) *Writer {
	w := &Writer{
		ctx:      ctx,
		cfg:      cfg,
		logger:   logger,
		clk:      clk,
		pool:     pool,
		flusher:  fl,
		ring:     stream.NewRing(),
		streams:  make(map[uint64]*stream.Stream),
		counters: newWriterCounters(),
	}
	if ra, ok := fl.(ReadAheader); ok {
		w.readAhead = ra
	}
	if wp, ok := fl.(WritePermitter); ok {
		w.permitter = wp
	}
	if cfg.Deferred.Enabled() {
		w.deferred = queue.New[DeferredWrite](cfg.Deferred.Capacity)
		w.limiter = ratelimit.New(cfg.Deferred.PostRate)
	}

	pool.Bind(w, w.onIdle)
	return w
}

// Register adds a stream to the registry. It does not enter the dirty ring
// until it first becomes dirty or requires deferred teardown work.
func (w *Writer) Register(name string, size int64, temporary, modifiedWriteDisabled bool) *stream.Stream {
	s := stream.New(name, size, temporary)
	if modifiedWriteDisabled {
		s.SetFlags(stream.FlagModifiedWriteDisabled)
	}

	w.mu.Lock()
	w.streams[s.Key()] = s
	w.mu.Unlock()
	return s
}

func (w *Writer) Lookup(name string) (*stream.Stream, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.streams[stream.Key(name)]
	return s, ok
}

// MarkDirty is the foreground mutation entry point: it accounts the pages,
// makes the stream ring-resident and arms the scheduler if idle.
func (w *Writer) MarkDirty(s *stream.Stream, pages int) {
	if pages <= 0 {
		return
	}

	w.mu.Lock()
	if !s.InRing() {
		w.ring.InsertBehindCursor(s)
	}
	s.AddDirty(pages)
	w.totalDirty += pages
	if !w.scanActive {
		w.scheduleLocked(false)
	}
	w.mu.Unlock()
}

// CleanPages accounts pages written back outside the lazy scan (foreground
// flushes). A stream cleaned this way leaves the dirty ring unless an
// outstanding task or pending teardown still needs it there.
func (w *Writer) CleanPages(s *stream.Stream, pages int) {
	if pages <= 0 {
		return
	}

	w.mu.Lock()
	if pages > s.DirtyPages() {
		pages = s.DirtyPages()
	}
	s.AddDirty(-pages)
	w.totalDirty -= pages
	if s.DirtyPages() == 0 && s.OpenCount() > 0 &&
		!s.Flags().Has(stream.FlagWriteQueued|stream.FlagWaitingForTeardown) {
		w.ring.Remove(s)
	}
	w.mu.Unlock()
}

// CloseStream releases one opener. Once the last opener is gone the stream
// becomes a lazy-close candidate: still-dirty streams are marked waiting
// for teardown so the scan routes them through the express lane.
func (w *Writer) CloseStream(s *stream.Stream) {
	w.mu.Lock()
	s.Release()
	if s.OpenCount() <= 0 {
		if s.DirtyPages() > 0 {
			s.SetFlags(stream.FlagWaitingForTeardown)
		}
		if !s.InRing() {
			w.ring.InsertBehindCursor(s)
		}
		w.otherWork = true
		if !w.scanActive {
			w.scheduleLocked(false)
		}
	}
	w.mu.Unlock()
}

// DeferWrite parks a write for retry; one attempt is made per scan tick and
// opportunistically after each walk. Returns false when the retry queue is
// disabled or full.
func (w *Writer) DeferWrite(fn DeferredWrite) bool {
	if w.deferred == nil {
		return false
	}
	if !w.deferred.TryPush(fn) {
		return false
	}

	w.mu.Lock()
	if !w.scanActive {
		w.scheduleLocked(false)
	}
	w.mu.Unlock()
	return true
}

// RequestReadAhead posts an opportunistic read-ahead task.
func (w *Writer) RequestReadAhead(s *stream.Stream) bool {
	if w.readAhead == nil {
		return false
	}
	it, ok := w.pool.Allocate()
	if !ok {
		return false
	}
	it.SetReadAhead(s)
	w.pool.Post(it, workqueue.Regular)
	return true
}

func (w *Writer) TotalDirtyPages() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.totalDirty
}

func (w *Writer) Metrics() (scans, flushesQueued, pagesWritten, lazyCloses, drains, rescans int64) {
	return w.counters.snapshot()
}

// Close disarms the scan timer. Workers stop via context cancellation.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.scanActive = false
	w.mu.Unlock()
	return nil
}

func (w *Writer) canWrite(s *stream.Stream) bool {
	if w.permitter == nil {
		return true
	}
	return w.permitter.CanWrite(s)
}

// onIdle runs when a worker parks. Under sustained load the drain keeps
// itself alive: deferred writes pending, dirty pages over the low-water
// mark and a healthy last flush re-trigger the scan without the timer.
func (w *Writer) onIdle(lastFlushOK bool) {
	if w.deferred == nil || !lastFlushOK {
		return
	}

	w.mu.Lock()
	pending := !w.deferred.Empty() && w.totalDirty >= w.cfg.Scan.LowWaterRescanMark
	w.mu.Unlock()

	if pending {
		w.counters.rescans.Add(1)
		w.scan(w.ctx)
	}
}

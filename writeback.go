package lazywb

import (
	"context"
	"io"
	"log/slog"

	"github.com/benbjohnson/clock"

	"github.com/Borislavv/go-lazy-writeback/config"
	"github.com/Borislavv/go-lazy-writeback/internal/lazywriter"
	"github.com/Borislavv/go-lazy-writeback/internal/stream"
	"github.com/Borislavv/go-lazy-writeback/internal/telemetry"
	"github.com/Borislavv/go-lazy-writeback/internal/workqueue"
)

// Flusher is the storage write-back capability supplied by the caller.
// Optional capabilities (ReadAheader, WritePermitter) are detected by type
// assertion.
type (
	Flusher        = lazywriter.Flusher
	ReadAheader    = lazywriter.ReadAheader
	WritePermitter = lazywriter.WritePermitter
	DeferredWrite  = lazywriter.DeferredWrite
	Outcome        = lazywriter.Outcome
	Stream         = stream.Stream
)

const (
	OutcomeSuccess = lazywriter.OutcomeSuccess
	OutcomeRequeue = lazywriter.OutcomeRequeue
)

// ErrInsufficientResources is surfaced by WaitForCurrentActivity when the
// notify barrier cannot be allocated.
var ErrInsufficientResources = lazywriter.ErrInsufficientResources

type LazyWriteback interface {
	Register(name string, size int64, temporary, modifiedWriteDisabled bool) *Stream
	Lookup(name string) (*Stream, bool)
	MarkDirty(s *Stream, pages int)
	CleanPages(s *Stream, pages int)
	CloseStream(s *Stream)
	DeferWrite(fn DeferredWrite) bool
	RequestReadAhead(s *Stream) bool
	WaitForCurrentActivity() error
	TotalDirtyPages() int
	telemetry.Logger
	io.Closer
}

type Engine struct {
	*lazywriter.Writer
	telemetry.Logger
	pool *workqueue.Pool
	cls  context.CancelFunc
}

var _ LazyWriteback = (*Engine)(nil)

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, fl Flusher) *Engine {
	return NewWithClock(ctx, cfg, logger, fl, clock.New())
}

// NewWithClock injects the timer source; tests drive the scheduler with a
// mock clock.
func NewWithClock(ctx context.Context, cfg *config.Config, logger *slog.Logger, fl Flusher, clk clock.Clock) *Engine {
	ctx, cancel := context.WithCancel(ctx)

	pool := workqueue.New(ctx, cfg.Workers, logger)
	writer := lazywriter.New(ctx, cfg, logger, clk, pool, fl)
	pool.Run()
	telemeter := telemetry.New(ctx, cfg, logger, writer, pool)

	return &Engine{
		Writer: writer,
		Logger: telemeter,
		pool:   pool,
		cls:    cancel,
	}
}

func (e *Engine) Close() error {
	_ = e.Writer.Close()
	e.cls()
	return nil
}

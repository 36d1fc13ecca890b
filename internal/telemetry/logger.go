package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/Borislavv/go-lazy-writeback/config"
)

type Logger interface {
	Interval() time.Duration
	Close() error
}

type Logs struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *config.Config
	logger   *slog.Logger
	writer   WriterMetrics
	pool     PoolMetrics
	interval time.Duration
}

func New(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	writer WriterMetrics,
	pool PoolMetrics,
) *Logs {
	ctx, cancel := context.WithCancel(ctx)
	return (&Logs{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		logger:   logger,
		writer:   writer,
		pool:     pool,
		interval: cfg.Telemetry.TelemetryLogsInterval,
	}).run()
}

func (l *Logs) Interval() time.Duration {
	return l.interval
}

func (l *Logs) Close() error {
	l.cancel()
	return nil
}

func (l *Logs) run() *Logs {
	if l.cfg.Telemetry.IsTelemetryLogsEnabled && l.interval > 0 {
		go l.loop()
	}
	return l
}

func (l *Logs) loop() {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	s := newSampler(l.writer, l.pool)
	prev := s.snapshot()

	for {
		select {
		case <-l.ctx.Done():
			return

		case <-ticker.C:
			cur := s.snapshot()
			d := deltaSnapshot(prev, cur)
			prev = cur

			common := []any{"interval", l.interval.String()}

			l.logger.Info("lazy_writer",
				append(common,
					"scans", int64(d.scans),
					"flushes_queued", int64(d.flushesQueued),
					"pages_written", int64(d.pagesWritten),
					"lazy_closes", int64(d.lazyCloses),
					"drains", int64(d.drains),
					"rescans", int64(d.rescans),
				)...,
			)

			l.logger.Info("worker_pool",
				append(common,
					"executed", int64(d.executed),
					"requeued", int64(d.requeued),
					"alloc_failures", int64(d.allocFailures),
					"throttles", int64(d.throttles),
				)...,
			)

			l.logger.Info("backlog",
				append(common,
					"dirty_pages", l.writer.TotalDirtyPages(),
					"dirty_page_target", l.cfg.Scan.DirtyPageTarget,
				)...,
			)
		}
	}
}

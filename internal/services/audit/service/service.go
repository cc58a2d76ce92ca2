// Package service contains the buffered audit event sink
package service

import (
	"context"
	"sync"
	"time"

	"animabook/internal/modkit"
	"animabook/internal/platform/logger"
	"animabook/internal/services/audit/domain"
	"animabook/internal/services/audit/repo"
)

// Service defines the audit service contract
type Service interface {
	domain.SinkPort
}

// Config carries buffering knobs
type Config struct {
	FlushSize  int
	FlushEvery time.Duration
}

// Svc implements the buffered sink. A nil clickhouse seam disables it:
// Record and Flush become no-ops so callers never branch on deployment shape
type Svc struct {
	writer *repo.CH
	config Config
	log    logger.Logger

	mu  sync.Mutex
	buf []domain.Event
	now func() time.Time
}

// New constructs the audit sink. Pass-through of deps.CH decides whether
// the sink is live or disabled
func New(deps modkit.Deps, cfg Config) *Svc {
	if cfg.FlushSize <= 0 {
		cfg.FlushSize = 64
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = 5 * time.Second
	}
	s := &Svc{config: cfg, log: deps.Log, now: time.Now}
	if deps.CH != nil {
		s.writer = repo.NewCH(deps.CH)
	}
	return s
}

// Record buffers one event; the write happens on the next flush.
// Events carry a timestamp from the sink clock when At is zero
func (s *Svc) Record(ctx context.Context, ev domain.Event) {
	if s.writer == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = s.now()
	}

	s.mu.Lock()
	s.buf = append(s.buf, ev)
	full := len(s.buf) >= s.config.FlushSize
	s.mu.Unlock()

	if full {
		if err := s.Flush(ctx); err != nil {
			// audit is best effort; dropping a batch must not fail the pipeline
			s.log.Error().Err(err).Msg("audit flush failed, batch dropped")
		}
	}
}

// Flush drains the buffer into clickhouse
func (s *Svc) Flush(ctx context.Context) error {
	if s.writer == nil {
		return nil
	}

	s.mu.Lock()
	batch := s.buf
	s.buf = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	return s.writer.WriteBatch(ctx, batch)
}

// Run flushes on a cadence until ctx is done, then drains once more.
// Intended to be started as a goroutine next to the worker loop
func (s *Svc) Run(ctx context.Context) {
	if s.writer == nil {
		<-ctx.Done()
		return
	}
	tick := time.NewTicker(s.config.FlushEvery)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			drain, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.Flush(drain); err != nil {
				s.log.Error().Err(err).Msg("audit final flush failed")
			}
			cancel()
			return
		case <-tick.C:
			if err := s.Flush(ctx); err != nil {
				s.log.Error().Err(err).Msg("audit flush failed, batch dropped")
			}
		}
	}
}

// Package service contains the scheduling loop that feeds the work queue
package service

import (
	"context"
	"time"

	"animabook/internal/modkit"
	"animabook/internal/platform/logger"
	bf "animabook/internal/services/backfill/domain"
)

// WorkEnqueuer is the slice of the queue the scheduler needs
type WorkEnqueuer interface {
	EnqueueBackfillBatch(ctx context.Context, cursorName string, batchSize int, delay time.Duration) error
	EnqueueRefreshDue(ctx context.Context, delay time.Duration) error
	EnqueueSeedListing(ctx context.Context, listing string) error
}

// Collab carries the scheduler's collaborators
type Collab struct {
	Cursors bf.SchedulerPort
	Queue   WorkEnqueuer
}

// Config carries the loop cadences.
// Zero SeedEvery or empty SeedListings disables periodic seeding
type Config struct {
	Tick         time.Duration
	DueLimit     int
	RefreshEvery time.Duration
	SeedEvery    time.Duration
	SeedListings []string
}

// Svc implements the scheduling loop
type Svc struct {
	collab Collab
	config Config
	log    logger.Logger
	now    func() time.Time
}

// New constructs a scheduler
func New(deps modkit.Deps, cfg Config, collab Collab) *Svc {
	if collab.Cursors == nil || collab.Queue == nil {
		panic("scheduler.Service requires all collaborators")
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 30 * time.Second
	}
	if cfg.DueLimit <= 0 {
		cfg.DueLimit = 10
	}
	if cfg.RefreshEvery <= 0 {
		cfg.RefreshEvery = 5 * time.Minute
	}
	return &Svc{collab: collab, config: cfg, log: deps.Log, now: time.Now}
}

// Run ticks until ctx ends. Each tick enqueues a batch for every due
// cursor; refresh sweeps and seed sweeps fire on their own cadences.
// Duplicate enqueues across scheduler replicas are harmless: execution
// is deduplicated by the run locks and the entity lease, not the queue
func (s *Svc) Run(ctx context.Context) error {
	t := time.NewTicker(s.config.Tick)
	defer t.Stop()

	var lastRefresh, lastSeed time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			now := s.now()
			s.tickBackfill(ctx, now)

			if now.Sub(lastRefresh) >= s.config.RefreshEvery {
				if err := s.collab.Queue.EnqueueRefreshDue(ctx, 0); err != nil {
					s.log.Error().Err(err).Msg("enqueue refresh sweep")
				} else {
					lastRefresh = now
				}
			}

			if s.config.SeedEvery > 0 && len(s.config.SeedListings) > 0 &&
				now.Sub(lastSeed) >= s.config.SeedEvery {
				s.tickSeeds(ctx)
				lastSeed = now
			}
		}
	}
}

func (s *Svc) tickBackfill(ctx context.Context, now time.Time) {
	names, err := s.collab.Cursors.Due(ctx, now, s.config.DueLimit)
	if err != nil {
		s.log.Error().Err(err).Msg("list due cursors")
		return
	}
	for _, name := range names {
		// batch size 0 lets the walker apply its configured default
		if err := s.collab.Queue.EnqueueBackfillBatch(ctx, name, 0, 0); err != nil {
			s.log.Error().Err(err).Str("cursor", name).Msg("enqueue backfill batch")
		}
	}
}

func (s *Svc) tickSeeds(ctx context.Context) {
	for _, listing := range s.config.SeedListings {
		if err := s.collab.Queue.EnqueueSeedListing(ctx, listing); err != nil {
			s.log.Error().Err(err).Str("listing", listing).Msg("enqueue seed sweep")
		}
	}
}

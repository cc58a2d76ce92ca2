// Package service contains the refresh planner
package service

import (
	"context"
	"time"

	"animabook/internal/modkit"
	perr "animabook/internal/platform/errors"
	"animabook/internal/platform/guard"
	"animabook/internal/platform/logger"
	cat "animabook/internal/services/catalog/domain"
	"animabook/internal/services/refresh/domain"
)

// Service defines the refresh service contract
type Service interface {
	domain.PlannerPort
}

// EntityEnqueuer is the slice of the queue the planner needs
type EntityEnqueuer interface {
	EnqueueSyncEntity(ctx context.Context, entityType string, id int64) error
}

// Collab carries the planner's collaborators
type Collab struct {
	Catalog cat.ReaderPort
	RunLock guard.RunLocker
	Queue   EntityEnqueuer
}

// Config carries runtime knobs for planner sweeps
type Config struct {
	// SweepLimit bounds one sweep so a large backlog drains over several
	// cycles instead of flooding the queue in one shot
	SweepLimit int
	LockTTL    time.Duration
}

// Svc implements the refresh planner
type Svc struct {
	collab Collab
	config Config
	now    func() time.Time
}

// New constructs a refresh planner
func New(deps modkit.Deps, cfg Config, collab Collab) *Svc {
	if collab.Catalog == nil || collab.RunLock == nil || collab.Queue == nil {
		panic("refresh.Service requires all collaborators")
	}
	if cfg.SweepLimit <= 0 {
		cfg.SweepLimit = 200
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	return &Svc{collab: collab, config: cfg, now: time.Now}
}

const lockName = "refresh_planner"

// PlanRefresh enqueues a sync for every entity whose next_refresh_at has
// passed, up to SweepLimit per call. A held run lock means another
// instance is already sweeping and this call is a clean no-op
func (s *Svc) PlanRefresh(ctx context.Context) error {
	log := logger.C(ctx)

	if err := s.collab.RunLock.Acquire(ctx, lockName, s.config.LockTTL); err != nil {
		if perr.IsLocked(err) {
			log.Debug().Msg("refresh sweep already running, skipping")
			return nil
		}
		return err
	}
	defer func() {
		if rerr := s.collab.RunLock.Release(ctx, lockName); rerr != nil {
			log.Error().Err(rerr).Msg("run lock release failed")
		}
	}()

	refs, err := s.collab.Catalog.DueForRefresh(ctx, s.now(), s.config.SweepLimit)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeDB, "list due entities")
	}
	for _, ref := range refs {
		if err := s.collab.Queue.EnqueueSyncEntity(ctx, ref.EntityType, ref.EntityID); err != nil {
			return err
		}
	}
	if len(refs) > 0 {
		log.Info().Int("entities", len(refs)).Msg("refresh sweep enqueued")
	}
	return nil
}

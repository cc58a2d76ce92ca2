// Package service contains the backfill cursor walker
package service

import (
	"context"
	"fmt"
	"time"

	"animabook/internal/adapters/upstream"
	"animabook/internal/modkit"
	"animabook/internal/modkit/repokit"
	perr "animabook/internal/platform/errors"
	"animabook/internal/platform/guard"
	"animabook/internal/platform/logger"
	"animabook/internal/platform/metrics"
	"animabook/internal/services/backfill/domain"
	"animabook/internal/services/backfill/repo"
	cat "animabook/internal/services/catalog/domain"
)

// Service defines the backfill service contract
type Service interface {
	domain.WalkerPort
	domain.SchedulerPort
	domain.AdminPort
}

// RelationEnqueuer is the slice of the queue the walker needs: relation
// follow-ups for entities it finds. The walker never enqueues its own
// successor; the scheduler loop triggers runs off the persisted
// next_run_at so "is this stream active" stays a simple state read
type RelationEnqueuer interface {
	EnqueueSyncRelations(ctx context.Context, entityType string, id int64) error
}

// Collab carries the collaborators one backfill batch drives
type Collab struct {
	Catalog  cat.WriterPort
	Upstream *upstream.Client
	Quota    guard.QuotaTracker
	RunLock  guard.RunLocker
	Queue    RelationEnqueuer
}

// Config carries runtime knobs for the walker
type Config struct {
	// MissThreshold is the consecutive-miss count that auto-pauses a cursor
	MissThreshold int
	// DefaultBatch is used when a work item carries no batch size
	DefaultBatch int
	// NextDelay reschedules a normally completed batch
	NextDelay time.Duration
	// BudgetDelay reschedules a budget-limited batch; long, because the
	// window is saturated and early wake-ups would just burn polls
	BudgetDelay time.Duration
	// RetryDelay reschedules after an unexpected mid-run failure
	RetryDelay time.Duration
	// LockTTL bounds one batch's run-lock
	LockTTL time.Duration
}

// Svc implements the backfill service
type Svc struct {
	Repo   repo.Repo
	binder repokit.Binder[repo.Repo]
	db     repokit.TxRunner
	collab Collab
	config Config
	meter  metrics.Recorder
}

// New constructs a backfill service
func New(deps modkit.Deps, cfg Config, collab Collab) *Svc {
	if deps.PG == nil {
		panic("backfill.Service requires a non nil TxRunner")
	}
	if collab.Catalog == nil || collab.Upstream == nil || collab.Quota == nil || collab.RunLock == nil || collab.Queue == nil {
		panic("backfill.Service requires all collaborators")
	}
	cfg = withDefaults(cfg)

	b := repo.NewPG()
	return &Svc{
		Repo:   b.Bind(deps.PG),
		binder: b,
		db:     deps.PG,
		collab: collab,
		config: cfg,
		meter:  deps.Meter(),
	}
}

func withDefaults(cfg Config) Config {
	if cfg.MissThreshold <= 0 {
		cfg.MissThreshold = 50
	}
	if cfg.DefaultBatch <= 0 {
		cfg.DefaultBatch = 25
	}
	if cfg.NextDelay <= 0 {
		cfg.NextDelay = 30 * time.Second
	}
	if cfg.BudgetDelay <= 0 {
		cfg.BudgetDelay = 15 * time.Minute
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	return cfg
}

// RunBatch probes batchSize consecutive IDs from the cursor's position.
// Progress commits after every probe, so a crash mid-batch resumes exactly
// where it stopped. The run-lock keeps concurrent schedules of the same
// cursor from double-walking
func (s *Svc) RunBatch(ctx context.Context, cursorName string, batchSize int) error {
	log := logger.C(ctx)
	if batchSize <= 0 {
		batchSize = s.config.DefaultBatch
	}

	lockName := "backfill:" + cursorName
	if err := s.collab.RunLock.Acquire(ctx, lockName, s.config.LockTTL); err != nil {
		if perr.IsLocked(err) {
			log.Debug().Str("cursor", cursorName).Msg("backfill already running, skipping")
			return nil
		}
		return err
	}
	defer func() {
		if rerr := s.collab.RunLock.Release(ctx, lockName); rerr != nil {
			log.Error().Err(rerr).Str("cursor", cursorName).Msg("run lock release failed")
		}
	}()

	cur, err := s.Repo.Ensure(ctx, cursorName)
	if err != nil {
		return err
	}
	if !cur.Active {
		log.Debug().Str("cursor", cursorName).Msg("cursor inactive, nothing to do")
		return nil
	}
	if err := s.Repo.TouchRun(ctx, cursorName); err != nil {
		return err
	}

	stats, runErr := s.walk(ctx, &cur, batchSize)

	if err := s.Repo.RecordRun(ctx, cursorName, stats); err != nil {
		log.Error().Err(err).Str("cursor", cursorName).Msg("record run stats failed")
	}
	if runErr != nil {
		// progress up to the failure is already committed; keep the
		// message for operators and reschedule below
		if rerr := s.Repo.RecordError(ctx, cursorName, runErr.Error()); rerr != nil {
			log.Error().Err(rerr).Str("cursor", cursorName).Msg("record run error failed")
		}
	}

	// a cursor that has never hit anything is probing ahead of the id
	// space it was started in; pausing it then would strand a fresh
	// deployment, so the threshold only applies once something was found
	if cur.Misses >= s.config.MissThreshold && cur.LastFoundID > 0 {
		reason := fmt.Sprintf("auto-paused after %d consecutive misses past id %d", cur.Misses, cur.LastFoundID)
		log.Warn().Str("cursor", cursorName).Str("reason", reason).Msg("backfill auto-paused")
		return s.Repo.Deactivate(ctx, cursorName, reason)
	}

	delay := s.config.NextDelay
	switch {
	case runErr != nil:
		delay = s.config.RetryDelay
	case stats.BudgetLimited:
		delay = s.config.BudgetDelay
	}
	log.Debug().
		Str("cursor", cursorName).
		Int64("next_id", cur.NextID).
		Int("misses", cur.Misses).
		Int("found", stats.Found).
		Bool("budget_limited", stats.BudgetLimited).
		Dur("next_run_in", delay).
		Msg("backfill batch done")
	return s.Repo.ScheduleNext(ctx, cursorName, delay)
}

// walk runs the probes, mutating cur as it goes. Returns the batch summary
// and the first unexpected error if any
func (s *Svc) walk(ctx context.Context, cur *domain.Cursor, batchSize int) (domain.RunStats, error) {
	op := "backfill_" + cur.Name
	stats := domain.RunStats{BatchSize: batchSize}
	for i := 0; i < batchSize; i++ {
		if err := s.collab.Quota.Spend(ctx, op, 1); err != nil {
			if perr.IsBudget(err) {
				s.meter.RecordBudgetDenied(op)
				stats.BudgetLimited = true
				return stats, nil
			}
			return stats, err
		}

		id := cur.NextID
		doc, found, err := s.collab.Upstream.EntityByID(ctx, cur.Name, id)
		if err != nil {
			return stats, err
		}
		s.meter.RecordProbe(cur.Name, found)
		stats.Processed++

		if found {
			if err := s.collab.Catalog.UpsertFetched(ctx, cur.Name, id, doc, nil); err != nil {
				return stats, err
			}
			stats.Found++
			cur.Misses = 0
			cur.LastFoundID = id
			if cat.GraphBearing(cur.Name) {
				if err := s.collab.Queue.EnqueueSyncRelations(ctx, cur.Name, id); err != nil {
					return stats, err
				}
			}
		} else {
			cur.Misses++
		}
		cur.NextID = id + 1

		if err := s.Repo.UpdateProgress(ctx, cur.Name, cur.NextID, cur.LastFoundID, cur.Misses); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// Due lists active cursors whose next run time has passed
func (s *Svc) Due(ctx context.Context, now time.Time, limit int) ([]string, error) {
	return s.Repo.DueCursors(ctx, now, limit)
}

// Get returns one cursor
func (s *Svc) Get(ctx context.Context, name string) (domain.Cursor, error) {
	return s.Repo.Get(ctx, name)
}

// List returns all cursors
func (s *Svc) List(ctx context.Context) ([]domain.Cursor, error) {
	return s.Repo.List(ctx)
}

// Activate revives a cursor; its next_run_at resets to now so the
// scheduler picks it up on the next sweep. A name with no cursor row yet
// bootstraps the stream, provided it addresses an upstream id space —
// this is how a fresh deployment starts walking at all
func (s *Svc) Activate(ctx context.Context, name string, fromID int64) error {
	err := s.Repo.Activate(ctx, name, fromID)
	if err == nil || !perr.IsNotFound(err) {
		return err
	}
	if !upstream.SupportsEntity(name) {
		return err
	}
	if _, eerr := s.Repo.Ensure(ctx, name); eerr != nil {
		return eerr
	}
	return s.Repo.Activate(ctx, name, fromID)
}

// Deactivate pauses a cursor on operator request
func (s *Svc) Deactivate(ctx context.Context, name, reason string) error {
	if reason == "" {
		reason = "deactivated by operator"
	}
	return s.Repo.Deactivate(ctx, name, reason)
}

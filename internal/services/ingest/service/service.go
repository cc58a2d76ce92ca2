// Package service contains the entity sync workflow
package service

import (
	"context"
	"time"

	"animabook/internal/adapters/upstream"
	"animabook/internal/modkit"
	perr "animabook/internal/platform/errors"
	"animabook/internal/platform/guard"
	"animabook/internal/platform/logger"
	"animabook/internal/platform/metrics"
	cat "animabook/internal/services/catalog/domain"
	"animabook/internal/services/ingest/domain"
)

// RelationEnqueuer is the slice of the queue entity sync needs
type RelationEnqueuer interface {
	EnqueueSyncRelations(ctx context.Context, entityType string, id int64) error
}

// Service defines the entity sync service contract
type Service interface {
	domain.SyncerPort
}

// Collab carries the collaborators one entity sync drives
type Collab struct {
	Catalog  cat.WriterPort
	Upstream *upstream.Client
	Quota    guard.QuotaTracker
	Lease    guard.ExclusiveLock
	Queue    RelationEnqueuer
}

// Config carries runtime knobs for entity sync
type Config struct {
	// LeaseTTL bounds how long one worker may hold an entity; generous
	// enough for the slowest fetch, short enough that a crashed worker
	// does not park the entity for long
	LeaseTTL time.Duration
}

// Svc implements the entity sync service
type Svc struct {
	collab Collab
	config Config
	meter  metrics.Recorder
}

// New constructs an entity sync service
func New(deps modkit.Deps, cfg Config, collab Collab) *Svc {
	if collab.Catalog == nil || collab.Upstream == nil || collab.Quota == nil || collab.Lease == nil || collab.Queue == nil {
		panic("ingest.Service requires all collaborators")
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 2 * time.Minute
	}
	return &Svc{collab: collab, config: cfg, meter: deps.Meter()}
}

// SyncEntity fetches one entity and commits it.
// The lease deduplicates concurrent attempts on the same entity, the
// budget meters the upstream call. A not-found answer tombstones the
// row and is a success from the queue's point of view
func (s *Svc) SyncEntity(ctx context.Context, entityType string, id int64) error {
	log := logger.C(ctx)
	if !upstream.SupportsEntity(entityType) {
		return perr.InvalidArgf("entity type %q cannot be synced", entityType)
	}

	if err := s.collab.Lease.Acquire(ctx, entityType, id, s.config.LeaseTTL); err != nil {
		if perr.IsLocked(err) {
			s.meter.RecordLeaseContention(entityType)
			log.Debug().Str("entity_type", entityType).Int64("entity_id", id).Msg("entity leased elsewhere, skipping")
			return nil
		}
		return err
	}
	defer func() {
		if rerr := s.collab.Lease.Release(ctx, entityType, id); rerr != nil {
			log.Error().Err(rerr).Str("entity_type", entityType).Int64("entity_id", id).Msg("lease release failed")
		}
	}()

	if err := s.collab.Quota.Spend(ctx, entityType, 1); err != nil {
		if perr.IsBudget(err) {
			s.meter.RecordBudgetDenied(entityType)
		}
		return err
	}

	start := time.Now()
	doc, found, err := s.collab.Upstream.EntityByID(ctx, entityType, id)
	s.meter.RecordFetchLatency(entityType, time.Since(start))
	if err != nil {
		s.meter.RecordSyncOutcome(entityType, "error")
		return err
	}
	if !found {
		s.meter.RecordSyncOutcome(entityType, "miss")
		log.Info().Str("entity_type", entityType).Int64("entity_id", id).Msg("entity gone upstream, tombstoned")
		return s.collab.Catalog.MarkMissing(ctx, entityType, id)
	}

	extended, err := s.fetchStatistics(ctx, entityType, id)
	if err != nil {
		return err
	}

	if err := s.collab.Catalog.UpsertFetched(ctx, entityType, id, doc, extended); err != nil {
		s.meter.RecordSyncOutcome(entityType, "error")
		return err
	}
	s.meter.RecordSyncOutcome(entityType, "ok")

	if cat.GraphBearing(entityType) {
		return s.collab.Queue.EnqueueSyncRelations(ctx, entityType, id)
	}
	return nil
}

// fetchStatistics grabs the statistics sub-resource when the type has one.
// Budget denial or a flaky sub-fetch never fails the sync; the fragment
// just arrives on a later pass
func (s *Svc) fetchStatistics(ctx context.Context, entityType string, id int64) (map[string]any, error) {
	if entityType != cat.TypeAnime && entityType != cat.TypeManga {
		return nil, nil
	}
	op := entityType + "_extended"
	if err := s.collab.Quota.Spend(ctx, op, 1); err != nil {
		if perr.IsBudget(err) {
			s.meter.RecordBudgetDenied(op)
			return nil, nil
		}
		return nil, err
	}
	stats, found, err := s.collab.Upstream.SubResource(ctx, entityType, id, "statistics")
	if err != nil {
		logger.C(ctx).Warn().Err(err).Str("entity_type", entityType).Int64("entity_id", id).Msg("statistics fetch failed, continuing without")
		return nil, nil
	}
	if !found {
		return nil, nil
	}
	return map[string]any{"statistics": map[string]any(stats)}, nil
}

// Package service contains the seed listing dispatchers
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
	"animabook/internal/services/seed/domain"
)

// Service defines the seed service contract
type Service interface {
	domain.SeederPort
}

// EntityEnqueuer is the slice of the queue the seeder needs
type EntityEnqueuer interface {
	EnqueueSyncEntity(ctx context.Context, entityType string, id int64) error
}

// Collab carries the collaborators one listing sweep drives
type Collab struct {
	Catalog  cat.WriterPort
	Upstream *upstream.Client
	Quota    guard.QuotaTracker
	RunLock  guard.RunLocker
	Queue    EntityEnqueuer
}

// Config carries runtime knobs for listing sweeps
type Config struct {
	// MaxPages bounds one sweep; listings are deep and the point is
	// discovery, not exhaustive mirroring
	MaxPages int
	LockTTL  time.Duration
}

// Svc implements the seed service
type Svc struct {
	collab Collab
	config Config
	meter  metrics.Recorder
}

// New constructs a seed service
func New(deps modkit.Deps, cfg Config, collab Collab) *Svc {
	if collab.Catalog == nil || collab.Upstream == nil || collab.Quota == nil || collab.RunLock == nil || collab.Queue == nil {
		panic("seed.Service requires all collaborators")
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 3
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	return &Svc{collab: collab, config: cfg, meter: deps.Meter()}
}

// listingTargets maps each listing to the entity type its entries carry.
// watch entries wrap the anime under an entry object
var listingTargets = map[string]string{
	"top_anime": cat.TypeAnime,
	"top_manga": cat.TypeManga,
	"seasonal":  cat.TypeAnime,
	"search":    cat.TypeAnime,
	"watch":     cat.TypeAnime,
	"genres":    cat.TypeGenre,
	"producers": cat.TypeProducer,
	"magazines": cat.TypeMagazine,
	"clubs":     cat.TypeClub,
}

// SeedListing walks up to MaxPages of one listing, one budget unit per
// page, and enqueues a sync for every entry. Genre entries have no by-id
// endpoint and upsert directly from the listing payload instead
func (s *Svc) SeedListing(ctx context.Context, listing string) error {
	log := logger.C(ctx)
	target, ok := listingTargets[listing]
	if !ok || !upstream.SupportsListing(listing) {
		return perr.InvalidArgf("unknown listing %q", listing)
	}

	lockName := "seed:" + listing
	if err := s.collab.RunLock.Acquire(ctx, lockName, s.config.LockTTL); err != nil {
		if perr.IsLocked(err) {
			log.Debug().Str("listing", listing).Msg("seed already running, skipping")
			return nil
		}
		return err
	}
	defer func() {
		if rerr := s.collab.RunLock.Release(ctx, lockName); rerr != nil {
			log.Error().Err(rerr).Str("listing", listing).Msg("run lock release failed")
		}
	}()

	op := "seed_" + listing
	seen := 0
	for page := 1; page <= s.config.MaxPages; page++ {
		if err := s.collab.Quota.Spend(ctx, op, 1); err != nil {
			if perr.IsBudget(err) {
				s.meter.RecordBudgetDenied(op)
				break
			}
			return err
		}
		docs, found, err := s.collab.Upstream.Listing(ctx, listing, page)
		if err != nil {
			return err
		}
		if !found || len(docs) == 0 {
			break
		}
		for _, doc := range docs {
			if err := s.dispatch(ctx, listing, target, doc); err != nil {
				return err
			}
			seen++
		}
	}
	log.Info().Str("listing", listing).Int("entries", seen).Msg("listing seeded")
	return nil
}

func (s *Svc) dispatch(ctx context.Context, listing, target string, doc upstream.Document) error {
	// watch pages wrap the anime in an entry object
	if listing == "watch" {
		if entry := doc.Child("entry"); entry != nil {
			doc = entry
		}
	}
	id := doc.ID()
	if id == 0 {
		return nil
	}
	if target == cat.TypeGenre {
		// genres have no by-id endpoint; the listing entry is the whole payload
		return s.collab.Catalog.UpsertFetched(ctx, target, id, doc, nil)
	}
	return s.collab.Queue.EnqueueSyncEntity(ctx, target, id)
}

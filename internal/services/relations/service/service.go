// Package service contains relation graph workflows
package service

import (
	"context"

	"animabook/internal/adapters/upstream"
	"animabook/internal/modkit"
	"animabook/internal/modkit/repokit"
	perr "animabook/internal/platform/errors"
	"animabook/internal/platform/guard"
	"animabook/internal/platform/logger"
	"animabook/internal/platform/metrics"
	cat "animabook/internal/services/catalog/domain"
	"animabook/internal/services/relations/domain"
	"animabook/internal/services/relations/repo"

	json "github.com/goccy/go-json"
)

// Service defines the relation graph service contract
type Service interface {
	domain.SyncerPort
}

// Collab carries the cross-service collaborators relation sync drives
type Collab struct {
	Catalog  cat.ReaderPort
	Writer   cat.WriterPort
	Upstream *upstream.Client
	Quota    guard.QuotaTracker
	Enqueue  domain.EnqueuePort
}

// Svc implements the relation graph service
type Svc struct {
	Repo   repo.Repo
	binder repokit.Binder[repo.Repo]
	db     repokit.TxRunner
	collab Collab
	meter  metrics.Recorder
}

// New constructs a relation graph service
func New(deps modkit.Deps, collab Collab) *Svc {
	if deps.PG == nil {
		panic("relations.Service requires a non nil TxRunner")
	}
	if collab.Catalog == nil || collab.Writer == nil || collab.Upstream == nil || collab.Quota == nil || collab.Enqueue == nil {
		panic("relations.Service requires all collaborators")
	}

	b := repo.NewPG()
	return &Svc{
		Repo:   b.Bind(deps.PG),
		binder: b,
		db:     deps.PG,
		collab: collab,
		meter:  deps.Meter(),
	}
}

// listSubs is the order sub-resource lists are fetched per entity type
var listSubs = map[string][]string{
	cat.TypeAnime: {"characters", "staff", "news"},
	cat.TypeManga: {"characters", "news"},
}

// SyncRelations extracts and persists the outbound edges of one entity,
// folds the fetched sub-resources into its extended payload, and enqueues
// follow-up syncs for allow-listed targets. Budget exhaustion mid-way is
// backpressure, not failure: the run keeps what it already has
func (s *Svc) SyncRelations(ctx context.Context, entityType string, id int64) error {
	log := logger.C(ctx)
	if !cat.GraphBearing(entityType) {
		return perr.InvalidArgf("entity type %q carries no relation graph", entityType)
	}

	ent, err := s.collab.Catalog.Get(ctx, entityType, id)
	if err != nil {
		return err
	}
	var payload map[string]any
	if err := json.Unmarshal(ent.Payload, &payload); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "decode stored payload %s/%d", entityType, id)
	}

	subs, extended, err := s.fetchSubs(ctx, entityType, id)
	if err != nil {
		return err
	}
	if len(extended) > 0 {
		if err := s.collab.Writer.MergeExtended(ctx, entityType, id, extended); err != nil {
			return err
		}
	}

	edges := extractEdges(entityType, id, upstream.Document(payload), subs)
	if err := s.Repo.UpsertEdges(ctx, edges); err != nil {
		return err
	}
	s.meter.RecordRelationsUpserted(len(edges))

	enqueued := 0
	for _, e := range edges {
		if !domain.SyncableTarget(e.ToType) {
			continue
		}
		if err := s.collab.Enqueue.EnqueueSyncEntity(ctx, e.ToType, e.ToID); err != nil {
			return err
		}
		enqueued++
	}
	log.Debug().
		Str("entity_type", entityType).
		Int64("entity_id", id).
		Int("edges", len(edges)).
		Int("enqueued", enqueued).
		Msg("relations synced")
	return nil
}

// fetchSubs pulls the list-shaped sub-resources, one budget unit each.
// A denied budget stops further fetches for this run; already-fetched
// lists are still used
func (s *Svc) fetchSubs(ctx context.Context, entityType string, id int64) (subDocs, map[string]any, error) {
	var subs subDocs
	extended := map[string]any{}
	op := entityType + "_extended"

	for _, sub := range listSubs[entityType] {
		if err := s.collab.Quota.Spend(ctx, op, 1); err != nil {
			if perr.IsBudget(err) {
				s.meter.RecordBudgetDenied(op)
				logger.C(ctx).Debug().Str("op", op).Str("sub", sub).Msg("sub-resource fetch deferred, budget exhausted")
				break
			}
			return subs, nil, err
		}
		docs, found, err := s.collab.Upstream.SubResourceList(ctx, entityType, id, sub)
		if err != nil {
			return subs, nil, err
		}
		if !found {
			continue
		}
		switch sub {
		case "characters":
			subs.Characters = docs
		case "staff":
			subs.Staff = docs
		case "news":
			subs.News = docs
		}
		extended[sub] = docs
	}
	return subs, extended, nil
}

// Package service contains work queue workflows
package service

import (
	"context"
	"time"

	"animabook/internal/modkit"
	"animabook/internal/modkit/repokit"
	perr "animabook/internal/platform/errors"
	"animabook/internal/platform/metrics"
	"animabook/internal/services/dispatch/domain"
	"animabook/internal/services/dispatch/repo"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Service defines the work queue service contract
type Service interface {
	domain.QueuePort
	domain.WorkerPort
}

// Config carries runtime knobs for the queue worker
type Config struct {
	PollEvery    time.Duration
	TakeBatch    int
	LeaseFor     time.Duration
	RetryBackoff time.Duration
	BudgetExtra  time.Duration
	MaxAttempts  int
}

// Svc implements the work queue service
type Svc struct {
	Repo     repo.Repo
	binder   repokit.Binder[repo.Repo]
	db       repokit.TxRunner
	deps     modkit.Deps
	config   Config
	meter    metrics.Recorder
	validate *validator.Validate
	handlers map[string]domain.Handler
	failures domain.FailureSink
	observer domain.Observer
}

// New constructs a work queue service
func New(deps modkit.Deps, cfg Config) *Svc {
	if deps.PG == nil {
		panic("dispatch.Service requires a non nil TxRunner")
	}
	cfg = withDefaults(cfg)

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(enqueueStructLevel, domain.Enqueue{})

	b := repo.NewPG()
	return &Svc{
		Repo:     b.Bind(deps.PG),
		binder:   b,
		db:       deps.PG,
		deps:     deps,
		config:   cfg,
		meter:    deps.Meter(),
		validate: v,
		handlers: map[string]domain.Handler{},
	}
}

func withDefaults(cfg Config) Config {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 500 * time.Millisecond
	}
	if cfg.TakeBatch <= 0 {
		cfg.TakeBatch = 16
	}
	if cfg.LeaseFor <= 0 {
		cfg.LeaseFor = 60 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 30 * time.Second
	}
	if cfg.BudgetExtra <= 0 {
		cfg.BudgetExtra = 5 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return cfg
}

// enqueueStructLevel enforces the kind-specific field requirements
func enqueueStructLevel(sl validator.StructLevel) {
	req := sl.Current().Interface().(domain.Enqueue)
	switch req.Kind {
	case domain.KindSyncEntity, domain.KindSyncRelations:
		if req.EntityType == "" {
			sl.ReportError(req.EntityType, "EntityType", "EntityType", "required_for_kind", req.Kind)
		}
		if req.EntityID <= 0 {
			sl.ReportError(req.EntityID, "EntityID", "EntityID", "required_for_kind", req.Kind)
		}
	case domain.KindBackfillBatch:
		if req.CursorName == "" {
			sl.ReportError(req.CursorName, "CursorName", "CursorName", "required_for_kind", req.Kind)
		}
	case domain.KindSeedListing:
		if req.Listing == "" {
			sl.ReportError(req.Listing, "Listing", "Listing", "required_for_kind", req.Kind)
		}
	}
}

// Handle registers the handler for one item kind; call before Run
func (s *Svc) Handle(kind string, h domain.Handler) { s.handlers[kind] = h }

// Failures sets the sink dead entity items report to; call before Run
func (s *Svc) Failures(sink domain.FailureSink) { s.failures = sink }

// Observe sets the per-item outcome observer; call before Run
func (s *Svc) Observe(fn domain.Observer) { s.observer = fn }

// Enqueue validates and inserts one work item
func (s *Svc) Enqueue(ctx context.Context, req domain.Enqueue) error {
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeValidation, "invalid %s work item", req.Kind)
	}
	return s.Repo.Insert(ctx, domain.Item{
		ID:         uuid.New(),
		Kind:       req.Kind,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		CursorName: req.CursorName,
		Listing:    req.Listing,
		BatchSize:  req.BatchSize,
		Priority:   req.Priority,
	}, req.Delay)
}

// EnqueueSyncEntity requests one entity fetch-and-upsert
func (s *Svc) EnqueueSyncEntity(ctx context.Context, entityType string, id int64) error {
	return s.Enqueue(ctx, domain.Enqueue{Kind: domain.KindSyncEntity, EntityType: entityType, EntityID: id})
}

// EnqueueSyncRelations requests relation extraction for one entity
func (s *Svc) EnqueueSyncRelations(ctx context.Context, entityType string, id int64) error {
	return s.Enqueue(ctx, domain.Enqueue{Kind: domain.KindSyncRelations, EntityType: entityType, EntityID: id})
}

// EnqueueBackfillBatch schedules one backfill run after delay
func (s *Svc) EnqueueBackfillBatch(ctx context.Context, cursorName string, batchSize int, delay time.Duration) error {
	return s.Enqueue(ctx, domain.Enqueue{
		Kind:       domain.KindBackfillBatch,
		CursorName: cursorName,
		BatchSize:  batchSize,
		Delay:      delay,
	})
}

// EnqueueSeedListing requests one seed listing sweep
func (s *Svc) EnqueueSeedListing(ctx context.Context, listing string) error {
	return s.Enqueue(ctx, domain.Enqueue{Kind: domain.KindSeedListing, Listing: listing})
}

// EnqueueRefreshDue schedules one refresh planner sweep after delay
func (s *Svc) EnqueueRefreshDue(ctx context.Context, delay time.Duration) error {
	return s.Enqueue(ctx, domain.Enqueue{Kind: domain.KindRefreshDue, Delay: delay})
}

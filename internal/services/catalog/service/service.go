// Package service contains catalog workflows
package service

import (
	"context"
	"time"

	"animabook/internal/modkit"
	"animabook/internal/modkit/repokit"
	perr "animabook/internal/platform/errors"
	"animabook/internal/services/catalog/domain"
	"animabook/internal/services/catalog/repo"

	json "github.com/goccy/go-json"
)

// Service defines the catalog service contract
type Service interface {
	domain.WriterPort
	domain.ReaderPort
}

// CadenceConfig controls refresh horizons per entity activity
type CadenceConfig struct {
	// ActiveEvery is the horizon for currently airing or publishing titles
	ActiveEvery time.Duration
	// FinishedEvery is the horizon for finished and unknown-status titles
	FinishedEvery time.Duration
}

// Config carries runtime knobs for the catalog service
type Config struct {
	Cadence CadenceConfig
}

// Svc implements the catalog service
type Svc struct {
	Repo   repo.Repo
	binder repokit.Binder[repo.Repo]
	db     repokit.TxRunner
	config Config
	now    func() time.Time
}

// New constructs a catalog service
func New(deps modkit.Deps, cfg Config) *Svc {
	if deps.PG == nil {
		panic("catalog.Service requires a non nil TxRunner")
	}
	cfg.Cadence = withCadenceDefaults(cfg.Cadence)

	b := repo.NewPG()
	return &Svc{
		Repo:   b.Bind(deps.PG),
		binder: b,
		db:     deps.PG,
		config: cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func withCadenceDefaults(c CadenceConfig) CadenceConfig {
	if c.ActiveEvery == 0 {
		c.ActiveEvery = 24 * time.Hour
	}
	if c.FinishedEvery == 0 {
		c.FinishedEvery = 30 * 24 * time.Hour
	}
	return c
}

// UpsertFetched projects a raw payload into derived fields and persists
// the snapshot. The payload replaces wholesale; extended merges by key
func (s *Svc) UpsertFetched(ctx context.Context, entityType string, id int64, payload map[string]any, extended map[string]any) error {
	fields := mapFields(entityType, payload)

	raw, err := json.Marshal(payload)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "marshal payload %s/%d", entityType, id)
	}
	var ext []byte
	if len(extended) > 0 {
		ext, err = json.Marshal(extended)
		if err != nil {
			return perr.Wrapf(err, perr.ErrorCodeJSON, "marshal extended %s/%d", entityType, id)
		}
	}

	return s.Repo.UpsertEntity(ctx, domain.UpsertInput{
		EntityType:    entityType,
		EntityID:      id,
		Payload:       raw,
		Extended:      ext,
		Fields:        fields,
		NextRefreshAt: nextRefresh(s.config.Cadence, entityType, fields.Status, s.now()),
	})
}

// MergeExtended folds sub-resource fragments into the extended payload
func (s *Svc) MergeExtended(ctx context.Context, entityType string, id int64, extended map[string]any) error {
	if len(extended) == 0 {
		return nil
	}
	raw, err := json.Marshal(extended)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "marshal extended %s/%d", entityType, id)
	}
	return s.Repo.MergeExtended(ctx, entityType, id, raw)
}

// RecordFailure bumps failure counters on an existing row
func (s *Svc) RecordFailure(ctx context.Context, entityType string, id int64, msg string) error {
	return s.Repo.RecordFailure(ctx, entityType, id, msg)
}

// MarkMissing tombstones an entity upstream no longer serves
func (s *Svc) MarkMissing(ctx context.Context, entityType string, id int64) error {
	return s.Repo.MarkMissing(ctx, entityType, id, "not found upstream")
}

// Get loads one entity row
func (s *Svc) Get(ctx context.Context, entityType string, id int64) (domain.Entity, error) {
	return s.Repo.Get(ctx, entityType, id)
}

// DueForRefresh lists entities whose refresh horizon has passed
func (s *Svc) DueForRefresh(ctx context.Context, now time.Time, limit int) ([]domain.Ref, error) {
	return s.Repo.DueForRefresh(ctx, now, limit)
}

// CountByType returns per-type row counts
func (s *Svc) CountByType(ctx context.Context) (map[string]int64, error) {
	return s.Repo.CountByType(ctx)
}

// Package repo provides the catalog repository implementation
package repo

import (
	"context"
	stdsql "database/sql"
	"errors"
	"time"

	"animabook/internal/modkit/repokit"
	perr "animabook/internal/platform/errors"
	str "animabook/internal/platform/strings"
	"animabook/internal/services/catalog/domain"

	json "github.com/goccy/go-json"
)

// Repo defines the catalog repository contract
type Repo interface {
	// UpsertEntity writes one fetched snapshot; re-running with the same
	// input leaves the row unchanged apart from updated_at
	UpsertEntity(ctx context.Context, in domain.UpsertInput) error

	// MergeExtended folds fragments into extended by top-level key
	MergeExtended(ctx context.Context, entityType string, id int64, extended []byte) error

	// Failure bookkeeping on existing rows only
	RecordFailure(ctx context.Context, entityType string, id int64, msg string) error
	MarkMissing(ctx context.Context, entityType string, id int64, msg string) error

	// Read side for the refresh planner and the ops surface
	Get(ctx context.Context, entityType string, id int64) (domain.Entity, error)
	DueForRefresh(ctx context.Context, now time.Time, limit int) ([]domain.Ref, error)
	CountByType(ctx context.Context) (map[string]int64, error)
}

type (
	// PG is a Postgres catalog repository
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG constructs a Postgres catalog repository
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind binds a Queryer to a Postgres implementation of Repo
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

// UpsertEntity replaces payload and derived fields wholesale and merges
// extended additively by top-level key. A successful write clears the
// failure counters so retries after a bad patch recover on their own
func (r *queries) UpsertEntity(ctx context.Context, in domain.UpsertInput) error {
	links, err := json.Marshal(in.Fields.ExternalLinks)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "marshal external links")
	}
	payload := in.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	extended := in.Extended
	if len(extended) == 0 {
		extended = []byte("{}")
	}

	const sql = `
		INSERT INTO catalog_entities (
			entity_type, entity_id, title, title_normalized, payload, extended,
			score, rank, popularity, members, favorites, year, season, status,
			image_url, thumbnail_url, external_links, next_refresh_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18
		)
		ON CONFLICT (entity_type, entity_id) DO UPDATE SET
			title            = excluded.title,
			title_normalized = excluded.title_normalized,
			payload          = excluded.payload,
			extended         = catalog_entities.extended || excluded.extended,
			score            = excluded.score,
			rank             = excluded.rank,
			popularity       = excluded.popularity,
			members          = excluded.members,
			favorites        = excluded.favorites,
			year             = excluded.year,
			season           = excluded.season,
			status           = excluded.status,
			image_url        = excluded.image_url,
			thumbnail_url    = excluded.thumbnail_url,
			external_links   = excluded.external_links,
			fetch_failures   = 0,
			last_error       = NULL,
			next_refresh_at  = excluded.next_refresh_at,
			updated_at       = now()
	`
	if _, err := r.q.Exec(
		ctx, sql,
		in.EntityType, in.EntityID, in.Fields.Title, in.Fields.TitleNormalized, payload, extended,
		in.Fields.Score, in.Fields.Rank, in.Fields.Popularity, in.Fields.Members, in.Fields.Favorites,
		in.Fields.Year, str.SQLNull(in.Fields.Season), in.Fields.Status,
		in.Fields.ImageURL, in.Fields.ThumbnailURL, links, in.NextRefreshAt,
	); err != nil {
		return perr.FromPostgresf(err, "upsert %s/%d", in.EntityType, in.EntityID)
	}
	return nil
}

// MergeExtended merges a jsonb fragment into extended without touching
// the base payload; separate sub-resource calls each carry a subset
func (r *queries) MergeExtended(ctx context.Context, entityType string, id int64, extended []byte) error {
	if len(extended) == 0 {
		return nil
	}
	const sql = `
		UPDATE catalog_entities
		SET extended = extended || $3,
		    updated_at = now()
		WHERE entity_type = $1 AND entity_id = $2
	`
	if _, err := r.q.Exec(ctx, sql, entityType, id, extended); err != nil {
		return perr.FromPostgresf(err, "merge extended %s/%d", entityType, id)
	}
	return nil
}

// RecordFailure bumps the failure counter on a row that already exists.
// Entities are only created by successful fetches, so a missing row is fine
func (r *queries) RecordFailure(ctx context.Context, entityType string, id int64, msg string) error {
	const sql = `
		UPDATE catalog_entities
		SET fetch_failures = fetch_failures + 1,
		    last_error = LEFT($3, 500),
		    updated_at = now()
		WHERE entity_type = $1 AND entity_id = $2
	`
	if _, err := r.q.Exec(ctx, sql, entityType, id, msg); err != nil {
		return perr.FromPostgresf(err, "record failure %s/%d", entityType, id)
	}
	return nil
}

// MarkMissing tombstones an entity that upstream no longer serves:
// the row and its history stay, but next_refresh_at is cleared so the
// planner stops picking it up
func (r *queries) MarkMissing(ctx context.Context, entityType string, id int64, msg string) error {
	const sql = `
		UPDATE catalog_entities
		SET last_error = LEFT($3, 500),
		    next_refresh_at = NULL,
		    updated_at = now()
		WHERE entity_type = $1 AND entity_id = $2
	`
	if _, err := r.q.Exec(ctx, sql, entityType, id, msg); err != nil {
		return perr.FromPostgresf(err, "mark missing %s/%d", entityType, id)
	}
	return nil
}

// Get loads one entity row
func (r *queries) Get(ctx context.Context, entityType string, id int64) (domain.Entity, error) {
	const sql = `
		SELECT entity_type, entity_id, title, title_normalized, payload, extended,
		       score, rank, popularity, members, favorites, year,
		       COALESCE(season, ''), status, image_url, thumbnail_url, external_links,
		       fetch_failures, last_error, next_refresh_at, created_at, updated_at
		FROM catalog_entities
		WHERE entity_type = $1 AND entity_id = $2
	`
	var (
		e     domain.Entity
		links []byte
	)
	err := r.q.QueryRow(ctx, sql, entityType, id).Scan(
		&e.EntityType, &e.EntityID, &e.Fields.Title, &e.Fields.TitleNormalized, &e.Payload, &e.Extended,
		&e.Fields.Score, &e.Fields.Rank, &e.Fields.Popularity, &e.Fields.Members, &e.Fields.Favorites,
		&e.Fields.Year, &e.Fields.Season, &e.Fields.Status, &e.Fields.ImageURL, &e.Fields.ThumbnailURL, &links,
		&e.FetchFailures, &e.LastError, &e.NextRefreshAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return domain.Entity{}, perr.NotFoundf("entity %s/%d", entityType, id)
		}
		return domain.Entity{}, perr.FromPostgresf(err, "get %s/%d", entityType, id)
	}
	if len(links) > 0 {
		if err := json.Unmarshal(links, &e.Fields.ExternalLinks); err != nil {
			return domain.Entity{}, perr.Wrap(err, perr.ErrorCodeJSON, "decode external links")
		}
	}
	return e, nil
}

// DueForRefresh returns up to limit entity refs whose refresh horizon has passed
func (r *queries) DueForRefresh(ctx context.Context, now time.Time, limit int) ([]domain.Ref, error) {
	const sql = `
		SELECT entity_type, entity_id
		FROM catalog_entities
		WHERE next_refresh_at IS NOT NULL AND next_refresh_at <= $1
		ORDER BY next_refresh_at ASC
		LIMIT $2
	`
	rows, err := r.q.Query(ctx, sql, now, limit)
	if err != nil {
		return nil, perr.FromPostgres(err, "due for refresh")
	}
	defer rows.Close()

	var out []domain.Ref
	for rows.Next() {
		var ref domain.Ref
		if err := rows.Scan(&ref.EntityType, &ref.EntityID); err != nil {
			return nil, perr.FromPostgres(err, "scan due ref")
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// CountByType returns per-type row counts for the ops surface
func (r *queries) CountByType(ctx context.Context) (map[string]int64, error) {
	const sql = `SELECT entity_type, COUNT(*) FROM catalog_entities GROUP BY entity_type`
	rows, err := r.q.Query(ctx, sql)
	if err != nil {
		return nil, perr.FromPostgres(err, "count by type")
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			t string
			n int64
		)
		if err := rows.Scan(&t, &n); err != nil {
			return nil, perr.FromPostgres(err, "scan count")
		}
		out[t] = n
	}
	return out, rows.Err()
}

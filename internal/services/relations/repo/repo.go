// Package repo provides the relation graph repository implementation
package repo

import (
	"context"

	"animabook/internal/modkit/repokit"
	perr "animabook/internal/platform/errors"
	"animabook/internal/services/relations/domain"

	json "github.com/goccy/go-json"
)

// Repo defines the relation graph repository contract
type Repo interface {
	// UpsertEdges writes edges keyed by the full five-part tuple.
	// Re-syncing the same from entity rewrites weight and meta in place,
	// latest values win
	UpsertEdges(ctx context.Context, edges []domain.Edge) error

	// ListFrom returns the outbound edges of one entity
	ListFrom(ctx context.Context, fromType string, fromID int64) ([]domain.Edge, error)
}

type (
	// PG is a Postgres relation graph repository
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG constructs a Postgres relation graph repository
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind binds a Queryer to a Postgres implementation of Repo
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

func (r *queries) UpsertEdges(ctx context.Context, edges []domain.Edge) error {
	const sql = `
		INSERT INTO entity_relations (from_type, from_id, to_type, to_id, relation_type, weight, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (from_type, from_id, to_type, to_id, relation_type) DO UPDATE SET
			weight     = excluded.weight,
			meta       = excluded.meta,
			updated_at = now()
	`
	for _, e := range edges {
		meta, err := json.Marshal(orEmpty(e.Meta))
		if err != nil {
			return perr.Wrap(err, perr.ErrorCodeJSON, "marshal edge meta")
		}
		if _, err := r.q.Exec(ctx, sql, e.FromType, e.FromID, e.ToType, e.ToID, e.RelationType, e.Weight, meta); err != nil {
			return perr.FromPostgresf(err, "upsert edge %s/%d -> %s/%d", e.FromType, e.FromID, e.ToType, e.ToID)
		}
	}
	return nil
}

func (r *queries) ListFrom(ctx context.Context, fromType string, fromID int64) ([]domain.Edge, error) {
	const sql = `
		SELECT from_type, from_id, to_type, to_id, relation_type, weight, meta
		FROM entity_relations
		WHERE from_type = $1 AND from_id = $2
		ORDER BY relation_type, to_type, to_id
	`
	rows, err := r.q.Query(ctx, sql, fromType, fromID)
	if err != nil {
		return nil, perr.FromPostgres(err, "list edges")
	}
	defer rows.Close()

	var out []domain.Edge
	for rows.Next() {
		var (
			e    domain.Edge
			meta []byte
		)
		if err := rows.Scan(&e.FromType, &e.FromID, &e.ToType, &e.ToID, &e.RelationType, &e.Weight, &meta); err != nil {
			return nil, perr.FromPostgres(err, "scan edge")
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Meta); err != nil {
				return nil, perr.Wrap(err, perr.ErrorCodeJSON, "decode edge meta")
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

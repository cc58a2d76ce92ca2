// Package repo provides the work queue repository implementation
package repo

import (
	"context"
	"time"

	"animabook/internal/modkit/repokit"
	perr "animabook/internal/platform/errors"
	"animabook/internal/services/dispatch/domain"

	"github.com/google/uuid"
)

// Repo defines the work queue repository contract
type Repo interface {
	// Insert adds one item, due after delay
	Insert(ctx context.Context, item domain.Item, delay time.Duration) error

	// Lease reserves up to n due items for leaseFor so concurrent
	// workers do not double-process
	Lease(ctx context.Context, n int, leaseFor time.Duration) ([]domain.Item, error)

	// Ack removes a completed item
	Ack(ctx context.Context, id uuid.UUID) error

	// Nack schedules a retry with the error recorded
	Nack(ctx context.Context, id uuid.UUID, backoff time.Duration, lastErr string) error

	// Defer pushes an item out without counting an attempt, for waits
	// that are backpressure rather than failure
	Defer(ctx context.Context, id uuid.UUID, backoff time.Duration, lastErr string) error

	// PendingCount reports the queue depth
	PendingCount(ctx context.Context) (int64, error)
}

type (
	// PG is a Postgres work queue repository
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG constructs a Postgres work queue repository
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind binds a Queryer to a Postgres implementation of Repo
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

func (r *queries) Insert(ctx context.Context, item domain.Item, delay time.Duration) error {
	const sql = `
		INSERT INTO work_queue (id, kind, entity_type, entity_id, cursor_name, listing, batch_size, priority, next_attempt_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, 0), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, 0), $8, NOW() + $9::interval)
	`
	if _, err := r.q.Exec(
		ctx, sql,
		item.ID, item.Kind, item.EntityType, item.EntityID, item.CursorName, item.Listing,
		item.BatchSize, item.Priority, delay.String(),
	); err != nil {
		return perr.FromPostgresf(err, "enqueue %s", item.Kind)
	}
	return nil
}

// Lease reserves due items by pushing their next_attempt_at past the lease
// window; crashed workers simply let the lease lapse and the item comes back
func (r *queries) Lease(ctx context.Context, n int, leaseFor time.Duration) ([]domain.Item, error) {
	const sql = `
		WITH cte AS (
			SELECT id
			FROM work_queue
			WHERE next_attempt_at <= NOW()
			ORDER BY priority DESC, next_attempt_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE work_queue q
		SET next_attempt_at = NOW() + $2::interval
		FROM cte
		WHERE q.id = cte.id
		RETURNING q.id, q.kind, COALESCE(q.entity_type, ''), COALESCE(q.entity_id, 0),
		          COALESCE(q.cursor_name, ''), COALESCE(q.listing, ''), COALESCE(q.batch_size, 0),
		          q.priority, q.attempts, q.next_attempt_at
	`
	rows, err := r.q.Query(ctx, sql, n, leaseFor.String())
	if err != nil {
		return nil, perr.FromPostgres(err, "lease work items")
	}
	defer rows.Close()

	var out []domain.Item
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(
			&it.ID, &it.Kind, &it.EntityType, &it.EntityID,
			&it.CursorName, &it.Listing, &it.BatchSize,
			&it.Priority, &it.Attempts, &it.NextAttemptAt,
		); err != nil {
			return nil, perr.FromPostgres(err, "scan work item")
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *queries) Ack(ctx context.Context, id uuid.UUID) error {
	const sql = `DELETE FROM work_queue WHERE id = $1`
	if _, err := r.q.Exec(ctx, sql, id); err != nil {
		return perr.FromPostgres(err, "ack work item")
	}
	return nil
}

func (r *queries) Nack(ctx context.Context, id uuid.UUID, backoff time.Duration, lastErr string) error {
	const sql = `
		UPDATE work_queue
		SET attempts = attempts + 1,
		    last_error = LEFT($2, 500),
		    next_attempt_at = NOW() + $3::interval
		WHERE id = $1
	`
	if _, err := r.q.Exec(ctx, sql, id, lastErr, backoff.String()); err != nil {
		return perr.FromPostgres(err, "nack work item")
	}
	return nil
}

func (r *queries) Defer(ctx context.Context, id uuid.UUID, backoff time.Duration, lastErr string) error {
	const sql = `
		UPDATE work_queue
		SET last_error = LEFT($2, 500),
		    next_attempt_at = NOW() + $3::interval
		WHERE id = $1
	`
	if _, err := r.q.Exec(ctx, sql, id, lastErr, backoff.String()); err != nil {
		return perr.FromPostgres(err, "defer work item")
	}
	return nil
}

func (r *queries) PendingCount(ctx context.Context) (int64, error) {
	const sql = `SELECT COUNT(*) FROM work_queue`
	var n int64
	if err := r.q.QueryRow(ctx, sql).Scan(&n); err != nil {
		return 0, perr.FromPostgres(err, "queue depth")
	}
	return n, nil
}

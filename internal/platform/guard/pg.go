package guard

import (
	"context"
	"time"

	perr "animabook/internal/platform/errors"
	"animabook/internal/platform/store"
)

// PGQuota tracks budgets in the rate_budgets table
// the check-and-increment is a single statement so concurrent spenders never
// push used past the ceiling
type PGQuota struct {
	q   store.RowQuerier
	cfg QuotaConfig
	now func() time.Time
}

// NewPGQuota builds a PGQuota over q
func NewPGQuota(q store.RowQuerier, cfg QuotaConfig) *PGQuota {
	return &PGQuota{q: q, cfg: cfg, now: time.Now}
}

// Spend consumes n units for op in the current window
func (p *PGQuota) Spend(ctx context.Context, op string, n int) error {
	if n <= 0 {
		return nil
	}
	ceiling := p.cfg.CeilingFor(op)
	if n > ceiling {
		return perr.WithOp(perr.Wrap(perr.ErrBudgetExhausted, perr.ErrorCodeTooManyRequests, "amount exceeds ceiling"), op)
	}
	ws := windowStart(p.now(), p.cfg.Window)

	rows, err := p.q.Query(ctx, `
		INSERT INTO rate_budgets (op, window_start, used)
		VALUES ($1, $2, $3)
		ON CONFLICT (op, window_start) DO UPDATE
		SET used = rate_budgets.used + $3
		WHERE rate_budgets.used + $3 <= $4
		RETURNING used
	`, op, ws, n, ceiling)
	if err != nil {
		// fail closed: a broken budget backend must not let requests through
		return perr.FromPostgresf(err, "budget spend %s", op)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return perr.FromPostgresf(err, "budget spend %s", op)
		}
		// the ceiling predicate in the upsert rejected the increment
		return perr.WithOp(perr.Wrap(perr.ErrBudgetExhausted, perr.ErrorCodeTooManyRequests, "window ceiling reached"), op)
	}
	var used int
	if err := rows.Scan(&used); err != nil {
		return perr.FromPostgresf(err, "budget spend %s", op)
	}
	return rows.Err()
}

// PGLease implements ExclusiveLock over entity_leases
// an expired row is taken over in the same statement that claims a free one
type PGLease struct {
	q store.RowQuerier
}

// NewPGLease builds a PGLease over q
func NewPGLease(q store.RowQuerier) *PGLease { return &PGLease{q: q} }

// Acquire claims the lease or returns perr.ErrLocked
func (p *PGLease) Acquire(ctx context.Context, entityType string, entityID int64, ttl time.Duration) error {
	claimed, err := claim(ctx, p.q, `
		INSERT INTO entity_leases (entity_type, entity_id, expires_at)
		VALUES ($1, $2, now() + $3::interval)
		ON CONFLICT (entity_type, entity_id) DO UPDATE
		SET expires_at = excluded.expires_at
		WHERE entity_leases.expires_at < now()
		RETURNING true
	`, entityType, entityID, pgInterval(ttl))
	if err != nil {
		return perr.FromPostgresf(err, "lease acquire %s:%d", entityType, entityID)
	}
	if !claimed {
		return perr.Wrapf(perr.ErrLocked, perr.ErrorCodeConflict, "lease held for %s:%d", entityType, entityID)
	}
	return nil
}

// Release drops the lease; releasing an absent lease is a no-op
func (p *PGLease) Release(ctx context.Context, entityType string, entityID int64) error {
	_, err := p.q.Exec(ctx,
		`DELETE FROM entity_leases WHERE entity_type = $1 AND entity_id = $2`,
		entityType, entityID)
	return perr.FromPostgresf(err, "lease release %s:%d", entityType, entityID)
}

// PGRunLock implements RunLocker over run_locks, same claim shape as PGLease
type PGRunLock struct {
	q store.RowQuerier
}

// NewPGRunLock builds a PGRunLock over q
func NewPGRunLock(q store.RowQuerier) *PGRunLock { return &PGRunLock{q: q} }

// Acquire claims the named lock or returns perr.ErrLocked
func (p *PGRunLock) Acquire(ctx context.Context, name string, ttl time.Duration) error {
	claimed, err := claim(ctx, p.q, `
		INSERT INTO run_locks (name, expires_at)
		VALUES ($1, now() + $2::interval)
		ON CONFLICT (name) DO UPDATE
		SET expires_at = excluded.expires_at
		WHERE run_locks.expires_at < now()
		RETURNING true
	`, name, pgInterval(ttl))
	if err != nil {
		return perr.FromPostgresf(err, "run lock acquire %s", name)
	}
	if !claimed {
		return perr.Wrapf(perr.ErrLocked, perr.ErrorCodeConflict, "run lock held for %s", name)
	}
	return nil
}

// Release drops the named lock; absent is a no-op
func (p *PGRunLock) Release(ctx context.Context, name string) error {
	_, err := p.q.Exec(ctx, `DELETE FROM run_locks WHERE name = $1`, name)
	return perr.FromPostgresf(err, "run lock release %s", name)
}

// claim runs an insert-or-takeover statement and reports whether a row came back
func claim(ctx context.Context, q store.RowQuerier, sql string, args ...any) (bool, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return false, rows.Err()
	}
	return true, rows.Err()
}

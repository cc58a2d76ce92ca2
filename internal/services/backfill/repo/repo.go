// Package repo provides the backfill cursor repository implementation
package repo

import (
	"context"
	"time"

	"animabook/internal/modkit/repokit"
	perr "animabook/internal/platform/errors"
	"animabook/internal/services/backfill/domain"

	json "github.com/goccy/go-json"
)

// Repo defines the backfill cursor repository contract
type Repo interface {
	// Ensure returns the cursor, creating it at position 1 if absent
	Ensure(ctx context.Context, name string) (domain.Cursor, error)

	// Get returns the cursor or perr.ErrNotFound
	Get(ctx context.Context, name string) (domain.Cursor, error)
	List(ctx context.Context) ([]domain.Cursor, error)

	// UpdateProgress commits position after one probe so a crash never
	// replays committed ground
	UpdateProgress(ctx context.Context, name string, nextID, lastFoundID int64, misses int) error

	// TouchRun stamps last_run_at at the start of a batch
	TouchRun(ctx context.Context, name string) error

	// ScheduleNext persists when the cursor should run again; the
	// scheduler loop reads it back via DueCursors
	ScheduleNext(ctx context.Context, name string, delay time.Duration) error

	// DueCursors lists active cursors whose next run time has passed
	DueCursors(ctx context.Context, now time.Time, limit int) ([]string, error)

	// RecordRun stores the batch summary in the cursor's meta document
	RecordRun(ctx context.Context, name string, stats domain.RunStats) error

	// RecordError keeps the message without stopping the cursor
	RecordError(ctx context.Context, name, msg string) error

	// Deactivate pauses the cursor and records why
	Deactivate(ctx context.Context, name, reason string) error

	// Activate revives the cursor; fromID > 0 also repositions it
	Activate(ctx context.Context, name string, fromID int64) error
}

type (
	// PG is a Postgres backfill cursor repository
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG constructs a Postgres backfill cursor repository
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind binds a Queryer to a Postgres implementation of Repo
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

const cursorCols = `name, next_id, last_found_id, misses, active, last_run_at, last_error, meta, created_at, updated_at`

func (r *queries) Ensure(ctx context.Context, name string) (domain.Cursor, error) {
	const sql = `
		INSERT INTO ingest_cursors (name)
		VALUES ($1)
		ON CONFLICT (name) DO NOTHING
	`
	if _, err := r.q.Exec(ctx, sql, name); err != nil {
		return domain.Cursor{}, perr.FromPostgresf(err, "ensure cursor %s", name)
	}
	return r.Get(ctx, name)
}

func (r *queries) Get(ctx context.Context, name string) (domain.Cursor, error) {
	rows, err := r.q.Query(ctx, `SELECT `+cursorCols+` FROM ingest_cursors WHERE name = $1`, name)
	if err != nil {
		return domain.Cursor{}, perr.FromPostgresf(err, "get cursor %s", name)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return domain.Cursor{}, perr.FromPostgresf(err, "get cursor %s", name)
		}
		return domain.Cursor{}, perr.NotFoundf("cursor %s", name)
	}
	c, err := scanCursor(rows)
	if err != nil {
		return domain.Cursor{}, err
	}
	return c, rows.Err()
}

func (r *queries) List(ctx context.Context) ([]domain.Cursor, error) {
	rows, err := r.q.Query(ctx, `SELECT `+cursorCols+` FROM ingest_cursors ORDER BY name`)
	if err != nil {
		return nil, perr.FromPostgres(err, "list cursors")
	}
	defer rows.Close()

	var out []domain.Cursor
	for rows.Next() {
		c, err := scanCursor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *queries) UpdateProgress(ctx context.Context, name string, nextID, lastFoundID int64, misses int) error {
	const sql = `
		UPDATE ingest_cursors
		SET next_id = $2, last_found_id = $3, misses = $4, updated_at = now()
		WHERE name = $1
	`
	if _, err := r.q.Exec(ctx, sql, name, nextID, lastFoundID, misses); err != nil {
		return perr.FromPostgresf(err, "commit cursor %s", name)
	}
	return nil
}

func (r *queries) TouchRun(ctx context.Context, name string) error {
	const sql = `UPDATE ingest_cursors SET last_run_at = now(), updated_at = now() WHERE name = $1`
	if _, err := r.q.Exec(ctx, sql, name); err != nil {
		return perr.FromPostgresf(err, "touch cursor %s", name)
	}
	return nil
}

func (r *queries) ScheduleNext(ctx context.Context, name string, delay time.Duration) error {
	const sql = `
		UPDATE ingest_cursors
		SET next_run_at = now() + $2::interval, updated_at = now()
		WHERE name = $1
	`
	if _, err := r.q.Exec(ctx, sql, name, delay.String()); err != nil {
		return perr.FromPostgresf(err, "schedule cursor %s", name)
	}
	return nil
}

func (r *queries) DueCursors(ctx context.Context, now time.Time, limit int) ([]string, error) {
	const sql = `
		SELECT name
		FROM ingest_cursors
		WHERE active AND next_run_at <= $1
		ORDER BY next_run_at ASC
		LIMIT $2
	`
	rows, err := r.q.Query(ctx, sql, now, limit)
	if err != nil {
		return nil, perr.FromPostgres(err, "due cursors")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, perr.FromPostgres(err, "scan cursor name")
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (r *queries) RecordRun(ctx context.Context, name string, stats domain.RunStats) error {
	meta, err := json.Marshal(stats)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "marshal run stats")
	}
	const sql = `UPDATE ingest_cursors SET meta = $2, updated_at = now() WHERE name = $1`
	if _, err := r.q.Exec(ctx, sql, name, meta); err != nil {
		return perr.FromPostgresf(err, "record cursor run %s", name)
	}
	return nil
}

func (r *queries) RecordError(ctx context.Context, name, msg string) error {
	const sql = `UPDATE ingest_cursors SET last_error = LEFT($2, 500), updated_at = now() WHERE name = $1`
	if _, err := r.q.Exec(ctx, sql, name, msg); err != nil {
		return perr.FromPostgresf(err, "record cursor error %s", name)
	}
	return nil
}

func (r *queries) Deactivate(ctx context.Context, name, reason string) error {
	const sql = `
		UPDATE ingest_cursors
		SET active = FALSE, last_error = LEFT($2, 500), updated_at = now()
		WHERE name = $1
	`
	if _, err := r.q.Exec(ctx, sql, name, reason); err != nil {
		return perr.FromPostgresf(err, "deactivate cursor %s", name)
	}
	return nil
}

func (r *queries) Activate(ctx context.Context, name string, fromID int64) error {
	const sql = `
		UPDATE ingest_cursors
		SET active = TRUE,
		    misses = 0,
		    last_error = NULL,
		    next_id = CASE WHEN $2 > 0 THEN $2 ELSE next_id END,
		    next_run_at = now(),
		    updated_at = now()
		WHERE name = $1
	`
	tag, err := r.q.Exec(ctx, sql, name, fromID)
	if err != nil {
		return perr.FromPostgresf(err, "activate cursor %s", name)
	}
	if tag.RowsAffected() == 0 {
		return perr.NotFoundf("cursor %s", name)
	}
	return nil
}

func scanCursor(rows repokit.Rows) (domain.Cursor, error) {
	var (
		c    domain.Cursor
		meta []byte
	)
	if err := rows.Scan(
		&c.Name, &c.NextID, &c.LastFoundID, &c.Misses, &c.Active,
		&c.LastRunAt, &c.LastError, &meta, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return domain.Cursor{}, perr.FromPostgres(err, "scan cursor")
	}
	if len(meta) > 0 {
		var rs domain.RunStats
		if err := json.Unmarshal(meta, &rs); err != nil {
			return domain.Cursor{}, perr.Wrap(err, perr.ErrorCodeJSON, "decode cursor meta")
		}
		c.LastRun = &rs
	}
	return c, nil
}

package service

import (
	"context"
	"time"

	"animabook/internal/modkit"
	"animabook/internal/services/backfill/repo"
)

// CursorReader is the read-only slice of backfill the scheduler binary
// needs. It binds the repo directly so that process carries no upstream
// client or budget wiring
type CursorReader struct {
	repo repo.Repo
}

// NewCursorReader constructs a CursorReader over the shared store
func NewCursorReader(deps modkit.Deps) *CursorReader {
	if deps.PG == nil {
		panic("backfill.CursorReader requires a non nil TxRunner")
	}
	return &CursorReader{repo: repo.NewPG().Bind(deps.PG)}
}

// Due lists cursors whose next run time has passed
func (r *CursorReader) Due(ctx context.Context, now time.Time, limit int) ([]string, error) {
	return r.repo.DueCursors(ctx, now, limit)
}

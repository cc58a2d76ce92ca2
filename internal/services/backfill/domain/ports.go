package domain

import (
	"context"
	"time"
)

// WalkerPort runs one scheduled batch of sequential ID probes
type WalkerPort interface {
	RunBatch(ctx context.Context, cursorName string, batchSize int) error
}

// SchedulerPort feeds the timer loop that triggers due cursors
type SchedulerPort interface {
	Due(ctx context.Context, now time.Time, limit int) ([]string, error)
}

// AdminPort is the operator surface for cursors, consumed by ops tooling.
// Activate revives an auto-paused cursor, optionally repositioning it
type AdminPort interface {
	Get(ctx context.Context, name string) (Cursor, error)
	List(ctx context.Context) ([]Cursor, error)
	Activate(ctx context.Context, name string, fromID int64) error
	Deactivate(ctx context.Context, name, reason string) error
}

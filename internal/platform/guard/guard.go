// Package guard provides the windowed request budget and the entity lease.
// Both protect the upstream API and the catalog from concurrent or runaway work
package guard

import (
	"context"
	"fmt"
	"time"
)

// QuotaTracker meters named operations against a windowed ceiling.
// Spend consumes n units atomically; it returns perr.ErrBudgetExhausted
// (wrapped) when granting them would exceed the window ceiling, leaving the
// counter untouched. Backend failures also deny: callers proceed only on nil
type QuotaTracker interface {
	Spend(ctx context.Context, op string, n int) error
}

// ExclusiveLock grants at most one holder per (entityType, entityID).
// Acquire is non-blocking: perr.ErrLocked means another holder owns a live
// lease. Expired leases are taken over atomically. Release is idempotent
type ExclusiveLock interface {
	Acquire(ctx context.Context, entityType string, entityID int64, ttl time.Duration) error
	Release(ctx context.Context, entityType string, entityID int64) error
}

// RunLocker is the named variant used by singleton periodic tasks
// (cursor batches, planner sweeps) so only one instance runs them at a time
type RunLocker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) error
	Release(ctx context.Context, name string) error
}

// QuotaConfig holds the windowed ceilings
// Ceilings maps op name to its per-window maximum; ops not listed use Default
type QuotaConfig struct {
	Window   time.Duration
	Default  int
	Ceilings map[string]int
}

// CeilingFor resolves the ceiling for op
func (c QuotaConfig) CeilingFor(op string) int {
	if n, ok := c.Ceilings[op]; ok {
		return n
	}
	return c.Default
}

// windowStart truncates now to the current window boundary
func windowStart(now time.Time, window time.Duration) time.Time {
	if window <= 0 {
		window = time.Minute
	}
	return now.UTC().Truncate(window)
}

// pgInterval renders a ttl as a Postgres interval literal
func pgInterval(ttl time.Duration) string {
	return fmt.Sprintf("%d milliseconds", ttl.Milliseconds())
}

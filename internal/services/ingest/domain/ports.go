// Package domain defines the entity sync port
package domain

import "context"

// SyncerPort fetches one entity from upstream and commits it to the catalog.
// Lease contention and budget exhaustion are backpressure, not failures:
// contention returns nil (another worker is on it), budget denial returns
// the budget error so the queue reschedules past the window
type SyncerPort interface {
	SyncEntity(ctx context.Context, entityType string, id int64) error
}

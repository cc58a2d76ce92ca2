package domain

import "context"

// SyncerPort runs relation extraction for one graph-bearing entity
type SyncerPort interface {
	SyncRelations(ctx context.Context, entityType string, id int64) error
}

// EnqueuePort is the follow-up work sink for fan-out.
// Enqueues are fire-and-forget: duplicates are tolerated because the
// entity lease deduplicates at execution time
type EnqueuePort interface {
	EnqueueSyncEntity(ctx context.Context, entityType string, id int64) error
}

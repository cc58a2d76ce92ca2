package domain

import (
	"context"
	"time"
)

// WriterPort mutates catalog rows; it is the only write path into catalog_entities
// callers hold the entity lease, the writer itself does not take it
type WriterPort interface {
	// UpsertFetched projects a raw payload into fields and persists the snapshot
	UpsertFetched(ctx context.Context, entityType string, id int64, payload map[string]any, extended map[string]any) error

	// MergeExtended folds sub-resource fragments into the extended payload
	// additively by top-level key, leaving the base payload untouched
	MergeExtended(ctx context.Context, entityType string, id int64, extended map[string]any) error

	// RecordFailure increments fetch_failures and stores the message on an existing row
	// absent rows are untouched: an entity only exists after a successful fetch
	RecordFailure(ctx context.Context, entityType string, id int64, msg string) error

	// MarkMissing tombstones an entity that vanished upstream: last_error is set
	// and next_refresh_at cleared so the planner stops re-enqueueing it
	MarkMissing(ctx context.Context, entityType string, id int64) error
}

// ReaderPort serves catalog reads for the planner and ops surface
type ReaderPort interface {
	Get(ctx context.Context, entityType string, id int64) (Entity, error)
	DueForRefresh(ctx context.Context, now time.Time, limit int) ([]Ref, error)
	CountByType(ctx context.Context) (map[string]int64, error)
}

// StoragePort is the repo contract under the service
type StoragePort interface {
	UpsertEntity(ctx context.Context, in UpsertInput) error
	RecordFailure(ctx context.Context, entityType string, id int64, msg string) error
	MarkMissing(ctx context.Context, entityType string, id int64, msg string) error
	Get(ctx context.Context, entityType string, id int64) (Entity, error)
	DueForRefresh(ctx context.Context, now time.Time, limit int) ([]Ref, error)
	CountByType(ctx context.Context) (map[string]int64, error)
}

package domain

import (
	"context"
	"time"
)

// Handler processes one leased work item
type Handler func(ctx context.Context, item Item) error

// QueuePort enqueues typed work items.
// Enqueueing never deduplicates: the entity lease makes redundant
// execution a no-op, so duplicate items are tolerated by design
type QueuePort interface {
	Enqueue(ctx context.Context, req Enqueue) error
	EnqueueSyncEntity(ctx context.Context, entityType string, id int64) error
	EnqueueSyncRelations(ctx context.Context, entityType string, id int64) error
	EnqueueBackfillBatch(ctx context.Context, cursorName string, batchSize int, delay time.Duration) error
	EnqueueSeedListing(ctx context.Context, listing string) error
	EnqueueRefreshDue(ctx context.Context, delay time.Duration) error
}

// WorkerPort drains the queue until the context ends
type WorkerPort interface {
	Run(ctx context.Context) error
}

// FailureSink records a dead item's terminal error on its entity
type FailureSink interface {
	RecordFailure(ctx context.Context, entityType string, id int64, msg string) error
}

// Item outcomes reported to the Observer
const (
	OutcomeOK        = "ok"
	OutcomeRetry     = "retry"
	OutcomeDead      = "dead"
	OutcomeUnhandled = "unhandled"
)

// Observer sees every processed item and its outcome; it must not block
type Observer func(ctx context.Context, item Item, outcome string, detail string)

// Package domain defines the work queue types and ports
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Work item kinds
const (
	KindSyncEntity    = "sync_entity"
	KindSyncRelations = "sync_relations"
	KindBackfillBatch = "backfill_batch"
	KindRefreshDue    = "refresh_due"
	KindSeedListing   = "seed_listing"
)

// Item is one leased work queue row
type Item struct {
	ID            uuid.UUID
	Kind          string
	EntityType    string
	EntityID      int64
	CursorName    string
	Listing       string
	BatchSize     int
	Priority      int
	Attempts      int
	NextAttemptAt time.Time
}

// Enqueue is a request to add one work item.
// Kind-specific field requirements are enforced by struct-level validation
type Enqueue struct {
	Kind       string        `validate:"required,oneof=sync_entity sync_relations backfill_batch refresh_due seed_listing"`
	EntityType string        `validate:"omitempty,alpha,max=32"`
	EntityID   int64         `validate:"omitempty,gt=0"`
	CursorName string        `validate:"omitempty,min=1,max=64"`
	Listing    string        `validate:"omitempty,min=1,max=64"`
	BatchSize  int           `validate:"omitempty,gt=0,lte=1000"`
	Priority   int           `validate:"gte=-100,lte=100"`
	Delay      time.Duration `validate:"gte=0"`
}

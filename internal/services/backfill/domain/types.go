// Package domain defines the backfill cursor types and ports
package domain

import "time"

// Cursor is the persisted state of one named sequential scan.
// Name doubles as the entity type being walked
type Cursor struct {
	Name        string
	NextID      int64
	LastFoundID int64
	Misses      int
	Active      bool
	LastRunAt   *time.Time
	LastError   *string
	LastRun     *RunStats
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RunStats summarizes the last completed batch; persisted as the
// cursor's meta document for operator inspection
type RunStats struct {
	BatchSize     int  `json:"batch_size"`
	Processed     int  `json:"processed"`
	Found         int  `json:"found"`
	BudgetLimited bool `json:"budget_limited"`
}

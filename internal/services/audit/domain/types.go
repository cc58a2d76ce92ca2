// Package domain defines the audit event stream types and port
package domain

import (
	"context"
	"time"
)

// Event is one append-only record of pipeline activity
type Event struct {
	At         time.Time
	Kind       string
	EntityType string
	EntityID   int64
	Outcome    string
	Detail     string
}

// SinkPort accepts events for the append-only audit stream.
// Record buffers and never blocks on the backend; Flush drains the buffer
type SinkPort interface {
	Record(ctx context.Context, ev Event)
	Flush(ctx context.Context) error
}

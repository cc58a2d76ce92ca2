// Package repo provides the audit event writer over clickhouse
package repo

import (
	"context"

	"animabook/internal/platform/store"
	"animabook/internal/services/audit/domain"
)

// eventsTable is the append-only target; column order must match
// the positional rows built in WriteBatch
const eventsTable = "animabook.ingest_events"

// CH writes audit events to clickhouse
type CH struct {
	ch store.Clickhouse
}

// NewCH constructs the clickhouse event writer
func NewCH(ch store.Clickhouse) *CH { return &CH{ch: ch} }

// WriteBatch appends events in one prepared batch
func (w *CH) WriteBatch(ctx context.Context, evs []domain.Event) error {
	if len(evs) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(evs))
	for _, ev := range evs {
		rows = append(rows, []any{
			ev.At.UTC(),
			ev.Kind,
			ev.EntityType,
			ev.EntityID,
			ev.Outcome,
			ev.Detail,
		})
	}
	return w.ch.Insert(ctx, eventsTable, rows)
}

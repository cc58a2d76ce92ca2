// Package domain defines the refresh planner port
package domain

import "context"

// PlannerPort sweeps entities whose refresh horizon has elapsed and
// turns each into an entity-sync request
type PlannerPort interface {
	PlanRefresh(ctx context.Context) error
}

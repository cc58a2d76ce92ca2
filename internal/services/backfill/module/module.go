// Package module wires the backfill service and exposes its ports
package module

import (
	"animabook/internal/modkit"
	"animabook/internal/services/backfill/domain"
	"animabook/internal/services/backfill/service"
)

// Ports exposes the backfill surfaces other modules consume
type Ports struct {
	Walker    domain.WalkerPort
	Scheduler domain.SchedulerPort
	Admin     domain.AdminPort
}

// Module defines the backfill module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the backfill module with its ports
func New(deps modkit.Deps, collab service.Collab) *Module {
	opts := FromConfig(deps.Cfg)

	svc := service.New(deps, service.Config{
		MissThreshold: opts.MissThreshold,
		DefaultBatch:  opts.DefaultBatch,
		NextDelay:     opts.NextDelay,
		BudgetDelay:   opts.BudgetDelay,
		RetryDelay:    opts.RetryDelay,
		LockTTL:       opts.LockTTL,
	}, collab)

	m := &Module{deps: deps}
	m.ports = Ports{
		Walker:    svc,
		Scheduler: svc,
		Admin:     svc,
	}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "backfill" }

// Ports returns the module ports (Walker, Scheduler, Admin)
func (m *Module) Ports() any { return m.ports }

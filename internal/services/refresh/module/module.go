// Package module wires the refresh planner and exposes its port
package module

import (
	"animabook/internal/modkit"
	"animabook/internal/services/refresh/domain"
	"animabook/internal/services/refresh/service"
)

// Ports exposes the refresh surface other modules consume
type Ports struct {
	Planner domain.PlannerPort
}

// Module defines the refresh module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the refresh module with its ports
func New(deps modkit.Deps, collab service.Collab) *Module {
	opts := FromConfig(deps.Cfg)

	svc := service.New(deps, service.Config{
		SweepLimit: opts.SweepLimit,
		LockTTL:    opts.LockTTL,
	}, collab)

	m := &Module{deps: deps}
	m.ports = Ports{Planner: svc}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "refresh" }

// Ports returns the module ports (Planner)
func (m *Module) Ports() any { return m.ports }

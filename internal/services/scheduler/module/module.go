// Package module wires the scheduler and exposes its port
package module

import (
	"animabook/internal/modkit"
	"animabook/internal/services/scheduler/domain"
	"animabook/internal/services/scheduler/service"
)

// Ports exposes the scheduler surface the binary consumes
type Ports struct {
	Ticker domain.TickerPort
}

// Module defines the scheduler module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the scheduler module with its ports
func New(deps modkit.Deps, collab service.Collab) *Module {
	opts := FromConfig(deps.Cfg)

	svc := service.New(deps, service.Config{
		Tick:         opts.Tick,
		DueLimit:     opts.DueLimit,
		RefreshEvery: opts.RefreshEvery,
		SeedEvery:    opts.SeedEvery,
		SeedListings: opts.SeedListings,
	}, collab)

	m := &Module{deps: deps}
	m.ports = Ports{Ticker: svc}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "scheduler" }

// Ports returns the module ports (Ticker)
func (m *Module) Ports() any { return m.ports }

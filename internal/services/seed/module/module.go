// Package module wires the seed service and exposes its port
package module

import (
	"animabook/internal/modkit"
	"animabook/internal/services/seed/domain"
	"animabook/internal/services/seed/service"
)

// Ports exposes the seed surface other modules consume
type Ports struct {
	Seeder domain.SeederPort
}

// Module defines the seed module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the seed module with its ports
func New(deps modkit.Deps, collab service.Collab) *Module {
	opts := FromConfig(deps.Cfg)

	svc := service.New(deps, service.Config{
		MaxPages: opts.MaxPages,
		LockTTL:  opts.LockTTL,
	}, collab)

	m := &Module{deps: deps}
	m.ports = Ports{Seeder: svc}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "seed" }

// Ports returns the module ports (Seeder)
func (m *Module) Ports() any { return m.ports }

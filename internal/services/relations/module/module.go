// Package module wires the relation graph service and exposes its ports
package module

import (
	"animabook/internal/modkit"
	"animabook/internal/services/relations/domain"
	"animabook/internal/services/relations/service"
)

// Ports exposes the relation graph surfaces other modules consume
type Ports struct {
	Syncer domain.SyncerPort
}

// Module defines the relation graph module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the relation graph module with its ports
func New(deps modkit.Deps, collab service.Collab) *Module {
	svc := service.New(deps, collab)

	m := &Module{deps: deps}
	m.ports = Ports{Syncer: svc}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "relations" }

// Ports returns the module ports (Syncer)
func (m *Module) Ports() any { return m.ports }

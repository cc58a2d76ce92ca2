// Package module wires the audit sink and exposes its port
package module

import (
	"animabook/internal/modkit"
	"animabook/internal/services/audit/domain"
	"animabook/internal/services/audit/service"
)

// Ports exposes the audit surface other modules consume
type Ports struct {
	Sink domain.SinkPort
}

// Module defines the audit module
type Module struct {
	deps modkit.Deps

	// Svc is exported so the binary can start the flush loop
	Svc *service.Svc

	ports Ports
}

// New constructs the audit module with its ports
func New(deps modkit.Deps) *Module {
	opts := FromConfig(deps.Cfg)

	svc := service.New(deps, service.Config{
		FlushSize:  opts.FlushSize,
		FlushEvery: opts.FlushEvery,
	})

	m := &Module{deps: deps, Svc: svc}
	m.ports = Ports{Sink: svc}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "audit" }

// Ports returns the module ports (Sink)
func (m *Module) Ports() any { return m.ports }

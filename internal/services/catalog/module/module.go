// Package module wires the catalog service and exposes its ports
package module

import (
	"animabook/internal/modkit"
	"animabook/internal/services/catalog/domain"
	"animabook/internal/services/catalog/service"
)

// Ports exposes the catalog surfaces other modules consume
type Ports struct {
	Writer domain.WriterPort
	Reader domain.ReaderPort
}

// Module defines the catalog module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the catalog module with its ports
func New(deps modkit.Deps) *Module {
	opts := FromConfig(deps.Cfg)

	svc := service.New(deps, service.Config{
		Cadence: service.CadenceConfig{
			ActiveEvery:   opts.ActiveEvery,
			FinishedEvery: opts.FinishedEvery,
		},
	})

	m := &Module{deps: deps}
	m.ports = Ports{
		Writer: svc,
		Reader: svc,
	}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "catalog" }

// Ports returns the module ports (Writer, Reader)
func (m *Module) Ports() any { return m.ports }

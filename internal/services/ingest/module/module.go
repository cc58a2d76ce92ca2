// Package module wires the entity sync service and exposes its ports
package module

import (
	"time"

	"animabook/internal/modkit"
	"animabook/internal/platform/config"
	"animabook/internal/services/ingest/domain"
	"animabook/internal/services/ingest/service"
)

// Ports exposes the entity sync surface other modules consume
type Ports struct {
	Syncer domain.SyncerPort
}

// Module defines the entity sync module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// Options controls entity sync behavior. Values may also be read from env
type Options struct {
	LeaseTTL time.Duration
}

// FromConfig reads options using CORE_INGEST_ prefix
func FromConfig(cfg config.Conf) Options {
	in := cfg.Prefix("CORE_INGEST_")
	return Options{
		LeaseTTL: in.MayDuration("LEASE_TTL", 2*time.Minute),
	}
}

// New constructs the entity sync module with its ports
func New(deps modkit.Deps, collab service.Collab) *Module {
	opts := FromConfig(deps.Cfg)

	svc := service.New(deps, service.Config{LeaseTTL: opts.LeaseTTL}, collab)

	m := &Module{deps: deps}
	m.ports = Ports{Syncer: svc}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "ingest" }

// Ports returns the module ports (Syncer)
func (m *Module) Ports() any { return m.ports }

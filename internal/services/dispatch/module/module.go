// Package module wires the work queue service and exposes its ports
package module

import (
	"animabook/internal/modkit"
	"animabook/internal/services/dispatch/domain"
	"animabook/internal/services/dispatch/service"
)

// Ports exposes the queue surfaces other modules consume
type Ports struct {
	Queue  domain.QueuePort
	Worker domain.WorkerPort
}

// Module defines the work queue module
type Module struct {
	deps  modkit.Deps
	ports Ports

	// Svc stays reachable so the worker binary can register handlers
	Svc *service.Svc
}

// New constructs the work queue module with its ports
func New(deps modkit.Deps) *Module {
	opts := FromConfig(deps.Cfg)

	svc := service.New(deps, service.Config{
		PollEvery:    opts.PollEvery,
		TakeBatch:    opts.TakeBatch,
		LeaseFor:     opts.LeaseFor,
		RetryBackoff: opts.RetryBackoff,
		BudgetExtra:  opts.BudgetExtra,
		MaxAttempts:  opts.MaxAttempts,
	})

	m := &Module{deps: deps, Svc: svc}
	m.ports = Ports{
		Queue:  svc,
		Worker: svc,
	}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "dispatch" }

// Ports returns the module ports (Queue, Worker)
func (m *Module) Ports() any { return m.ports }

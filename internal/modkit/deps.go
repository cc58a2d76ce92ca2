// Package modkit provides module wiring and core deps
package modkit

import (
	"animabook/internal/modkit/repokit"
	"animabook/internal/platform/config"
	"animabook/internal/platform/logger"
	"animabook/internal/platform/metrics"
	"animabook/internal/platform/store"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log     logger.Logger
	Cfg     config.Conf
	PG      repokit.TxRunner
	CH      store.Clickhouse
	Metrics metrics.Recorder
}

// Meter returns the configured Recorder or a Nop so callers never nil check
func (d Deps) Meter() metrics.Recorder {
	if d.Metrics == nil {
		return metrics.Nop{}
	}
	return d.Metrics
}

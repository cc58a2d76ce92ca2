package module

import (
	"time"

	"animabook/internal/platform/config"
)

// Options controls catalog behavior. Values may also be read from env
type Options struct {
	ActiveEvery   time.Duration
	FinishedEvery time.Duration
}

// FromConfig reads options using CORE_CATALOG_ prefix
func FromConfig(cfg config.Conf) Options {
	ct := cfg.Prefix("CORE_CATALOG_")
	return Options{
		ActiveEvery:   ct.MayDuration("ACTIVE_EVERY", 24*time.Hour),
		FinishedEvery: ct.MayDuration("FINISHED_EVERY", 30*24*time.Hour),
	}
}

package module

import (
	"time"

	"animabook/internal/platform/config"
)

// Options controls seed sweep behavior. Values may also be read from env
type Options struct {
	MaxPages int
	LockTTL  time.Duration
}

// FromConfig reads options using CORE_SEED_ prefix
func FromConfig(cfg config.Conf) Options {
	sd := cfg.Prefix("CORE_SEED_")
	return Options{
		MaxPages: sd.MayInt("MAX_PAGES", 3),
		LockTTL:  sd.MayDuration("LOCK_TTL", 5*time.Minute),
	}
}

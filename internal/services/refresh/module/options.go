package module

import (
	"time"

	"animabook/internal/platform/config"
)

// Options controls refresh planner behavior. Values may also be read from env
type Options struct {
	SweepLimit int
	LockTTL    time.Duration
}

// FromConfig reads options using CORE_REFRESH_ prefix
func FromConfig(cfg config.Conf) Options {
	rf := cfg.Prefix("CORE_REFRESH_")
	return Options{
		SweepLimit: rf.MayInt("SWEEP_LIMIT", 200),
		LockTTL:    rf.MayDuration("LOCK_TTL", 2*time.Minute),
	}
}

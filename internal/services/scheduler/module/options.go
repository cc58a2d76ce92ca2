package module

import (
	"time"

	"animabook/internal/platform/config"
)

// Options controls the scheduling loop. Values may also be read from env
type Options struct {
	Tick         time.Duration
	DueLimit     int
	RefreshEvery time.Duration
	SeedEvery    time.Duration
	SeedListings []string
}

// FromConfig reads options using CORE_SCHEDULER_ prefix
func FromConfig(cfg config.Conf) Options {
	sc := cfg.Prefix("CORE_SCHEDULER_")
	return Options{
		Tick:         sc.MayDuration("TICK", 30*time.Second),
		DueLimit:     sc.MayInt("DUE_LIMIT", 10),
		RefreshEvery: sc.MayDuration("REFRESH_EVERY", 5*time.Minute),
		SeedEvery:    sc.MayDuration("SEED_EVERY", 24*time.Hour),
		SeedListings: sc.MayCSV("SEED_LISTINGS", nil),
	}
}

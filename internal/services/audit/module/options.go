package module

import (
	"time"

	"animabook/internal/platform/config"
)

// Options controls audit sink buffering. Values may also be read from env
type Options struct {
	FlushSize  int
	FlushEvery time.Duration
}

// FromConfig reads options using CORE_AUDIT_ prefix
func FromConfig(cfg config.Conf) Options {
	au := cfg.Prefix("CORE_AUDIT_")
	return Options{
		FlushSize:  au.MayInt("FLUSH_SIZE", 64),
		FlushEvery: au.MayDuration("FLUSH_EVERY", 5*time.Second),
	}
}

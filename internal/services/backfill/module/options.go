package module

import (
	"time"

	"animabook/internal/platform/config"
)

// Options controls backfill behavior. Values may also be read from env
type Options struct {
	MissThreshold int
	DefaultBatch  int
	NextDelay     time.Duration
	BudgetDelay   time.Duration
	RetryDelay    time.Duration
	LockTTL       time.Duration
}

// FromConfig reads options using CORE_BACKFILL_ prefix
func FromConfig(cfg config.Conf) Options {
	bf := cfg.Prefix("CORE_BACKFILL_")
	return Options{
		MissThreshold: bf.MayInt("MISS_THRESHOLD", 50),
		DefaultBatch:  bf.MayInt("BATCH_SIZE", 25),
		NextDelay:     bf.MayDuration("NEXT_DELAY", 30*time.Second),
		BudgetDelay:   bf.MayDuration("BUDGET_DELAY", 15*time.Minute),
		RetryDelay:    bf.MayDuration("RETRY_DELAY", 2*time.Minute),
		LockTTL:       bf.MayDuration("LOCK_TTL", 5*time.Minute),
	}
}

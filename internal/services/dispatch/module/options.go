package module

import (
	"time"

	"animabook/internal/platform/config"
)

// Options controls queue worker behavior. Values may also be read from env
type Options struct {
	PollEvery    time.Duration
	TakeBatch    int
	LeaseFor     time.Duration
	RetryBackoff time.Duration
	BudgetExtra  time.Duration
	MaxAttempts  int
}

// FromConfig reads options using CORE_DISPATCH_ prefix
func FromConfig(cfg config.Conf) Options {
	dq := cfg.Prefix("CORE_DISPATCH_")
	return Options{
		PollEvery:    dq.MayDuration("POLL_EVERY", 500*time.Millisecond),
		TakeBatch:    dq.MayInt("TAKE_BATCH", 16),
		LeaseFor:     dq.MayDuration("LEASE_FOR", 60*time.Second),
		RetryBackoff: dq.MayDuration("RETRY_BACKOFF", 30*time.Second),
		BudgetExtra:  dq.MayDuration("BUDGET_EXTRA", 5*time.Minute),
		MaxAttempts:  dq.MayInt("MAX_ATTEMPTS", 5),
	}
}

package guard

import (
	"context"
	"sync"
	"time"

	perr "animabook/internal/platform/errors"
)

// MemQuota is an in-process QuotaTracker used by tests and single-node runs
type MemQuota struct {
	mu   sync.Mutex
	cfg  QuotaConfig
	used map[string]int
	win  time.Time

	// Now is injectable for tests; defaults to time.Now
	Now func() time.Time

	// FailSpend, when set, simulates a broken backend; Spend denies with it
	FailSpend error
}

// NewMemQuota builds a MemQuota
func NewMemQuota(cfg QuotaConfig) *MemQuota {
	return &MemQuota{cfg: cfg, used: map[string]int{}, Now: time.Now}
}

// Spend consumes n units for op in the current window
func (m *MemQuota) Spend(_ context.Context, op string, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSpend != nil {
		// fail closed
		return perr.Wrap(m.FailSpend, perr.ErrorCodeUnavailable, "budget backend")
	}
	if n <= 0 {
		return nil
	}

	ws := windowStart(m.Now(), m.cfg.Window)
	if !ws.Equal(m.win) {
		m.win = ws
		m.used = map[string]int{}
	}

	ceiling := m.cfg.CeilingFor(op)
	if m.used[op]+n > ceiling {
		return perr.WithOp(perr.Wrap(perr.ErrBudgetExhausted, perr.ErrorCodeTooManyRequests, "window ceiling reached"), op)
	}
	m.used[op] += n
	return nil
}

// MemLock is an in-process ExclusiveLock used by tests
type MemLock struct {
	mu     sync.Mutex
	leases map[[2]any]time.Time

	Now func() time.Time
}

// NewMemLock builds a MemLock
func NewMemLock() *MemLock {
	return &MemLock{leases: map[[2]any]time.Time{}, Now: time.Now}
}

// Acquire claims the lease or returns perr.ErrLocked
func (m *MemLock) Acquire(_ context.Context, entityType string, entityID int64, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := [2]any{entityType, entityID}
	now := m.Now()
	if exp, ok := m.leases[key]; ok && exp.After(now) {
		return perr.Wrapf(perr.ErrLocked, perr.ErrorCodeConflict, "lease held for %s:%d", entityType, entityID)
	}
	m.leases[key] = now.Add(ttl)
	return nil
}

// Release drops the lease; absent is a no-op
func (m *MemLock) Release(_ context.Context, entityType string, entityID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.leases, [2]any{entityType, entityID})
	return nil
}

// MemRunLock is an in-process RunLocker used by tests
type MemRunLock struct {
	mu    sync.Mutex
	locks map[string]time.Time

	Now func() time.Time
}

// NewMemRunLock builds a MemRunLock
func NewMemRunLock() *MemRunLock {
	return &MemRunLock{locks: map[string]time.Time{}, Now: time.Now}
}

// Acquire claims the named lock or returns perr.ErrLocked
func (m *MemRunLock) Acquire(_ context.Context, name string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()
	if exp, ok := m.locks[name]; ok && exp.After(now) {
		return perr.Wrapf(perr.ErrLocked, perr.ErrorCodeConflict, "run lock held for %s", name)
	}
	m.locks[name] = now.Add(ttl)
	return nil
}

// Release drops the named lock; absent is a no-op
func (m *MemRunLock) Release(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, name)
	return nil
}

package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"animabook/internal/adapters/upstream"
	"animabook/internal/modkit"
	"animabook/internal/modkit/repokit"
	perr "animabook/internal/platform/errors"
	"animabook/internal/platform/guard"
	"animabook/internal/platform/store"
	"animabook/internal/services/backfill/domain"
)

type stubTx struct{}

func (stubTx) Exec(context.Context, string, ...any) (repokit.CommandTag, error) { return nil, nil }
func (stubTx) Query(context.Context, string, ...any) (repokit.Rows, error)      { return nil, nil }
func (stubTx) QueryRow(context.Context, string, ...any) repokit.Row             { return nil }
func (stubTx) Tx(ctx context.Context, fn func(q store.RowQuerier) error) error  { return fn(stubTx{}) }

// memCursors keeps cursor state in memory with the same semantics as the
// Postgres repo
type memCursors struct {
	cursors   map[string]*domain.Cursor
	schedules map[string]time.Duration
	errors    []string
	runs      map[string]domain.RunStats
}

func newMemCursors() *memCursors {
	return &memCursors{
		cursors:   map[string]*domain.Cursor{},
		schedules: map[string]time.Duration{},
		runs:      map[string]domain.RunStats{},
	}
}

func (m *memCursors) Ensure(_ context.Context, name string) (domain.Cursor, error) {
	if _, ok := m.cursors[name]; !ok {
		m.cursors[name] = &domain.Cursor{Name: name, NextID: 1, Active: true}
	}
	return *m.cursors[name], nil
}

func (m *memCursors) Get(_ context.Context, name string) (domain.Cursor, error) {
	c, ok := m.cursors[name]
	if !ok {
		return domain.Cursor{}, perr.NotFoundf("cursor %s", name)
	}
	return *c, nil
}

func (m *memCursors) List(context.Context) ([]domain.Cursor, error) {
	var out []domain.Cursor
	for _, c := range m.cursors {
		out = append(out, *c)
	}
	return out, nil
}

func (m *memCursors) UpdateProgress(_ context.Context, name string, nextID, lastFoundID int64, misses int) error {
	c := m.cursors[name]
	c.NextID, c.LastFoundID, c.Misses = nextID, lastFoundID, misses
	return nil
}

func (m *memCursors) TouchRun(_ context.Context, name string) error {
	now := time.Now()
	m.cursors[name].LastRunAt = &now
	return nil
}

func (m *memCursors) ScheduleNext(_ context.Context, name string, delay time.Duration) error {
	m.schedules[name] = delay
	return nil
}

func (m *memCursors) DueCursors(context.Context, time.Time, int) ([]string, error) { return nil, nil }

func (m *memCursors) RecordRun(_ context.Context, name string, stats domain.RunStats) error {
	m.runs[name] = stats
	c := m.cursors[name]
	c.LastRun = &stats
	return nil
}

func (m *memCursors) RecordError(_ context.Context, name, msg string) error {
	m.errors = append(m.errors, msg)
	c := m.cursors[name]
	c.LastError = &msg
	return nil
}

func (m *memCursors) Deactivate(_ context.Context, name, reason string) error {
	c := m.cursors[name]
	c.Active = false
	c.LastError = &reason
	return nil
}

func (m *memCursors) Activate(_ context.Context, name string, fromID int64) error {
	c, ok := m.cursors[name]
	if !ok {
		return perr.NotFoundf("cursor %s", name)
	}
	c.Active = true
	c.Misses = 0
	c.LastError = nil
	if fromID > 0 {
		c.NextID = fromID
	}
	return nil
}

type fakeCatalog struct{ upserted []int64 }

func (f *fakeCatalog) UpsertFetched(_ context.Context, _ string, id int64, _ map[string]any, _ map[string]any) error {
	f.upserted = append(f.upserted, id)
	return nil
}

func (f *fakeCatalog) MergeExtended(context.Context, string, int64, map[string]any) error { return nil }
func (f *fakeCatalog) RecordFailure(context.Context, string, int64, string) error         { return nil }
func (f *fakeCatalog) MarkMissing(context.Context, string, int64) error                   { return nil }

type fakeQueue struct{ relations []int64 }

func (f *fakeQueue) EnqueueSyncRelations(_ context.Context, _ string, id int64) error {
	f.relations = append(f.relations, id)
	return nil
}

// probeServer answers /anime/{id}/full with data for ids in found
func probeServer(t *testing.T, found map[int64]bool) *upstream.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		if len(parts) < 3 {
			http.NotFound(w, r)
			return
		}
		var id int64
		for _, c := range parts[2] {
			id = id*10 + int64(c-'0')
		}
		if found[id] {
			w.Write([]byte(`{"data":{"mal_id":` + parts[2] + `,"title":"T"}}`))
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return upstream.NewClient(upstream.Options{
		BaseURL:        srv.URL,
		MaxRetries:     1,
		RetryBase:      time.Millisecond,
		RequestsPerSec: 10000,
		Burst:          100,
	})
}

func newWalker(t *testing.T, cfg Config, client *upstream.Client, quota guard.QuotaTracker) (*Svc, *memCursors, *fakeCatalog, *fakeQueue) {
	t.Helper()
	cat := &fakeCatalog{}
	q := &fakeQueue{}
	svc := New(modkit.Deps{PG: stubTx{}}, cfg, Collab{
		Catalog:  cat,
		Upstream: client,
		Quota:    quota,
		RunLock:  guard.NewMemRunLock(),
		Queue:    q,
	})
	mc := newMemCursors()
	svc.Repo = mc
	return svc, mc, cat, q
}

func wideQuota() *guard.MemQuota {
	return guard.NewMemQuota(guard.QuotaConfig{Window: time.Minute, Default: 1000})
}

func TestFreshCursorAdvancesThroughHits(t *testing.T) {
	client := probeServer(t, map[int64]bool{1: true, 2: true, 3: true})
	svc, mc, cat, q := newWalker(t, Config{NextDelay: 30 * time.Second}, client, wideQuota())

	if err := svc.RunBatch(context.Background(), "anime", 3); err != nil {
		t.Fatalf("run: %v", err)
	}
	cur := *mc.cursors["anime"]
	if cur.NextID != 4 || cur.Misses != 0 || cur.LastFoundID != 3 {
		t.Fatalf("cursor = %+v", cur)
	}
	if len(cat.upserted) != 3 {
		t.Fatalf("upserted = %v", cat.upserted)
	}
	if len(q.relations) != 3 {
		t.Fatalf("graph-bearing hits must enqueue relation syncs: %v", q.relations)
	}
	if mc.schedules["anime"] != 30*time.Second {
		t.Fatalf("next run delay = %v", mc.schedules["anime"])
	}
	if cur.LastRunAt == nil {
		t.Fatalf("run must stamp last_run_at")
	}
	if rs := mc.runs["anime"]; rs.Processed != 3 || rs.Found != 3 || rs.BudgetLimited {
		t.Fatalf("run stats = %+v", rs)
	}
}

func TestMissesCountAndAdvance(t *testing.T) {
	client := probeServer(t, map[int64]bool{2: true})
	svc, mc, cat, _ := newWalker(t, Config{MissThreshold: 50}, client, wideQuota())

	if err := svc.RunBatch(context.Background(), "anime", 4); err != nil {
		t.Fatalf("run: %v", err)
	}
	cur := *mc.cursors["anime"]
	// probes 1 miss, 2 hit, 3 miss, 4 miss
	if cur.NextID != 5 || cur.Misses != 2 || cur.LastFoundID != 2 {
		t.Fatalf("cursor = %+v", cur)
	}
	if len(cat.upserted) != 1 || cat.upserted[0] != 2 {
		t.Fatalf("upserted = %v", cat.upserted)
	}
	if !cur.Active {
		t.Fatalf("under threshold must stay active")
	}
}

func TestAutoPauseAtThreshold(t *testing.T) {
	client := probeServer(t, nil)
	svc, mc, _, _ := newWalker(t, Config{MissThreshold: 5}, client, wideQuota())

	mc.cursors["anime"] = &domain.Cursor{Name: "anime", NextID: 100, LastFoundID: 95, Misses: 4, Active: true}

	if err := svc.RunBatch(context.Background(), "anime", 1); err != nil {
		t.Fatalf("run: %v", err)
	}
	cur := *mc.cursors["anime"]
	if cur.Active {
		t.Fatalf("cursor must auto-pause at threshold")
	}
	if cur.LastError == nil || !strings.Contains(*cur.LastError, "5 consecutive misses") {
		t.Fatalf("pause reason = %v", cur.LastError)
	}
	if _, ok := mc.schedules["anime"]; ok {
		t.Fatalf("paused cursor must not reschedule")
	}
}

func TestColdStartNeverAutoPauses(t *testing.T) {
	client := probeServer(t, nil)
	svc, mc, _, _ := newWalker(t, Config{MissThreshold: 3}, client, wideQuota())

	if err := svc.RunBatch(context.Background(), "anime", 10); err != nil {
		t.Fatalf("run: %v", err)
	}
	cur := *mc.cursors["anime"]
	if cur.Misses != 10 || cur.NextID != 11 {
		t.Fatalf("cursor = %+v", cur)
	}
	// nothing ever found: the threshold does not apply
	if !cur.Active {
		t.Fatalf("cold-start cursor must not auto-pause")
	}
	if _, ok := mc.schedules["anime"]; !ok {
		t.Fatalf("active cursor must reschedule")
	}
}

func TestBudgetLimitedStopsEarlyAndBacksOff(t *testing.T) {
	client := probeServer(t, map[int64]bool{1: true, 2: true, 3: true, 4: true, 5: true})
	quota := guard.NewMemQuota(guard.QuotaConfig{
		Window:   time.Minute,
		Default:  1000,
		Ceilings: map[string]int{"backfill_anime": 2},
	})
	svc, mc, cat, _ := newWalker(t, Config{NextDelay: 30 * time.Second, BudgetDelay: 15 * time.Minute}, client, quota)

	if err := svc.RunBatch(context.Background(), "anime", 5); err != nil {
		t.Fatalf("run: %v", err)
	}
	cur := *mc.cursors["anime"]
	// only two probes got budget
	if cur.NextID != 3 || len(cat.upserted) != 2 {
		t.Fatalf("cursor = %+v upserted = %v", cur, cat.upserted)
	}
	if mc.schedules["anime"] != 15*time.Minute {
		t.Fatalf("budget-limited run must take the long delay, got %v", mc.schedules["anime"])
	}
	if rs := mc.runs["anime"]; !rs.BudgetLimited || rs.Processed != 2 || rs.Found != 2 || rs.BatchSize != 5 {
		t.Fatalf("run stats = %+v", rs)
	}
}

func TestInactiveCursorDoesNothing(t *testing.T) {
	client := probeServer(t, map[int64]bool{1: true})
	svc, mc, cat, _ := newWalker(t, Config{}, client, wideQuota())
	mc.cursors["anime"] = &domain.Cursor{Name: "anime", NextID: 1, Active: false}

	if err := svc.RunBatch(context.Background(), "anime", 5); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(cat.upserted) != 0 || mc.cursors["anime"].NextID != 1 {
		t.Fatalf("inactive cursor must not probe")
	}
}

func TestRunLockContentionSkips(t *testing.T) {
	client := probeServer(t, map[int64]bool{1: true})
	cat := &fakeCatalog{}
	lock := guard.NewMemRunLock()
	svc := New(modkit.Deps{PG: stubTx{}}, Config{}, Collab{
		Catalog:  cat,
		Upstream: client,
		Quota:    wideQuota(),
		RunLock:  lock,
		Queue:    &fakeQueue{},
	})
	mc := newMemCursors()
	svc.Repo = mc

	if err := lock.Acquire(context.Background(), "backfill:anime", time.Hour); err != nil {
		t.Fatalf("pre-acquire: %v", err)
	}
	if err := svc.RunBatch(context.Background(), "anime", 5); err != nil {
		t.Fatalf("contention must be a clean skip: %v", err)
	}
	if len(cat.upserted) != 0 {
		t.Fatalf("contended run must not probe")
	}
}

func TestMidRunFailureKeepsProgressAndRetries(t *testing.T) {
	// id 1 found, id 2 explodes
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/anime/1/") {
			w.Write([]byte(`{"data":{"mal_id":1,"title":"T"}}`))
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	client := upstream.NewClient(upstream.Options{
		BaseURL:        srv.URL,
		MaxRetries:     1,
		RetryBase:      time.Millisecond,
		RequestsPerSec: 10000,
		Burst:          100,
	})
	svc, mc, cat, _ := newWalker(t, Config{RetryDelay: 2 * time.Minute}, client, wideQuota())

	if err := svc.RunBatch(context.Background(), "anime", 5); err != nil {
		t.Fatalf("mid-run failure must not surface: %v", err)
	}
	cur := *mc.cursors["anime"]
	if cur.NextID != 2 || len(cat.upserted) != 1 {
		t.Fatalf("progress before the failure must stick: %+v", cur)
	}
	if len(mc.errors) != 1 {
		t.Fatalf("run error must be recorded: %v", mc.errors)
	}
	if mc.schedules["anime"] != 2*time.Minute {
		t.Fatalf("failed run must take the retry delay, got %v", mc.schedules["anime"])
	}
}

func TestActivateRepositionsAndRevives(t *testing.T) {
	client := probeServer(t, nil)
	svc, mc, _, _ := newWalker(t, Config{}, client, wideQuota())
	reason := "auto-paused"
	mc.cursors["anime"] = &domain.Cursor{Name: "anime", NextID: 500, Misses: 60, Active: false, LastError: &reason}

	if err := svc.Activate(context.Background(), "anime", 1000); err != nil {
		t.Fatalf("activate: %v", err)
	}
	cur := *mc.cursors["anime"]
	if !cur.Active || cur.NextID != 1000 || cur.Misses != 0 || cur.LastError != nil {
		t.Fatalf("cursor = %+v", cur)
	}

	if err := svc.Activate(context.Background(), "nope", 0); !perr.IsNotFound(err) {
		t.Fatalf("activating an unknown cursor: %v", err)
	}
}

func TestActivateBootstrapsNewStream(t *testing.T) {
	client := probeServer(t, nil)
	svc, mc, _, _ := newWalker(t, Config{}, client, wideQuota())

	// no cursor row exists yet: activating a valid stream name creates one
	if err := svc.Activate(context.Background(), "manga", 0); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	cur := *mc.cursors["manga"]
	if !cur.Active || cur.NextID != 1 {
		t.Fatalf("cursor = %+v", cur)
	}

	// a start position carries through the bootstrap
	if err := svc.Activate(context.Background(), "character", 5000); err != nil {
		t.Fatalf("bootstrap with position: %v", err)
	}
	if cur := *mc.cursors["character"]; cur.NextID != 5000 {
		t.Fatalf("cursor = %+v", cur)
	}

	// names outside the upstream id space never get a cursor
	if err := svc.Activate(context.Background(), "episodes", 0); !perr.IsNotFound(err) {
		t.Fatalf("bogus stream name: %v", err)
	}
	if _, ok := mc.cursors["episodes"]; ok {
		t.Fatalf("bogus stream must not bootstrap")
	}
}

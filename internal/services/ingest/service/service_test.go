package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"animabook/internal/adapters/upstream"
	"animabook/internal/modkit"
	perr "animabook/internal/platform/errors"
	"animabook/internal/platform/guard"
)

type fakeCatalog struct {
	upserts  []string
	extended []map[string]any
	missing  []string
	failures []string
}

func (f *fakeCatalog) UpsertFetched(_ context.Context, entityType string, id int64, payload map[string]any, extended map[string]any) error {
	f.upserts = append(f.upserts, entityType)
	f.extended = append(f.extended, extended)
	return nil
}

func (f *fakeCatalog) MergeExtended(context.Context, string, int64, map[string]any) error { return nil }

func (f *fakeCatalog) RecordFailure(_ context.Context, entityType string, id int64, msg string) error {
	f.failures = append(f.failures, msg)
	return nil
}

func (f *fakeCatalog) MarkMissing(_ context.Context, entityType string, id int64) error {
	f.missing = append(f.missing, entityType)
	return nil
}

type fakeQueue struct {
	relations []int64
}

func (f *fakeQueue) EnqueueSyncRelations(_ context.Context, _ string, id int64) error {
	f.relations = append(f.relations, id)
	return nil
}

func testUpstream(t *testing.T, handler http.HandlerFunc) *upstream.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return upstream.NewClient(upstream.Options{
		BaseURL:        srv.URL,
		MaxRetries:     1,
		RetryBase:      time.Millisecond,
		RequestsPerSec: 10000,
		Burst:          100,
	})
}

func newTestSvc(t *testing.T, client *upstream.Client, quota guard.QuotaTracker, lease guard.ExclusiveLock) (*Svc, *fakeCatalog, *fakeQueue) {
	t.Helper()
	cat := &fakeCatalog{}
	q := &fakeQueue{}
	svc := New(modkit.Deps{}, Config{LeaseTTL: time.Minute}, Collab{
		Catalog:  cat,
		Upstream: client,
		Quota:    quota,
		Lease:    lease,
		Queue:    q,
	})
	return svc, cat, q
}

func openQuota() *guard.MemQuota {
	return guard.NewMemQuota(guard.QuotaConfig{Window: time.Minute, Default: 1000})
}

func TestSyncEntityHappyPath(t *testing.T) {
	client := testUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/anime/20/full":
			w.Write([]byte(`{"data":{"mal_id":20,"title":"Naruto","status":"Currently Airing"}}`))
		case "/anime/20/statistics":
			w.Write([]byte(`{"data":{"watching":12}}`))
		default:
			http.NotFound(w, r)
		}
	})
	svc, cat, q := newTestSvc(t, client, openQuota(), guard.NewMemLock())

	if err := svc.SyncEntity(context.Background(), "anime", 20); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(cat.upserts) != 1 || cat.upserts[0] != "anime" {
		t.Fatalf("upserts = %v", cat.upserts)
	}
	stats, _ := cat.extended[0]["statistics"].(map[string]any)
	if stats == nil || stats["watching"] != float64(12) {
		t.Fatalf("extended = %+v", cat.extended[0])
	}
	if len(q.relations) != 1 || q.relations[0] != 20 {
		t.Fatalf("relation follow-up = %v", q.relations)
	}
}

func TestSyncEntityNotFoundTombstones(t *testing.T) {
	client := testUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	svc, cat, q := newTestSvc(t, client, openQuota(), guard.NewMemLock())

	if err := svc.SyncEntity(context.Background(), "anime", 999); err != nil {
		t.Fatalf("not-found must not be an error: %v", err)
	}
	if len(cat.missing) != 1 {
		t.Fatalf("missing = %v", cat.missing)
	}
	if len(cat.upserts) != 0 || len(q.relations) != 0 {
		t.Fatalf("tombstone must not upsert or fan out")
	}
}

func TestSyncEntityLeaseContentionSkipsCleanly(t *testing.T) {
	client := testUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be called under contention")
	})
	lease := guard.NewMemLock()
	if err := lease.Acquire(context.Background(), "anime", 20, time.Hour); err != nil {
		t.Fatalf("pre-acquire: %v", err)
	}
	svc, cat, _ := newTestSvc(t, client, openQuota(), lease)

	if err := svc.SyncEntity(context.Background(), "anime", 20); err != nil {
		t.Fatalf("contention must be a clean skip: %v", err)
	}
	if len(cat.upserts) != 0 {
		t.Fatalf("contended sync must not write")
	}

	// the original holder's lease survives the skip
	if err := lease.Acquire(context.Background(), "anime", 20, time.Hour); !perr.IsLocked(err) {
		t.Fatalf("lease must still be held, got %v", err)
	}
}

func TestSyncEntityBudgetDenied(t *testing.T) {
	client := testUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be called without budget")
	})
	quota := guard.NewMemQuota(guard.QuotaConfig{Window: time.Minute, Default: 0})
	lease := guard.NewMemLock()
	svc, _, _ := newTestSvc(t, client, quota, lease)

	err := svc.SyncEntity(context.Background(), "anime", 20)
	if !perr.IsBudget(err) {
		t.Fatalf("expected budget error, got %v", err)
	}

	// the lease must be released so the retry is not self-blocked
	if err := lease.Acquire(context.Background(), "anime", 20, time.Minute); err != nil {
		t.Fatalf("lease must be free after budget denial: %v", err)
	}
}

func TestSyncEntityStatisticsBudgetExhaustedStillCommits(t *testing.T) {
	client := testUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/anime/20/full" {
			w.Write([]byte(`{"data":{"mal_id":20,"title":"Naruto"}}`))
			return
		}
		t.Errorf("unexpected call %s", r.URL.Path)
	})
	quota := guard.NewMemQuota(guard.QuotaConfig{
		Window:   time.Minute,
		Default:  1000,
		Ceilings: map[string]int{"anime_extended": 0},
	})
	svc, cat, _ := newTestSvc(t, client, quota, guard.NewMemLock())

	if err := svc.SyncEntity(context.Background(), "anime", 20); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(cat.upserts) != 1 || len(cat.extended[0]) != 0 {
		t.Fatalf("base payload must commit without the statistics fragment: %+v", cat.extended)
	}
}

func TestSyncEntityTransientErrorRecorded(t *testing.T) {
	client := testUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})
	svc, cat, _ := newTestSvc(t, client, openQuota(), guard.NewMemLock())

	err := svc.SyncEntity(context.Background(), "anime", 20)
	if err == nil {
		t.Fatalf("5xx must surface for the queue to retry")
	}
	if len(cat.upserts) != 0 || len(cat.missing) != 0 {
		t.Fatalf("transient error must not write")
	}
}

func TestSyncEntityUnknownType(t *testing.T) {
	client := testUpstream(t, func(w http.ResponseWriter, r *http.Request) {})
	svc, _, _ := newTestSvc(t, client, openQuota(), guard.NewMemLock())
	if err := svc.SyncEntity(context.Background(), "genre", 1); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

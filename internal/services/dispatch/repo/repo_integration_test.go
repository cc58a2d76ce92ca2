//go:build integration_pg
// +build integration_pg

package repo_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"animabook/internal/platform/store"
	"animabook/internal/services/dispatch/domain"
	"animabook/internal/services/dispatch/repo"

	"github.com/google/uuid"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) (dsn string, stop func()) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)

	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "postgres",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections"),
		).WithDeadline(2 * time.Minute),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		cancel()
		t.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get container host: %v", err)
	}
	mp, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get mapped port: %v", err)
	}

	dsn = fmt.Sprintf("postgres://postgres:postgres@%s:%s/postgres?sslmode=disable", host, mp.Port())
	stop = func() {
		_ = c.Terminate(context.Background())
		cancel()
	}
	return dsn, stop
}

func openMigrated(t *testing.T, dsn string) *store.Store {
	t.Helper()
	if err := store.Migrate(dsn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	st, err := store.Open(context.Background(), store.Config{
		PG: store.PGConfig{Enabled: true, URL: dsn, MaxConns: 2},
	})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close(context.Background()) })
	return st
}

func TestQueueRepo_Integration_LeaseAckNack(t *testing.T) {
	dsn, stop := startPostgres(t)
	defer stop()

	st := openMigrated(t, dsn)
	r := repo.NewPG().Bind(st.PG)
	ctx := context.Background()

	low := domain.Item{ID: uuid.New(), Kind: domain.KindSyncEntity, EntityType: "anime", EntityID: 1, Priority: 0}
	high := domain.Item{ID: uuid.New(), Kind: domain.KindSyncEntity, EntityType: "anime", EntityID: 2, Priority: 10}
	if err := r.Insert(ctx, low, 0); err != nil {
		t.Fatalf("insert low: %v", err)
	}
	if err := r.Insert(ctx, high, 0); err != nil {
		t.Fatalf("insert high: %v", err)
	}

	// duplicate entity refs are accepted: the queue never deduplicates
	dup := domain.Item{ID: uuid.New(), Kind: domain.KindSyncEntity, EntityType: "anime", EntityID: 1}
	if err := r.Insert(ctx, dup, 0); err != nil {
		t.Fatalf("insert duplicate: %v", err)
	}

	// highest priority leases first
	items, err := r.Lease(ctx, 1, time.Minute)
	if err != nil {
		t.Fatalf("lease: %v", err)
	}
	if len(items) != 1 || items[0].ID != high.ID {
		t.Fatalf("lease = %+v", items)
	}

	// a leased item is invisible until its lease lapses
	items, err = r.Lease(ctx, 10, time.Minute)
	if err != nil {
		t.Fatalf("second lease: %v", err)
	}
	for _, it := range items {
		if it.ID == high.ID {
			t.Fatalf("leased item re-leased: %+v", it)
		}
	}

	// ack removes for good
	if err := r.Ack(ctx, high.ID); err != nil {
		t.Fatalf("ack: %v", err)
	}

	// nack pushes the item past the backoff with the error recorded
	if len(items) == 0 {
		t.Fatalf("expected remaining items")
	}
	nacked := items[0]
	if err := r.Nack(ctx, nacked.ID, time.Hour, "boom"); err != nil {
		t.Fatalf("nack: %v", err)
	}
	later, err := r.Lease(ctx, 10, time.Minute)
	if err != nil {
		t.Fatalf("lease after nack: %v", err)
	}
	for _, it := range later {
		if it.ID == nacked.ID {
			t.Fatalf("nacked item leased before backoff: %+v", it)
		}
	}

	// defer reschedules without burning an attempt
	if len(items) < 2 {
		t.Fatalf("expected a second remaining item")
	}
	deferred := items[1]
	if err := r.Defer(ctx, deferred.ID, 0, "budget exhausted"); err != nil {
		t.Fatalf("defer: %v", err)
	}
	again, err := r.Lease(ctx, 10, time.Minute)
	if err != nil {
		t.Fatalf("lease after defer: %v", err)
	}
	var got *domain.Item
	for i := range again {
		if again[i].ID == deferred.ID {
			got = &again[i]
		}
	}
	if got == nil {
		t.Fatalf("deferred item must be due again")
	}
	if got.Attempts != 0 {
		t.Fatalf("defer must not count an attempt, attempts = %d", got.Attempts)
	}

	n, err := r.PendingCount(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if n != 2 {
		t.Fatalf("pending = %d, want 2", n)
	}
}

func TestQueueRepo_Integration_DelayedVisibility(t *testing.T) {
	dsn, stop := startPostgres(t)
	defer stop()

	st := openMigrated(t, dsn)
	r := repo.NewPG().Bind(st.PG)
	ctx := context.Background()

	item := domain.Item{ID: uuid.New(), Kind: domain.KindBackfillBatch, CursorName: "anime"}
	if err := r.Insert(ctx, item, time.Hour); err != nil {
		t.Fatalf("insert delayed: %v", err)
	}

	items, err := r.Lease(ctx, 10, time.Minute)
	if err != nil {
		t.Fatalf("lease: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("delayed item visible early: %+v", items)
	}
}

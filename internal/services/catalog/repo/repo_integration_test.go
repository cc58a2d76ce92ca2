//go:build integration_pg
// +build integration_pg

package repo_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"animabook/internal/platform/store"
	"animabook/internal/services/catalog/domain"
	"animabook/internal/services/catalog/repo"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres launches a disposable Postgres and returns DSN + stop func
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

func TestCatalogRepo_Integration(t *testing.T) {
	dsn, stop := startPostgres(t)
	defer stop()

	st := openMigrated(t, dsn)
	r := repo.NewPG().Bind(st.PG)
	ctx := context.Background()

	score := 8.7
	next := time.Now().Add(24 * time.Hour).UTC()
	in := domain.UpsertInput{
		EntityType: "anime",
		EntityID:   20,
		Payload:    []byte(`{"mal_id":20,"title":"Naruto"}`),
		Extended:   []byte(`{"statistics":{"watching":12}}`),
		Fields: domain.Fields{
			Title:           "Naruto",
			TitleNormalized: "naruto",
			Score:           &score,
			Status:          "Currently Airing",
		},
		NextRefreshAt: &next,
	}
	if err := r.UpsertEntity(ctx, in); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := r.Get(ctx, "anime", 20)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Fields.Title != "Naruto" || got.Fields.Score == nil || *got.Fields.Score != 8.7 {
		t.Fatalf("entity = %+v", got.Fields)
	}

	// second upsert replaces payload wholesale but merges extended by key
	in.Payload = []byte(`{"mal_id":20,"title":"Naruto","status":"Finished Airing"}`)
	in.Extended = []byte(`{"characters":[{"mal_id":17}]}`)
	in.Fields.Status = "Finished Airing"
	if err := r.UpsertEntity(ctx, in); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	got, err = r.Get(ctx, "anime", 20)
	if err != nil {
		t.Fatalf("get after re-upsert: %v", err)
	}
	ext := string(got.Extended)
	for _, key := range []string{"statistics", "characters"} {
		if !strings.Contains(ext, key) {
			t.Fatalf("extended lost %q: %s", key, ext)
		}
	}

	// failure bookkeeping touches existing rows and ignores absent ones
	if err := r.RecordFailure(ctx, "anime", 20, "upstream 503"); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	if err := r.RecordFailure(ctx, "anime", 999999, "never fetched"); err != nil {
		t.Fatalf("record failure on absent row: %v", err)
	}
	got, _ = r.Get(ctx, "anime", 20)
	if got.FetchFailures != 1 || got.LastError == nil {
		t.Fatalf("failure bookkeeping = %+v", got)
	}

	// due listing sees the entity only once its horizon passed
	due, err := r.DueForRefresh(ctx, time.Now(), 10)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("nothing should be due yet: %v", due)
	}
	due, err = r.DueForRefresh(ctx, time.Now().Add(48*time.Hour), 10)
	if err != nil {
		t.Fatalf("due later: %v", err)
	}
	if len(due) != 1 || due[0].EntityID != 20 {
		t.Fatalf("due = %v", due)
	}

	// tombstoning clears the horizon so the planner forgets the entity
	if err := r.MarkMissing(ctx, "anime", 20, "not found upstream"); err != nil {
		t.Fatalf("mark missing: %v", err)
	}
	due, _ = r.DueForRefresh(ctx, time.Now().Add(48*time.Hour), 10)
	if len(due) != 0 {
		t.Fatalf("tombstoned entity must not be due: %v", due)
	}

	counts, err := r.CountByType(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts["anime"] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

package main

import (
	"context"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"animabook/internal/adapters/upstream"
	"animabook/internal/modkit"
	"animabook/internal/modkit/module"
	"animabook/internal/ops"
	"animabook/internal/platform/config"
	"animabook/internal/platform/guard"
	"animabook/internal/platform/logger"
	"animabook/internal/platform/metrics"
	"animabook/internal/platform/store"

	auditdom "animabook/internal/services/audit/domain"
	auditmod "animabook/internal/services/audit/module"
	backfillmod "animabook/internal/services/backfill/module"
	backfillsvc "animabook/internal/services/backfill/service"
	catalogmod "animabook/internal/services/catalog/module"
	dispatchdom "animabook/internal/services/dispatch/domain"
	dispatchmod "animabook/internal/services/dispatch/module"
	ingestmod "animabook/internal/services/ingest/module"
	ingestsvc "animabook/internal/services/ingest/service"
	refreshmod "animabook/internal/services/refresh/module"
	refreshsvc "animabook/internal/services/refresh/service"
	relationsmod "animabook/internal/services/relations/module"
	relationssvc "animabook/internal/services/relations/service"
	seedmod "animabook/internal/services/seed/module"
	seedsvc "animabook/internal/services/seed/service"

	"github.com/prometheus/client_golang/prometheus"
)

// quotaConfig reads the windowed budget under CORE_BUDGET_*.
// CEILINGS is a csv of op=n overrides, e.g. "anime=30,backfill_anime=10"
func quotaConfig(root config.Conf) guard.QuotaConfig {
	bc := root.Prefix("CORE_BUDGET_")
	cfg := guard.QuotaConfig{
		Window:   bc.MayDuration("WINDOW", time.Minute),
		Default:  bc.MayInt("DEFAULT", 60),
		Ceilings: map[string]int{},
	}
	for _, pair := range bc.MayCSV("CEILINGS", nil) {
		op, val, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			cfg.Ceilings[strings.TrimSpace(op)] = n
		}
	}
	return cfg
}

func upstreamClient(root config.Conf, meter metrics.Recorder) *upstream.Client {
	uc := root.Prefix("CORE_UPSTREAM_")
	return upstream.NewClient(upstream.Options{
		BaseURL:        uc.MayString("BASE_URL", "https://api.jikan.moe/v4"),
		UserAgent:      uc.MayString("USER_AGENT", ""),
		MaxRetries:     uc.MayInt("MAX_RETRIES", 4),
		RequestsPerSec: uc.MayFloat64("RPS", 1.0),
		Burst:          uc.MayInt("BURST", 3),
		Meter:          meter,
	})
}

func main() {
	root := config.New()
	logger.Init(logger.FromEnv())
	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storeCfg := store.FromConf(root, "animabook-worker")
	if root.Prefix("SERVICE_PGSQL_").MayBool("MIGRATE", true) {
		if err := store.Migrate(storeCfg.PG.URL); err != nil {
			l.Panic().Err(err).Msg("migrate failed")
		}
	}

	st, err := store.Open(ctx, storeCfg, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if cerr := st.Close(context.Background()); cerr != nil {
			l.Error().Err(cerr).Msg("failed to close store")
		}
	}()

	reg := prometheus.NewRegistry()
	meter := metrics.NewCollector(reg)

	deps := modkit.Deps{
		Log:     *l,
		Cfg:     root,
		PG:      st.PG,
		CH:      st.CH,
		Metrics: meter,
	}

	quota := guard.NewPGQuota(st.PG, quotaConfig(root))
	lease := guard.NewPGLease(st.PG)
	runLock := guard.NewPGRunLock(st.PG)
	client := upstreamClient(root, meter)

	catalog := catalogmod.New(deps)
	catPorts := module.MustPortsOf[catalogmod.Ports](catalog)

	dispatch := dispatchmod.New(deps)
	queue := dispatch.Svc

	relations := relationsmod.New(deps, relationssvc.Collab{
		Catalog:  catPorts.Reader,
		Writer:   catPorts.Writer,
		Upstream: client,
		Quota:    quota,
		Enqueue:  queue,
	})
	relPorts := module.MustPortsOf[relationsmod.Ports](relations)

	ingest := ingestmod.New(deps, ingestsvc.Collab{
		Catalog:  catPorts.Writer,
		Upstream: client,
		Quota:    quota,
		Lease:    lease,
		Queue:    queue,
	})
	ingestPorts := module.MustPortsOf[ingestmod.Ports](ingest)

	backfill := backfillmod.New(deps, backfillsvc.Collab{
		Catalog:  catPorts.Writer,
		Upstream: client,
		Quota:    quota,
		RunLock:  runLock,
		Queue:    queue,
	})
	bfPorts := module.MustPortsOf[backfillmod.Ports](backfill)

	seed := seedmod.New(deps, seedsvc.Collab{
		Catalog:  catPorts.Writer,
		Upstream: client,
		Quota:    quota,
		RunLock:  runLock,
		Queue:    queue,
	})
	seedPorts := module.MustPortsOf[seedmod.Ports](seed)

	refresh := refreshmod.New(deps, refreshsvc.Collab{
		Catalog: catPorts.Reader,
		RunLock: runLock,
		Queue:   queue,
	})
	refreshPorts := module.MustPortsOf[refreshmod.Ports](refresh)

	audit := auditmod.New(deps)
	auditPorts := module.MustPortsOf[auditmod.Ports](audit)

	for _, m := range []module.Module{catalog, dispatch, relations, ingest, backfill, seed, refresh, audit} {
		module.Register(m.Name(), m.Ports())
	}

	queue.Handle(dispatchdom.KindSyncEntity, func(ctx context.Context, item dispatchdom.Item) error {
		return ingestPorts.Syncer.SyncEntity(ctx, item.EntityType, item.EntityID)
	})
	queue.Handle(dispatchdom.KindSyncRelations, func(ctx context.Context, item dispatchdom.Item) error {
		return relPorts.Syncer.SyncRelations(ctx, item.EntityType, item.EntityID)
	})
	queue.Handle(dispatchdom.KindBackfillBatch, func(ctx context.Context, item dispatchdom.Item) error {
		return bfPorts.Walker.RunBatch(ctx, item.CursorName, item.BatchSize)
	})
	queue.Handle(dispatchdom.KindSeedListing, func(ctx context.Context, item dispatchdom.Item) error {
		return seedPorts.Seeder.SeedListing(ctx, item.Listing)
	})
	queue.Handle(dispatchdom.KindRefreshDue, func(ctx context.Context, item dispatchdom.Item) error {
		return refreshPorts.Planner.PlanRefresh(ctx)
	})
	queue.Failures(catPorts.Writer)
	queue.Observe(func(ctx context.Context, item dispatchdom.Item, outcome, detail string) {
		auditPorts.Sink.Record(ctx, auditdom.Event{
			Kind:       item.Kind,
			EntityType: item.EntityType,
			EntityID:   item.EntityID,
			Outcome:    outcome,
			Detail:     detail,
		})
	})

	go audit.Svc.Run(ctx)

	srv := ops.NewServer(root, ops.Deps{
		Store:    st,
		Gatherer: reg,
		Admin:    bfPorts.Admin,
		Reader:   catPorts.Reader,
		Queue:    queue,
	})
	go func() {
		if err := srv.Run(ctx); err != nil {
			l.Error().Err(err).Msg("ops server stopped")
		}
	}()
	defer func() {
		shctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shctx); err != nil {
			l.Error().Err(err).Msg("ops shutdown failed")
		}
	}()

	l.Info().Msg("worker starting")
	if err := queue.Run(ctx); err != nil && ctx.Err() == nil {
		l.Fatal().Err(err).Msg("worker failed")
	}
	l.Info().Msg("worker stopped")
}

package main

import (
	"context"
	"os/signal"
	"syscall"

	"animabook/internal/modkit"
	"animabook/internal/modkit/module"
	"animabook/internal/platform/config"
	"animabook/internal/platform/logger"
	"animabook/internal/platform/store"

	backfillsvc "animabook/internal/services/backfill/service"
	dispatchmod "animabook/internal/services/dispatch/module"
	schedulermod "animabook/internal/services/scheduler/module"
	schedulersvc "animabook/internal/services/scheduler/service"
)

func main() {
	root := config.New()
	logger.Init(logger.FromEnv())
	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storeCfg := store.FromConf(root, "animabook-scheduler")
	st, err := store.Open(ctx, storeCfg, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if cerr := st.Close(context.Background()); cerr != nil {
			l.Error().Err(cerr).Msg("failed to close store")
		}
	}()

	deps := modkit.Deps{
		Log: *l,
		Cfg: root,
		PG:  st.PG,
	}

	dispatch := dispatchmod.New(deps)
	queue := dispatch.Svc

	scheduler := schedulermod.New(deps, schedulersvc.Collab{
		Cursors: backfillsvc.NewCursorReader(deps),
		Queue:   queue,
	})
	schedPorts := module.MustPortsOf[schedulermod.Ports](scheduler)

	module.Register(dispatch.Name(), dispatch.Ports())
	module.Register(scheduler.Name(), scheduler.Ports())

	l.Info().Msg("scheduler starting")
	if err := schedPorts.Ticker.Run(ctx); err != nil && ctx.Err() == nil {
		l.Fatal().Err(err).Msg("scheduler failed")
	}
	l.Info().Msg("scheduler stopped")
}

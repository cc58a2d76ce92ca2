// Package ops serves the operator HTTP surface: health, metrics,
// cursor administration, and manual pipeline triggers
package ops

import (
	"context"
	"net/http"
	"time"

	"animabook/internal/platform/config"
	"animabook/internal/platform/logger"
	"animabook/internal/platform/metrics"
	"animabook/internal/platform/store"
	bf "animabook/internal/services/backfill/domain"
	cat "animabook/internal/services/catalog/domain"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
)

// SeedEnqueuer is the slice of the queue the trigger endpoints need
type SeedEnqueuer interface {
	EnqueueSeedListing(ctx context.Context, listing string) error
}

// Deps are the collaborators the ops surface exposes
type Deps struct {
	Store    *store.Store
	Gatherer prometheus.Gatherer
	Admin    bf.AdminPort
	Reader   cat.ReaderPort
	Queue    SeedEnqueuer
}

// Server wraps chi and the stdlib http server
type Server struct {
	addr string
	mux  *chi.Mux
	srv  *http.Server
	log  logger.Logger
}

// NewServer builds the ops server and mounts all routes
func NewServer(cfg config.Conf, deps Deps) *Server {
	addr := cfg.MayString("CORE_OPS_ADDR", ":4800")

	m := chi.NewRouter()
	m.Use(chimw.RealIP)
	m.Use(chimw.RequestID)
	m.Use(chimw.Recoverer)
	m.Use(chimw.Timeout(30 * time.Second))
	m.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.MayCSV("CORE_OPS_CORS_ORIGINS", []string{"*"}),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	s := &Server{
		addr: addr,
		mux:  m,
		log:  *logger.Named("ops"),
		srv: &http.Server{
			Addr:              addr,
			Handler:           m,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	h := &handlers{deps: deps}
	m.Get("/healthz", h.health)
	if deps.Gatherer != nil {
		m.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}
	m.Get("/cursors", h.listCursors)
	m.Get("/cursors/{name}", h.getCursor)
	m.Post("/cursors/{name}/activate", h.activateCursor)
	m.Post("/cursors/{name}/deactivate", h.deactivateCursor)
	m.Get("/entities/counts", h.entityCounts)
	m.Post("/seed/{listing}", h.seedListing)

	return s
}

// Handler exposes the mux for tests
func (s *Server) Handler() http.Handler { return s.mux }

// Run starts the server and blocks until it stops
func (s *Server) Run(ctx context.Context) error {
	s.log.Info().Str("addr", s.addr).Msg("ops listening")
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

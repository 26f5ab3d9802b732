package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/msadik/chatrelay/internal/config"
	"github.com/msadik/chatrelay/internal/provider"
	"github.com/msadik/chatrelay/internal/queue"
	"github.com/msadik/chatrelay/internal/storage"
	"github.com/msadik/chatrelay/internal/webhook"
)

// Deps carries the subsystems the gateway surface fronts.
type Deps struct {
	Store       storage.Storage
	Queue       *queue.Queue
	Coordinator *queue.Coordinator
	Dispatcher  *webhook.Dispatcher
	Ledger      *webhook.Ledger
	Provider    provider.Provider
}

type Server struct {
	cfg    config.ServerConfig
	apiKey string
	deps   Deps
	router *chi.Mux
	log    zerolog.Logger
	http   *http.Server
}

func NewServer(cfg config.ServerConfig, apiKey string, deps Deps, log zerolog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		apiKey: apiKey,
		deps:   deps,
		log:    log,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(s.log))

	sendHandler := NewSendHandler(s.deps.Provider, s.deps.Coordinator)
	jobHandler := NewJobHandler(s.deps.Queue)
	dlvHandler := NewDeliveryHandler(s.deps.Ledger)
	evtHandler := NewEventHandler(s.deps.Dispatcher)
	statsHandler := NewStatsHandler(s.deps.Store, s.deps.Provider)

	// No auth on health and metrics
	r.Get("/health", statsHandler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(s.apiKey))

		r.Post("/send", sendHandler.Send)
		r.Post("/send/batch", sendHandler.SendBatch)

		r.Get("/jobs/counts", jobHandler.Counts)
		r.Get("/jobs/{id}", jobHandler.Get)

		r.Get("/deliveries/{id}", dlvHandler.Get)
		r.Post("/events/test", evtHandler.TestEvent)

		r.Get("/stats", statsHandler.Stats)
	})

	return r
}

// Router exposes the handler tree for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.log.Info().Str("addr", addr).Msg("starting HTTP server")
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}

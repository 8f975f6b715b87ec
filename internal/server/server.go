// Package server exposes the benchmark engine over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vecbench/vecbench/internal/backend"
	"github.com/vecbench/vecbench/internal/bus"
	"github.com/vecbench/vecbench/internal/config"
	"github.com/vecbench/vecbench/internal/pkg/logger"
	"github.com/vecbench/vecbench/internal/pkg/middleware"
)

// Server wires the benchmark engine behind an HTTP API.
type Server struct {
	cfg     *config.Config
	log     *logger.Logger
	bus     bus.Bus
	version string

	httpServer *http.Server

	// store is the long-lived backend shared by the index/search/clear
	// endpoints. Benchmark runs open their own store so the runner can
	// close it unconditionally.
	mu    sync.Mutex
	store backend.Store
}

// New creates a server from the application configuration.
func New(cfg *config.Config, version string, log *logger.Logger) (*Server, error) {
	eventBus, err := bus.New(cfg.Bus.Type, cfg.Bus.KafkaBrokers)
	if err != nil {
		return nil, fmt.Errorf("creating event bus: %w", err)
	}

	return &Server{
		cfg:     cfg,
		log:     log,
		bus:     eventBus,
		version: version,
	}, nil
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Address(),
		Handler:      s.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // benchmark runs are long
	}

	s.log.Info("starting HTTP server", "addr", s.cfg.Address(), "version", s.version)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts the server down and releases the shared store.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(shutdownCtx)
	}

	s.mu.Lock()
	if s.store != nil {
		if closeErr := s.store.Close(); closeErr != nil {
			s.log.Warn("store close failed", "error", closeErr)
		}
		s.store = nil
	}
	s.mu.Unlock()

	if s.bus != nil {
		if busErr := s.bus.Close(); busErr != nil {
			s.log.Warn("bus close failed", "error", busErr)
		}
	}

	s.log.Info("server stopped")
	return err
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Observe(s.log))

	if s.cfg.Security.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RequestsPerSecond: float64(s.cfg.Security.RateLimit),
		})
		r.Use(limiter.Middleware)
	}

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.APIKey(s.cfg.Security.APIKey))

		r.Get("/backends", s.handleBackends)
		r.Post("/benchmark/run", s.handleBenchmarkRun)
		r.Post("/index", s.handleIndex)
		r.Post("/search", s.handleSearch)
		r.Post("/clear", s.handleClear)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}

// storeConfig translates application config into a backend config.
func storeConfig(cfg *config.Config) backend.Config {
	return backend.Config{
		Namespace:    cfg.Backend.Namespace,
		QdrantHost:   cfg.Backend.QdrantHost,
		QdrantPort:   cfg.Backend.QdrantPort,
		QdrantAPIKey: cfg.Backend.QdrantAPIKey,
		QdrantUseTLS: cfg.Backend.QdrantUseTLS,
		RedisURL:     cfg.Backend.RedisURL,
		BoltPath:     cfg.Backend.BoltPath,
		Timeout:      cfg.BackendTimeout(),
	}
}

// sharedStore returns the long-lived store, opening it on first use.
func (s *Server) sharedStore() (backend.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store != nil {
		return s.store, nil
	}

	store, err := backend.Open(s.cfg.Backend.Name, storeConfig(s.cfg))
	if err != nil {
		return nil, err
	}
	s.store = store
	return store, nil
}

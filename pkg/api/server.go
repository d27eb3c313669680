package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/realmkeep/realmkeep/pkg/log"
	"github.com/realmkeep/realmkeep/pkg/manager"
	"github.com/realmkeep/realmkeep/pkg/metrics"
)

// Server exposes the backup and restore operations over HTTP.
type Server struct {
	manager *manager.Manager
	http    *http.Server
}

// NewServer creates the API server around a manager.
func NewServer(mgr *manager.Manager, port int) *Server {
	s := &Server{manager: mgr}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics)

	r.Route("/backup", func(r chi.Router) {
		r.Post("/", s.handleBackup)
		r.Get("/list", s.handleList)
		r.Get("/info", s.handleInfo)
		r.Get("/{service}/{kind}", s.handleExportKind)
	})
	r.Route("/restore", func(r chi.Router) {
		r.Post("/", s.handleRestore)
		r.Post("/{service}/{kind}", s.handleImportKind)
	})

	r.Get("/events", s.handleEvents)

	r.Get("/health", metrics.HealthHandler())
	r.Get("/ready", metrics.ReadyHandler())
	r.Get("/live", metrics.LivenessHandler())
	r.Handle("/metrics", metrics.Handler())

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves until the listener fails or Stop is called.
func (s *Server) Start() error {
	logger := log.WithComponent("api")
	logger.Info().Str("addr", s.http.Addr).Msg("API listening")
	metrics.RegisterComponent("api", true, "")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		metrics.UpdateComponent("api", false, err.Error())
		return fmt.Errorf("failed to serve API: %w", err)
	}
	return nil
}

// Stop drains in-flight requests and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

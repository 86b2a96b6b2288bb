// Package server exposes the engine over a JSON HTTP API: it starts units of
// work, streams their progress and serves the persisted snapshots.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/owlplug/owlplug-engine/internal/config"
	"github.com/owlplug/owlplug-engine/internal/filesync"
	"github.com/owlplug/owlplug-engine/internal/install"
	"github.com/owlplug/owlplug-engine/internal/metrics"
	"github.com/owlplug/owlplug-engine/internal/project"
	"github.com/owlplug/owlplug-engine/internal/store"
	"github.com/owlplug/owlplug-engine/internal/task"
)

// heartbeatInterval is how often an idle event stream sends a comment line.
const heartbeatInterval = 15 * time.Second

// Server represents the HTTP API server.
type Server struct {
	runner    *task.Runner
	store     *store.Store
	syncer    *filesync.Syncer
	installer *install.Installer
	explorer  *project.Registry
	config    *config.Config
	logger    *slog.Logger

	httpServer *http.Server
	heartbeat  time.Duration
}

// NewServer creates a new Server instance.
func NewServer(
	runner *task.Runner,
	st *store.Store,
	syncer *filesync.Syncer,
	installer *install.Installer,
	explorer *project.Registry,
	cfg *config.Config,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		runner:    runner,
		store:     st,
		syncer:    syncer,
		installer: installer,
		explorer:  explorer,
		config:    cfg,
		logger:    logger,
		heartbeat: heartbeatInterval,
	}
}

// Handler returns the routed API wrapped in request metrics.
func (s *Server) Handler() http.Handler {
	return metrics.Middleware(s.setupRoutes())
}

// Start starts the HTTP server on the given listen address.
func (s *Server) Start(listenAddr string) error {
	// No WriteTimeout: event streams stay open for the whole unit of work.
	s.httpServer = &http.Server{
		Addr:              listenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", listenAddr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// setupRoutes registers all HTTP routes on a new ServeMux.
// Uses Go 1.22+ enhanced routing with method prefixes and path variables.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Units of work
	mux.HandleFunc("POST /api/sync", s.handleAPISync)
	mux.HandleFunc("POST /api/install", s.handleAPIInstall)
	mux.HandleFunc("POST /api/explore", s.handleAPIExplore)

	mux.HandleFunc("GET /api/tasks", s.handleAPITasks)
	mux.HandleFunc("GET /api/tasks/history", s.handleAPITaskHistory)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleAPITask)
	mux.HandleFunc("POST /api/tasks/{id}/cancel", s.handleAPITaskCancel)
	mux.HandleFunc("GET /api/tasks/{id}/events", s.handleAPITaskEvents)

	// Snapshots
	mux.HandleFunc("GET /api/files", s.handleAPIFiles)
	mux.HandleFunc("GET /api/projects", s.handleAPIProjects)
	mux.HandleFunc("GET /api/projects/{id}", s.handleAPIProject)

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

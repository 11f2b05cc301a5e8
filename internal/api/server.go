// Package api implements the HTTP surface for submitting pipeline runs and
// polling their status, adapted from the teacher's api/server.go: the same
// chi router, middleware stack and bearer-auth gate, repointed from
// document-upload ingestion at a pipeline-run endpoint bound to a
// configuration document instead.
package api

import (
	"log/slog"
	"net/http"

	"github.com/docweave/docweave/internal/config"
	"github.com/docweave/docweave/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP API server for docweave.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	metrics      *pipeline.Metrics
	log          *slog.Logger
	cfg          config.ProcessConfig
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, metrics *pipeline.Metrics, log *slog.Logger, cfg config.ProcessConfig) *Server {
	s := &Server{
		orchestrator: orch,
		metrics:      metrics,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/api/runs", s.handleSubmitRun)
		r.Get("/api/runs/{runID}", s.handleRunStatus)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

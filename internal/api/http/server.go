// Package http exposes the orchestrator over a small REST surface:
// comprehensive and targeted analysis, system status, and quota usage.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"finsight/internal/adapters/config"
	"finsight/internal/orchestrator"
	"finsight/pkg/logger"
)

// Workflows is the orchestrator surface the API exposes.
type Workflows interface {
	ExecuteComprehensiveAnalysis(ctx context.Context, userRequest map[string]any, identity string) *orchestrator.WorkflowRun
	ExecuteTargetedAnalysis(ctx context.Context, analysisType string, parameters map[string]any, identity string) orchestrator.TargetedResult
	SystemStatus() orchestrator.SystemReport
}

// QuotaReader reports current quota usage for the quota endpoint.
type QuotaReader interface {
	UsageStats() map[string]any
}

// Server is the HTTP front for the analysis system.
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer builds the router and wires the handlers.
func NewServer(cfg config.ServerConfig, workflows Workflows, quota QuotaReader, defaultIdentity string) *Server {
	h := &handlers{
		workflows:       workflows,
		quota:           quota,
		defaultIdentity: defaultIdentity,
		log:             logger.Get().With("component", "http_server"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.WriteTimeout))

	r.Get("/health", h.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/analysis/comprehensive", h.comprehensiveAnalysis)
		r.Post("/analysis/targeted", h.targetedAnalysis)
		r.Get("/system/status", h.systemStatus)
		r.Get("/quota", h.quotaUsage)
	})

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		log: logger.Get().With("component", "http_server"),
	}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Infof("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the given timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/rain-features/internal/domain"
	"github.com/couchcryptid/rain-features/internal/features"
)

// FittedPipeline describes the pipeline the service transforms with.
type FittedPipeline interface {
	Fitted() bool
	ID() string
	Schema() (domain.Schema, error)
	Bounds() (map[string]features.Bounds, error)
	Settings() features.Settings
}

// Server exposes health, readiness, metrics, and artifact HTTP endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and
// /artifact routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, fitted FittedPipeline, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /artifact", handleArtifact(fitted))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type artifactResponse struct {
	ID       string                     `json:"id"`
	Schema   domain.Schema              `json:"schema"`
	Bounds   map[string]features.Bounds `json:"bounds"`
	Settings features.Settings          `json:"settings"`
}

func handleArtifact(fitted FittedPipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if !fitted.Fitted() {
			err := &domain.NotFittedError{Stage: "pipeline", Op: "GET /artifact"}
			sharedobs.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			return
		}
		schema, err := fitted.Schema()
		if err != nil {
			sharedobs.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			return
		}
		bounds, err := fitted.Bounds()
		if err != nil {
			sharedobs.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			return
		}
		sharedobs.WriteJSON(w, http.StatusOK, artifactResponse{
			ID:       fitted.ID(),
			Schema:   schema,
			Bounds:   bounds,
			Settings: fitted.Settings(),
		})
	}
}

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/sentinelstack/sentinel-engine/internal/config"
)

// Server wraps the HTTP ingestion API and lifecycle helpers.
type Server struct {
	cfg        config.ServerConfig
	httpServer *http.Server
}

// NewServer constructs an HTTP server bound to the configured address.
func NewServer(cfg config.ServerConfig, handlers *Handlers) *Server {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", handlers.Health).Methods(http.MethodGet)

	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/errors", handlers.RecordError).Methods(http.MethodPost)
	v1.HandleFunc("/errors", handlers.ListErrors).Methods(http.MethodGet)
	v1.HandleFunc("/errors/tile", handlers.RecordTileError).Methods(http.MethodPost)
	v1.HandleFunc("/errors/api", handlers.RecordAPIError).Methods(http.MethodPost)
	v1.HandleFunc("/errors/security", handlers.RecordSecurityError).Methods(http.MethodPost)
	v1.HandleFunc("/errors/performance", handlers.RecordPerformanceError).Methods(http.MethodPost)
	v1.HandleFunc("/errors/{id}/resolve", handlers.ResolveError).Methods(http.MethodPost)
	v1.HandleFunc("/threats", handlers.ReportThreat).Methods(http.MethodPost)
	v1.HandleFunc("/requests", handlers.InspectRequest).Methods(http.MethodPost)
	v1.HandleFunc("/auth-attempts", handlers.RecordAuthAttempt).Methods(http.MethodPost)
	v1.HandleFunc("/security/metrics", handlers.SecurityMetrics).Methods(http.MethodGet)
	v1.HandleFunc("/incidents", handlers.ListIncidents).Methods(http.MethodGet)
	v1.HandleFunc("/patterns", handlers.ListPatterns).Methods(http.MethodGet)

	return &Server{
		cfg: cfg,
		httpServer: &http.Server{
			Addr:         cfg.Address,
			Handler:      router,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
	}
}

// Start serves incoming requests until Shutdown is invoked.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

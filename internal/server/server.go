// Package server hosts the HTTP surface: core routes, middleware and RFC 7807
// problem responses shared by the feature handlers.
package server

import (
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"time"

	"github.com/HerbHall/faceanalyzer/internal/metrics"
	"github.com/HerbHall/faceanalyzer/internal/version"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RouteRegistrar is implemented by feature handlers that mount their own
// routes on the shared mux.
type RouteRegistrar interface {
	RegisterRoutes(mux *http.ServeMux)
}

// Config holds the HTTP server settings.
type Config struct {
	Addr           string
	CORSOrigins    []string
	RateLimit      rate.Limit
	RateBurst      int
	LimitedPaths   []string
	// TrustedProxies are the peers whose X-Forwarded-For header is believed.
	TrustedProxies []netip.Prefix
	WriteTimeout   time.Duration
}

// Server is the faceanalyzer HTTP server.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	metrics    *metrics.Metrics
	mux        *http.ServeMux
	limiter    *ipLimiter
	cfg        Config
}

// New creates a Server and mounts the core routes plus every registrar.
func New(cfg Config, logger *zap.Logger, m *metrics.Metrics, registrars ...RouteRegistrar) *Server {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 120 * time.Second
	}
	mux := http.NewServeMux()

	s := &Server{
		logger:  logger,
		metrics: m,
		mux:     mux,
		cfg:     cfg,
	}
	if cfg.RateLimit > 0 && len(cfg.LimitedPaths) > 0 {
		s.limiter = newIPLimiter(cfg.RateLimit, cfg.RateBurst, time.Now)
	}

	s.registerCoreRoutes()
	for _, r := range registrars {
		r.RegisterRoutes(mux)
	}

	// Inference calls take tens of seconds, so the write timeout is longer
	// than the read timeout.
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the mux wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = s.rateLimit(h)
	h = s.cors(h)
	h = s.instrument(h)
	return h
}

func (s *Server) registerCoreRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// handleRoot is the plain-text liveness probe.
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Face-Analyzer is live."))
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("X-FaceAnalyzer-Version", version.Short())
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "faceanalyzer",
		"version": version.Map(),
	})
}

package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// Config configures the dashboard server.
type Config struct {
	Addr string
	// RateLimit is the sustained requests per second allowed per client IP.
	RateLimit float64
	Burst     int
	// Heartbeat is the keepalive interval of event streams.
	Heartbeat time.Duration
	Verbose   bool
}

// DefaultConfig returns default server settings.
func DefaultConfig() Config {
	return Config{
		Addr:      ":8080",
		RateLimit: 10,
		Burst:     20,
		Heartbeat: 15 * time.Second,
	}
}

// Server is the dashboard HTTP server.
type Server struct {
	cfg     Config
	watcher *Watcher
	logger  *slog.Logger
	server  *http.Server

	done     chan struct{}
	doneOnce sync.Once
}

// NewServer creates a dashboard server reading from watcher.
func NewServer(cfg Config, watcher *Watcher, logger *slog.Logger) *Server {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = def.RateLimit
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = def.Heartbeat
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		watcher: watcher,
		logger:  logger.With("component", "dashboard"),
		done:    make(chan struct{}),
	}
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestLogger(s.logger, s.cfg.Verbose))
	r.Use(recoverer(s.logger))

	r.Get("/healthz", s.handleHealth)

	limiter := newIPLimiter(s.cfg.RateLimit, s.cfg.Burst)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rateLimitByIP(limiter))

		r.Get("/status", s.handleStatus)
		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", s.handleAlerts)
			r.Get("/latest", s.handleLatest)
			r.Get("/geojson", s.handleGeoJSON)
			r.Get("/stream", s.handleStream)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "route not found")
	})
	return r
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("dashboard listen: %w", err)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("dashboard listening", "addr", ln.Addr().String())
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("dashboard server: %w", err)
	}
	return nil
}

// Shutdown ends open event streams and gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.doneOnce.Do(func() { close(s.done) })
	s.logger.Info("shutting down dashboard")
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, v any) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

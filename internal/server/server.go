// Package server provides the HTTP server for boardstream: the event
// stream endpoints, the internal broadcast endpoint and the board API.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/agentstation/boardstream/cmd/application"
	"github.com/agentstation/boardstream/internal/auth"
	"github.com/agentstation/boardstream/internal/board"
	"github.com/agentstation/boardstream/internal/emitter"
	"github.com/agentstation/boardstream/internal/registry"
	"github.com/agentstation/boardstream/internal/server/middleware"
	ws "github.com/agentstation/boardstream/internal/server/websocket"
	"github.com/agentstation/boardstream/pkg/logging"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	app         application.Application
	verifier    *auth.Verifier
	registry    *registry.Registry
	emitter     *emitter.Emitter
	board       *board.Service
	rateLimiter *middleware.RateLimiter
	metrics     *prometheus.Registry
	upgrader    websocket.Upgrader
	logger      *zerolog.Logger
	config      Config
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	startTime   time.Time
}

// New creates a new server instance with the given configuration.
func New(app application.Application, cfg Config) (*Server, error) {
	logger := app.Logger()

	logger.Debug().Msg("Creating new server instance")

	defaults := DefaultConfig()
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = defaults.PathPrefix
	}
	if cfg.Registry.KeepAliveInterval <= 0 {
		cfg.Registry.KeepAliveInterval = defaults.Registry.KeepAliveInterval
	}
	if cfg.Registry.WriteTimeout <= 0 {
		cfg.Registry.WriteTimeout = defaults.Registry.WriteTimeout
	}

	if app.JWTSecret() == "" {
		logger.Warn().Msg("No token signing secret configured; every stream will be refused")
	}
	if app.InternalKey() == "" {
		logger.Warn().Msg("No internal key configured; broadcasts over HTTP will be refused")
	}

	metricsRegistry := prometheus.NewRegistry()
	metricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	verifier := auth.NewVerifier(app.JWTSecret())

	logger.Debug().Msg("Creating connection registry")
	reg := registry.New(verifier, logging.Component(logger, "registry"),
		registry.WithConfig(cfg.Registry),
		registry.WithMetrics(registry.MustNewMetrics(metricsRegistry)),
	)

	logger.Debug().Msg("Creating event emitter")
	em := emitter.New(emitter.Local{Registry: reg}, logging.Component(logger, "emitter"), cfg.Emitter, emitter.MustNewMetrics(metricsRegistry))

	ctx, cancel := context.WithCancel(context.Background())

	server := &Server{
		app:         app,
		verifier:    verifier,
		registry:    reg,
		emitter:     em,
		board:       board.NewService(board.NewStore(), em, logging.Component(logger, "board")),
		rateLimiter: middleware.NewRateLimiter(cfg.RateLimit, logger),
		metrics:     metricsRegistry,
		upgrader:    ws.Upgrader(originChecker(cfg)),
		logger:      logger,
		config:      cfg,
		ctx:         ctx,
		cancel:      cancel,
		startTime:   time.Now(),
	}

	logger.Debug().Msg("Server instance created successfully")
	return server, nil
}

// originChecker allows WebSocket upgrades from the configured CORS origins,
// or from anywhere when CORS is disabled or open.
func originChecker(cfg Config) func(*http.Request) bool {
	if !cfg.CORSEnabled || len(cfg.CORSOrigins) == 0 {
		return func(*http.Request) bool { return true }
	}
	allowed := make(map[string]bool, len(cfg.CORSOrigins))
	for _, o := range cfg.CORSOrigins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin] || allowed["*"]
	}
}

// Start starts background services (keepalive loop, emitter worker, rate
// limiter eviction).
func (s *Server) Start() {
	s.logger.Debug().Msg("Starting background services")

	s.wg.Add(3)
	go func() {
		defer s.wg.Done()
		s.registry.Run(s.ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.emitter.Run(s.ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.rateLimiter.Run(s.ctx)
	}()

	s.logger.Debug().Msg("All background services started")
}

// Handler returns the configured http.Handler with middleware chain applied.
func (s *Server) Handler() http.Handler {
	return s.setupRouter()
}

// Shutdown stops background services and closes every open stream. It
// waits for the services to exit or for ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down server background services")

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		// Close again in case Start was never called.
		s.registry.Close()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("Background services shut down successfully")
		return nil
	case <-ctx.Done():
		s.logger.Warn().Msg("Background services shutdown timed out")
		return ctx.Err()
	}
}

// ready reports whether streams can be accepted.
func (s *Server) ready() error {
	if s.app.JWTSecret() == "" {
		return errors.New("token signing secret not configured")
	}
	if s.ctx.Err() != nil {
		return errors.New("server shutting down")
	}
	return nil
}

// Registry returns the connection registry.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Emitter returns the event emitter for publishing events.
func (s *Server) Emitter() *emitter.Emitter {
	return s.emitter
}

// Board returns the board service.
func (s *Server) Board() *board.Service {
	return s.board
}

// Metrics returns the Prometheus registry served on /metrics.
func (s *Server) Metrics() *prometheus.Registry {
	return s.metrics
}

// StartTime returns the server start time for uptime calculations.
func (s *Server) StartTime() time.Time {
	return s.startTime
}

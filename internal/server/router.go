package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentstation/boardstream/internal/server/handlers"
	"github.com/agentstation/boardstream/internal/server/middleware"
)

// setupRouter creates the HTTP handler with routes and middleware.
func (s *Server) setupRouter() http.Handler {
	mux := http.NewServeMux()

	// Create handlers instance
	h := handlers.New(
		s.registry,
		s.board,
		s.upgrader,
		s.logger,
		s.ready,
	)

	// Register routes
	s.registerRoutes(mux, h)

	// Apply middleware chain
	return s.applyMiddleware(mux)
}

// registerRoutes registers all HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux, h *handlers.Handlers) {
	prefix := s.config.PathPrefix

	requireToken := middleware.RequireToken(s.verifier, s.logger)
	limited := func(next http.Handler) http.Handler {
		if s.config.RateLimit <= 0 {
			return next
		}
		return middleware.RateLimit(s.rateLimiter)(next)
	}
	user := func(fn http.HandlerFunc) http.Handler {
		return limited(requireToken(fn))
	}

	// Favicon handler (return 204 No Content to avoid 404 logs)
	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Public health endpoints (no auth required)
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET "+prefix+"/health", h.HandleHealth)
	mux.HandleFunc("GET "+prefix+"/ready", h.HandleReady)

	// Event streams authenticate inside the handler (SSE) or before the
	// upgrade (WebSocket) and are never rate limited.
	mux.HandleFunc("GET "+prefix+"/events/stream", h.HandleStream)
	mux.Handle("GET "+prefix+"/events/ws", requireToken(http.HandlerFunc(h.HandleWebSocket)))

	// Internal broadcast endpoint
	mux.Handle("POST "+prefix+"/events/broadcast",
		limited(middleware.InternalKey(s.app.InternalKey(), s.logger)(http.HandlerFunc(h.HandleBroadcast))))

	// Connection statistics
	mux.Handle("GET "+prefix+"/events/stats", middleware.NoStore(user(h.HandleStats)))

	// Board endpoints
	mux.Handle("GET "+prefix+"/tasks", user(h.HandleListTasks))
	mux.Handle("POST "+prefix+"/tasks", user(h.HandleCreateTask))
	mux.Handle("GET "+prefix+"/tasks/{id}", user(h.HandleGetTask))
	mux.Handle("PATCH "+prefix+"/tasks/{id}", user(h.HandleUpdateTask))
	mux.Handle("DELETE "+prefix+"/tasks/{id}", user(h.HandleDeleteTask))
	mux.Handle("PUT "+prefix+"/tasks/{id}/status", user(h.HandleSetStatus))
	mux.Handle("GET "+prefix+"/tasks/{id}/comments", user(h.HandleListComments))
	mux.Handle("POST "+prefix+"/tasks/{id}/comments", user(h.HandleAddComment))
	mux.Handle("POST "+prefix+"/cron-jobs/{id}/runs", user(h.HandleStartCronRun))
	mux.Handle("POST "+prefix+"/cron-jobs/{id}/runs/complete", user(h.HandleCompleteCronRun))
	mux.Handle("POST "+prefix+"/cron-jobs/{id}/runs/fail", user(h.HandleFailCronRun))

	// Metrics endpoint (optional)
	if s.config.MetricsEnabled {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{}))
	}
}

// applyMiddleware wraps handler with middleware chain.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	cfg := s.config

	// CORS (if enabled)
	if cfg.CORSEnabled {
		corsConfig := middleware.DefaultCORSConfig()
		if len(cfg.CORSOrigins) > 0 {
			corsConfig.AllowedOrigins = cfg.CORSOrigins
			corsConfig.AllowAll = false
		} else {
			corsConfig.AllowAll = true
		}
		handler = middleware.CORS(corsConfig)(handler)
	}

	// Logging and recovery (always enabled)
	handler = middleware.Logger(s.logger)(handler)
	handler = middleware.Recovery(s.logger)(handler)

	return handler
}

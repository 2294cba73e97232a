// Package serve provides the HTTP server command for the boardstream CLI.
package serve

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentstation/boardstream/cmd/application"
	"github.com/agentstation/boardstream/internal/cmd/cmdutil"
	"github.com/agentstation/boardstream/internal/cmd/emoji"
	"github.com/agentstation/boardstream/internal/server"
	"github.com/agentstation/boardstream/pkg/errors"
)

// NewCommand creates the serve command using app context.
func NewCommand(app application.Application) *cobra.Command {
	defaults := server.DefaultConfig()

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"server"},
		GroupID: "core",
		Short:   "Start the real-time event server",
		Long: `Start the boardstream server: the event stream the dashboard
subscribes to, the internal broadcast endpoint and the board API.

Features:
  - Server-Sent Events stream (/api/v1/events/stream)
  - WebSocket stream with the same auth and framing (/api/v1/events/ws)
  - Internal broadcast endpoint guarded by X-Internal-Key
  - Live connection stats (/api/v1/events/stats)
  - Task, comment and cron job endpoints that emit events
  - Keepalive frames that also prune dead connections
  - Rate limiting (requests per minute per IP, streams exempt)
  - Health, readiness and Prometheus metrics endpoints
  - Graceful shutdown that closes every open stream

BOARDSTREAM_JWT_SECRET and BOARDSTREAM_INTERNAL_KEY must be set.`,
		Example: `  # Start on default port 8080
  boardstream serve

  # Allow a browser dashboard on another origin
  boardstream serve --cors-origins "https://board.example.com"

  # Faster keepalive for aggressive proxies
  boardstream serve --keepalive 10s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd, args, app)
		},
	}

	// Server configuration flags
	cmd.Flags().Int("port", defaults.Port, "Server port")
	cmd.Flags().String("host", defaults.Host, "Bind address")
	cmd.Flags().String("prefix", defaults.PathPrefix, "API path prefix")

	// CORS flags
	cmd.Flags().Bool("cors", false, "Enable CORS for all origins")
	cmd.Flags().StringSlice("cors-origins", []string{}, "Allowed CORS origins (comma-separated)")

	// Performance flags
	cmd.Flags().Int("rate-limit", defaults.RateLimit, "Requests per minute per IP (0 to disable)")

	// Streaming flags
	cmd.Flags().Duration("keepalive", defaults.Registry.KeepAliveInterval, "Keepalive interval for open streams (0 to disable)")
	cmd.Flags().Duration("stream-write-timeout", defaults.Registry.WriteTimeout, "Deadline for a single write to one stream")
	cmd.Flags().Int("max-concurrent-writes", defaults.Registry.MaxConcurrentWrites, "Concurrent stream writes per broadcast")
	cmd.Flags().Int("queue-size", defaults.Emitter.QueueSize, "Pending events before new ones are dropped")
	cmd.Flags().Duration("broadcast-timeout", defaults.Emitter.BroadcastTimeout, "Deadline for one event delivery")

	// Timeout flags
	cmd.Flags().Duration("read-timeout", defaults.ReadTimeout, "HTTP read timeout")
	cmd.Flags().Duration("write-timeout", defaults.WriteTimeout, "HTTP write timeout for non-stream responses")
	cmd.Flags().Duration("idle-timeout", defaults.IdleTimeout, "HTTP idle timeout")

	// Features flags
	cmd.Flags().Bool("metrics", defaults.MetricsEnabled, "Enable metrics endpoint")

	return cmd
}

// runServer starts the API server.
func runServer(cmd *cobra.Command, _ []string, app application.Application) error {
	if err := checkSecrets(app); err != nil {
		return err
	}

	cfg := parseConfig(cmd)
	logger := app.Logger()

	logger.Info().
		Int("port", cfg.Port).
		Str("host", cfg.Host).
		Str("prefix", cfg.PathPrefix).
		Bool("cors", cfg.CORSEnabled).
		Int("rate_limit", cfg.RateLimit).
		Dur("keepalive", cfg.Registry.KeepAliveInterval).
		Msg("Starting event server")

	srv, err := server.New(app, cfg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Start keepalive, emitter and rate limiter loops
	srv.Start()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// cmd.Context() carries signal handling from main.go
	return startWithGracefulShutdown(cmd.Context(), httpServer, srv, logger)
}

// checkSecrets fails fast when the shared secrets are missing.
func checkSecrets(app application.Application) error {
	if app.JWTSecret() == "" {
		return errors.NewConfigError("serve", "BOARDSTREAM_JWT_SECRET is not set", errors.ErrMisconfiguredServer)
	}
	if app.InternalKey() == "" {
		return errors.NewConfigError("serve", "BOARDSTREAM_INTERNAL_KEY is not set", errors.ErrMisconfiguredServer)
	}
	return nil
}

// parseConfig parses command flags into server configuration.
func parseConfig(cmd *cobra.Command) server.Config {
	cfg := server.DefaultConfig()

	cfg.Port = cmdutil.MustGetInt(cmd, "port")
	cfg.Host = cmdutil.MustGetString(cmd, "host")
	cfg.PathPrefix = cmdutil.MustGetString(cmd, "prefix")
	cfg.CORSEnabled = cmdutil.MustGetBool(cmd, "cors")
	cfg.CORSOrigins = cmdutil.MustGetStringSlice(cmd, "cors-origins")
	cfg.RateLimit = cmdutil.MustGetInt(cmd, "rate-limit")
	cfg.Registry.KeepAliveInterval = cmdutil.MustGetDuration(cmd, "keepalive")
	cfg.Registry.WriteTimeout = cmdutil.MustGetDuration(cmd, "stream-write-timeout")
	cfg.Registry.MaxConcurrentWrites = cmdutil.MustGetInt(cmd, "max-concurrent-writes")
	cfg.Emitter.QueueSize = cmdutil.MustGetInt(cmd, "queue-size")
	cfg.Emitter.BroadcastTimeout = cmdutil.MustGetDuration(cmd, "broadcast-timeout")
	cfg.ReadTimeout = cmdutil.MustGetDuration(cmd, "read-timeout")
	cfg.WriteTimeout = cmdutil.MustGetDuration(cmd, "write-timeout")
	cfg.IdleTimeout = cmdutil.MustGetDuration(cmd, "idle-timeout")
	cfg.MetricsEnabled = cmdutil.MustGetBool(cmd, "metrics")

	// Override with environment variables
	if envPort := os.Getenv("HTTP_PORT"); envPort != "" {
		if p, err := parsePort(envPort); err == nil {
			cfg.Port = p
		}
	}
	if envHost := os.Getenv("HTTP_HOST"); envHost != "" {
		cfg.Host = envHost
	}

	return cfg
}

// parsePort safely parses a port string to integer.
func parsePort(portStr string) (int, error) {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("invalid port number: %s", portStr)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port out of range: %d", port)
	}
	return port, nil
}

// startWithGracefulShutdown starts the HTTP server and shuts it down when
// ctx is cancelled.
func startWithGracefulShutdown(ctx context.Context, httpServer *http.Server, srv *server.Server, logger *zerolog.Logger) error {
	serverErr := make(chan error, 1)

	go func() {
		logger.Info().
			Str("addr", httpServer.Addr).
			Msg("HTTP server listening")

		fmt.Printf("%s boardstream listening on %s\n", emoji.Rocket, httpServer.Addr)
		fmt.Println("   Press Ctrl+C to stop")

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- fmt.Errorf("server failed: %w", err)
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received via context")

		fmt.Printf("\n%s Shutting down boardstream...\n", emoji.Stop)

		// The parent context is already cancelled
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Streams never go idle; close them before draining HTTP.
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Background services shutdown had issues")
		}

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("Server stopped gracefully")
		fmt.Printf("%s boardstream stopped gracefully\n", emoji.Success)
		return nil
	}
}

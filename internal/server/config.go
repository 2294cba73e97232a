package server

import (
	"time"

	"github.com/agentstation/boardstream/internal/emitter"
	"github.com/agentstation/boardstream/internal/registry"
)

// Config holds server configuration.
type Config struct {
	// Server settings
	Host string
	Port int

	// API settings
	PathPrefix string

	// CORS settings
	CORSEnabled bool
	CORSOrigins []string

	// Performance settings
	RateLimit int // Requests per minute per IP (0 to disable); streams are exempt

	// Streaming settings
	Registry registry.Config
	Emitter  emitter.Config

	// HTTP timeouts. WriteTimeout does not bound streams; each stream
	// write carries its own deadline.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Features
	MetricsEnabled bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:           "localhost",
		Port:           8080,
		PathPrefix:     "/api/v1",
		CORSEnabled:    false,
		CORSOrigins:    []string{},
		RateLimit:      100,
		Registry:       registry.DefaultConfig(),
		Emitter:        emitter.DefaultConfig(),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    120 * time.Second,
		MetricsEnabled: true,
	}
}

package client

import (
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Config tunes reconnects and the staleness watchdog.
type Config struct {
	// MaxReconnectAttempts is how many consecutive failures are retried
	// before the controller settles in StateDisconnected.
	MaxReconnectAttempts int

	// ReconnectBaseDelay is the delay before the first retry.
	ReconnectBaseDelay time.Duration

	// ReconnectMultiplier grows the delay after every failed attempt.
	ReconnectMultiplier float64

	// ReconnectMaxDelay caps the delay.
	ReconnectMaxDelay time.Duration

	// HeartbeatInterval is how often liveness is checked. A stream silent
	// for more than twice the interval is treated as dead.
	HeartbeatInterval time.Duration
}

// DefaultConfig returns the controller defaults.
func DefaultConfig() Config {
	return Config{
		MaxReconnectAttempts: 10,
		ReconnectBaseDelay:   time.Second,
		ReconnectMultiplier:  2,
		ReconnectMaxDelay:    30 * time.Second,
		HeartbeatInterval:    30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = d.MaxReconnectAttempts
	}
	if c.ReconnectBaseDelay <= 0 {
		c.ReconnectBaseDelay = d.ReconnectBaseDelay
	}
	if c.ReconnectMultiplier < 1 {
		c.ReconnectMultiplier = d.ReconnectMultiplier
	}
	if c.ReconnectMaxDelay <= 0 {
		c.ReconnectMaxDelay = d.ReconnectMaxDelay
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	return c
}

// newBackOff builds a jitter-free exponential policy that never gives up on
// its own; the attempt ceiling is enforced by the controller.
func newBackOff(cfg Config) *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     cfg.ReconnectBaseDelay,
		RandomizationFactor: 0,
		Multiplier:          cfg.ReconnectMultiplier,
		MaxInterval:         cfg.ReconnectMaxDelay,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

// Option configures a Controller.
type Option func(*Controller)

// WithConfig sets reconnect and watchdog tuning.
func WithConfig(cfg Config) Option {
	return func(c *Controller) {
		c.cfg = cfg
	}
}

// WithHTTPClient sets the client used to open streams. It must not set a
// response timeout, which would cut long-lived streams.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Controller) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithRouter dispatches to an existing router.
func WithRouter(r *Router) Option {
	return func(c *Controller) {
		c.router = r
	}
}

// OnError is called with every transport error, after the state change.
func OnError(fn func(error)) Option {
	return func(c *Controller) {
		c.onError = fn
	}
}

// OnStateChange is called on every state transition, in order.
func OnStateChange(fn func(State)) Option {
	return func(c *Controller) {
		c.onStateChange = fn
	}
}

// Package emitter publishes domain events after a mutation commits. Emit
// never blocks the caller and never reports failure: events go through a
// bounded queue drained by a single worker, and anything that cannot be
// queued or delivered is logged and counted.
package emitter

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/agentstation/boardstream/internal/metrics"
	"github.com/agentstation/boardstream/pkg/events"
)

// Broadcaster delivers an event to the registry, locally or remotely.
type Broadcaster interface {
	Broadcast(ctx context.Context, ev events.Event, targets []string) (int, error)
}

// Config tunes the emitter.
type Config struct {
	// QueueSize bounds pending events; further events are dropped.
	QueueSize int

	// BroadcastTimeout bounds one delivery.
	BroadcastTimeout time.Duration
}

// DefaultConfig returns the emitter defaults.
func DefaultConfig() Config {
	return Config{
		QueueSize:        256,
		BroadcastTimeout: 10 * time.Second,
	}
}

type job struct {
	event   events.Event
	targets []string
}

// Emitter queues events for asynchronous broadcast.
type Emitter struct {
	target  Broadcaster
	queue   chan job
	cfg     Config
	logger  *zerolog.Logger
	metrics *Metrics
}

// New creates an emitter. Call Run to start delivering.
func New(target Broadcaster, logger *zerolog.Logger, cfg Config, m *Metrics) *Emitter {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.BroadcastTimeout <= 0 {
		cfg.BroadcastTimeout = DefaultConfig().BroadcastTimeout
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Emitter{
		target:  target,
		queue:   make(chan job, cfg.QueueSize),
		cfg:     cfg,
		logger:  logger,
		metrics: m,
	}
}

// Run delivers queued events until ctx is done, then flushes whatever is
// still queued using a fresh timeout per event.
func (e *Emitter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			e.drain()
			e.logger.Info().Msg("Event emitter shut down")
			return
		case j := <-e.queue:
			e.deliver(ctx, j)
		}
	}
}

func (e *Emitter) drain() {
	for {
		select {
		case j := <-e.queue:
			e.deliver(context.Background(), j)
		default:
			return
		}
	}
}

func (e *Emitter) deliver(ctx context.Context, j job) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.BroadcastTimeout)
	defer cancel()

	delivered, err := e.target.Broadcast(ctx, j.event, j.targets)
	if err != nil {
		e.metrics.failed(j.event.Type)
		e.logger.Warn().
			Err(err).
			Str("event_type", j.event.Type.String()).
			Msg("Event broadcast failed")
		return
	}

	e.metrics.delivered(j.event.Type)
	e.logger.Debug().
		Str("event_type", j.event.Type.String()).
		Int("delivered", delivered).
		Msg("Event broadcast")
}

// Emit queues ev for delivery to targets, or to everyone when targets is nil.
func (e *Emitter) Emit(ev events.Event, targets []string) {
	select {
	case e.queue <- job{event: ev, targets: targets}:
		e.metrics.queued(ev.Type)
	default:
		e.metrics.dropped(ev.Type)
		e.logger.Warn().
			Str("event_type", ev.Type.String()).
			Msg("Event queue full, event dropped")
	}
}

// Publish builds an event of type t around data and emits it.
func (e *Emitter) Publish(t events.Type, data any, targets []string) {
	ev, err := events.New(t, data)
	if err != nil {
		e.logger.Error().Err(err).Str("event_type", t.String()).Msg("Failed to build event")
		return
	}
	e.Emit(ev, targets)
}

// Pending returns the number of queued events.
func (e *Emitter) Pending() int {
	return len(e.queue)
}

// Metrics exposes Prometheus collectors that report emitter activity.
type Metrics struct {
	events *prometheus.CounterVec
}

// MustNewMetrics constructs emitter metrics on reg.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		events: metrics.MustRegister(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts(metrics.Opts("emitter", "events_total", "Emitted events, by type and outcome.")),
			[]string{"type", "outcome"},
		)),
	}
}

func (m *Metrics) record(t events.Type, outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(t.String(), outcome).Inc()
}

func (m *Metrics) queued(t events.Type)    { m.record(t, "queued") }
func (m *Metrics) dropped(t events.Type)   { m.record(t, "dropped") }
func (m *Metrics) failed(t events.Type)    { m.record(t, "failed") }
func (m *Metrics) delivered(t events.Type) { m.record(t, "delivered") }

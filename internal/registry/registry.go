// Package registry owns the set of open dashboard streams. It authenticates
// new connections, fans typed events out to them and drops any connection
// whose sink fails a write.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/agentstation/boardstream/internal/auth"
	pkgerrors "github.com/agentstation/boardstream/pkg/errors"
	"github.com/agentstation/boardstream/pkg/events"
)

// TokenVerifier validates the credential presented at connect time.
type TokenVerifier interface {
	Verify(token string) (auth.Principal, error)
}

// Config tunes registry behavior.
type Config struct {
	// KeepAliveInterval is how often Run probes every sink. Zero disables probing.
	KeepAliveInterval time.Duration

	// WriteTimeout bounds a single write to one sink.
	WriteTimeout time.Duration

	// MaxConcurrentWrites limits fan-out goroutines per broadcast.
	MaxConcurrentWrites int
}

// DefaultConfig returns the registry defaults.
func DefaultConfig() Config {
	return Config{
		KeepAliveInterval:   25 * time.Second,
		WriteTimeout:        5 * time.Second,
		MaxConcurrentWrites: 64,
	}
}

// Connection describes one open stream.
type Connection struct {
	ID          string
	Subject     string
	ConnectedAt time.Time
}

type entry struct {
	Connection
	sink Sink
}

// ConnectionStats is one row of a Stats snapshot.
type ConnectionStats struct {
	ID          string    `json:"id"`
	Subject     string    `json:"subject"`
	ConnectedAt time.Time `json:"connectedAt"`
	DurationMs  int64     `json:"durationMs"`
}

// Stats is a point-in-time view of the registry.
type Stats struct {
	TotalConnections int               `json:"totalConnections"`
	Connections      []ConnectionStats `json:"connections"`
}

// Option configures a Registry.
type Option func(*Registry)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(r *Registry) {
		r.cfg = cfg
	}
}

// WithMetrics records registry activity on m.
func WithMetrics(m *Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// Registry is the single owner of open connections. The connection set is
// guarded by mu; sink I/O always happens outside it.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*entry

	verifier TokenVerifier
	cfg      Config
	metrics  *Metrics
	now      func() time.Time
	logger   *zerolog.Logger
}

// New creates a registry.
func New(verifier TokenVerifier, logger *zerolog.Logger, opts ...Option) *Registry {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	r := &Registry{
		conns:    make(map[string]*entry),
		verifier: verifier,
		cfg:      DefaultConfig(),
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cfg.MaxConcurrentWrites <= 0 {
		r.cfg.MaxConcurrentWrites = DefaultConfig().MaxConcurrentWrites
	}
	return r
}

// Connect verifies token and registers sink under a fresh id. The
// connection.established event is written to the sink before the connection
// becomes visible to broadcasts, so it is always the first event a client sees.
// Verification failures are returned untouched and the sink is not used.
func (r *Registry) Connect(ctx context.Context, token string, sink Sink) (Connection, error) {
	principal, err := r.verifier.Verify(token)
	if err != nil {
		r.metrics.rejected(rejectionReason(err))
		return Connection{}, err
	}

	conn := Connection{
		ID:          uuid.NewString(),
		Subject:     principal.Subject,
		ConnectedAt: r.now().UTC(),
	}

	ev, err := events.NewAt(events.ConnectionEstablished, conn.ConnectedAt, events.Established{
		ConnectionID: conn.ID,
		Subject:      conn.Subject,
		Timestamp:    conn.ConnectedAt,
	})
	if err != nil {
		return Connection{}, err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return Connection{}, err
	}
	if err := r.send(ctx, sink, Message{Data: data}); err != nil {
		return Connection{}, pkgerrors.WrapTransport("write", conn.ID, err)
	}

	r.mu.Lock()
	r.conns[conn.ID] = &entry{Connection: conn, sink: sink}
	total := len(r.conns)
	r.mu.Unlock()

	r.metrics.connected()
	r.logger.Info().
		Str("connection_id", conn.ID).
		Str("subject", conn.Subject).
		Int("total_connections", total).
		Msg("Stream connected")

	return conn, nil
}

// Broadcast writes ev to every connection, or only to connections whose
// subject is in targets when targets is non-nil. The event is encoded once.
// Connections whose write fails are removed; the rest still receive the
// event. It returns the number of successful deliveries.
func (r *Registry) Broadcast(ctx context.Context, ev events.Event, targets []string) int {
	data, err := json.Marshal(ev)
	if err != nil {
		r.logger.Error().Err(err).Str("event_type", ev.Type.String()).Msg("Failed to encode event")
		return 0
	}

	recipients := r.snapshot(targets)
	delivered, failed := r.fanOut(ctx, recipients, Message{ID: ev.ID, Data: data})
	r.metrics.broadcast(ev.Type.String(), delivered, len(failed))
	r.drop(failed, "write_failed")

	r.logger.Debug().
		Str("event_type", ev.Type.String()).
		Int("recipients", len(recipients)).
		Int("delivered", delivered).
		Int("dropped", len(failed)).
		Msg("Event broadcasted")

	return delivered
}

// Disconnect removes a connection and closes its sink. Unknown ids are ignored.
func (r *Registry) Disconnect(id string) {
	r.mu.Lock()
	e, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	total := len(r.conns)
	r.mu.Unlock()

	if !ok {
		return
	}
	_ = e.sink.Close()
	r.metrics.removed("disconnect", 1)
	r.logger.Info().
		Str("connection_id", id).
		Str("subject", e.Subject).
		Dur("duration", r.now().Sub(e.ConnectedAt)).
		Int("total_connections", total).
		Msg("Stream disconnected")
}

// Stats returns a snapshot of open connections ordered by connect time.
func (r *Registry) Stats() Stats {
	now := r.now()

	r.mu.Lock()
	rows := make([]ConnectionStats, 0, len(r.conns))
	for _, e := range r.conns {
		rows = append(rows, ConnectionStats{
			ID:          e.ID,
			Subject:     e.Subject,
			ConnectedAt: e.ConnectedAt,
			DurationMs:  now.Sub(e.ConnectedAt).Milliseconds(),
		})
	}
	r.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ConnectedAt.Equal(rows[j].ConnectedAt) {
			return rows[i].ID < rows[j].ID
		}
		return rows[i].ConnectedAt.Before(rows[j].ConnectedAt)
	})

	return Stats{TotalConnections: len(rows), Connections: rows}
}

// Count returns the number of open connections.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Run probes every sink on the keepalive interval so dead peers are removed
// even when no events flow. It closes all connections when ctx is done.
func (r *Registry) Run(ctx context.Context) {
	defer r.Close()

	if r.cfg.KeepAliveInterval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(r.cfg.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Probe(ctx)
		}
	}
}

// Probe sends a keepalive to every connection and returns how many were
// removed because the write failed.
func (r *Registry) Probe(ctx context.Context) int {
	_, failed := r.fanOut(ctx, r.snapshot(nil), Message{})
	r.drop(failed, "probe_failed")
	if len(failed) > 0 {
		r.logger.Info().Int("removed", len(failed)).Msg("Removed dead streams")
	}
	return len(failed)
}

// Close closes every sink and empties the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	all := r.conns
	r.conns = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range all {
		_ = e.sink.Close()
	}
	r.metrics.removed("shutdown", len(all))
	if len(all) > 0 {
		r.logger.Info().Int("closed", len(all)).Msg("Registry closed")
	}
}

func (r *Registry) snapshot(targets []string) []*entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*entry, 0, len(r.conns))
	for _, e := range r.conns {
		if targets != nil && !slices.Contains(targets, e.Subject) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (r *Registry) fanOut(ctx context.Context, recipients []*entry, msg Message) (int, []*entry) {
	var (
		delivered atomic.Int64
		mu        sync.Mutex
		failed    []*entry
	)

	g := new(errgroup.Group)
	g.SetLimit(r.cfg.MaxConcurrentWrites)
	for _, e := range recipients {
		g.Go(func() error {
			if err := r.send(ctx, e.sink, msg); err != nil {
				r.logger.Debug().Err(err).Str("connection_id", e.ID).Msg("Stream write failed")
				mu.Lock()
				failed = append(failed, e)
				mu.Unlock()
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return int(delivered.Load()), failed
}

func (r *Registry) send(ctx context.Context, sink Sink, msg Message) error {
	if r.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.WriteTimeout)
		defer cancel()
	}
	return sink.Send(ctx, msg)
}

// drop removes entries that are still registered. An entry replaced or
// already removed by a concurrent call is left alone.
func (r *Registry) drop(failed []*entry, cause string) {
	if len(failed) == 0 {
		return
	}

	removed := make([]*entry, 0, len(failed))
	r.mu.Lock()
	for _, e := range failed {
		if cur, ok := r.conns[e.ID]; ok && cur == e {
			delete(r.conns, e.ID)
			removed = append(removed, e)
		}
	}
	r.mu.Unlock()

	for _, e := range removed {
		_ = e.sink.Close()
	}
	r.metrics.removed(cause, len(removed))
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, pkgerrors.ErrMalformedToken):
		return "malformed"
	case errors.Is(err, pkgerrors.ErrExpired):
		return "expired"
	case errors.Is(err, pkgerrors.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, pkgerrors.ErrMisconfiguredServer):
		return "misconfigured"
	default:
		return "other"
	}
}

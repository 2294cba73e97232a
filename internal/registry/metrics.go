package registry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentstation/boardstream/internal/metrics"
)

// Metrics exposes Prometheus collectors that report registry activity.
type Metrics struct {
	active     prometheus.Gauge
	connects   prometheus.Counter
	rejections *prometheus.CounterVec
	broadcasts *prometheus.CounterVec
	deliveries prometheus.Counter
	failures   prometheus.Counter
	removals   *prometheus.CounterVec
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns collectors registered with the global registry.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Collectors already registered under the same name are reused.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	opts := func(name, help string) prometheus.Opts {
		return metrics.Opts("registry", name, help)
	}

	return &Metrics{
		active: metrics.MustRegister(reg, prometheus.NewGauge(prometheus.GaugeOpts(
			opts("connections_active", "Number of open stream connections.")))),
		connects: metrics.MustRegister(reg, prometheus.NewCounter(prometheus.CounterOpts(
			opts("connects_total", "Stream connections accepted.")))),
		rejections: metrics.MustRegister(reg, prometheus.NewCounterVec(prometheus.CounterOpts(
			opts("rejections_total", "Connect attempts rejected, by reason.")), []string{"reason"})),
		broadcasts: metrics.MustRegister(reg, prometheus.NewCounterVec(prometheus.CounterOpts(
			opts("broadcasts_total", "Broadcasts performed, by event type.")), []string{"type"})),
		deliveries: metrics.MustRegister(reg, prometheus.NewCounter(prometheus.CounterOpts(
			opts("deliveries_total", "Messages written to a sink successfully.")))),
		failures: metrics.MustRegister(reg, prometheus.NewCounter(prometheus.CounterOpts(
			opts("delivery_failures_total", "Sink writes that failed and removed the connection.")))),
		removals: metrics.MustRegister(reg, prometheus.NewCounterVec(prometheus.CounterOpts(
			opts("removals_total", "Connections removed, by cause.")), []string{"cause"})),
	}
}

func (m *Metrics) connected() {
	if m == nil {
		return
	}
	m.connects.Inc()
	m.active.Inc()
}

func (m *Metrics) rejected(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) broadcast(eventType string, delivered, failed int) {
	if m == nil {
		return
	}
	m.broadcasts.WithLabelValues(eventType).Inc()
	m.deliveries.Add(float64(delivered))
	m.failures.Add(float64(failed))
}

func (m *Metrics) removed(cause string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.removals.WithLabelValues(cause).Add(float64(n))
	m.active.Sub(float64(n))
}

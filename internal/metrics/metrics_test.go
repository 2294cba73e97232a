package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestMustRegisterReusesExisting(t *testing.T) {
	reg := prometheus.NewRegistry()
	opts := prometheus.CounterOpts(Opts("test", "things_total", "Things."))

	first := MustRegister(reg, prometheus.NewCounter(opts))
	second := MustRegister(reg, prometheus.NewCounter(opts))

	first.Inc()
	assert.Same(t, first, second)
}

func TestMustRegisterPanicsOnConflict(t *testing.T) {
	reg := prometheus.NewRegistry()
	MustRegister(reg, prometheus.NewCounter(prometheus.CounterOpts(Opts("test", "x_total", "X."))))

	assert.Panics(t, func() {
		MustRegister(reg, prometheus.NewGauge(prometheus.GaugeOpts(Opts("test", "x_total", "X."))))
	})
}

// Package metrics holds Prometheus registration helpers shared by the
// registry and the emitter.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every boardstream metric.
const Namespace = "boardstream"

// MustRegister registers c with reg. When a collector with the same
// descriptor already exists it is returned instead, so constructing metrics
// twice against one registry is safe. Any other error panics.
func MustRegister[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// Opts builds collector options in the boardstream namespace.
func Opts(subsystem, name, help string) prometheus.Opts {
	return prometheus.Opts{Namespace: Namespace, Subsystem: subsystem, Name: name, Help: help}
}

// Package metrics defines the Prometheus metrics recorded during provisioning.
//
// A run owns its own registry so the CLI can dump it with WriteTextfile at
// exit. All recording methods are safe on a nil *Metrics.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dblab"

// Metrics holds the collectors for one provisioning run.
type Metrics struct {
	Registry *prometheus.Registry

	unitsTotal   *prometheus.CounterVec
	unitDuration *prometheus.HistogramVec
	apiCalls     *prometheus.CounterVec
	apiRetries   *prometheus.CounterVec
}

// New creates the collectors and registers them in a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		unitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "provisioning",
				Name:      "units_total",
				Help:      "Total number of provisioning units by kind and result",
			},
			[]string{"kind", "result"},
		),
		unitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "provisioning",
				Name:      "unit_duration_seconds",
				Help:      "Duration of provisioning units in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34min
			},
			[]string{"kind"},
		),
		apiCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cloud",
				Name:      "api_calls_total",
				Help:      "Total number of cloud API calls by operation and result",
			},
			[]string{"operation", "result"},
		),
		apiRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cloud",
				Name:      "api_retries_total",
				Help:      "Total number of cloud API retries by operation and error class",
			},
			[]string{"operation", "class"},
		),
	}

	m.Registry.MustRegister(m.unitsTotal, m.unitDuration, m.apiCalls, m.apiRetries)
	return m
}

// RecordUnit records the terminal result of a provisioning unit.
func (m *Metrics) RecordUnit(kind, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.unitsTotal.WithLabelValues(kind, result).Inc()
	m.unitDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordAPICall records the final outcome of a cloud API call.
func (m *Metrics) RecordAPICall(operation, result string) {
	if m == nil {
		return
	}
	m.apiCalls.WithLabelValues(operation, result).Inc()
}

// RecordRetry records one retry of a cloud API call.
func (m *Metrics) RecordRetry(operation, class string) {
	if m == nil {
		return
	}
	m.apiRetries.WithLabelValues(operation, class).Inc()
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}

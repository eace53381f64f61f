package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation outcomes recorded in the outcome label.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeCanceled = "canceled"
)

// GraphMetrics groups the instruments shared by every graph backend. A nil
// *GraphMetrics is valid and records nothing.
type GraphMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	retries    *prometheus.CounterVec
}

// NewGraphMetrics creates the graph instruments and registers them on reg.
// A nil reg creates unregistered instruments.
func NewGraphMetrics(reg prometheus.Registerer) *GraphMetrics {
	factory := promauto.With(reg)
	return &GraphMetrics{
		// Counts every contract call, labeled by backend, operation and outcome.
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scalpel_graph_operations_total",
				Help: "Total number of graph backend operations",
			},
			[]string{"backend", "operation", "outcome"},
		),
		// From sub-millisecond cached reads to multi-second deep traversals.
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scalpel_graph_operation_duration_seconds",
				Help:    "Duration of graph backend operations in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"backend", "operation"},
		),
		retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scalpel_graph_connection_retries_total",
				Help: "Total number of connection-level retries",
			},
			[]string{"backend"},
		),
	}
}

// ObserveOperation records one finished operation.
func (m *GraphMetrics) ObserveOperation(backend, operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(backend, operation, outcome).Inc()
	m.duration.WithLabelValues(backend, operation).Observe(elapsed.Seconds())
}

// IncRetry records one retry of a connection failure.
func (m *GraphMetrics) IncRetry(backend string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(backend).Inc()
}

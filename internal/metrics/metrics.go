// Package metrics groups the Prometheus instruments exported by the SDK.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups all Prometheus instruments used by the client.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	ProcessorFailures *prometheus.CounterVec
	EmbeddingCalls    prometheus.Counter
	BatchItems        *prometheus.CounterVec
}

// New registers the SDK instruments with reg. Pass a fresh
// prometheus.NewRegistry per client to avoid duplicate registration;
// nil uses the default registerer.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		OperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Client operations by name and status.",
		}, []string{"op", "status"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_ms",
			Help:      "Client operation latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"op"}),
		ProcessorFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "processor_failures_total",
			Help:      "Processor failures by processor name.",
		}, []string{"processor"}),
		EmbeddingCalls: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_calls_total",
			Help:      "Embedding service invocations.",
		}),
		BatchItems: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_items_total",
			Help:      "Batch save items by outcome.",
		}, []string{"status"}),
	}
}

// ObserveOp records one finished operation with its outcome and latency.
func (m *Metrics) ObserveOp(op string, err error, began time.Time) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.OperationsTotal.WithLabelValues(op, status).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(float64(time.Since(began).Milliseconds()))
}

// Package metrics exports model lifecycle metrics through Prometheus.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder records operation outcomes and registry occupancy on its own
// Prometheus registry, so several registries can coexist in one process.
type Recorder struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec
	cachedModels      prometheus.Gauge
	registry          *prometheus.Registry
}

// NewRecorder creates a recorder with a fresh registry.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()

	operationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelcore_operations_total",
			Help: "Total number of lifecycle operations by operation and status",
		},
		[]string{"operation", "status"},
	)
	operationDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "modelcore_operation_duration_seconds",
			Help:    "Duration of lifecycle operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"operation"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelcore_errors_total",
			Help: "Total number of failed operations by operation and error type",
		},
		[]string{"operation", "error_type"},
	)
	cachedModels := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "modelcore_cached_models",
		Help: "Number of live model instances held by the registry",
	})

	registry.MustRegister(operationsTotal, operationDuration, errorsTotal, cachedModels)

	return &Recorder{
		operationsTotal:   operationsTotal,
		operationDuration: operationDuration,
		errorsTotal:       errorsTotal,
		cachedModels:      cachedModels,
		registry:          registry,
	}
}

// Observe records one operation outcome.
func (r *Recorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.operationsTotal.WithLabelValues(operation, status).Inc()
	r.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordError counts a failure by its taxonomy name.
func (r *Recorder) RecordError(_ context.Context, operation, errorType string) {
	r.errorsTotal.WithLabelValues(operation, errorType).Inc()
}

// CachedModels sets the live instance gauge.
func (r *Recorder) CachedModels(n int) {
	r.cachedModels.Set(float64(n))
}

// Registry returns the Prometheus registry for HTTP exposure.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"gardenkeep/internal/core"
)

// PrometheusRecorder counts and times service operations.
type PrometheusRecorder struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var _ core.MetricsRecorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder registers its collectors with reg. Passing
// prometheus.DefaultRegisterer exposes them on the default /metrics handler.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gardenkeep",
			Subsystem: "service",
			Name:      "operations_total",
			Help:      "Service operations by name and result.",
		}, []string{"operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gardenkeep",
			Subsystem: "service",
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	for _, c := range []prometheus.Collector{r.total, r.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe implements core.MetricsRecorder.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, d time.Duration) {
	if operation == "" {
		return
	}
	result := "error"
	if success {
		result = "success"
	}
	r.total.WithLabelValues(operation, result).Inc()
	r.duration.WithLabelValues(operation).Observe(d.Seconds())
}

// FanOut sends each observation to every recorder.
type FanOut []core.MetricsRecorder

// Observe implements core.MetricsRecorder.
func (f FanOut) Observe(ctx context.Context, operation string, success bool, d time.Duration) {
	for _, r := range f {
		if r != nil {
			r.Observe(ctx, operation, success, d)
		}
	}
}

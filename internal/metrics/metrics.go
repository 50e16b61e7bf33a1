// Package metrics exposes Prometheus counters for the job lifecycle.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the job lifecycle instruments.
type Metrics struct {
	JobsSubmitted     *prometheus.CounterVec
	JobsCompleted     *prometheus.CounterVec
	JobsFailed        *prometheus.CounterVec
	ModelCallDuration *prometheus.HistogramVec
}

// New registers the instruments against reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		JobsSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pickflow_jobs_submitted_total",
			Help: "Jobs accepted by the submit endpoint.",
		}, []string{"model"}),
		JobsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pickflow_jobs_completed_total",
			Help: "Jobs that reached the completed state.",
		}, []string{"model"}),
		JobsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pickflow_jobs_failed_total",
			Help: "Jobs that reached the failed state.",
		}, []string{"model"}),
		ModelCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pickflow_model_call_duration_seconds",
			Help:    "Wall time of external model endpoint calls.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"model"}),
	}
}

// Handler serves the metrics registered against g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

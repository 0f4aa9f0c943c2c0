// Package monitoring records query and operator metrics with Prometheus
// and summarizes them for health reporting.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric names.
const (
	MetricQueries          = "geoquery_queries_total"
	MetricOperatorResults  = "geoquery_operator_results_total"
	MetricOperatorDuration = "geoquery_operator_duration_seconds"
	MetricRegionFetches    = "geoquery_region_fetches_total"
)

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	queries  *prometheus.CounterVec
	results  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	fetches  *prometheus.CounterVec
	gatherer prometheus.Gatherer
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		queries: f.NewCounterVec(prometheus.CounterOpts{
			Name: MetricQueries,
			Help: "Queries handled, by routed step.",
		}, []string{"route"}),
		results: f.NewCounterVec(prometheus.CounterOpts{
			Name: MetricOperatorResults,
			Help: "Operator runs, by operator and result status.",
		}, []string{"operator", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricOperatorDuration,
			Help:    "Operator run time in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"operator"}),
		fetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRegionFetches,
			Help: "Region artifact resolutions, by artifact and source (cache or provider).",
		}, []string{"artifact", "source"}),
		gatherer: reg,
	}
}

// ObserveQuery counts a query routed to route.
func (m *Metrics) ObserveQuery(route string) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(route).Inc()
}

// ObserveResult records one operator run.
func (m *Metrics) ObserveResult(operator, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(operator, status).Inc()
	m.duration.WithLabelValues(operator).Observe(elapsed.Seconds())
}

// ObserveFetch counts a boundary or DEM resolution.
func (m *Metrics) ObserveFetch(artifact, source string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(artifact, source).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Snapshot summarizes the recorded metrics.
func (m *Metrics) Snapshot() (*MetricsSnapshot, error) {
	if m == nil {
		return &MetricsSnapshot{CollectedAt: time.Now().UTC()}, nil
	}
	return Collect(m.gatherer)
}

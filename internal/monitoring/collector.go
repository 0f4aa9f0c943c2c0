package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rotisserie/eris"
)

// MetricsSnapshot holds a point-in-time view of service activity.
type MetricsSnapshot struct {
	Queries int            `json:"queries"`
	Routes  map[string]int `json:"routes,omitempty"`

	OperatorSuccess int     `json:"operator_success"`
	OperatorEmpty   int     `json:"operator_empty"`
	OperatorError   int     `json:"operator_error"`
	ErrorRate       float64 `json:"error_rate"`

	CacheHits       int `json:"cache_hits"`
	ProviderFetches int `json:"provider_fetches"`

	CollectedAt time.Time `json:"collected_at"`
}

// Collect builds a snapshot from the metric families in g.
func Collect(g prometheus.Gatherer) (*MetricsSnapshot, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: gather metrics")
	}

	snap := &MetricsSnapshot{
		Routes:      make(map[string]int),
		CollectedAt: time.Now().UTC(),
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			n := int(m.GetCounter().GetValue())
			switch mf.GetName() {
			case MetricQueries:
				snap.Queries += n
				snap.Routes[label(m, "route")] += n
			case MetricOperatorResults:
				switch label(m, "status") {
				case "success":
					snap.OperatorSuccess += n
				case "empty":
					snap.OperatorEmpty += n
				case "error":
					snap.OperatorError += n
				}
			case MetricRegionFetches:
				if label(m, "source") == "cache" {
					snap.CacheHits += n
				} else {
					snap.ProviderFetches += n
				}
			}
		}
	}

	if total := snap.OperatorSuccess + snap.OperatorEmpty + snap.OperatorError; total > 0 {
		snap.ErrorRate = float64(snap.OperatorError) / float64(total)
	}
	return snap, nil
}

func label(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// README: Prometheus metrics for search dispatch, enrichment, device reports and sessions.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nearby"

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	SearchesDispatched prometheus.Counter
	SearchCompletions  *prometheus.CounterVec // labels: outcome={success,error,stale}
	SearchDuration     prometheus.Histogram
	PlacesDropped      prometheus.Counter

	Enrichments *prometheus.CounterVec // labels: outcome={success,error,discarded}

	LocationReports *prometheus.CounterVec // labels: outcome={accepted,invalid,throttled,error}

	ActiveSessions prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.SearchesDispatched,
		m.SearchCompletions,
		m.SearchDuration,
		m.PlacesDropped,
		m.Enrichments,
		m.LocationReports,
		m.ActiveSessions,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests can
// build as many instances as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SearchesDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_dispatched_total",
			Help:      "Place searches handed to the provider.",
		}),
		SearchCompletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_completions_total",
			Help:      "Provider search completions by outcome.",
		}, []string{"outcome"}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Place provider round-trip duration.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		PlacesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "places_dropped_total",
			Help:      "Provider places discarded for missing coordinates.",
		}),
		Enrichments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichments_total",
			Help:      "ETA enrichments by outcome.",
		}, []string{"outcome"}),
		LocationReports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_reports_total",
			Help:      "Device location reports by outcome.",
		}, []string{"outcome"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Search sessions currently held in memory.",
		}),
	}
}

// README: Enrichment manager fetches driving ETAs and merges them back by result ID.
package search

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"nearby/internal/observability"
	"nearby/internal/types"
)

// RouteProvider estimates travel time between two points.
type RouteProvider interface {
	Estimate(ctx context.Context, origin, destination types.Point, mode types.TravelMode) (time.Duration, error)
}

type EnrichmentManager struct {
	routes  RouteProvider
	logger  logrus.FieldLogger
	metrics *observability.Metrics
	timeout time.Duration
}

func NewEnrichmentManager(routes RouteProvider, logger logrus.FieldLogger, metrics *observability.Metrics) *EnrichmentManager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	return &EnrichmentManager{
		routes:  routes,
		logger:  logger.WithField("component", "enrichment"),
		metrics: metrics,
		timeout: 15 * time.Second,
	}
}

// start requests a driving ETA in the background and hands a successful
// estimate to deliver. Failures are logged and never delivered.
func (m *EnrichmentManager) start(ctx context.Context, id types.ID, origin, destination types.Point, deliver func(time.Duration)) {
	go func() {
		ctx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()

		eta, err := m.routes.Estimate(ctx, origin, destination, types.TravelModeDriving)
		if err != nil {
			m.metrics.Enrichments.WithLabelValues("error").Inc()
			m.logger.WithError(err).WithField("result_id", id).Warn("eta request failed")
			return
		}
		deliver(eta)
	}()
}

// applyETA returns a copy of results with the ETA set on the entry matching
// id, and false when no entry matches.
func applyETA(results []Result, id types.ID, eta time.Duration) ([]Result, bool) {
	for i := range results {
		if results[i].ID != id {
			continue
		}
		out := make([]Result, len(results))
		copy(out, results)
		out[i].ETA = &eta
		return out, true
	}
	return results, false
}

// README: Location service accepts device reports with per-device throttling.
package location

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"nearby/internal/observability"
	"nearby/internal/types"
)

type Service struct {
	store   *Store
	clock   clockwork.Clock
	logger  logrus.FieldLogger
	metrics *observability.Metrics

	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[types.ID]*rate.Limiter
}

type ServiceConfig struct {
	// ReportsPerSecond caps location reports per device. Zero disables throttling.
	ReportsPerSecond float64
	Burst            int
	Clock            clockwork.Clock
	Logger           logrus.FieldLogger
	Metrics          *observability.Metrics
}

func NewService(store *Store, cfg ServiceConfig) *Service {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewMetricsForTesting()
	}
	limit := rate.Inf
	if cfg.ReportsPerSecond > 0 {
		limit = rate.Limit(cfg.ReportsPerSecond)
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	return &Service{
		store:    store,
		clock:    cfg.Clock,
		logger:   cfg.Logger.WithField("component", "location_service"),
		metrics:  cfg.Metrics,
		limit:    limit,
		burst:    cfg.Burst,
		limiters: make(map[types.ID]*rate.Limiter),
	}
}

// ReportLocation stores a device fix. A zero RecordedAt is stamped with the
// current time.
func (s *Service) ReportLocation(ctx context.Context, u Update) error {
	if !u.Point.Valid() {
		s.metrics.LocationReports.WithLabelValues("invalid").Inc()
		return ErrInvalidPoint
	}
	now := s.clock.Now()
	if !s.limiter(u.DeviceID).AllowN(now, 1) {
		s.metrics.LocationReports.WithLabelValues("throttled").Inc()
		return ErrThrottled
	}
	recorded := u.RecordedAt
	if recorded.IsZero() || recorded.After(now) {
		recorded = now
	}
	if err := s.store.SetFix(ctx, u.DeviceID, Sample{Point: u.Point, RecordedAt: recorded}); err != nil {
		s.metrics.LocationReports.WithLabelValues("error").Inc()
		return err
	}
	s.metrics.LocationReports.WithLabelValues("accepted").Inc()
	return nil
}

func (s *Service) ReportPermission(ctx context.Context, id types.ID, state PermissionState) error {
	if err := s.store.SetPermission(ctx, id, state); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{"device_id": id, "permission": state}).Info("device permission reported")
	return nil
}

// TakePrompt reports whether the device should show the permission prompt.
func (s *Service) TakePrompt(ctx context.Context, id types.ID) (bool, error) {
	return s.store.TakePrompt(ctx, id)
}

func (s *Service) limiter(id types.ID) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[id]
	if !ok {
		l = rate.NewLimiter(s.limit, s.burst)
		s.limiters[id] = l
	}
	return l
}

// Forget drops the limiter for a device whose session ended.
func (s *Service) Forget(id types.ID) {
	s.mu.Lock()
	delete(s.limiters, id)
	s.mu.Unlock()
}


// README: Session manager creates per-user sessions on demand and evicts idle ones.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"nearby/internal/modules/location"
	"nearby/internal/modules/search"
	"nearby/internal/observability"
	"nearby/internal/types"
)

type Config struct {
	// Search is the template for every coordinator; Clock, Logger and
	// Metrics are filled in by the manager.
	Search       search.Options
	IdleTTL      time.Duration
	PollInterval time.Duration
	MaxFixAge    time.Duration
	Clock        clockwork.Clock
	Logger       logrus.FieldLogger
	Metrics      *observability.Metrics
	// OnEvict runs after a session is torn down.
	OnEvict func(uid types.ID)
}

type Manager struct {
	places   search.PlaceSearcher
	enricher *search.EnrichmentManager
	devices  location.DeviceStore
	cfg      Config
	logger   logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[types.ID]*Session
	closed   bool
}

func NewManager(places search.PlaceSearcher, enricher *search.EnrichmentManager, devices location.DeviceStore, cfg Config) *Manager {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 15 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewMetricsForTesting()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		places:   places,
		enricher: enricher,
		devices:  devices,
		cfg:      cfg,
		logger:   cfg.Logger.WithField("component", "session"),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[types.ID]*Session),
	}
}

// Get returns the user's session, creating and starting it when needed.
func (m *Manager) Get(ctx context.Context, uid types.ID) (*Session, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if s, ok := m.sessions[uid]; ok {
		s.lastSeen = m.cfg.Clock.Now()
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	initial, err := m.devices.Permission(ctx, uid)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if s, ok := m.sessions[uid]; ok {
		s.lastSeen = m.cfg.Clock.Now()
		return s, nil
	}
	s, err := m.start(uid, initial)
	if err != nil {
		return nil, err
	}
	m.sessions[uid] = s
	m.cfg.Metrics.ActiveSessions.Inc()
	return s, nil
}

// Touch keeps a session alive without other activity.
func (m *Manager) Touch(uid types.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[uid]; ok {
		s.lastSeen = m.cfg.Clock.Now()
	}
}

func (m *Manager) start(uid types.ID, initial location.PermissionState) (*Session, error) {
	logger := m.cfg.Logger.WithField("user_id", uid)
	platform := location.NewDevicePlatform(m.devices, uid, initial,
		location.WithPollInterval(m.cfg.PollInterval),
		location.WithMaxFixAge(m.cfg.MaxFixAge),
		location.WithDeviceClock(m.cfg.Clock),
		location.WithDeviceLogger(logger),
	)
	src := location.NewSource(platform, initial, logger)

	opts := m.cfg.Search
	opts.Clock = m.cfg.Clock
	opts.Logger = logger
	opts.Metrics = m.cfg.Metrics
	coord := search.NewCoordinator(m.places, m.enricher, opts)

	ctx, cancel := context.WithCancel(m.ctx)
	go platform.Run(ctx)
	go func() { _ = coord.Run(ctx) }()

	if err := coord.ConnectLocationSource(src); err != nil {
		cancel()
		return nil, err
	}
	m.logger.WithField("user_id", uid).Info("session started")
	return &Session{
		UserID:      uid,
		Source:      src,
		Coordinator: coord,
		cancel:      cancel,
		lastSeen:    m.cfg.Clock.Now(),
	}, nil
}

// Run evicts idle sessions until ctx is done, then closes the manager.
func (m *Manager) Run(ctx context.Context) {
	ticker := m.cfg.Clock.NewTicker(m.cfg.IdleTTL / 4)
	defer ticker.Stop()
	defer m.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.evictIdle()
		}
	}
}

func (m *Manager) evictIdle() {
	cutoff := m.cfg.Clock.Now().Add(-m.cfg.IdleTTL)
	var evicted []types.ID

	m.mu.Lock()
	for uid, s := range m.sessions {
		if s.lastSeen.Before(cutoff) {
			s.cancel()
			delete(m.sessions, uid)
			evicted = append(evicted, uid)
		}
	}
	m.mu.Unlock()

	for _, uid := range evicted {
		m.cfg.Metrics.ActiveSessions.Dec()
		m.logger.WithField("user_id", uid).Info("session evicted")
		if m.cfg.OnEvict != nil {
			m.cfg.OnEvict(uid)
		}
	}
}

// Close stops every session. Get returns ErrClosed afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.cancel()
	m.cfg.Metrics.ActiveSessions.Sub(float64(len(m.sessions)))
	m.sessions = make(map[types.ID]*Session)
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

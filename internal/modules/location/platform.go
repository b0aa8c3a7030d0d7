// README: Platform adapters: a fixed-point platform and a Redis-backed device bridge.
package location

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"nearby/internal/types"
)

// StaticPlatform answers every authorization request with a fixed decision
// and yields the same point on every acquisition cycle.
type StaticPlatform struct {
	point types.Point
	grant PermissionState
	clock clockwork.Clock

	mu   sync.Mutex
	recv Receiver
}

func NewStaticPlatform(point types.Point, grant PermissionState, clock clockwork.Clock) *StaticPlatform {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &StaticPlatform{point: point, grant: grant, clock: clock}
}

func (p *StaticPlatform) Attach(r Receiver) {
	p.mu.Lock()
	p.recv = r
	p.mu.Unlock()
}

func (p *StaticPlatform) RequestAuthorization(context.Context) error {
	if r := p.receiver(); r != nil {
		r.HandleAuthorization(p.grant)
	}
	return nil
}

func (p *StaticPlatform) StartUpdating() {
	if r := p.receiver(); r != nil {
		r.HandleSample(Sample{Point: p.point, RecordedAt: p.clock.Now()})
	}
}

func (p *StaticPlatform) StopUpdating() {}

func (p *StaticPlatform) receiver() Receiver {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recv
}

// DeviceStore is the subset of Store the device platform polls.
type DeviceStore interface {
	Permission(ctx context.Context, id types.ID) (PermissionState, error)
	LastFix(ctx context.Context, id types.ID) (Sample, bool, error)
	RequestPrompt(ctx context.Context, id types.ID) error
}

type DeviceOption func(*DevicePlatform)

func WithPollInterval(d time.Duration) DeviceOption {
	return func(p *DevicePlatform) { p.interval = d }
}

// WithMaxFixAge accepts fixes recorded up to d before the cycle started.
func WithMaxFixAge(d time.Duration) DeviceOption {
	return func(p *DevicePlatform) { p.maxFixAge = d }
}

func WithDeviceClock(c clockwork.Clock) DeviceOption {
	return func(p *DevicePlatform) { p.clock = c }
}

func WithDeviceLogger(l logrus.FieldLogger) DeviceOption {
	return func(p *DevicePlatform) { p.logger = l }
}

// DevicePlatform bridges a remote device that reports permission and fixes
// into the Store. Run polls the store and turns changes into callbacks.
type DevicePlatform struct {
	store     DeviceStore
	device    types.ID
	clock     clockwork.Clock
	interval  time.Duration
	maxFixAge time.Duration
	logger    logrus.FieldLogger

	mu          sync.Mutex
	recv        Receiver
	permission  PermissionState
	updating    bool
	cycleStart  time.Time
	lastFixSeen time.Time
}

func NewDevicePlatform(store DeviceStore, device types.ID, initial PermissionState, opts ...DeviceOption) *DevicePlatform {
	p := &DevicePlatform{
		store:      store,
		device:     device,
		clock:      clockwork.NewRealClock(),
		interval:   time.Second,
		logger:     logrus.StandardLogger(),
		permission: initial,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithField("device_id", device)
	return p
}

func (p *DevicePlatform) Attach(r Receiver) {
	p.mu.Lock()
	p.recv = r
	p.mu.Unlock()
}

// RequestAuthorization flags the device to prompt. The answer arrives later
// through the store.
func (p *DevicePlatform) RequestAuthorization(ctx context.Context) error {
	return p.store.RequestPrompt(ctx, p.device)
}

func (p *DevicePlatform) StartUpdating() {
	p.mu.Lock()
	p.updating = true
	p.cycleStart = p.clock.Now()
	p.mu.Unlock()
}

func (p *DevicePlatform) StopUpdating() {
	p.mu.Lock()
	p.updating = false
	p.mu.Unlock()
}

// Run polls until ctx is done.
func (p *DevicePlatform) Run(ctx context.Context) {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			p.Poll(ctx)
		}
	}
}

// Poll runs a single store check.
func (p *DevicePlatform) Poll(ctx context.Context) {
	p.mu.Lock()
	recv := p.recv
	p.mu.Unlock()
	if recv == nil {
		return
	}

	state, err := p.store.Permission(ctx, p.device)
	if err != nil {
		recv.HandleError(err)
		return
	}

	p.mu.Lock()
	changed := state != p.permission
	p.permission = state
	p.mu.Unlock()
	if changed {
		recv.HandleAuthorization(state)
	}

	p.mu.Lock()
	updating, since, lastSeen := p.updating, p.cycleStart.Add(-p.maxFixAge), p.lastFixSeen
	p.mu.Unlock()
	if !updating {
		return
	}

	fix, ok, err := p.store.LastFix(ctx, p.device)
	if err != nil {
		recv.HandleError(err)
		return
	}
	if !ok || fix.RecordedAt.Before(since) || !fix.RecordedAt.After(lastSeen) {
		return
	}

	p.mu.Lock()
	p.lastFixSeen = fix.RecordedAt
	p.mu.Unlock()
	p.logger.WithField("recorded_at", fix.RecordedAt).Debug("delivering device fix")
	recv.HandleSample(fix)
}

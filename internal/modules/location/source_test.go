package location

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nearby/internal/types"
)

// manualPlatform records calls; tests drive callbacks on the source directly.
type manualPlatform struct {
	mu       sync.Mutex
	recv     Receiver
	prompts  int
	starts   int
	stops    int
	updating bool
}

func (p *manualPlatform) Attach(r Receiver) { p.recv = r }

func (p *manualPlatform) RequestAuthorization(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts++
	return nil
}

func (p *manualPlatform) StartUpdating() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.starts++
	p.updating = true
}

func (p *manualPlatform) StopUpdating() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	p.updating = false
}

func (p *manualPlatform) counts() (prompts, starts, stops int, updating bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prompts, p.starts, p.stops, p.updating
}

func newTestSource(initial PermissionState) (*Source, *manualPlatform) {
	logger, _ := logtest.NewNullLogger()
	p := &manualPlatform{}
	return NewSource(p, initial, logger), p
}

func sampleAt(lat, lng float64) Sample {
	return Sample{Point: types.Point{Lat: lat, Lng: lng}, RecordedAt: time.Unix(1700000000, 0)}
}

func TestSource_RequestAccessOnlyWhenUndetermined(t *testing.T) {
	for _, tc := range []struct {
		state   PermissionState
		prompts int
	}{
		{PermissionNotDetermined, 1},
		{PermissionUnknown, 1},
		{PermissionDenied, 0},
		{PermissionRestricted, 0},
		{PermissionAuthorized, 0},
	} {
		t.Run(string(tc.state), func(t *testing.T) {
			src, p := newTestSource(tc.state)
			require.NoError(t, src.RequestAccess(context.Background()))
			prompts, _, _, _ := p.counts()
			assert.Equal(t, tc.prompts, prompts)
		})
	}
}

func TestSource_AuthorizationStartsSingleCycle(t *testing.T) {
	src, p := newTestSource(PermissionNotDetermined)

	src.HandleAuthorization(PermissionAuthorized)
	src.HandleAuthorization(PermissionAuthorized)

	_, starts, _, updating := p.counts()
	assert.Equal(t, 1, starts)
	assert.True(t, updating)
	assert.Equal(t, PermissionAuthorized, src.PermissionState())
}

func TestSource_FirstSampleEndsCycleAndNotifies(t *testing.T) {
	src, p := newTestSource(PermissionNotDetermined)
	ch, unsubscribe := src.Subscribe()
	defer unsubscribe()

	src.HandleAuthorization(PermissionAuthorized)
	src.HandleSample(sampleAt(1, 2))
	src.HandleSample(sampleAt(3, 4))

	got, ok := src.CurrentSample()
	require.True(t, ok)
	assert.Equal(t, 1.0, got.Point.Lat, "second sample arrived after the cycle ended")

	_, _, stops, updating := p.counts()
	assert.Equal(t, 1, stops)
	assert.False(t, updating)

	select {
	case s := <-ch:
		assert.Equal(t, 1.0, s.Point.Lat)
	default:
		t.Fatal("subscriber was not notified")
	}
	select {
	case s := <-ch:
		t.Fatalf("unexpected second notification: %+v", s)
	default:
	}
}

func TestSource_InitialAuthorizedStartsAcquisition(t *testing.T) {
	_, p := newTestSource(PermissionAuthorized)
	_, starts, _, _ := p.counts()
	assert.Equal(t, 1, starts)
}

func TestSource_DenialClearsSample(t *testing.T) {
	src, p := newTestSource(PermissionAuthorized)
	src.HandleSample(sampleAt(1, 2))
	_, ok := src.CurrentSample()
	require.True(t, ok)

	src.HandleAuthorization(PermissionDenied)

	_, ok = src.CurrentSample()
	assert.False(t, ok)
	assert.Equal(t, PermissionDenied, src.PermissionState())
	_, _, _, updating := p.counts()
	assert.False(t, updating)
}

// transitionHook runs fn once, in the middle of the source logging a
// permission change to the given state.
type transitionHook struct {
	to   PermissionState
	once sync.Once
	fn   func()
}

func (h *transitionHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *transitionHook) Fire(e *logrus.Entry) error {
	if e.Message == "location permission changed" && e.Data["to"] == h.to {
		h.once.Do(h.fn)
	}
	return nil
}

func TestSource_OvertakenStopIsNotSent(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	p := &manualPlatform{}
	src := NewSource(p, PermissionAuthorized, logger)

	// The re-grant lands after the denial decided to stop the platform but
	// before the stop was sent.
	logger.AddHook(&transitionHook{to: PermissionDenied, fn: func() {
		src.HandleAuthorization(PermissionAuthorized)
	}})
	src.HandleAuthorization(PermissionDenied)

	_, starts, stops, updating := p.counts()
	assert.Equal(t, 2, starts)
	assert.Zero(t, stops)
	assert.True(t, updating, "platform must keep running for the newer grant")
	assert.Equal(t, PermissionAuthorized, src.PermissionState())
}

func TestSource_SampleDroppedWhenNotAuthorized(t *testing.T) {
	src, _ := newTestSource(PermissionRestricted)
	src.HandleSample(sampleAt(1, 2))
	_, ok := src.CurrentSample()
	assert.False(t, ok)
}

func TestSource_BeginAcquisition(t *testing.T) {
	src, p := newTestSource(PermissionDenied)
	assert.ErrorIs(t, src.BeginAcquisition(), ErrNotAuthorized)

	src.HandleAuthorization(PermissionAuthorized)
	src.HandleSample(sampleAt(1, 2))
	require.NoError(t, src.BeginAcquisition())
	require.NoError(t, src.BeginAcquisition())
	_, starts, _, _ := p.counts()
	assert.Equal(t, 2, starts)

	src.HandleSample(sampleAt(5, 6))
	got, _ := src.CurrentSample()
	assert.Equal(t, 5.0, got.Point.Lat)
}

func TestSource_UnsubscribeIsIdempotent(t *testing.T) {
	src, _ := newTestSource(PermissionAuthorized)
	ch, unsubscribe := src.Subscribe()
	unsubscribe()
	unsubscribe()

	src.HandleSample(sampleAt(1, 2))
	select {
	case <-ch:
		t.Fatal("unsubscribed channel received a sample")
	default:
	}
}

func TestSource_ErrorsAreLogged(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	src := NewSource(&manualPlatform{}, PermissionAuthorized, logger)

	src.HandleError(errors.New("gps unavailable"))

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	_, ok := src.CurrentSample()
	assert.False(t, ok)
}

func TestStaticPlatform_GrantsAndDelivers(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	point := types.Point{Lat: 25.04, Lng: 121.56}
	src := NewSource(NewStaticPlatform(point, PermissionAuthorized, nil), PermissionNotDetermined, logger)

	require.NoError(t, src.RequestAccess(context.Background()))

	assert.Equal(t, PermissionAuthorized, src.PermissionState())
	got, ok := src.CurrentSample()
	require.True(t, ok)
	assert.Equal(t, point, got.Point)
}

func TestStaticPlatform_Denied(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	src := NewSource(NewStaticPlatform(types.Point{}, PermissionDenied, nil), PermissionNotDetermined, logger)

	require.NoError(t, src.RequestAccess(context.Background()))

	assert.Equal(t, PermissionDenied, src.PermissionState())
	_, ok := src.CurrentSample()
	assert.False(t, ok)
}

// README: Location source tracks permission and delivers one fix per acquisition cycle.
package location

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"nearby/internal/notify"
)

// Platform is the underlying location service. Implementations report back
// through the Receiver they were attached to.
type Platform interface {
	Attach(r Receiver)
	RequestAuthorization(ctx context.Context) error
	StartUpdating()
	StopUpdating()
}

// Receiver accepts platform callbacks.
type Receiver interface {
	HandleAuthorization(state PermissionState)
	HandleSample(sample Sample)
	HandleError(err error)
}

// Source owns the permission state and the most recent sample. It never
// calls into the platform while holding its lock, so platforms may deliver
// callbacks synchronously. Each start or stop decision is stamped with cmdSeq
// under the lock; a decision overtaken by a later one is not sent.
type Source struct {
	platform Platform
	logger   logrus.FieldLogger

	mu        sync.Mutex
	state     PermissionState
	sample    *Sample
	acquiring bool
	cmdSeq    uint64
	subs      map[uint64]chan Sample
	nextSub   uint64
}

func NewSource(platform Platform, initial PermissionState, logger logrus.FieldLogger) *Source {
	s := &Source{
		platform: platform,
		logger:   logger.WithField("component", "location_source"),
		state:    initial,
		subs:     make(map[uint64]chan Sample),
	}
	platform.Attach(s)
	if initial == PermissionAuthorized {
		s.acquiring = true
		platform.StartUpdating()
	}
	return s
}

func (s *Source) PermissionState() PermissionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentSample returns the last fix, and false when there is none.
func (s *Source) CurrentSample() (Sample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sample == nil {
		return Sample{}, false
	}
	return *s.sample, true
}

// RequestAccess asks the platform to prompt the user. It does nothing once
// the user has answered.
func (s *Source) RequestAccess(ctx context.Context) error {
	state := s.PermissionState()
	if state != PermissionNotDetermined && state != PermissionUnknown {
		return nil
	}
	return s.platform.RequestAuthorization(ctx)
}

// BeginAcquisition starts a fresh acquisition cycle. Calling it while a cycle
// is running is a no-op.
func (s *Source) BeginAcquisition() error {
	s.mu.Lock()
	if s.state != PermissionAuthorized {
		s.mu.Unlock()
		return ErrNotAuthorized
	}
	if s.acquiring {
		s.mu.Unlock()
		return nil
	}
	s.acquiring = true
	seq := s.nextCommand()
	s.mu.Unlock()

	s.command(seq, s.platform.StartUpdating)
	return nil
}

// Subscribe returns a channel that always holds the latest sample not yet
// read. The returned func is safe to call more than once.
func (s *Source) Subscribe() (<-chan Sample, func()) {
	ch := make(chan Sample, 1)
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Source) HandleAuthorization(state PermissionState) {
	s.mu.Lock()
	prev := s.state
	s.state = state

	var cmd func()
	if state == PermissionAuthorized {
		if prev != PermissionAuthorized && !s.acquiring {
			s.acquiring = true
			cmd = s.platform.StartUpdating
		}
	} else {
		s.sample = nil
		if s.acquiring || prev == PermissionAuthorized {
			cmd = s.platform.StopUpdating
		}
		s.acquiring = false
	}
	var seq uint64
	if cmd != nil {
		seq = s.nextCommand()
	}
	s.mu.Unlock()

	if prev != state {
		s.logger.WithFields(logrus.Fields{"from": prev, "to": state}).Info("location permission changed")
	}
	if cmd != nil {
		s.command(seq, cmd)
	}
}

func (s *Source) HandleSample(sample Sample) {
	s.mu.Lock()
	if s.state != PermissionAuthorized || !s.acquiring {
		state := s.state
		s.mu.Unlock()
		s.logger.WithField("state", state).Debug("dropping sample outside acquisition")
		return
	}
	s.sample = &sample
	s.acquiring = false
	for _, ch := range s.subs {
		notify.Latest(ch, sample)
	}
	seq := s.nextCommand()
	s.mu.Unlock()

	s.command(seq, s.platform.StopUpdating)
}

func (s *Source) HandleError(err error) {
	s.logger.WithError(err).Warn("location acquisition failed")
}

// nextCommand stamps a platform decision. Callers hold s.mu.
func (s *Source) nextCommand() uint64 {
	s.cmdSeq++
	return s.cmdSeq
}

// command sends fn to the platform unless a later decision was stamped after
// seq. The platform is expected to deliver callbacks one at a time; this
// only guards against a delayed caller undoing a newer transition.
func (s *Source) command(seq uint64, fn func()) {
	s.mu.Lock()
	current := s.cmdSeq == seq
	s.mu.Unlock()
	if current {
		fn()
	}
}

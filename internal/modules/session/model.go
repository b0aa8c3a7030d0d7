// README: A session pairs one user's location source with their search coordinator.
package session

import (
	"context"
	"errors"
	"time"

	"nearby/internal/modules/location"
	"nearby/internal/modules/search"
	"nearby/internal/types"
)

var ErrClosed = errors.New("session manager closed")

type Session struct {
	UserID      types.ID
	Source      *location.Source
	Coordinator *search.Coordinator

	cancel   context.CancelFunc
	lastSeen time.Time
}

// Done is closed when the session has been evicted or the manager closed.
func (s *Session) Done() <-chan struct{} {
	return s.Coordinator.Done()
}

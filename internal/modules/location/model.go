// README: Location permission states, samples and device reports.
package location

import (
	"errors"
	"fmt"
	"time"

	"nearby/internal/types"
)

type PermissionState string

const (
	PermissionUnknown       PermissionState = "unknown"
	PermissionNotDetermined PermissionState = "not_determined"
	PermissionDenied        PermissionState = "denied"
	PermissionRestricted    PermissionState = "restricted"
	PermissionAuthorized    PermissionState = "authorized"
)

var (
	ErrUnknownPermission = errors.New("unknown permission state")
	ErrInvalidPoint      = errors.New("invalid coordinates")
	ErrThrottled         = errors.New("location report throttled")
	ErrNotAuthorized     = errors.New("location access not authorized")
)

// ParsePermissionState maps the wire form of a permission state.
func ParsePermissionState(v string) (PermissionState, error) {
	switch s := PermissionState(v); s {
	case PermissionUnknown, PermissionNotDetermined, PermissionDenied, PermissionRestricted, PermissionAuthorized:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPermission, v)
}

// Sample is a single device fix. It is never mutated after construction.
type Sample struct {
	Point      types.Point
	RecordedAt time.Time
}

// Update is a location report pushed by a device.
type Update struct {
	DeviceID   types.ID
	Point      types.Point
	RecordedAt time.Time
}

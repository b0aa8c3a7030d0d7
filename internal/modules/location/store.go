// README: Device location store backed by Redis GEO and per-device hashes.
package location

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"nearby/internal/types"
)

const (
	deviceGeoKey    = "location:devices"
	deviceKeyPrefix = "location:device:%s"

	fieldPermission = "permission"
	fieldFixTs      = "fix_ts"
	fieldPrompt     = "prompt"

	// Devices that stop reporting fall out of the store after a day.
	keyTTL = 24 * time.Hour
)

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

// SetPermission records the device's permission state. Any state other than
// Authorized also discards the last known fix.
func (s *Store) SetPermission(ctx context.Context, id types.ID, state PermissionState) error {
	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, deviceKey(id), fieldPermission, string(state))
	if state != PermissionAuthorized {
		pipe.HDel(ctx, deviceKey(id), fieldFixTs)
		pipe.ZRem(ctx, deviceGeoKey, string(id))
	}
	pipe.Expire(ctx, deviceKey(id), keyTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Permission returns PermissionUnknown for devices that never reported.
func (s *Store) Permission(ctx context.Context, id types.ID) (PermissionState, error) {
	val, err := s.redis.HGet(ctx, deviceKey(id), fieldPermission).Result()
	if err == redis.Nil {
		return PermissionUnknown, nil
	}
	if err != nil {
		return PermissionUnknown, err
	}
	return ParsePermissionState(val)
}

func (s *Store) SetFix(ctx context.Context, id types.ID, sample Sample) error {
	pipe := s.redis.TxPipeline()
	pipe.GeoAdd(ctx, deviceGeoKey, &redis.GeoLocation{
		Name:      string(id),
		Longitude: sample.Point.Lng,
		Latitude:  sample.Point.Lat,
	})
	pipe.HSet(ctx, deviceKey(id), fieldFixTs, sample.RecordedAt.UnixMilli())
	pipe.Expire(ctx, deviceKey(id), keyTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// LastFix returns the most recent fix for the device, and whether one exists.
func (s *Store) LastFix(ctx context.Context, id types.ID) (Sample, bool, error) {
	pos, err := s.redis.GeoPos(ctx, deviceGeoKey, string(id)).Result()
	if err != nil {
		return Sample{}, false, err
	}
	if len(pos) == 0 || pos[0] == nil {
		return Sample{}, false, nil
	}
	raw, err := s.redis.HGet(ctx, deviceKey(id), fieldFixTs).Result()
	if err == redis.Nil {
		return Sample{}, false, nil
	}
	if err != nil {
		return Sample{}, false, err
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Sample{}, false, fmt.Errorf("parse fix timestamp: %w", err)
	}
	return Sample{
		Point:      types.Point{Lat: pos[0].Latitude, Lng: pos[0].Longitude},
		RecordedAt: time.UnixMilli(ms).UTC(),
	}, true, nil
}

// RequestPrompt flags the device to show the OS permission prompt.
func (s *Store) RequestPrompt(ctx context.Context, id types.ID) error {
	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, deviceKey(id), fieldPrompt, "1")
	pipe.Expire(ctx, deviceKey(id), keyTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// TakePrompt clears a pending prompt request and reports whether one existed.
func (s *Store) TakePrompt(ctx context.Context, id types.ID) (bool, error) {
	n, err := s.redis.HDel(ctx, deviceKey(id), fieldPrompt).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func deviceKey(id types.ID) string {
	return fmt.Sprintf(deviceKeyPrefix, string(id))
}

package maps

import (
	"context"
	"fmt"
	"time"

	"googlemaps.github.io/maps"

	"nearby/internal/types"
)

// RouteService handles interactions with Google Directions API.
type RouteService struct {
	client   *maps.Client
	language string
	region   string
}

// NewRouteService creates a RouteService on top of a shared client.
func NewRouteService(client *maps.Client, cfg ClientConfig) *RouteService {
	return &RouteService{client: client, language: cfg.Language, region: cfg.Region}
}

// Estimate returns the travel time of the first route's first leg.
func (s *RouteService) Estimate(ctx context.Context, origin, destination types.Point, mode types.TravelMode) (time.Duration, error) {
	r := &maps.DirectionsRequest{
		Origin:      origin.String(),
		Destination: destination.String(),
		Mode:        travelMode(mode),
		Language:    s.language,
		Region:      s.region,
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return 0, fmt.Errorf("maps api error: %w", err)
	}

	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, ErrNoRoute
	}
	return routes[0].Legs[0].Duration, nil
}

func travelMode(m types.TravelMode) maps.Mode {
	if m == types.TravelModeWalking {
		return maps.TravelModeWalking
	}
	return maps.TravelModeDriving
}

// NoRouteService answers every estimate with ErrNoRoute. It stands in when no
// API key is configured.
type NoRouteService struct{}

func (NoRouteService) Estimate(context.Context, types.Point, types.Point, types.TravelMode) (time.Duration, error) {
	return 0, ErrNoRoute
}

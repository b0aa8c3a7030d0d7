// README: Google Maps client construction shared by the places and route services.
package maps

import (
	"errors"
	"fmt"

	"googlemaps.github.io/maps"
)

var ErrNoRoute = errors.New("no route found")

type ClientConfig struct {
	APIKey string
	// QPS caps outgoing requests per second across both services.
	QPS int
	// BaseURL overrides the API host, for tests.
	BaseURL  string
	Language string
	Region   string
}

// NewClient builds a maps client from cfg.
func NewClient(cfg ClientConfig) (*maps.Client, error) {
	opts := []maps.ClientOption{maps.WithAPIKey(cfg.APIKey)}
	if cfg.QPS > 0 {
		opts = append(opts, maps.WithRateLimit(cfg.QPS))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, maps.WithBaseURL(cfg.BaseURL))
	}
	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return client, nil
}

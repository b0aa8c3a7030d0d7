package maps

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"nearby/internal/types"
)

// PlacesService handles interactions with Google Places API.
type PlacesService struct {
	client   *maps.Client
	language string
	region   string
}

// NewPlacesService creates a PlacesService on top of a shared client.
func NewPlacesService(client *maps.Client, cfg ClientConfig) *PlacesService {
	return &PlacesService{client: client, language: cfg.Language, region: cfg.Region}
}

// Search runs a text search biased to the given region. Results whose
// geometry is missing come back without coordinates.
func (s *PlacesService) Search(ctx context.Context, query string, region types.Region) ([]types.Place, error) {
	r := &maps.TextSearchRequest{
		Query:    query,
		Location: &maps.LatLng{Lat: region.Center.Lat, Lng: region.Center.Lng},
		Radius:   uint(region.RadiusMeters),
		Language: s.language,
		Region:   s.region,
	}

	resp, err := s.client.TextSearch(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("places api error: %w", err)
	}

	places := make([]types.Place, 0, len(resp.Results))
	for _, result := range resp.Results {
		p := types.Place{
			ProviderID: result.PlaceID,
			Name:       result.Name,
			Address:    result.FormattedAddress,
		}
		// The API zero-fills geometry it could not resolve.
		if loc := result.Geometry.Location; loc.Lat != 0 || loc.Lng != 0 {
			p.Coordinates = &types.Point{Lat: loc.Lat, Lng: loc.Lng}
		}
		places = append(places, p)
	}
	return places, nil
}

package maps

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nearby/internal/types"
)

func newTestServer(t *testing.T, handlers map[string]string) ClientConfig {
	t.Helper()
	mux := http.NewServeMux()
	for path, body := range handlers {
		body := body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return ClientConfig{APIKey: "test-key", BaseURL: srv.URL}
}

func TestPlacesService_SearchMapsResults(t *testing.T) {
	var gotQuery, gotLocation, gotRadius string
	mux := http.NewServeMux()
	mux.HandleFunc("/maps/api/place/textsearch/json", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotLocation = r.URL.Query().Get("location")
		gotRadius = r.URL.Query().Get("radius")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"results": [
				{"place_id": "a", "name": "Corner Market", "formatted_address": "1 Main St",
				 "geometry": {"location": {"lat": 25.034, "lng": 121.566}}},
				{"place_id": "b", "name": "Ghost Market", "formatted_address": ""}
			]
		}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := ClientConfig{APIKey: "test-key", BaseURL: srv.URL}
	client, err := NewClient(cfg)
	require.NoError(t, err)
	svc := NewPlacesService(client, cfg)

	places, err := svc.Search(context.Background(), "supermarket", types.Region{
		Center:       types.Point{Lat: 25.033, Lng: 121.5654},
		RadiusMeters: 5000,
	})
	require.NoError(t, err)

	assert.Equal(t, "supermarket", gotQuery)
	assert.Contains(t, gotLocation, "25.033")
	assert.Equal(t, "5000", gotRadius)
	require.Len(t, places, 2)
	assert.Equal(t, "a", places[0].ProviderID)
	assert.Equal(t, "1 Main St", places[0].Address)
	require.NotNil(t, places[0].Coordinates)
	assert.InDelta(t, 121.566, places[0].Coordinates.Lng, 1e-9)
	assert.Nil(t, places[1].Coordinates)
}

func TestPlacesService_SearchError(t *testing.T) {
	cfg := newTestServer(t, map[string]string{
		"/maps/api/place/textsearch/json": `{"status": "REQUEST_DENIED", "error_message": "bad key"}`,
	})
	client, err := NewClient(cfg)
	require.NoError(t, err)

	_, err = NewPlacesService(client, cfg).Search(context.Background(), "x", types.Region{RadiusMeters: 10})
	assert.Error(t, err)
}

func TestRouteService_Estimate(t *testing.T) {
	cfg := newTestServer(t, map[string]string{
		"/maps/api/directions/json": `{
			"status": "OK",
			"routes": [{"legs": [{"duration": {"value": 420, "text": "7 mins"}, "distance": {"value": 3000, "text": "3 km"}}]}]
		}`,
	})
	client, err := NewClient(cfg)
	require.NoError(t, err)

	eta, err := NewRouteService(client, cfg).Estimate(context.Background(),
		types.Point{Lat: 25.033, Lng: 121.565}, types.Point{Lat: 25.047, Lng: 121.517}, types.TravelModeDriving)
	require.NoError(t, err)
	assert.Equal(t, 7*time.Minute, eta)
}

func TestRouteService_NoRoute(t *testing.T) {
	cfg := newTestServer(t, map[string]string{
		"/maps/api/directions/json": `{"status": "ZERO_RESULTS", "routes": []}`,
	})
	client, err := NewClient(cfg)
	require.NoError(t, err)

	_, err = NewRouteService(client, cfg).Estimate(context.Background(),
		types.Point{Lat: 0, Lng: 0}, types.Point{Lat: 1, Lng: 1}, types.TravelModeWalking)
	assert.ErrorIs(t, err, ErrNoRoute)
}

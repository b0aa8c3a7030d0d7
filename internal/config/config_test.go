package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GOOGLE_MAPS_API_KEY", "key")
	t.Setenv("FIREBASE_PROJECT_ID", "proj")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Search.Debounce() != 500*time.Millisecond {
		t.Errorf("debounce = %v, want 500ms", cfg.Search.Debounce())
	}
	if cfg.Search.RadiusMeters != 5000 {
		t.Errorf("radius = %v, want 5000", cfg.Search.RadiusMeters)
	}
	if cfg.Search.DefaultQuery != "supermarket" {
		t.Errorf("default query = %q", cfg.Search.DefaultQuery)
	}
	if cfg.Location.MaxFixAge() != 2*time.Minute {
		t.Errorf("max fix age = %v", cfg.Location.MaxFixAge())
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("NEARBY_PLACES_PROVIDER", ProviderCatalog)
	t.Setenv("NEARBY_AUTH_MODE", AuthDev)
	t.Setenv("NEARBY_DEBOUNCE_MS", "250")
	t.Setenv("NEARBY_LOCATION_POLL_MS", "not-a-number")
	t.Setenv("NEARBY_LOG_ROTATION", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Search.Debounce() != 250*time.Millisecond {
		t.Errorf("debounce = %v, want 250ms", cfg.Search.Debounce())
	}
	if cfg.Location.PollInterval() != time.Second {
		t.Errorf("poll interval = %v, want default 1s", cfg.Location.PollInterval())
	}
	if !cfg.Log.Rotation {
		t.Errorf("expected log rotation enabled")
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"google without key", map[string]string{"NEARBY_AUTH_MODE": AuthDev}},
		{"unknown provider", map[string]string{"NEARBY_AUTH_MODE": AuthDev, "NEARBY_PLACES_PROVIDER": "bing"}},
		{"firebase without project", map[string]string{"NEARBY_PLACES_PROVIDER": ProviderCatalog}},
		{"non-positive radius", map[string]string{"NEARBY_AUTH_MODE": AuthDev, "NEARBY_PLACES_PROVIDER": ProviderCatalog, "NEARBY_RADIUS_METERS": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GOOGLE_MAPS_API_KEY", "")
			t.Setenv("FIREBASE_PROJECT_ID", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

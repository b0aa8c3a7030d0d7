package catalog

import (
	"bufio"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"nearby/internal/modules/location"
	"nearby/internal/types"
)

func TestBoundingBox_ContainsRadius(t *testing.T) {
	center := types.Point{Lat: 25.0330, Lng: 121.5654}
	minLat, maxLat, minLng, maxLng := boundingBox(types.Region{Center: center, RadiusMeters: 5000})

	north := location.DistanceMeters(center, types.Point{Lat: maxLat, Lng: center.Lng})
	east := location.DistanceMeters(center, types.Point{Lat: center.Lat, Lng: maxLng})
	if math.Abs(north-5000) > 20 || math.Abs(east-5000) > 20 {
		t.Fatalf("box edges at %.1fm north, %.1fm east; want ~5000m", north, east)
	}
	if minLat >= center.Lat || minLng >= center.Lng {
		t.Fatalf("box does not surround center: %f %f", minLat, minLng)
	}
}

func TestEscapeLike(t *testing.T) {
	tests := map[string]string{
		"coffee":  "coffee",
		"100%":    `100\%`,
		"a_b":     `a\_b`,
		`back\sl`: `back\\sl`,
	}
	for in, want := range tests {
		if got := escapeLike(in); got != want {
			t.Errorf("escapeLike(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStore_Search(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	lat := func(v float64) *float64 { return &v }
	entries := []Entry{
		{ID: "p1", Name: "Corner Supermarket", Category: "grocery", Lat: lat(25.034), Lng: lat(121.566)},
		{ID: "p2", Name: "Far Supermarket", Category: "grocery", Lat: lat(24.0), Lng: lat(120.0)},
		{ID: "p3", Name: "Night Market", Category: "supermarket", Lat: lat(25.040), Lng: lat(121.560)},
		{ID: "p4", Name: "Unmapped Supermarket", Category: "grocery"},
		{ID: "p5", Name: "Bookshop", Category: "books", Lat: lat(25.034), Lng: lat(121.566)},
	}
	for _, e := range entries {
		if err := store.Upsert(ctx, e); err != nil {
			t.Fatalf("upsert %s: %v", e.ID, err)
		}
	}

	got, err := store.Search(ctx, "supermarket", types.Region{Center: types.Point{Lat: 25.0330, Lng: 121.5654}, RadiusMeters: 5000})
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	ids := map[string]*types.Point{}
	for _, p := range got {
		ids[p.ProviderID] = p.Coordinates
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 matches, got %v", got)
	}
	if ids["p1"] == nil || ids["p3"] == nil {
		t.Errorf("expected located matches p1 and p3, got %v", got)
	}
	if c, ok := ids["p4"]; !ok || c != nil {
		t.Errorf("expected p4 without coordinates, got %v", got)
	}
}

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("NEARBY_TEST_DSN")
	if dsn == "" {
		t.Skip("NEARBY_TEST_DSN not set; skipping DB-backed catalog tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE places"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return NewStore(db)
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	content, err := os.ReadFile(filepath.Join(root, "migrations", "0001_places.sql"))
	if err != nil {
		return err
	}
	for _, stmt := range splitSQL(stripSQLComments(string(content))) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	var out []string
	for _, stmt := range strings.Split(input, ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}

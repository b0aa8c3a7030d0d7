// README: Place catalog store backed by PostgreSQL, searched by text within a bounding box.
package catalog

import (
	"context"
	"math"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"nearby/internal/types"
)

const (
	defaultLimit        = 20
	metersPerDegreeLat  = 111320.0
	minCosForLongitudes = 0.01
)

// Entry is a catalog row. Lat and Lng are nullable; places without both are
// returned without coordinates.
type Entry struct {
	ID       string
	Name     string
	Address  string
	Category string
	Lat      *float64
	Lng      *float64
}

type Store struct {
	db    *pgxpool.Pool
	limit int
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db, limit: defaultLimit}
}

func (s *Store) Upsert(ctx context.Context, e Entry) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO places (id, name, address, category, lat, lng, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, now())
        ON CONFLICT (id) DO UPDATE SET
            name = EXCLUDED.name,
            address = EXCLUDED.address,
            category = EXCLUDED.category,
            lat = EXCLUDED.lat,
            lng = EXCLUDED.lng,
            updated_at = now()`,
		e.ID, e.Name, e.Address, e.Category, e.Lat, e.Lng,
	)
	return err
}

// Search matches query against name and category inside the region's
// bounding box. Rows with unknown coordinates are included.
func (s *Store) Search(ctx context.Context, query string, region types.Region) ([]types.Place, error) {
	minLat, maxLat, minLng, maxLng := boundingBox(region)
	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"

	rows, err := s.db.Query(ctx, `
        SELECT id, name, address, lat, lng
        FROM places
        WHERE (name ILIKE $1 OR category ILIKE $1)
          AND (lat IS NULL OR lng IS NULL
               OR (lat BETWEEN $2 AND $3 AND lng BETWEEN $4 AND $5))
        ORDER BY name
        LIMIT $6`,
		pattern, minLat, maxLat, minLng, maxLng, s.limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Place
	for rows.Next() {
		var (
			p        types.Place
			lat, lng *float64
		)
		if err := rows.Scan(&p.ProviderID, &p.Name, &p.Address, &lat, &lng); err != nil {
			return nil, err
		}
		if lat != nil && lng != nil {
			p.Coordinates = &types.Point{Lat: *lat, Lng: *lng}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func boundingBox(r types.Region) (minLat, maxLat, minLng, maxLng float64) {
	dLat := r.RadiusMeters / metersPerDegreeLat
	cos := math.Cos(r.Center.Lat * math.Pi / 180)
	if cos < minCosForLongitudes {
		cos = minCosForLongitudes
	}
	dLng := r.RadiusMeters / (metersPerDegreeLat * cos)
	return r.Center.Lat - dLat, r.Center.Lat + dLat, r.Center.Lng - dLng, r.Center.Lng + dLng
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

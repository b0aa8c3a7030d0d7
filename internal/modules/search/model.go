// README: Search result model and published snapshots.
package search

import (
	"time"

	"nearby/internal/types"
)

// selectionRadiusMeters frames a selected result on the map.
const selectionRadiusMeters = 1000

// Result is one place in the published result set. Results are never
// mutated after publication; enrichment replaces them with copies.
type Result struct {
	ID             types.ID
	ProviderID     string
	Name           string
	Address        string
	Coordinates    types.Point
	DistanceMeters float64
	ETA            *time.Duration
}

// Snapshot is the observable state of a coordinator. Results is shared
// between snapshots and must be treated as read-only.
type Snapshot struct {
	Query       string
	IsSearching bool
	Results     []Result
	Generation  uint64
}

// SelectionRegion is the map region to show when a result is selected.
func SelectionRegion(r Result) types.Region {
	return types.Region{Center: r.Coordinates, RadiusMeters: selectionRadiusMeters}
}

// README: Shared identifiers and geographic value objects used across modules.
package types

import "fmt"

type ID string

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the point lies within latitude/longitude bounds.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// String renders the point as "lat,lng", the form the Maps web services accept.
func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}

// Region is a circular search area.
type Region struct {
	Center       Point
	RadiusMeters float64
}

// Place is a candidate returned by a place-search provider. Coordinates is nil
// when the provider could not resolve a location for the entry.
type Place struct {
	ProviderID  string
	Name        string
	Address     string
	Coordinates *Point
}

type TravelMode string

const (
	TravelModeDriving TravelMode = "driving"
	TravelModeWalking TravelMode = "walking"
)

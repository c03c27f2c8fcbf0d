package model

import "math"

// Coordinates is a GPS position in degrees.
type Coordinates struct {
	Latitude  float64 `json:"lat" firestore:"lat"`
	Longitude float64 `json:"lng" firestore:"lng"`
}

// Valid reports whether the coordinates are finite and inside the lat/lng ranges.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// Location is where a listing can be picked up.
// Coordinates may be nil when the giver posted without a location fix.
type Location struct {
	Coordinates *Coordinates `json:"coordinates,omitempty" firestore:"coordinates"`
	Address     string       `json:"address" firestore:"address"`
	City        string       `json:"city" firestore:"city"`
	District    string       `json:"district" firestore:"district"`
}

// HasCoordinates is true when the location can take part in distance ranking.
func (l Location) HasCoordinates() bool {
	return l.Coordinates != nil && l.Coordinates.Valid()
}

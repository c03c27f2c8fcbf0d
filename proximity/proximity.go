// Package proximity ranks listings by straight-line distance from the user.
package proximity

import (
	"fmt"
	"math"
	"sort"

	"foodshare-api/model"
)

const (
	EarthRadiusKm   = 6371.0
	DefaultRadiusKm = 5.0
)

// Ranked is a listing annotated with its distance from the user.
// DistanceKm is nil when either side has no usable coordinates.
type Ranked struct {
	model.FoodListing
	DistanceKm *float64 `json:"distanceKm"`
}

// DistanceKm is the haversine distance between a and b, rounded to one decimal.
func DistanceKm(a, b model.Coordinates) float64 {
	dLat := toRad(b.Latitude - a.Latitude)
	dLng := toRad(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Latitude))*math.Cos(toRad(b.Latitude))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return math.Round(EarthRadiusKm*c*10) / 10
}

// Filter drops listings farther than radiusKm from user and sorts the rest nearest first.
// Listings without coordinates are kept, after every ranked one, in their original order.
// A nil user returns all listings unranked in their original order.
func Filter(user *model.Coordinates, listings []model.FoodListing, radiusKm float64) []Ranked {
	out := make([]Ranked, 0, len(listings))

	if user == nil || !user.Valid() {
		for _, l := range listings {
			out = append(out, Ranked{FoodListing: l})
		}
		return out
	}
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}

	for _, l := range listings {
		if !l.Location.HasCoordinates() {
			out = append(out, Ranked{FoodListing: l})
			continue
		}
		d := DistanceKm(*user, *l.Location.Coordinates)
		if d > radiusKm {
			continue
		}
		out = append(out, Ranked{FoodListing: l, DistanceKm: &d})
	}

	SortNearest(out)
	return out
}

// SortNearest orders ranked listings nearest first with unknown distances last.
// Equal distances keep their input order.
func SortNearest(ranked []Ranked) {
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].DistanceKm, ranked[j].DistanceKm
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
}

// FormatDistance renders "850 m" below one kilometre and "2.3 km" otherwise.
func FormatDistance(km float64) string {
	if km < 1 {
		return fmt.Sprintf("%d m", int(math.Round(km*1000)))
	}
	return fmt.Sprintf("%.1f km", km)
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// Package geo computes great-circle distances and resolves which assigned
// store a worker is standing at.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used by Distance.
const EarthRadiusMeters = 6371e3

// DefaultRadiusMeters is the check-in radius used when none is configured.
const DefaultRadiusMeters = 50.0

// Location is a WGS84 coordinate. Accuracy is the reported fix accuracy in
// meters and is zero when unknown.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy,omitempty"`
}

// Distance returns the Haversine distance between a and b in meters.
func Distance(a, b Location) float64 {
	phi1 := radians(a.Latitude)
	phi2 := radians(b.Latitude)
	dPhi := radians(b.Latitude - a.Latitude)
	dLambda := radians(b.Longitude - a.Longitude)

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

// FirstWithin walks candidates in order and returns the index and distance of
// the first one whose location lies within radius meters of origin. It stops
// at the first match, so list order decides between several nearby
// candidates, not proximity.
func FirstWithin[T any](origin Location, candidates []T, radius float64, locate func(T) Location) (int, float64, bool) {
	for idx, candidate := range candidates {
		distance := Distance(origin, locate(candidate))
		if distance <= radius {
			return idx, distance, true
		}
	}
	return -1, 0, false
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Package geo provides great-circle distance helpers.
// This is part of the platform layer and contains no business logic.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used by Distance.
const EarthRadiusMeters = 6371000.0

// Distance returns the haversine distance in meters between two coordinates
// given in decimal degrees.
//
// Invalid input (NaN, infinities, latitude outside [-90, 90], longitude
// outside [-180, 180]) yields +Inf, so a malformed coordinate is never within
// any radius.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	if !validLat(lat1) || !validLat(lat2) || !validLon(lon1) || !validLon(lon2) {
		return math.Inf(1)
	}

	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	// rounding can push a just past 1 for antipodal points
	a = math.Min(1, math.Max(0, a))

	d := EarthRadiusMeters * 2 * math.Asin(math.Sqrt(a))
	if math.IsNaN(d) {
		return math.Inf(1)
	}
	return d
}

// Within reports whether the two coordinates are at most radiusMeters apart.
func Within(lat1, lon1, lat2, lon2, radiusMeters float64) bool {
	return Distance(lat1, lon1, lat2, lon2) <= radiusMeters
}

func validLat(v float64) bool {
	return !math.IsNaN(v) && v >= -90 && v <= 90
}

func validLon(v float64) bool {
	return !math.IsNaN(v) && v >= -180 && v <= 180
}

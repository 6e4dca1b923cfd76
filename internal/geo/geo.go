// Package geo implements the great-circle distance math used for
// geofence verification. Pure functions, no state.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used by the haversine
// formula. Accurate to within a few meters at geofence scales.
const EarthRadiusMeters = 6371000.0

// Distance returns the great-circle distance in meters between two
// coordinate pairs using the haversine formula.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLng := radians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// WithinRadius reports whether (lat, lng) lies within radiusMeters of
// the center point. Identical points are always within any positive
// radius.
func WithinRadius(lat, lng, centerLat, centerLng, radiusMeters float64) bool {
	return Distance(lat, lng, centerLat, centerLng) <= radiusMeters
}

// ValidCoordinate reports whether the pair is a real WGS84 coordinate.
func ValidCoordinate(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

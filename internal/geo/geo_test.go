package geo

import (
	"math"
	"testing"
)

func TestDistanceIdenticalPoints(t *testing.T) {
	if d := Distance(-6.2, 106.8, -6.2, 106.8); d != 0 {
		t.Errorf("Distance(p, p) = %v, want 0", d)
	}
}

func TestDistanceKnownPairs(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		want                   float64 // meters
		tolerance              float64
	}{
		{
			name: "jakarta to surabaya",
			lat1: -6.1751, lng1: 106.8650,
			lat2: -7.2575, lng2: 112.7521,
			want:      662_000,
			tolerance: 5_000,
		},
		{
			name: "one degree of latitude at the equator",
			lat1: 0, lng1: 0,
			lat2: 1, lng2: 0,
			want:      111_195,
			tolerance: 100,
		},
		{
			name: "short hop across an office campus",
			lat1: -6.20000, lng1: 106.80000,
			lat2: -6.20090, lng2: 106.80000,
			want:      100,
			tolerance: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if math.Abs(got-tt.want) > tt.tolerance {
				t.Errorf("Distance() = %v, want %v ± %v", got, tt.want, tt.tolerance)
			}
		})
	}
}

func TestDistanceSymmetric(t *testing.T) {
	a := Distance(-6.2, 106.8, 35.6586, 139.7454)
	b := Distance(35.6586, 139.7454, -6.2, 106.8)
	if math.Abs(a-b) > 1e-6 {
		t.Errorf("Distance not symmetric: %v vs %v", a, b)
	}
}

func TestWithinRadius(t *testing.T) {
	const centerLat, centerLng = -6.20000, 106.80000

	if !WithinRadius(centerLat, centerLng, centerLat, centerLng, 50) {
		t.Error("identical point should be within any positive radius")
	}
	// ~100m north of center
	if WithinRadius(-6.20090, centerLng, centerLat, centerLng, 50) {
		t.Error("point ~100m away should not be within a 50m radius")
	}
	if !WithinRadius(-6.20090, centerLng, centerLat, centerLng, 150) {
		t.Error("point ~100m away should be within a 150m radius")
	}
}

func TestValidCoordinate(t *testing.T) {
	tests := []struct {
		lat, lng float64
		want     bool
	}{
		{0, 0, true},
		{-90, -180, true},
		{90, 180, true},
		{90.0001, 0, false},
		{-90.0001, 0, false},
		{0, 180.0001, false},
		{0, -180.0001, false},
	}
	for _, tt := range tests {
		if got := ValidCoordinate(tt.lat, tt.lng); got != tt.want {
			t.Errorf("ValidCoordinate(%v, %v) = %v, want %v", tt.lat, tt.lng, got, tt.want)
		}
	}
}

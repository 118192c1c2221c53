package location

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineKnownDistances(t *testing.T) {
	tests := []struct {
		name       string
		lat1, lng1 float64
		lat2, lng2 float64
		wantKm     float64
	}{
		{"new york to london", 40.7128, -74.0060, 51.5074, -0.1278, 5570},
		{"paris to berlin", 48.8566, 2.3522, 52.5200, 13.4050, 878},
		{"sydney to singapore", -33.8688, 151.2093, 1.3521, 103.8198, 6300},
		{"across the equator", -1.0, 30.0, 1.0, 30.0, 222.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			assert.InEpsilon(t, tt.wantKm, got, 0.01, "got %.1f km", got)
		})
	}
}

func TestHaversineZeroDistance(t *testing.T) {
	assert.Zero(t, HaversineKm(51.5074, -0.1278, 51.5074, -0.1278))
}

func TestHaversineSymmetry(t *testing.T) {
	a := HaversineKm(40.7128, -74.0060, 51.5074, -0.1278)
	b := HaversineKm(51.5074, -0.1278, 40.7128, -74.0060)
	assert.InDelta(t, a, b, 1e-9)
}

func TestHaversineNeverNegative(t *testing.T) {
	coords := [][2]float64{{90, 0}, {-90, 0}, {0, 180}, {0, -180}, {45.5, -122.6}}
	for _, p := range coords {
		for _, q := range coords {
			km := HaversineKm(p[0], p[1], q[0], q[1])
			assert.False(t, math.IsNaN(km))
			assert.GreaterOrEqual(t, km, 0.0)
		}
	}
}

func TestFindNearestSupportedCity(t *testing.T) {
	tests := []struct {
		name     string
		lat, lng float64
		want     string
	}{
		{"downtown manhattan", 40.75, -73.99, "new-york"},
		{"camden", 51.54, -0.14, "london"},
		{"brooklyn closer than newark", 40.68, -73.94, "new-york"},
		{"vienna resolves to budapest", 48.21, 16.37, "budapest"},
		{"wellington falls back to sydney", -41.29, 174.78, "sydney"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindNearestSupportedCity(tt.lat, tt.lng, DefaultCities)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindNearestSupportedCityEmptyTable(t *testing.T) {
	_, ok := FindNearestSupportedCity(0, 0, nil)
	assert.False(t, ok)
}

// The nearest match must be deterministic: the exact coordinates of a listed
// city always resolve to that city.
func TestFindNearestIsDeterministicOnCityCoordinates(t *testing.T) {
	for _, c := range DefaultCities {
		got, ok := FindNearestSupportedCity(c.Latitude, c.Longitude, DefaultCities)
		assert.True(t, ok)
		assert.Equal(t, c.ID, got)
	}
}

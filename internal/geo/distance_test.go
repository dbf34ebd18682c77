package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKnownCities(t *testing.T) {
	paris := Coordinates{Latitude: 48.8566, Longitude: 2.3522}
	london := Coordinates{Latitude: 51.5074, Longitude: -0.1278}

	d := Distance(paris, london)
	assert.InDelta(t, 343.5, d, 2.0)

	// Symmetric.
	assert.InDelta(t, d, Distance(london, paris), 1e-9)
}

func TestDistanceSamePointIsZero(t *testing.T) {
	p := Coordinates{Latitude: 40.7128, Longitude: -74.0060}
	assert.Zero(t, Distance(p, p))
}

func TestDistanceShortRange(t *testing.T) {
	// Roughly 1.11 km per 0.01 degree of latitude.
	a := Coordinates{Latitude: 40.00, Longitude: -74.00}
	b := Coordinates{Latitude: 40.01, Longitude: -74.00}
	assert.InDelta(t, 1.11, Distance(a, b), 0.02)
}

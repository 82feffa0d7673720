package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "trustline/pkg/domain-errors"
)

var (
	nyc    = Coordinate{Lat: 40.7128, Lng: -74.006}
	london = Coordinate{Lat: 51.5074, Lng: -0.1278}
)

func TestDistanceKm(t *testing.T) {
	t.Run("identity is zero", func(t *testing.T) {
		assert.Equal(t, 0.0, DistanceKm(nyc, nyc))
	})

	t.Run("symmetric", func(t *testing.T) {
		assert.InDelta(t, DistanceKm(nyc, london), DistanceKm(london, nyc), 1e-9)
	})

	t.Run("one degree of latitude is about 111 km", func(t *testing.T) {
		d := DistanceKm(Coordinate{Lat: 10, Lng: 20}, Coordinate{Lat: 11, Lng: 20})
		assert.InEpsilon(t, 111.19, d, 0.01)
	})

	t.Run("new york to london", func(t *testing.T) {
		assert.InDelta(t, 5570, DistanceKm(nyc, london), 10)
	})

	t.Run("NaN propagates", func(t *testing.T) {
		assert.True(t, math.IsNaN(DistanceKm(Coordinate{Lat: math.NaN()}, nyc)))
	})
}

func TestDestination(t *testing.T) {
	t.Run("round trips through DistanceKm", func(t *testing.T) {
		for _, bearing := range []float64{0, 45, 90, 180, 270, 359} {
			for _, dist := range []float64{0.5, 5, 20} {
				got := Destination(nyc, bearing, dist)
				assert.InDelta(t, dist, DistanceKm(nyc, got), 1e-6, "bearing %v dist %v", bearing, dist)
			}
		}
	})

	t.Run("due north raises latitude only", func(t *testing.T) {
		got := Destination(nyc, 0, 111.19)
		assert.InDelta(t, nyc.Lat+1, got.Lat, 0.001)
		assert.InDelta(t, nyc.Lng, got.Lng, 1e-9)
	})

	t.Run("wraps across the antimeridian", func(t *testing.T) {
		got := Destination(Coordinate{Lat: 0, Lng: 179.99}, 90, 10)
		assert.Less(t, got.Lng, 0.0)
		require.NoError(t, got.Validate())
	})
}

func TestValidate(t *testing.T) {
	assert.NoError(t, nyc.Validate())
	for _, c := range []Coordinate{
		{Lat: 91, Lng: 0},
		{Lat: 0, Lng: -181},
		{Lat: math.NaN(), Lng: 0},
		{Lat: 0, Lng: math.Inf(1)},
	} {
		err := c.Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	}
}

func TestKey3(t *testing.T) {
	assert.Equal(t, "40.713,-74.006", Key3(nyc))
	assert.Equal(t, Key3(Coordinate{Lat: 40.71281, Lng: -74.00601}), Key3(nyc))
}

func TestPointConversion(t *testing.T) {
	p := nyc.Point()
	assert.Equal(t, nyc.Lng, p.Lon())
	assert.Equal(t, nyc.Lat, p.Lat())
}

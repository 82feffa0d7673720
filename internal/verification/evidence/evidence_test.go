package evidence

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustline/internal/geo"
	"trustline/internal/noise"
	"trustline/internal/verification/models"
	dErrors "trustline/pkg/domain-errors"
)

var (
	fix       = geo.Coordinate{Lat: 6.4, Lng: 3.4}
	fixedTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	photo     = models.Photo{Digest: "abc", ContentType: "image/jpeg", Size: 10}
	address   = models.AddressInput{Street: "17 Toyin Street", City: "Abeokuta", State: "Lagos", ZipCode: "10001"}
)

func clock() time.Time { return fixedTime }

func TestEXIFSimulator(t *testing.T) {
	sim := NewEXIFSimulator(noise.New(1), WithLatency(0), WithClock(clock))

	t.Run("perturbs the fix", func(t *testing.T) {
		for range 200 {
			exif, err := sim.Extract(context.Background(), photo, &fix)
			require.NoError(t, err)
			c, ok := exif.Coordinate()
			require.True(t, ok)
			assert.LessOrEqual(t, math.Abs(c.Lat-fix.Lat), 0.0005)
			assert.LessOrEqual(t, math.Abs(c.Lng-fix.Lng), 0.0005)
			assert.Equal(t, fixedTime, *exif.Timestamp)
		}
	})

	t.Run("no fix yields null coordinates", func(t *testing.T) {
		exif, err := sim.Extract(context.Background(), photo, nil)
		require.NoError(t, err)
		assert.Nil(t, exif.Latitude)
		assert.Nil(t, exif.Longitude)
		require.NotNil(t, exif.Timestamp)
	})

	t.Run("photo is required", func(t *testing.T) {
		_, err := sim.Extract(context.Background(), models.Photo{}, &fix)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewEXIFSimulator(noise.New(1)).Extract(ctx, photo, &fix)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestAddressDB(t *testing.T) {
	db := NewAddressDB(noise.New(2), WithLatency(0))
	ctx := context.Background()

	t.Run("valid with fix is near the fix", func(t *testing.T) {
		for range 200 {
			v, err := db.Validate(ctx, StructuredQuery(address), &fix)
			require.NoError(t, err)
			require.True(t, v.Valid)
			assert.LessOrEqual(t, math.Abs(v.Coordinate.Lat-fix.Lat), 0.001)
			assert.LessOrEqual(t, math.Abs(v.Coordinate.Lng-fix.Lng), 0.001)
		}
	})

	t.Run("valid without fix falls back to the default coordinate", func(t *testing.T) {
		v, err := db.Validate(ctx, StructuredQuery(address), nil)
		require.NoError(t, err)
		assert.True(t, v.Valid)
		assert.Equal(t, DefaultCoordinate, *v.Coordinate)
	})

	t.Run("incomplete structured address is invalid", func(t *testing.T) {
		partial := address
		partial.ZipCode = ""
		v, err := db.Validate(ctx, StructuredQuery(partial), &fix)
		require.NoError(t, err)
		assert.False(t, v.Valid)
		assert.Nil(t, v.Coordinate)
	})

	t.Run("free text needs three parts", func(t *testing.T) {
		v, err := db.Validate(ctx, FreeTextQuery(address.FullAddress()), &fix)
		require.NoError(t, err)
		assert.True(t, v.Valid)

		v, err = db.Validate(ctx, FreeTextQuery("17 Toyin Street, Abeokuta"), &fix)
		require.NoError(t, err)
		assert.False(t, v.Valid)
	})
}

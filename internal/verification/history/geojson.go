package history

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"trustline/internal/geo"
	"trustline/internal/verification/models"
)

// ToGeoJSON renders the trace as one Point feature per sample plus a
// LineString of the path in chronological order. The home coordinate is
// included as its own feature so maps can centre on it.
func ToGeoJSON(history []models.LocationHistoryEntry, home geo.Coordinate) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	homeFeature := geojson.NewFeature(home.Point())
	homeFeature.Properties["kind"] = "home"
	fc.Append(homeFeature)

	path := make(orb.LineString, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		e := history[i]
		f := geojson.NewFeature(e.Coordinate.Point())
		f.Properties["kind"] = "sample"
		f.Properties["timestamp"] = e.Timestamp.UTC().Format(time.RFC3339)
		f.Properties["activity"] = string(e.Activity)
		f.Properties["address"] = e.Address
		f.Properties["distance_from_home_km"] = geo.DistanceKm(e.Coordinate, home)
		fc.Append(f)
		path = append(path, e.Coordinate.Point())
	}

	if len(path) > 1 {
		line := geojson.NewFeature(path)
		line.Properties["kind"] = "path"
		fc.Append(line)
	}
	if len(history) > 0 {
		fc.BBox = geojson.NewBBox(Bounds(history, home))
	}
	return fc
}

// Bounds returns the box enclosing the trace and home.
func Bounds(history []models.LocationHistoryEntry, home geo.Coordinate) orb.Bound {
	b := home.Point().Bound()
	for _, e := range history {
		b = b.Extend(e.Coordinate.Point())
	}
	return b
}

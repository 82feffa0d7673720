// Package geo holds coordinate primitives and spherical-earth distance math.
package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"

	dErrors "trustline/pkg/domain-errors"
)

// EarthRadiusKm is the mean earth radius used for every distance in the system.
const EarthRadiusKm = 6371.0

// Coordinate is a WGS-84 position in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate rejects non-finite values and values outside the WGS-84 ranges.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return dErrors.New(dErrors.CodeValidation, "coordinate must be finite")
	}
	if c.Lat < -90 || c.Lat > 90 {
		return dErrors.New(dErrors.CodeValidation, "latitude must be between -90 and 90")
	}
	if c.Lng < -180 || c.Lng > 180 {
		return dErrors.New(dErrors.CodeValidation, "longitude must be between -180 and 180")
	}
	return nil
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f, %.6f", c.Lat, c.Lng)
}

// Point converts to an orb point (lng, lat order).
func (c Coordinate) Point() orb.Point {
	return orb.Point{c.Lng, c.Lat}
}

// DistanceKm returns the haversine great-circle distance in kilometres.
// It is total: NaN inputs propagate to a NaN result.
func DistanceKm(a, b Coordinate) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Destination projects distanceKm from origin along the initial bearing
// (degrees clockwise from north) on a sphere of radius EarthRadiusKm.
func Destination(origin Coordinate, bearingDeg, distanceKm float64) Coordinate {
	lat1 := radians(origin.Lat)
	lng1 := radians(origin.Lng)
	brng := radians(bearingDeg)
	delta := distanceKm / EarthRadiusKm

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(delta) + math.Cos(lat1)*math.Sin(delta)*math.Cos(brng))
	lng2 := lng1 + math.Atan2(
		math.Sin(brng)*math.Sin(delta)*math.Cos(lat1),
		math.Cos(delta)-math.Sin(lat1)*math.Sin(lat2),
	)
	return Coordinate{Lat: degrees(lat2), Lng: normalizeLng(degrees(lng2))}
}

// Key3 renders c rounded to three decimals (~110 m), used to count distinct
// places in a trace.
func Key3(c Coordinate) string {
	return fmt.Sprintf("%.3f,%.3f", c.Lat, c.Lng)
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }

func normalizeLng(lng float64) float64 {
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return lng
}

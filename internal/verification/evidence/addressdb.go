package evidence

import (
	"context"
	"strings"
	"time"

	"trustline/internal/geo"
	"trustline/internal/noise"
	"trustline/internal/verification/latency"
	"trustline/internal/verification/models"
)

const (
	// DefaultAddressLatency mirrors the delay of an address-validation API.
	DefaultAddressLatency = 1500 * time.Millisecond

	addressJitterDeg = 0.001
	minFreeTextParts = 3
)

// DefaultCoordinate is returned for valid addresses when no fix was captured.
var DefaultCoordinate = geo.Coordinate{Lat: 40.7128, Lng: -74.006}

// AddressQuery is either a structured address or a free-text line.
type AddressQuery struct {
	Structured *models.AddressInput
	FreeText   string
}

// StructuredQuery wraps a structured address.
func StructuredQuery(a models.AddressInput) AddressQuery {
	return AddressQuery{Structured: &a}
}

// FreeTextQuery wraps a comma-separated address line.
func FreeTextQuery(s string) AddressQuery {
	return AddressQuery{FreeText: s}
}

// Complete reports whether the query names every required component: all four
// structured fields, or at least three comma-separated parts.
func (q AddressQuery) Complete() bool {
	if q.Structured != nil {
		return q.Structured.Complete()
	}
	return len(strings.Split(q.FreeText, ",")) >= minFreeTextParts
}

// AddressDB simulates an address database that geocodes known addresses to a
// point near where the user is standing.
type AddressDB struct {
	src noise.Source
	cfg config
}

// NewAddressDB returns a simulator drawing jitter from src.
func NewAddressDB(src noise.Source, opts ...Option) *AddressDB {
	return &AddressDB{src: src, cfg: newConfig(DefaultAddressLatency, opts)}
}

// Validate reports whether the address is known and where it is.
func (db *AddressDB) Validate(ctx context.Context, q AddressQuery, gpsFix *geo.Coordinate) (*models.AddressValidation, error) {
	if err := latency.Wait(ctx, db.cfg.latency); err != nil {
		return nil, err
	}

	if !q.Complete() {
		return &models.AddressValidation{Valid: false}, nil
	}
	coord := DefaultCoordinate
	if gpsFix != nil {
		coord = noise.Jitter(db.src, *gpsFix, addressJitterDeg)
	}
	return &models.AddressValidation{Valid: true, Coordinate: &coord}, nil
}

package ports

import (
	"context"

	"trustline/internal/geo"
	"trustline/internal/verification/models"
)

// PhotoEXIFPort extracts GPS metadata from an uploaded photo.
type PhotoEXIFPort interface {
	Extract(ctx context.Context, photo models.Photo, gpsFix *geo.Coordinate) (*models.PhotoEXIF, error)
}

// AddressDBPort checks a claimed address against an address database.
// Implementations position valid addresses near gpsFix when one is given.
type AddressDBPort interface {
	Validate(ctx context.Context, address models.AddressInput, gpsFix *geo.Coordinate) (*models.AddressValidation, error)
}

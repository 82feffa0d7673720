package adapters

import (
	"context"

	"trustline/internal/decision/ports"
	"trustline/internal/geo"
	"trustline/internal/verification/evidence"
	"trustline/internal/verification/models"
)

// AddressDBAdapter exposes the address-database simulator through
// ports.AddressDBPort. Swap it for a real provider client without touching
// the decision service.
type AddressDBAdapter struct {
	db *evidence.AddressDB
}

// NewAddressDBAdapter wraps db.
func NewAddressDBAdapter(db *evidence.AddressDB) ports.AddressDBPort {
	return &AddressDBAdapter{db: db}
}

// Validate queries the database with the structured address.
func (a *AddressDBAdapter) Validate(ctx context.Context, address models.AddressInput, gpsFix *geo.Coordinate) (*models.AddressValidation, error) {
	return a.db.Validate(ctx, evidence.StructuredQuery(address), gpsFix)
}

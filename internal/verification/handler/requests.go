package handler

import (
	"trustline/internal/geo"
	"trustline/internal/verification/models"
	dErrors "trustline/pkg/domain-errors"
	"trustline/pkg/platform/httputil"
)

// StartRequest is the optional body of POST /address-verifications.
type StartRequest struct {
	Profile string `json:"profile" validate:"omitempty,max=16"`
}

func (r *StartRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return httputil.ValidateStruct(r)
}

// AddressRequest is the body of PUT /address-verifications/{id}/address.
type AddressRequest struct {
	Street  string `json:"street" validate:"max=200"`
	City    string `json:"city" validate:"max=100"`
	State   string `json:"state" validate:"max=100"`
	ZipCode string `json:"zip_code" validate:"max=20"`
}

// Validate only bounds field lengths; the service reports blank fields with
// the message the form shows.
func (r *AddressRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return httputil.ValidateStruct(r)
}

func (r *AddressRequest) Address() models.AddressInput {
	return models.AddressInput{Street: r.Street, City: r.City, State: r.State, ZipCode: r.ZipCode}
}

// GPSRequest is the body of POST /address-verifications/{id}/gps.
type GPSRequest struct {
	Lat       *float64 `json:"lat" validate:"required"`
	Lng       *float64 `json:"lng" validate:"required"`
	AccuracyM float64  `json:"accuracy_m" validate:"gte=0"`
}

func (r *GPSRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := httputil.ValidateStruct(r); err != nil {
		return err
	}
	return r.Coordinate().Validate()
}

func (r *GPSRequest) Coordinate() geo.Coordinate {
	return geo.Coordinate{Lat: *r.Lat, Lng: *r.Lng}
}

package handler

import (
	"trustline/internal/decision"
	"trustline/internal/geo"
	"trustline/internal/verification/models"
	dErrors "trustline/pkg/domain-errors"
	"trustline/pkg/platform/httputil"
)

// EvaluateRequest is the HTTP request body for POST /decision/evaluate.
type EvaluateRequest struct {
	Profile           string          `json:"profile" validate:"omitempty,max=16"`
	AddressValid      bool            `json:"address_valid"`
	AddressCoordinate *geo.Coordinate `json:"address_coordinate"`
	GPS               *geo.Coordinate `json:"gps" validate:"required"`
	PhotoCoordinate   *geo.Coordinate `json:"photo_coordinate"`
	HistoryConsistent *bool           `json:"history_consistent"`

	profile decision.Profile
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *EvaluateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := httputil.ValidateStruct(r); err != nil {
		return err
	}
	for _, c := range []*geo.Coordinate{r.GPS, r.AddressCoordinate, r.PhotoCoordinate} {
		if c == nil {
			continue
		}
		if err := c.Validate(); err != nil {
			return err
		}
	}
	if r.AddressValid && r.AddressCoordinate == nil {
		return dErrors.New(dErrors.CodeValidation, "address_coordinate is required when address_valid is set")
	}

	profile, err := decision.ParseProfile(r.Profile)
	if err != nil {
		return err
	}
	r.profile = profile
	return nil
}

// Input converts the request into engine signals.
func (r *EvaluateRequest) Input() decision.Input {
	in := decision.Input{
		AddressValidation: &models.AddressValidation{Valid: r.AddressValid, Coordinate: r.AddressCoordinate},
		GPSFix:            r.GPS,
	}
	if r.PhotoCoordinate != nil {
		lat, lng := r.PhotoCoordinate.Lat, r.PhotoCoordinate.Lng
		in.Exif = &models.PhotoEXIF{Latitude: &lat, Longitude: &lng}
	}
	if r.HistoryConsistent != nil {
		in.Analysis = &models.LocationHistoryAnalysis{IsConsistent: *r.HistoryConsistent}
	}
	return in
}

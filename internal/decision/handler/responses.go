package handler

import (
	"trustline/internal/decision"
	"trustline/internal/verification/models"
)

// EvaluateResponse is the HTTP response for POST /decision/evaluate.
type EvaluateResponse struct {
	Profile              string            `json:"profile"`
	TrustLevel           models.TrustLevel `json:"trust_level"`
	Points               int               `json:"points"`
	Message              string            `json:"message"`
	DistanceKm           float64           `json:"distance_km"`
	AddressValid         bool              `json:"address_valid"`
	GPSMatch             bool              `json:"gps_match"`
	PhotoEXIFMatch       bool              `json:"photo_exif_match"`
	LocationHistoryMatch bool              `json:"location_history_match"`
}

// FromResult converts an engine result to the HTTP response.
func FromResult(profile decision.Profile, r *models.ValidationResult) *EvaluateResponse {
	return &EvaluateResponse{
		Profile:              string(profile.Name),
		TrustLevel:           r.TrustLevel,
		Points:               r.Points,
		Message:              r.Message,
		DistanceKm:           r.Distance,
		AddressValid:         r.AddressValid,
		GPSMatch:             r.GPSMatch,
		PhotoEXIFMatch:       r.PhotoEXIFMatch,
		LocationHistoryMatch: r.LocationHistoryMatch,
	}
}

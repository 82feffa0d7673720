package handler

import (
	"time"

	"trustline/internal/verification/models"
)

// SessionResponse is the client view of a verification session.
type SessionResponse struct {
	ID           string                   `json:"id"`
	Profile      string                   `json:"profile"`
	Step         models.Step              `json:"step"`
	Address      *models.AddressInput     `json:"address,omitempty"`
	FullAddress  string                   `json:"full_address,omitempty"`
	GPS          *models.GPSFix           `json:"gps,omitempty"`
	Photo        *models.Photo            `json:"photo,omitempty"`
	Device       *models.CaptureDevice    `json:"device,omitempty"`
	HistoryCount int                      `json:"history_count"`
	Result       *models.ValidationResult `json:"result,omitempty"`
	Error        string                   `json:"error,omitempty"`
	CreatedAt    time.Time                `json:"created_at"`
	UpdatedAt    time.Time                `json:"updated_at"`
}

func FromSession(s *models.Session) SessionResponse {
	resp := SessionResponse{
		ID:           s.ID.String(),
		Profile:      s.Profile,
		Step:         s.Step,
		Address:      s.Address,
		GPS:          s.GPS,
		Photo:        s.Photo,
		Device:       s.Device,
		HistoryCount: len(s.History),
		Result:       s.Result,
		Error:        s.LastError,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
	if s.Address != nil {
		resp.FullAddress = s.Address.FullAddress()
	}
	return resp
}

// CompletionResponse acknowledges a completed verification.
type CompletionResponse struct {
	SessionID   string            `json:"session_id"`
	TrustLevel  models.TrustLevel `json:"trust_level"`
	Points      int               `json:"points"`
	Message     string            `json:"message"`
	CompletedAt time.Time         `json:"completed_at"`
}

func FromCompletion(c *models.Completion) CompletionResponse {
	return CompletionResponse{
		SessionID:   c.SessionID.String(),
		TrustLevel:  c.Result.TrustLevel,
		Points:      c.Points,
		Message:     c.Result.Message,
		CompletedAt: c.CompletedAt,
	}
}

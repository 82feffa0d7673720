package models

import (
	"time"

	"trustline/internal/geo"
	id "trustline/pkg/domain"
)

// Step is one screen of the verification flow.
type Step string

const (
	StepInput           Step = "input"
	StepGPS             Step = "gps"
	StepPhoto           Step = "photo"
	StepLocationHistory Step = "location-history"
	StepValidating      Step = "validating"
	StepResult          Step = "result"
)

// GPSFix is a device position and the display address resolved for it.
type GPSFix struct {
	Coordinate geo.Coordinate `json:"coordinate"`
	AccuracyM  float64        `json:"accuracy_m,omitempty"`
	Address    string         `json:"address"`
	CapturedAt time.Time      `json:"captured_at"`
}

// CaptureDevice describes the browser that captured the evidence.
type CaptureDevice struct {
	Browser string `json:"browser,omitempty"`
	OS      string `json:"os,omitempty"`
	Mobile  bool   `json:"mobile"`
}

// Session is one user's walk through the verification flow. Generation is
// bumped by every back and restart so a validation started earlier can tell
// that its session moved on.
type Session struct {
	ID         id.SessionID           `json:"id"`
	UserID     id.UserID              `json:"user_id"`
	Profile    string                 `json:"profile"`
	Step       Step                   `json:"step"`
	Generation uint64                 `json:"generation"`
	Address    *AddressInput          `json:"address,omitempty"`
	GPS        *GPSFix                `json:"gps,omitempty"`
	Photo      *Photo                 `json:"photo,omitempty"`
	Device     *CaptureDevice         `json:"device,omitempty"`
	History    []LocationHistoryEntry `json:"history,omitempty"`
	Result     *ValidationResult      `json:"result,omitempty"`
	LastError  string                 `json:"last_error,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// Clear drops the data owned by step.
func (s *Session) Clear(step Step) {
	switch step {
	case StepInput:
		s.Address = nil
	case StepGPS:
		s.GPS = nil
	case StepPhoto:
		s.Photo = nil
		s.Device = nil
	case StepLocationHistory:
		s.History = nil
	case StepResult:
		s.Result = nil
	}
}

// GPSCoordinate returns the captured fix, or nil before the GPS step.
func (s *Session) GPSCoordinate() *geo.Coordinate {
	if s.GPS == nil {
		return nil
	}
	c := s.GPS.Coordinate
	return &c
}

// Completion is what a completed session hands to the point-award consumer.
type Completion struct {
	SessionID   id.SessionID     `json:"session_id"`
	UserID      id.UserID        `json:"user_id"`
	Result      ValidationResult `json:"result"`
	Points      int              `json:"points"`
	CompletedAt time.Time        `json:"completed_at"`
}

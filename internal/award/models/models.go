package models

import (
	"time"

	"trustline/internal/verification/models"
	id "trustline/pkg/domain"
	dErrors "trustline/pkg/domain-errors"
)

// Category is one component of a user's trust score.
type Category string

const (
	CategoryEmail   Category = "email"
	CategoryPhone   Category = "phone"
	CategoryAddress Category = "address"
	CategorySocial  Category = "social"
	CategoryReferee Category = "referee"
)

// Categories lists every score component in display order.
var Categories = []Category{CategoryEmail, CategoryPhone, CategoryAddress, CategorySocial, CategoryReferee}

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown score category: "+s)
}

// Breakdown holds the latest award per category.
type Breakdown struct {
	Email   int `json:"email"`
	Phone   int `json:"phone"`
	Address int `json:"address"`
	Social  int `json:"social"`
	Referee int `json:"referee"`
}

// Set replaces the category's points.
func (b *Breakdown) Set(c Category, points int) {
	switch c {
	case CategoryEmail:
		b.Email = points
	case CategoryPhone:
		b.Phone = points
	case CategoryAddress:
		b.Address = points
	case CategorySocial:
		b.Social = points
	case CategoryReferee:
		b.Referee = points
	}
}

// Get returns the category's points.
func (b Breakdown) Get(c Category) int {
	switch c {
	case CategoryEmail:
		return b.Email
	case CategoryPhone:
		return b.Phone
	case CategoryAddress:
		return b.Address
	case CategorySocial:
		return b.Social
	case CategoryReferee:
		return b.Referee
	}
	return 0
}

// Total sums every category.
func (b Breakdown) Total() int {
	return b.Email + b.Phone + b.Address + b.Social + b.Referee
}

// Level is the aggregate trust vocabulary, distinct from the per-verification
// high/medium/low.
type Level string

const (
	LevelTrusted    Level = "trusted"
	LevelMedium     Level = "medium"
	LevelUnverified Level = "unverified"
)

// LevelFor maps a total to its level.
func LevelFor(total int) Level {
	switch {
	case total >= 80:
		return LevelTrusted
	case total >= 50:
		return LevelMedium
	default:
		return LevelUnverified
	}
}

// Score is a user's aggregate trust score.
type Score struct {
	Total     int       `json:"total"`
	Breakdown Breakdown `json:"breakdown"`
	Level     Level     `json:"level"`
}

// ScoreOf derives the score from a breakdown.
func ScoreOf(b Breakdown) Score {
	total := b.Total()
	return Score{Total: total, Breakdown: b, Level: LevelFor(total)}
}

// Grant is one award, as published downstream.
type Grant struct {
	UserID     id.UserID         `json:"user_id"`
	Category   Category          `json:"category"`
	TrustLevel models.TrustLevel `json:"trust_level,omitempty"`
	Points     int               `json:"points"`
	Total      int               `json:"total"`
	AwardedAt  time.Time         `json:"awarded_at"`
}

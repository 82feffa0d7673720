package models

import (
	"fmt"
	"strings"
	"time"

	"trustline/internal/geo"
)

// AddressInput is the address a user claims as home.
type AddressInput struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
}

// FullAddress renders "{street}, {city}, {state} {zipCode}".
func (a AddressInput) FullAddress() string {
	return fmt.Sprintf("%s, %s, %s %s", a.Street, a.City, a.State, a.ZipCode)
}

// Complete reports whether every field is non-blank.
func (a AddressInput) Complete() bool {
	for _, f := range []string{a.Street, a.City, a.State, a.ZipCode} {
		if strings.TrimSpace(f) == "" {
			return false
		}
	}
	return true
}

// Activity labels a location-history sample.
type Activity string

const (
	ActivityHome       Activity = "Home"
	ActivitySleeping   Activity = "Sleeping"
	ActivityWork       Activity = "Work"
	ActivityShopping   Activity = "Shopping"
	ActivityRestaurant Activity = "Restaurant"
	ActivityGym        Activity = "Gym"
	ActivityTravel     Activity = "Travel"
)

// LocationHistoryEntry is one sample of a simulated location trace.
type LocationHistoryEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Coordinate geo.Coordinate `json:"coordinate"`
	Address    string         `json:"address"`
	Activity   Activity       `json:"activity"`
}

// Suspicious pattern codes raised by the analyzer.
const (
	PatternExcessiveDiversity = "Excessive location diversity"
	PatternImpossibleTravel   = "Impossible travel speed detected"
)

// LocationHistoryAnalysis summarises how consistently a trace stays at home.
type LocationHistoryAnalysis struct {
	TotalEntries       int                    `json:"total_entries"`
	HomeFrequency      float64                `json:"home_frequency"`
	ConsistencyScore   float64                `json:"consistency_score"`
	RecentActivity     []LocationHistoryEntry `json:"recent_activity"`
	SuspiciousPatterns []string               `json:"suspicious_patterns"`
	IsConsistent       bool                   `json:"is_consistent"`
}

// PhotoEXIF is the GPS metadata pulled from an uploaded photo. Latitude and
// Longitude are nil when the photo carries no position.
type PhotoEXIF struct {
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Timestamp *time.Time `json:"timestamp"`
}

// Coordinate returns the EXIF position when both axes are present.
func (e PhotoEXIF) Coordinate() (geo.Coordinate, bool) {
	if e.Latitude == nil || e.Longitude == nil {
		return geo.Coordinate{}, false
	}
	return geo.Coordinate{Lat: *e.Latitude, Lng: *e.Longitude}, true
}

// AddressValidation is the address-database verdict.
type AddressValidation struct {
	Valid      bool            `json:"valid"`
	Coordinate *geo.Coordinate `json:"coordinate"`
}

// Photo is the uploaded image reference. Content is never persisted; Digest
// identifies it.
type Photo struct {
	Digest      string `json:"digest"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Filename    string `json:"filename,omitempty"`
}

// TrustLevel is the decision engine's three-tier verdict.
type TrustLevel string

const (
	TrustLevelHigh   TrustLevel = "high"
	TrustLevelMedium TrustLevel = "medium"
	TrustLevelLow    TrustLevel = "low"
)

// ValidationResult is the terminal artifact of one verification attempt.
type ValidationResult struct {
	IsValid                 bool                     `json:"is_valid"`
	GPSMatch                bool                     `json:"gps_match"`
	PhotoEXIFMatch          bool                     `json:"photo_exif_match"`
	AddressValid            bool                     `json:"address_valid"`
	LocationHistoryMatch    bool                     `json:"location_history_match"`
	Distance                float64                  `json:"distance"`
	TrustLevel              TrustLevel               `json:"trust_level"`
	Points                  int                      `json:"points"`
	Message                 string                   `json:"message"`
	LocationHistoryAnalysis *LocationHistoryAnalysis `json:"location_history_analysis,omitempty"`
}

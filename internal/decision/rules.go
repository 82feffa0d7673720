package decision

import "trustline/internal/verification/models"

// Signals are the four booleans the rule tables read.
type Signals struct {
	AddressValid         bool
	GPSMatch             bool
	PhotoEXIFMatch       bool
	LocationHistoryMatch bool
}

type rule struct {
	when    func(Signals) bool
	level   models.TrustLevel
	points  int
	message string
}

const (
	msgAllPassed        = "All verification checks passed! Your address has been fully verified with location history analysis."
	msgGPSAndHistory    = "Address verified with GPS and location history match. Photo location data not available or not matching."
	msgGPSOnly          = "Address verified with GPS match. Location history analysis inconclusive."
	msgAddressOnly      = "Address exists in database, but location verification failed."
	msgUnverified       = "Unable to verify address. Please check your details."
	msgBasicGPSMatch    = "Address verified with GPS match."
	msgBasicAddressOnly = "Address exists in database, but your GPS location does not match it."
)

func always(Signals) bool { return true }

// Rows are evaluated top to bottom; the first match wins.
var fullRules = []rule{
	{
		when: func(s Signals) bool {
			return s.AddressValid && s.GPSMatch && s.PhotoEXIFMatch && s.LocationHistoryMatch
		},
		level: models.TrustLevelHigh, points: 25, message: msgAllPassed,
	},
	{
		when:  func(s Signals) bool { return s.AddressValid && s.GPSMatch && s.LocationHistoryMatch },
		level: models.TrustLevelMedium, points: 15, message: msgGPSAndHistory,
	},
	{
		when:  func(s Signals) bool { return s.AddressValid && s.GPSMatch },
		level: models.TrustLevelMedium, points: 15, message: msgGPSOnly,
	},
	{
		when:  func(s Signals) bool { return s.AddressValid },
		level: models.TrustLevelLow, points: 10, message: msgAddressOnly,
	},
	{when: always, level: models.TrustLevelLow, points: 10, message: msgUnverified},
}

var basicRules = []rule{
	{
		when:  func(s Signals) bool { return s.AddressValid && s.GPSMatch },
		level: models.TrustLevelHigh, points: 15, message: msgBasicGPSMatch,
	},
	{
		when:  func(s Signals) bool { return s.AddressValid },
		level: models.TrustLevelMedium, points: 10, message: msgBasicAddressOnly,
	},
	{when: always, level: models.TrustLevelLow, points: 5, message: msgUnverified},
}

// EvaluateDecision picks the first matching row of the profile's table.
// Pure: no I/O, no side effects.
func EvaluateDecision(profile Profile, s Signals) (models.TrustLevel, int, string) {
	for _, r := range profile.rules {
		if r.when(s) {
			return r.level, r.points, r.message
		}
	}
	last := profile.rules[len(profile.rules)-1]
	return last.level, last.points, last.message
}

// BuildResult assembles the terminal artifact from evaluated signals.
func BuildResult(profile Profile, s Signals, distance float64, analysis *models.LocationHistoryAnalysis) *models.ValidationResult {
	level, points, message := EvaluateDecision(profile, s)
	result := &models.ValidationResult{
		IsValid:              s.AddressValid,
		GPSMatch:             s.GPSMatch,
		PhotoEXIFMatch:       s.PhotoEXIFMatch,
		AddressValid:         s.AddressValid,
		LocationHistoryMatch: s.LocationHistoryMatch,
		Distance:             distance,
		TrustLevel:           level,
		Points:               points,
		Message:              message,
	}
	if profile.UseHistory && analysis != nil {
		result.LocationHistoryAnalysis = analysis
	}
	return result
}

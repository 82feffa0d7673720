package decision

import (
	"strings"

	"trustline/internal/geo"
	"trustline/internal/verification/models"
	dErrors "trustline/pkg/domain-errors"
)

// MatchRadiusKm is the largest distance (exclusive) at which two positions
// count as the same place.
const MatchRadiusKm = 0.5

// ProfileName selects a rule table.
type ProfileName string

const (
	// ProfileFull fuses address, GPS, photo EXIF and location history.
	ProfileFull ProfileName = "full"
	// ProfileBasic uses address and GPS only.
	ProfileBasic ProfileName = "basic"
)

// Profile is one configuration of the engine: which optional signals are
// wired in and the rule table that turns signals into a level.
type Profile struct {
	Name       ProfileName
	UsePhoto   bool
	UseHistory bool
	rules      []rule
}

var (
	FullProfile = Profile{
		Name:       ProfileFull,
		UsePhoto:   true,
		UseHistory: true,
		rules:      fullRules,
	}
	BasicProfile = Profile{
		Name:  ProfileBasic,
		rules: basicRules,
	}
)

// ParseProfile resolves a profile by name. Empty selects the full profile.
func ParseProfile(s string) (Profile, error) {
	switch ProfileName(strings.ToLower(strings.TrimSpace(s))) {
	case "", ProfileFull:
		return FullProfile, nil
	case ProfileBasic:
		return BasicProfile, nil
	default:
		return Profile{}, dErrors.New(dErrors.CodeValidation, "unknown verification profile: "+s)
	}
}

// PointsFor returns the award this profile grants for level.
func (p Profile) PointsFor(level models.TrustLevel) int {
	for _, r := range p.rules {
		if r.level == level {
			return r.points
		}
	}
	return 0
}

// Input carries every signal the engine may consume. Exif and Analysis are
// ignored when the profile does not use them.
type Input struct {
	AddressValidation *models.AddressValidation
	GPSFix            *geo.Coordinate
	Exif              *models.PhotoEXIF
	Analysis          *models.LocationHistoryAnalysis
}

// Engine reduces signals to a ValidationResult under one profile.
type Engine struct {
	profile Profile
}

// NewEngine builds an engine for profile.
func NewEngine(profile Profile) *Engine {
	return &Engine{profile: profile}
}

// Profile returns the engine's configuration.
func (e *Engine) Profile() Profile {
	return e.profile
}

// Decide applies the profile's rules. It refuses to run without the address
// verdict and a GPS fix.
func (e *Engine) Decide(in Input) (*models.ValidationResult, error) {
	if in.AddressValidation == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "address validation is required")
	}
	if in.GPSFix == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "GPS location is required")
	}
	if err := in.GPSFix.Validate(); err != nil {
		return nil, err
	}

	signals, distance := e.deriveSignals(in)
	return BuildResult(e.profile, signals, distance, in.Analysis), nil
}

// withinMatchRadius is false at exactly MatchRadiusKm and for NaN.
func withinMatchRadius(distanceKm float64) bool {
	return distanceKm < MatchRadiusKm
}

func (e *Engine) deriveSignals(in Input) (Signals, float64) {
	av := in.AddressValidation
	s := Signals{AddressValid: av.Valid}
	if !av.Valid || av.Coordinate == nil {
		return s, 0
	}

	distance := geo.DistanceKm(*in.GPSFix, *av.Coordinate)
	s.GPSMatch = withinMatchRadius(distance)

	if e.profile.UsePhoto && in.Exif != nil {
		if c, ok := in.Exif.Coordinate(); ok {
			s.PhotoEXIFMatch = withinMatchRadius(geo.DistanceKm(c, *av.Coordinate))
		}
	}
	if e.profile.UseHistory && in.Analysis != nil {
		s.LocationHistoryMatch = in.Analysis.IsConsistent
	}
	return s, distance
}

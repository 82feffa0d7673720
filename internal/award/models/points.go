package models

// Point scales for the categories scored outside address verification.
const (
	EmailPoints           = 10
	PhonePoints           = 15
	NewSIMPhonePoints     = 10
	MatureSIMMonths       = 6
	RefereePoints         = 20
	MaxReferees           = 2
	GoogleProfilePoints   = 10
	LinkedInProfilePoints = 20
	TwitterProfilePoints  = 10
)

// PhonePointsFor rewards SIM cards held for at least MatureSIMMonths.
func PhonePointsFor(simAgeMonths int) int {
	if simAgeMonths >= MatureSIMMonths {
		return PhonePoints
	}
	return NewSIMPhonePoints
}

// SocialProfiles records which profiles a user linked.
type SocialProfiles struct {
	Google   bool `json:"google"`
	LinkedIn bool `json:"linkedin"`
	Twitter  bool `json:"twitter"`
}

// Points sums the linked profiles.
func (p SocialProfiles) Points() int {
	total := 0
	if p.Google {
		total += GoogleProfilePoints
	}
	if p.LinkedIn {
		total += LinkedInProfilePoints
	}
	if p.Twitter {
		total += TwitterProfilePoints
	}
	return total
}

// RefereePointsFor rewards each verified referee, counting at most
// MaxReferees of them.
func RefereePointsFor(verified int) int {
	return min(max(verified, 0), MaxReferees) * RefereePoints
}

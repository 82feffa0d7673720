package handler

import (
	"trustline/internal/award/models"
	dErrors "trustline/pkg/domain-errors"
	"trustline/pkg/platform/httputil"
)

// AwardRequest is the body of POST /admin/users/{user_id}/trust-points.
// Address points are only granted by completing a verification.
type AwardRequest struct {
	Category         string                `json:"category" validate:"required,oneof=email phone social referee"`
	EmailVerified    bool                  `json:"email_verified"`
	PhoneVerified    bool                  `json:"phone_verified"`
	SIMAgeMonths     int                   `json:"sim_age_months" validate:"gte=0"`
	Social           models.SocialProfiles `json:"social"`
	VerifiedReferees int                   `json:"verified_referees" validate:"gte=0,lte=2"`
}

func (r *AwardRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return httputil.ValidateStruct(r)
}

// Points converts the evidence into the category's award.
func (r *AwardRequest) Points() int {
	switch models.Category(r.Category) {
	case models.CategoryEmail:
		if r.EmailVerified {
			return models.EmailPoints
		}
	case models.CategoryPhone:
		if r.PhoneVerified {
			return models.PhonePointsFor(r.SIMAgeMonths)
		}
	case models.CategorySocial:
		return r.Social.Points()
	case models.CategoryReferee:
		return models.RefereePointsFor(r.VerifiedReferees)
	}
	return 0
}

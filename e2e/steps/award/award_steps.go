package award

import (
	"context"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string) error
	AdminPOST(path string, body any) error
	UserID() string
}

// RegisterSteps registers trust-score step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &awardSteps{tc: tc}

	ctx.Step(`^I fetch my trust score$`, steps.fetchScore)
	ctx.Step(`^an operator confirms my email$`, steps.confirmEmail)
	ctx.Step(`^an operator confirms my phone with a SIM held for (\d+) months$`, steps.confirmPhone)
	ctx.Step(`^an operator records (\d+) verified referees$`, steps.recordReferees)
	ctx.Step(`^an operator links my Google and LinkedIn profiles$`, steps.linkSocial)
}

type awardSteps struct {
	tc TestContext
}

func (s *awardSteps) pointsPath() string {
	return "/v1/admin/users/" + s.tc.UserID() + "/trust-points"
}

func (s *awardSteps) fetchScore(ctx context.Context) error {
	return s.tc.GET("/v1/trust-score")
}

func (s *awardSteps) confirmEmail(ctx context.Context) error {
	return s.tc.AdminPOST(s.pointsPath(), map[string]any{"category": "email", "email_verified": true})
}

func (s *awardSteps) confirmPhone(ctx context.Context, months int) error {
	return s.tc.AdminPOST(s.pointsPath(), map[string]any{
		"category":       "phone",
		"phone_verified": true,
		"sim_age_months": months,
	})
}

func (s *awardSteps) recordReferees(ctx context.Context, n int) error {
	return s.tc.AdminPOST(s.pointsPath(), map[string]any{"category": "referee", "verified_referees": n})
}

func (s *awardSteps) linkSocial(ctx context.Context) error {
	return s.tc.AdminPOST(s.pointsPath(), map[string]any{
		"category": "social",
		"social":   map[string]bool{"google": true, "linkedin": true},
	})
}

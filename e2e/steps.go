package e2e

import (
	"github.com/cucumber/godog"

	"trustline/e2e/steps/award"
	"trustline/e2e/steps/common"
	"trustline/e2e/steps/ratelimit"
	"trustline/e2e/steps/verification"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	verification.RegisterSteps(ctx, tc)
	award.RegisterSteps(ctx, tc)
	ratelimit.RegisterSteps(ctx, tc)
}

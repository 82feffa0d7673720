package e2e

import (
	"context"
	"os"
	"testing"

	"github.com/cucumber/godog"
)

func TestFeatures(t *testing.T) {
	if os.Getenv("E2E_BASE_URL") == "" {
		t.Skip("E2E_BASE_URL not set; start the server and point the suite at it")
	}
	tc := NewTestContext()

	suite := godog.TestSuite{
		TestSuiteInitializer: func(s *godog.TestSuiteContext) {
			s.BeforeSuite(func() {
				if err := tc.Ping(); err != nil {
					t.Fatalf("service not reachable: %v", err)
				}
			})
		},
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
				tc.Reset()
				return ctx, nil
			})
			RegisterSteps(ctx, tc)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			Tags:     os.Getenv("E2E_TAGS"),
			TestingT: t,
			Strict:   true,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("e2e features failed")
	}
}

package ratelimit

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// RegisterSteps registers rate-limiting step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^I start verifications until I am rate limited, at most (\d+) times$`, steps.startUntilLimited)
	ctx.Step(`^I should have been rate limited$`, steps.shouldHaveBeenLimited)
}

type ratelimitSteps struct {
	tc       TestContext
	limited  bool
	attempts int
}

func (s *ratelimitSteps) startUntilLimited(ctx context.Context, max int) error {
	s.limited, s.attempts = false, 0
	for range max {
		if err := s.tc.POST("/v1/address-verifications", nil); err != nil {
			return err
		}
		s.attempts++
		switch s.tc.GetLastResponseStatus() {
		case http.StatusTooManyRequests:
			s.limited = true
			return nil
		case http.StatusCreated:
		default:
			return fmt.Errorf("unexpected status %d: %s", s.tc.GetLastResponseStatus(), s.tc.GetLastResponseBody())
		}
	}
	return nil
}

func (s *ratelimitSteps) shouldHaveBeenLimited(ctx context.Context) error {
	if !s.limited {
		return fmt.Errorf("not rate limited after %d attempts", s.attempts)
	}
	return nil
}

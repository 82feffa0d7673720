package common

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Ping() error
	Authenticate() error
	ClearAccessToken()
	GET(path string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// RegisterSteps registers background, request and assertion steps shared by
// every feature.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the trustline service is running$`, steps.serviceIsRunning)
	ctx.Step(`^I am authenticated as a new user$`, steps.authenticated)
	ctx.Step(`^I am not authenticated$`, steps.notAuthenticated)
	ctx.Step(`^I GET "([^"]*)"$`, steps.get)

	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.fieldShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be (\d+)$`, steps.fieldShouldBeNumber)
	ctx.Step(`^the response should contain "([^"]*)"$`, steps.responseShouldContain)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) serviceIsRunning(ctx context.Context) error {
	return s.tc.Ping()
}

func (s *commonSteps) authenticated(ctx context.Context) error {
	return s.tc.Authenticate()
}

func (s *commonSteps) notAuthenticated(ctx context.Context) error {
	s.tc.ClearAccessToken()
	return nil
}

func (s *commonSteps) get(ctx context.Context, path string) error {
	return s.tc.GET(path)
}

func (s *commonSteps) statusShouldBe(ctx context.Context, expected int) error {
	if got := s.tc.GetLastResponseStatus(); got != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, got, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) fieldShouldBe(ctx context.Context, field, expected string) error {
	value, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(value); got != expected {
		return fmt.Errorf("expected %s to be %q, got %q", field, expected, got)
	}
	return nil
}

func (s *commonSteps) fieldShouldBeNumber(ctx context.Context, field string, expected int) error {
	return s.fieldShouldBe(ctx, field, strconv.Itoa(expected))
}

func (s *commonSteps) responseShouldContain(ctx context.Context, text string) error {
	body := string(s.tc.GetLastResponseBody())
	if !strings.Contains(body, text) {
		return fmt.Errorf("expected response to contain %q, got %s", text, body)
	}
	return nil
}

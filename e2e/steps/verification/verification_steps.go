package verification

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string) error
	POST(path string, body any) error
	PUT(path string, body any) error
	UploadPhoto(path, filename, contentType string, content []byte) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	SessionID() string
	SetSessionID(id string)
}

// RegisterSteps registers address-verification step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &verificationSteps{tc: tc}

	ctx.Step(`^I start an address verification$`, steps.start)
	ctx.Step(`^I start an address verification with profile "([^"]*)"$`, steps.startWithProfile)
	ctx.Step(`^I submit the address "([^"]*)", "([^"]*)", "([^"]*)", "([^"]*)"$`, steps.submitAddress)
	ctx.Step(`^I share my location (-?\d+\.\d+), (-?\d+\.\d+)$`, steps.shareLocation)
	ctx.Step(`^I upload a photo of my front door$`, steps.uploadPhoto)
	ctx.Step(`^I upload a "([^"]*)" file$`, steps.uploadFileOfType)
	ctx.Step(`^I run the verification$`, steps.verify)
	ctx.Step(`^I go back$`, steps.back)
	ctx.Step(`^I restart the verification$`, steps.restart)
	ctx.Step(`^I complete the verification$`, steps.complete)
	ctx.Step(`^I fetch the verification$`, steps.fetch)
	ctx.Step(`^I fetch the location history$`, steps.history)

	ctx.Step(`^the verification step should be "([^"]*)"$`, steps.stepShouldBe)
	ctx.Step(`^the verification should have a trust level$`, steps.shouldHaveTrustLevel)
}

type verificationSteps struct {
	tc TestContext
}

func (s *verificationSteps) base() string {
	return "/v1/address-verifications/" + s.tc.SessionID()
}

func (s *verificationSteps) start(ctx context.Context) error {
	return s.startWithProfile(ctx, "")
}

func (s *verificationSteps) startWithProfile(ctx context.Context, profile string) error {
	var body any
	if profile != "" {
		body = map[string]string{"profile": profile}
	}
	if err := s.tc.POST("/v1/address-verifications", body); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != 201 {
		return nil
	}
	id, err := s.tc.GetResponseField("id")
	if err != nil {
		return err
	}
	s.tc.SetSessionID(fmt.Sprint(id))
	return nil
}

func (s *verificationSteps) submitAddress(ctx context.Context, street, city, state, zip string) error {
	return s.tc.PUT(s.base()+"/address", map[string]string{
		"street":   street,
		"city":     city,
		"state":    state,
		"zip_code": zip,
	})
}

func (s *verificationSteps) shareLocation(ctx context.Context, lat, lng float64) error {
	return s.tc.POST(s.base()+"/gps", map[string]float64{"lat": lat, "lng": lng, "accuracy_m": 10})
}

func (s *verificationSteps) uploadPhoto(ctx context.Context) error {
	return s.tc.UploadPhoto(s.base()+"/photo", "front-door.jpg", "image/jpeg", []byte("\xff\xd8\xff\xe0 e2e photo"))
}

func (s *verificationSteps) uploadFileOfType(ctx context.Context, contentType string) error {
	return s.tc.UploadPhoto(s.base()+"/photo", "upload.bin", contentType, []byte("not an image"))
}

func (s *verificationSteps) verify(ctx context.Context) error {
	return s.tc.POST(s.base()+"/verify", nil)
}

func (s *verificationSteps) back(ctx context.Context) error {
	return s.tc.POST(s.base()+"/back", nil)
}

func (s *verificationSteps) restart(ctx context.Context) error {
	return s.tc.POST(s.base()+"/restart", nil)
}

func (s *verificationSteps) complete(ctx context.Context) error {
	return s.tc.POST(s.base()+"/complete", nil)
}

func (s *verificationSteps) fetch(ctx context.Context) error {
	return s.tc.GET(s.base())
}

func (s *verificationSteps) history(ctx context.Context) error {
	return s.tc.GET(s.base() + "/history.geojson")
}

func (s *verificationSteps) stepShouldBe(ctx context.Context, expected string) error {
	step, err := s.tc.GetResponseField("step")
	if err != nil {
		return err
	}
	if step != expected {
		return fmt.Errorf("expected step %q, got %v", expected, step)
	}
	return nil
}

func (s *verificationSteps) shouldHaveTrustLevel(ctx context.Context) error {
	level, err := s.tc.GetResponseField("result.trust_level")
	if err != nil {
		return err
	}
	switch level {
	case "high", "medium", "low":
		return nil
	}
	return fmt.Errorf("unexpected trust level %v", level)
}

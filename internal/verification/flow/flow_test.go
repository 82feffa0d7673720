package flow

import (
	"iter"
	"slices"
	"testing"

	"github.com/stretchr/testify/suite"

	"trustline/internal/decision"
	dErrors "trustline/pkg/domain-errors"
)

type FlowSuite struct {
	suite.Suite
	full  Machine
	basic Machine
}

func TestFlowSuite(t *testing.T) {
	suite.Run(t, new(FlowSuite))
}

func (s *FlowSuite) SetupTest() {
	s.full = ForProfile(decision.FullProfile)
	s.basic = ForProfile(decision.BasicProfile)
}

func (s *FlowSuite) TestSteps() {
	s.Equal([]Step{StepInput, StepGPS, StepPhoto, StepLocationHistory, StepValidating, StepResult}, s.full.Steps())
	s.Equal([]Step{StepInput, StepGPS, StepValidating, StepResult}, s.basic.Steps())
	s.Equal(StepLocationHistory, s.full.ReadyStep())
	s.Equal(StepGPS, s.basic.ReadyStep())
	s.False(s.basic.Has(StepPhoto))
}

func (s *FlowSuite) TestSubmit() {
	walk := func(m Machine) []Step {
		var seen []Step
		step := m.First()
		for {
			next, err := m.Submit(step)
			s.Require().NoError(err)
			seen = append(seen, next)
			if next == step {
				return seen
			}
			step = next
		}
	}
	s.Equal([]Step{StepGPS, StepPhoto, StepLocationHistory, StepLocationHistory}, walk(s.full))
	s.Equal([]Step{StepGPS, StepGPS}, walk(s.basic))

	_, err := s.full.Submit(StepResult)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *FlowSuite) TestValidation() {
	_, err := s.full.StartValidation(StepPhoto)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	step, err := s.full.StartValidation(StepLocationHistory)
	s.Require().NoError(err)
	s.Equal(StepValidating, step)
	s.Equal(StepResult, s.full.Resolve(true))
	s.Equal(StepLocationHistory, s.full.Resolve(false))
	s.Equal(StepGPS, s.basic.Resolve(false))
}

func (s *FlowSuite) TestBack() {
	cases := []struct {
		m    Machine
		from Step
		to   Step
	}{
		{s.full, StepGPS, StepInput},
		{s.full, StepPhoto, StepGPS},
		{s.full, StepLocationHistory, StepPhoto},
		{s.full, StepValidating, StepLocationHistory},
		{s.full, StepResult, StepLocationHistory},
		{s.basic, StepResult, StepGPS},
		{s.basic, StepGPS, StepInput},
	}
	for _, tc := range cases {
		s.Run(string(tc.from)+"->"+string(tc.to), func() {
			got, err := tc.m.Back(tc.from)
			s.Require().NoError(err)
			s.Equal(tc.to, got)
		})
	}

	_, err := s.full.Back(StepInput)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	_, err = s.basic.Back(StepPhoto)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *FlowSuite) TestStepsAfter() {
	s.Equal([]Step{StepValidating, StepResult}, slices.Collect(s.full.StepsAfter(StepLocationHistory)))
	s.Equal([]Step{StepPhoto, StepLocationHistory, StepValidating, StepResult}, slices.Collect(s.full.StepsAfter(StepGPS)))
	s.Empty(slices.Collect(s.full.StepsAfter(StepResult)))
}

func (s *FlowSuite) TestCompleteOnlyFromResult() {
	for _, step := range s.full.Steps() {
		err := s.full.CanComplete(step)
		if step == StepResult {
			s.NoError(err)
			continue
		}
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState), step)
	}
}

func (s *FlowSuite) TestValidatingPhrasesCycle() {
	next, stop := iter.Pull(ValidatingPhrases())
	defer stop()
	var got []string
	for range 7 {
		p, ok := next()
		s.Require().True(ok)
		got = append(got, p)
	}
	s.Equal("Extracting photo EXIF data...", got[0])
	s.Equal("Calculating trust score...", got[4])
	s.Equal(got[0], got[5])
	s.Equal(got[1], got[6])
}

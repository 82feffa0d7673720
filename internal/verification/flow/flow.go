// Package flow is the step state machine of an address verification. It
// knows which steps a profile walks through and which transitions are legal;
// it holds no session data.
package flow

import (
	"iter"
	"slices"

	"trustline/internal/decision"
	"trustline/internal/verification/models"
	dErrors "trustline/pkg/domain-errors"
)

// Step aliases the session step so callers need not import models.
type Step = models.Step

const (
	StepInput           = models.StepInput
	StepGPS             = models.StepGPS
	StepPhoto           = models.StepPhoto
	StepLocationHistory = models.StepLocationHistory
	StepValidating      = models.StepValidating
	StepResult          = models.StepResult
)

// Machine is the ordered step list for one profile.
type Machine struct {
	steps []Step
}

// ForProfile returns the steps a profile walks through. Steps for signals the
// profile does not use are skipped.
func ForProfile(p decision.Profile) Machine {
	steps := []Step{StepInput, StepGPS}
	if p.UsePhoto {
		steps = append(steps, StepPhoto)
	}
	if p.UseHistory {
		steps = append(steps, StepLocationHistory)
	}
	return Machine{steps: append(steps, StepValidating, StepResult)}
}

// Steps returns a copy of the ordered steps.
func (m Machine) Steps() []Step {
	return slices.Clone(m.steps)
}

// First is where every session starts.
func (m Machine) First() Step {
	return StepInput
}

// Has reports whether the profile walks through step.
func (m Machine) Has(step Step) bool {
	return slices.Contains(m.steps, step)
}

func (m Machine) index(step Step) int {
	return slices.Index(m.steps, step)
}

// ReadyStep is the step from which validation is started: the last step
// before validating.
func (m Machine) ReadyStep() Step {
	return m.steps[m.index(StepValidating)-1]
}

// Require fails with CodeInvalidState unless current is want.
func (m Machine) Require(current, want Step) error {
	if !m.Has(want) {
		return dErrors.New(dErrors.CodeInvalidState, "step "+string(want)+" is not part of this verification")
	}
	if current != want {
		return dErrors.New(dErrors.CodeInvalidState, "verification is at step "+string(current)+", not "+string(want))
	}
	return nil
}

// Submit returns the step that follows a successful submission at current.
// Submitting the ready step keeps the session there until validation starts.
func (m Machine) Submit(current Step) (Step, error) {
	i := m.index(current)
	if i < 0 || current == StepValidating || current == StepResult {
		return current, dErrors.New(dErrors.CodeInvalidState, "nothing to submit at step "+string(current))
	}
	next := m.steps[i+1]
	if next == StepValidating {
		return current, nil
	}
	return next, nil
}

// StartValidation moves from the ready step into validating.
func (m Machine) StartValidation(current Step) (Step, error) {
	if current != m.ReadyStep() {
		return current, dErrors.New(dErrors.CodeInvalidState, "verification cannot start from step "+string(current))
	}
	return StepValidating, nil
}

// Resolve ends validating: the result on success, back to the ready step on
// failure so the user can retry. No partial result is kept.
func (m Machine) Resolve(ok bool) Step {
	if ok {
		return StepResult
	}
	return m.ReadyStep()
}

// Back returns the preceding non-transient step. From result and from an
// in-flight validation it returns the ready step.
func (m Machine) Back(current Step) (Step, error) {
	i := m.index(current)
	switch {
	case i < 0:
		return current, dErrors.New(dErrors.CodeInvalidState, "unknown step "+string(current))
	case i == 0:
		return current, dErrors.New(dErrors.CodeInvalidState, "already at the first step")
	case current == StepResult || current == StepValidating:
		return m.ReadyStep(), nil
	default:
		return m.steps[i-1], nil
	}
}

// StepsAfter yields the steps strictly after step. Going back to step
// discards the data those steps own.
func (m Machine) StepsAfter(step Step) iter.Seq[Step] {
	return func(yield func(Step) bool) {
		i := m.index(step)
		if i < 0 {
			return
		}
		for _, s := range m.steps[i+1:] {
			if !yield(s) {
				return
			}
		}
	}
}

// CanComplete fails unless current is result.
func (m Machine) CanComplete(current Step) error {
	if current != StepResult {
		return dErrors.New(dErrors.CodeInvalidState, "verification can only be completed from the result step")
	}
	return nil
}

var validatingPhrases = []string{
	"Extracting photo EXIF data...",
	"Validating address in database...",
	"Cross-checking GPS coordinates...",
	"Analyzing location history patterns...",
	"Calculating trust score...",
}

// ValidatingPhrases cycles through the progress captions shown while
// validating. The sequence never ends; stop pulling to stop it.
func ValidatingPhrases() iter.Seq[string] {
	return func(yield func(string) bool) {
		for i := 0; ; i = (i + 1) % len(validatingPhrases) {
			if !yield(validatingPhrases[i]) {
				return
			}
		}
	}
}

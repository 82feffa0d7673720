package service

import (
	"context"
	"errors"
	"time"

	"github.com/paulmach/orb/geojson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"trustline/internal/decision"
	"trustline/internal/verification/flow"
	"trustline/internal/verification/history"
	"trustline/internal/verification/models"
	id "trustline/pkg/domain"
	dErrors "trustline/pkg/domain-errors"
	"trustline/pkg/platform/sentinel"
	"trustline/pkg/requestcontext"
)

const (
	outcomeDecided    = "decided"
	outcomeFailed     = "failed"
	outcomeCancelled  = "cancelled"
	outcomeSuperseded = "superseded"
)

type runOutput struct {
	history []models.LocationHistoryEntry
	result  *models.ValidationResult
}

// Verify runs the validating step: history analysis when the profile uses
// it, then evidence gathering and the decision. It blocks until the session
// reaches result, or fails back to the ready step with a retryable error.
// A run overtaken by back or restart is discarded.
func (s *Service) Verify(ctx context.Context, userID id.UserID, sessionID id.SessionID) (*models.Session, error) {
	session, runCtx, generation, err := s.beginValidation(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	defer s.endValidation(sessionID, generation)

	start := time.Now()
	release := s.metrics.TrackInFlight()
	out, runErr := s.runValidation(runCtx, session)
	release()

	// The run is over; finishing it must not depend on the caller staying.
	finishCtx := context.WithoutCancel(ctx)
	return s.finishValidation(finishCtx, userID, sessionID, generation, out, runErr, start)
}

func (s *Service) beginValidation(ctx context.Context, userID id.UserID, sessionID id.SessionID) (*models.Session, context.Context, uint64, error) {
	session, err := s.mutate(ctx, userID, sessionID, func(session *models.Session, m flow.Machine) error {
		next, err := m.StartValidation(session.Step)
		if err != nil {
			return err
		}
		session.Step = next
		session.LastError = ""
		return nil
	})
	if err != nil {
		return nil, nil, 0, err
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if s.validationTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, s.validationTimeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	s.mu.Lock()
	s.inflight[sessionID] = &validationRun{generation: session.Generation, cancel: cancel}
	s.mu.Unlock()
	return session, runCtx, session.Generation, nil
}

func (s *Service) endValidation(sessionID id.SessionID, generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.inflight[sessionID]; ok && run.generation == generation {
		run.cancel()
		delete(s.inflight, sessionID)
	}
}

func (s *Service) runValidation(ctx context.Context, session *models.Session) (runOutput, error) {
	ctx, span := s.tracer.Start(ctx, "verification.Validate")
	defer span.End()
	span.SetAttributes(
		attribute.String("session_id", session.ID.String()),
		attribute.String("profile", session.Profile),
	)

	profile, err := decision.ParseProfile(session.Profile)
	if err != nil {
		return runOutput{}, err
	}
	if session.Address == nil {
		return runOutput{}, dErrors.New(dErrors.CodeValidation, "address is required")
	}
	gps := session.GPSCoordinate()
	if gps == nil {
		return runOutput{}, dErrors.New(dErrors.CodeValidation, "Missing GPS location data")
	}

	var out runOutput
	var analysis *models.LocationHistoryAnalysis
	if profile.UseHistory {
		out.history = s.simulator.Generate(requestcontext.Now(ctx), *gps, session.Address.Street, session.Address.City)
		analysis, err = s.analyzer.Analyze(ctx, out.history, session.Address.FullAddress(), *gps)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "history analysis failed")
			return runOutput{}, err
		}
	}

	eval, err := s.evaluator.Evaluate(ctx, decision.EvaluateRequest{
		UserID:    session.UserID,
		SessionID: session.ID,
		Profile:   profile,
		Address:   *session.Address,
		GPSFix:    gps,
		Photo:     session.Photo,
		Analysis:  analysis,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "evaluation failed")
		return runOutput{}, err
	}
	out.result = eval.Result
	span.SetAttributes(attribute.String("trust_level", string(eval.Result.TrustLevel)))
	return out, nil
}

func (s *Service) finishValidation(ctx context.Context, userID id.UserID, sessionID id.SessionID, generation uint64, out runOutput, runErr error, start time.Time) (*models.Session, error) {
	outcome := outcomeDecided
	session, err := s.mutate(ctx, userID, sessionID, func(session *models.Session, m flow.Machine) error {
		if session.Generation != generation || session.Step != flow.StepValidating {
			outcome = outcomeSuperseded
			return dErrors.Wrap(sentinel.ErrStale, dErrors.CodeConflict, "verification was cancelled by a newer action")
		}
		if runErr != nil {
			outcome = outcomeFailed
			if errors.Is(runErr, context.Canceled) {
				outcome = outcomeCancelled
			}
			session.Step = m.Resolve(false)
			session.History = nil
			session.Result = nil
			session.LastError = dErrors.MessageOf(retryableError(runErr))
			return nil
		}
		session.Step = m.Resolve(true)
		session.History = out.history
		session.Result = out.result
		return nil
	})
	s.metrics.ObserveValidation(outcome, time.Since(start))

	if err != nil {
		return nil, err
	}
	if runErr != nil {
		s.logger.WarnContext(ctx, "verification failed",
			"session_id", sessionID,
			"step", session.Step,
			"outcome", outcome,
			"error", runErr,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, retryableError(runErr)
	}
	return session, nil
}

// retryableError keeps domain errors and turns infrastructure failures into
// a message the user can act on.
func retryableError(err error) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "Verification timed out. Please try again.")
	case errors.Is(err, history.ErrEmptyHistory):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "Location history analysis failed. Please try again.")
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "Verification failed. Please try again.")
	}
}

// HistoryGeoJSON renders the trace recorded by the last validation.
func (s *Service) HistoryGeoJSON(ctx context.Context, userID id.UserID, sessionID id.SessionID) (*geojson.FeatureCollection, error) {
	session, _, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	home := session.GPSCoordinate()
	if len(session.History) == 0 || home == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "no location history recorded for this session")
	}
	return history.ToGeoJSON(session.History, *home), nil
}

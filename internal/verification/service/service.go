package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"trustline/internal/decision"
	"trustline/internal/verification/flow"
	"trustline/internal/verification/metrics"
	"trustline/internal/verification/models"
	"trustline/internal/verification/ports"
	id "trustline/pkg/domain"
	dErrors "trustline/pkg/domain-errors"
	"trustline/pkg/platform/audit"
	"trustline/pkg/platform/sentinel"
	"trustline/pkg/requestcontext"
)

// Service orchestrates verification sessions through the step flow.
type Service struct {
	sessions  ports.SessionStore
	evaluator ports.Evaluator
	simulator ports.HistorySimulator
	analyzer  ports.HistoryAnalyzer
	geocoder  ports.ReverseGeocoder
	awarder   ports.PointsAwarder
	auditor   ports.AuditPort
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer

	defaultProfile    decision.Profile
	maxPhotoBytes     int64
	validationTimeout time.Duration

	locks    *sessionLocks
	mu       sync.Mutex
	inflight map[id.SessionID]*validationRun
}

type validationRun struct {
	generation uint64
	cancel     context.CancelFunc
}

// Option configures a Service.
type Option func(*Service)

func WithGeocoder(g ports.ReverseGeocoder) Option { return func(s *Service) { s.geocoder = g } }
func WithAwarder(a ports.PointsAwarder) Option    { return func(s *Service) { s.awarder = a } }
func WithAuditor(a ports.AuditPort) Option        { return func(s *Service) { s.auditor = a } }
func WithMetrics(m *metrics.Metrics) Option       { return func(s *Service) { s.metrics = m } }
func WithLogger(l *slog.Logger) Option            { return func(s *Service) { s.logger = l } }

// WithDefaultProfile selects the profile used when Start is not given one.
func WithDefaultProfile(p decision.Profile) Option {
	return func(s *Service) { s.defaultProfile = p }
}

// WithMaxPhotoBytes overrides DefaultMaxPhotoBytes.
func WithMaxPhotoBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxPhotoBytes = n
		}
	}
}

// WithValidationTimeout bounds one validation run. Zero leaves it unbounded.
func WithValidationTimeout(d time.Duration) Option {
	return func(s *Service) { s.validationTimeout = d }
}

// New wires the session store and the collaborators of a validation run.
func New(sessions ports.SessionStore, evaluator ports.Evaluator, simulator ports.HistorySimulator, analyzer ports.HistoryAnalyzer, opts ...Option) *Service {
	s := &Service{
		sessions:       sessions,
		evaluator:      evaluator,
		simulator:      simulator,
		analyzer:       analyzer,
		logger:         slog.Default(),
		tracer:         otel.Tracer("trustline/verification"),
		defaultProfile: decision.FullProfile,
		maxPhotoBytes:  DefaultMaxPhotoBytes,
		locks:          newSessionLocks(),
		inflight:       make(map[id.SessionID]*validationRun),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens a session at the input step. An empty profile selects the
// configured default.
func (s *Service) Start(ctx context.Context, userID id.UserID, profileName string) (*models.Session, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	profile := s.defaultProfile
	if strings.TrimSpace(profileName) != "" {
		p, err := decision.ParseProfile(profileName)
		if err != nil {
			return nil, err
		}
		profile = p
	}

	now := requestcontext.Now(ctx)
	session := &models.Session{
		ID:        id.NewSessionID(),
		UserID:    userID,
		Profile:   string(profile.Name),
		Step:      flow.ForProfile(profile).First(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save verification session")
	}

	s.metrics.IncStarted(session.Profile)
	s.emitOperational(ctx, session, audit.EventVerificationStarted)
	s.logger.InfoContext(ctx, "verification session started",
		"session_id", session.ID,
		"user_id", userID,
		"profile", session.Profile,
		"request_id", requestcontext.RequestID(ctx),
	)
	return session, nil
}

// Get returns the caller's session.
func (s *Service) Get(ctx context.Context, userID id.UserID, sessionID id.SessionID) (*models.Session, error) {
	session, _, err := s.load(ctx, userID, sessionID)
	return session, err
}

// SetAddress records the claimed address at the input step.
func (s *Service) SetAddress(ctx context.Context, userID id.UserID, sessionID id.SessionID, address models.AddressInput) (*models.Session, error) {
	address = models.AddressInput{
		Street:  strings.TrimSpace(address.Street),
		City:    strings.TrimSpace(address.City),
		State:   strings.TrimSpace(address.State),
		ZipCode: strings.TrimSpace(address.ZipCode),
	}
	if !address.Complete() {
		return nil, dErrors.New(dErrors.CodeValidation, "Please fill in all address fields")
	}
	return s.mutate(ctx, userID, sessionID, func(session *models.Session, m flow.Machine) error {
		if err := m.Require(session.Step, flow.StepInput); err != nil {
			return err
		}
		session.Address = &address
		return advance(session, m)
	})
}

func advance(session *models.Session, m flow.Machine) error {
	next, err := m.Submit(session.Step)
	if err != nil {
		return err
	}
	session.Step = next
	return nil
}

func (s *Service) load(ctx context.Context, userID id.UserID, sessionID id.SessionID) (*models.Session, flow.Machine, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, flow.Machine{}, dErrors.New(dErrors.CodeNotFound, "verification session not found")
		}
		return nil, flow.Machine{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification session")
	}
	if session.UserID != userID {
		return nil, flow.Machine{}, dErrors.New(dErrors.CodeForbidden, "verification session belongs to another user")
	}
	profile, err := decision.ParseProfile(session.Profile)
	if err != nil {
		return nil, flow.Machine{}, dErrors.Wrap(err, dErrors.CodeInternal, "verification session has an unknown profile")
	}
	return session, flow.ForProfile(profile), nil
}

// mutate runs fn on the freshly loaded session under the session lock and
// saves the result. Nothing is written when fn fails.
func (s *Service) mutate(ctx context.Context, userID id.UserID, sessionID id.SessionID, fn func(*models.Session, flow.Machine) error) (*models.Session, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	session, machine, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	from := session.Step
	if err := fn(session, machine); err != nil {
		return nil, err
	}
	session.UpdatedAt = requestcontext.Now(ctx)
	if err := s.sessions.Save(ctx, session); err != nil {
		if errors.Is(err, sentinel.ErrStale) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "verification session changed concurrently, please retry")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save verification session")
	}
	if from != session.Step {
		s.logger.InfoContext(ctx, "verification step changed",
			"session_id", sessionID,
			"from", from,
			"step", session.Step,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return session, nil
}

// Back returns to the preceding step and discards the data owned by every
// later step. An in-flight validation is cancelled.
func (s *Service) Back(ctx context.Context, userID id.UserID, sessionID id.SessionID) (*models.Session, error) {
	return s.mutate(ctx, userID, sessionID, func(session *models.Session, m flow.Machine) error {
		to, err := m.Back(session.Step)
		if err != nil {
			return err
		}
		s.cancelInFlight(sessionID)
		for step := range m.StepsAfter(to) {
			session.Clear(step)
		}
		session.Step = to
		session.Generation++
		session.LastError = ""
		return nil
	})
}

// Restart discards everything and returns to the input step. The session
// keeps its ID and profile.
func (s *Service) Restart(ctx context.Context, userID id.UserID, sessionID id.SessionID) (*models.Session, error) {
	session, err := s.mutate(ctx, userID, sessionID, func(session *models.Session, m flow.Machine) error {
		s.cancelInFlight(sessionID)
		*session = models.Session{
			ID:         session.ID,
			UserID:     session.UserID,
			Profile:    session.Profile,
			Step:       m.First(),
			Generation: session.Generation + 1,
			CreatedAt:  session.CreatedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emitOperational(ctx, session, audit.EventVerificationRestarted)
	return session, nil
}

// Complete hands the result to the point-award consumer and closes the
// session. It is only legal from the result step.
func (s *Service) Complete(ctx context.Context, userID id.UserID, sessionID id.SessionID) (*models.Completion, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	session, machine, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := machine.CanComplete(session.Step); err != nil {
		return nil, err
	}
	if session.Result == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "result step without a result")
	}

	profile, _ := decision.ParseProfile(session.Profile)
	completion := &models.Completion{
		SessionID:   session.ID,
		UserID:      userID,
		Result:      *session.Result,
		Points:      profile.PointsFor(session.Result.TrustLevel),
		CompletedAt: requestcontext.Now(ctx),
	}

	if s.awarder != nil {
		if err := s.awarder.AwardAddress(ctx, userID, completion.Result.TrustLevel, completion.Points); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to award trust points")
		}
	}
	if s.auditor != nil {
		if err := s.auditor.Emit(ctx, audit.ComplianceEvent{
			Timestamp: completion.CompletedAt,
			UserID:    userID,
			Subject:   sessionID.String(),
			Action:    audit.EventVerificationCompleted,
			Decision:  string(completion.Result.TrustLevel),
			Reason:    completion.Result.Message,
			RequestID: requestcontext.RequestID(ctx),
		}); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to audit verification completion")
		}
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.ErrorContext(ctx, "failed to discard completed session",
			"session_id", sessionID,
			"error", err,
		)
	}

	s.metrics.IncCompleted(string(completion.Result.TrustLevel))
	s.logger.InfoContext(ctx, "verification completed",
		"session_id", sessionID,
		"user_id", userID,
		"trust_level", completion.Result.TrustLevel,
		"points", completion.Points,
		"request_id", requestcontext.RequestID(ctx),
	)
	return completion, nil
}

func (s *Service) cancelInFlight(sessionID id.SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.inflight[sessionID]; ok {
		run.cancel()
		delete(s.inflight, sessionID)
	}
}

func (s *Service) emitOperational(ctx context.Context, session *models.Session, action audit.AuditEvent) {
	if s.auditor == nil {
		return
	}
	err := s.auditor.Emit(ctx, audit.ComplianceEvent{
		Timestamp: requestcontext.Now(ctx),
		UserID:    session.UserID,
		Subject:   session.ID.String(),
		Action:    action,
		RequestID: requestcontext.RequestID(ctx),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to audit verification event",
			"action", action,
			"session_id", session.ID,
			"error", err,
		)
	}
}

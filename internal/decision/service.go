package decision

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"trustline/internal/decision/metrics"
	"trustline/internal/decision/ports"
	"trustline/internal/geo"
	"trustline/internal/verification/models"
	id "trustline/pkg/domain"
	dErrors "trustline/pkg/domain-errors"
	"trustline/pkg/platform/audit"
	"trustline/pkg/requestcontext"
)

// DefaultEvidenceTimeout bounds concurrent evidence gathering.
const DefaultEvidenceTimeout = 10 * time.Second

// EvaluateRequest is everything needed to decide one verification attempt.
type EvaluateRequest struct {
	UserID    id.UserID
	SessionID id.SessionID
	Profile   Profile
	Address   models.AddressInput
	GPSFix    *geo.Coordinate
	Photo     *models.Photo
	Analysis  *models.LocationHistoryAnalysis
}

// Evaluation is the verdict plus the evidence it was derived from.
type Evaluation struct {
	Result            *models.ValidationResult
	Exif              *models.PhotoEXIF
	AddressValidation *models.AddressValidation
	Latencies         Latencies
	DecidedAt         time.Time
}

// Transactor runs fn atomically. Result persistence and the compliance event
// share one transaction when both are database-backed.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service gathers evidence, runs the engine and records the verdict.
type Service struct {
	exif            ports.PhotoEXIFPort
	addresses       ports.AddressDBPort
	auditor         ports.AuditPort
	store           Store
	tx              Transactor
	metrics         *metrics.Metrics
	logger          *slog.Logger
	tracer          trace.Tracer
	evidenceTimeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

func WithAuditor(a ports.AuditPort) Option { return func(s *Service) { s.auditor = a } }
func WithStore(st Store) Option           { return func(s *Service) { s.store = st } }
func WithTransactor(t Transactor) Option  { return func(s *Service) { s.tx = t } }
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithEvidenceTimeout overrides DefaultEvidenceTimeout.
func WithEvidenceTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.evidenceTimeout = d
		}
	}
}

// NewService wires the evidence ports.
func NewService(exif ports.PhotoEXIFPort, addresses ports.AddressDBPort, opts ...Option) *Service {
	s := &Service{
		exif:            exif,
		addresses:       addresses,
		logger:          slog.Default(),
		tracer:          otel.Tracer("trustline/decision"),
		evidenceTimeout: DefaultEvidenceTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluate gathers the profile's evidence and decides. Missing preconditions
// are validation errors; evidence failures are returned as-is so the caller
// can roll the session back.
func (s *Service) Evaluate(ctx context.Context, req EvaluateRequest) (*Evaluation, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "decision.Evaluate", trace.WithAttributes(
		attribute.String("session_id", req.SessionID.String()),
		attribute.String("profile", string(req.Profile.Name)),
	))
	defer span.End()

	if err := checkPreconditions(req); err != nil {
		return nil, err
	}

	evidence, err := s.gatherEvidence(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	result, err := NewEngine(req.Profile).Decide(Input{
		AddressValidation: evidence.AddressValidation,
		GPSFix:            req.GPSFix,
		Exif:              evidence.Exif,
		Analysis:          req.Analysis,
	})
	if err != nil {
		return nil, err
	}

	eval := &Evaluation{
		Result:            result,
		Exif:              evidence.Exif,
		AddressValidation: evidence.AddressValidation,
		Latencies:         evidence.Latencies,
		DecidedAt:         requestcontext.Now(ctx),
	}
	if err := s.record(ctx, req, eval); err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.String("trust_level", string(result.TrustLevel)))
	s.metrics.IncrementOutcome(string(result.TrustLevel), string(req.Profile.Name))
	s.metrics.ObserveEvaluateLatency(time.Since(start))
	s.logger.InfoContext(ctx, "address verification decided",
		"session_id", req.SessionID,
		"profile", req.Profile.Name,
		"trust_level", result.TrustLevel,
		"distance_km", result.Distance,
		"request_id", requestcontext.RequestID(ctx),
	)
	return eval, nil
}

func checkPreconditions(req EvaluateRequest) error {
	if !req.Address.Complete() {
		return dErrors.New(dErrors.CodeValidation, "address street, city, state and zip code are required")
	}
	if req.GPSFix == nil {
		return dErrors.New(dErrors.CodeValidation, "GPS location is required")
	}
	if req.Profile.UsePhoto && req.Photo == nil {
		return dErrors.New(dErrors.CodeValidation, "photo is required")
	}
	return nil
}

func (s *Service) record(ctx context.Context, req EvaluateRequest, eval *Evaluation) error {
	if s.store == nil && s.auditor == nil {
		return nil
	}
	run := func(ctx context.Context) error {
		if s.store != nil {
			if err := s.store.Save(ctx, Record{
				SessionID: req.SessionID,
				UserID:    req.UserID,
				Profile:   req.Profile.Name,
				Result:    *eval.Result,
				DecidedAt: eval.DecidedAt,
			}); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save verification result")
			}
		}
		if s.auditor != nil {
			if err := s.auditor.Emit(ctx, audit.ComplianceEvent{
				Timestamp: eval.DecidedAt,
				UserID:    req.UserID,
				Subject:   req.SessionID.String(),
				Action:    audit.EventVerificationDecided,
				Decision:  string(eval.Result.TrustLevel),
				Reason:    eval.Result.Message,
				RequestID: requestcontext.RequestID(ctx),
			}); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to audit verification result")
			}
		}
		return nil
	}
	if s.tx != nil {
		return s.tx.RunInTx(ctx, run)
	}
	return run(ctx)
}

// Decide runs the engine on caller-supplied signals without gathering
// evidence or recording a verdict.
func (s *Service) Decide(ctx context.Context, profile Profile, in Input) (*models.ValidationResult, error) {
	result, err := NewEngine(profile).Decide(in)
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementOutcome(string(result.TrustLevel), string(profile.Name))
	s.logger.DebugContext(ctx, "signals decided",
		"profile", profile.Name,
		"trust_level", result.TrustLevel,
		"request_id", requestcontext.RequestID(ctx),
	)
	return result, nil
}

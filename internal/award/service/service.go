package service

import (
	"context"
	"log/slog"

	"trustline/internal/award/metrics"
	"trustline/internal/award/models"
	verificationmodels "trustline/internal/verification/models"
	id "trustline/pkg/domain"
	dErrors "trustline/pkg/domain-errors"
	"trustline/pkg/platform/audit"
	"trustline/pkg/requestcontext"
)

// Ledger stores per-user breakdowns.
type Ledger interface {
	Set(ctx context.Context, userID id.UserID, category models.Category, points int) (models.Breakdown, error)
	Get(ctx context.Context, userID id.UserID) (models.Breakdown, error)
}

// Publisher sends grants downstream.
type Publisher interface {
	Publish(ctx context.Context, grant models.Grant) error
}

// Auditor emits compliance events.
type Auditor interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// Service folds awards into users' trust scores.
type Service struct {
	ledger    Ledger
	publisher Publisher
	auditor   Auditor
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithPublisher(p Publisher) Option      { return func(s *Service) { s.publisher = p } }
func WithAuditor(a Auditor) Option          { return func(s *Service) { s.auditor = a } }
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }
func WithLogger(l *slog.Logger) Option      { return func(s *Service) { s.logger = l } }

// New creates the award service over ledger.
func New(ledger Ledger, opts ...Option) *Service {
	s := &Service{ledger: ledger, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AwardAddress credits a completed address verification.
func (s *Service) AwardAddress(ctx context.Context, userID id.UserID, level verificationmodels.TrustLevel, points int) error {
	_, err := s.Award(ctx, models.Grant{
		UserID:     userID,
		Category:   models.CategoryAddress,
		TrustLevel: level,
		Points:     points,
	})
	return err
}

// Award replaces the grant's category in the user's breakdown. The ledger
// write and the audit event must both succeed; downstream publication is best
// effort.
func (s *Service) Award(ctx context.Context, grant models.Grant) (*models.Score, error) {
	if grant.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "user is required")
	}
	if _, err := models.ParseCategory(string(grant.Category)); err != nil {
		return nil, err
	}
	if grant.Points < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "points must not be negative")
	}
	if grant.AwardedAt.IsZero() {
		grant.AwardedAt = requestcontext.Now(ctx)
	}

	breakdown, err := s.ledger.Set(ctx, grant.UserID, grant.Category, grant.Points)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to record trust points")
	}
	score := models.ScoreOf(breakdown)
	grant.Total = score.Total

	if s.auditor != nil {
		if err := s.auditor.Emit(ctx, audit.ComplianceEvent{
			Timestamp: grant.AwardedAt,
			UserID:    grant.UserID,
			Subject:   string(grant.Category),
			Action:    audit.EventPointsAwarded,
			Decision:  string(score.Level),
			RequestID: requestcontext.RequestID(ctx),
		}); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to audit trust points")
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, grant); err != nil {
			s.metrics.IncPublishFailures()
			s.logger.ErrorContext(ctx, "failed to publish trust points",
				"user_id", grant.UserID,
				"category", grant.Category,
				"error", err,
			)
		}
	}

	s.metrics.AddPoints(string(grant.Category), grant.Points)
	s.logger.InfoContext(ctx, "trust points awarded",
		"user_id", grant.UserID,
		"category", grant.Category,
		"points", grant.Points,
		"total", score.Total,
		"level", score.Level,
		"request_id", requestcontext.RequestID(ctx),
	)
	return &score, nil
}

// Score returns the user's aggregate trust score.
func (s *Service) Score(ctx context.Context, userID id.UserID) (*models.Score, error) {
	breakdown, err := s.ledger.Get(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load trust score")
	}
	score := models.ScoreOf(breakdown)
	return &score, nil
}

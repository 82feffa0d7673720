// Package ports holds the interfaces the verification service depends on.
// Implementations live in other modules; adapters bridge them where types differ.
package ports

import (
	"context"
	"time"

	"trustline/internal/decision"
	"trustline/internal/geo"
	"trustline/internal/verification/models"
	id "trustline/pkg/domain"
	"trustline/pkg/platform/audit"
)

// SessionStore persists sessions. Get returns sentinel.ErrNotFound for unknown
// or expired sessions.
type SessionStore interface {
	Save(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	Delete(ctx context.Context, sessionID id.SessionID) error
}

// Evaluator gathers evidence and decides a trust level.
type Evaluator interface {
	Evaluate(ctx context.Context, req decision.EvaluateRequest) (*decision.Evaluation, error)
}

// HistorySimulator produces a location trace around home.
type HistorySimulator interface {
	Generate(now time.Time, home geo.Coordinate, street, city string) []models.LocationHistoryEntry
}

// HistoryAnalyzer scores a location trace.
type HistoryAnalyzer interface {
	Analyze(ctx context.Context, history []models.LocationHistoryEntry, homeAddress string, home geo.Coordinate) (*models.LocationHistoryAnalysis, error)
}

// ReverseGeocoder resolves a display address for a coordinate.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, c geo.Coordinate) (string, error)
}

// PointsAwarder credits the address category of a user's trust score.
type PointsAwarder interface {
	AwardAddress(ctx context.Context, userID id.UserID, level models.TrustLevel, points int) error
}

// AuditPort emits compliance events.
type AuditPort interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

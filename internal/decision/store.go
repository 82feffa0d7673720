package decision

import (
	"context"
	"time"

	"trustline/internal/verification/models"
	id "trustline/pkg/domain"
)

// Record is a persisted verdict.
type Record struct {
	SessionID id.SessionID
	UserID    id.UserID
	Profile   ProfileName
	Result    models.ValidationResult
	DecidedAt time.Time
}

// Store persists verdicts for auditability. Swap with concrete storage
// without touching the service.
type Store interface {
	Save(ctx context.Context, record Record) error
	ListByUser(ctx context.Context, userID id.UserID) ([]Record, error)
}

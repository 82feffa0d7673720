package audit

import (
	"context"
	"time"

	id "trustline/pkg/domain"
)

// EventCategory classifies audit events by retention and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance and long
	// retention: verification verdicts and point awards.
	CategoryCompliance EventCategory = "compliance"
	// CategoryOperations covers routine activity that can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is the stored form of every audit record.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	UserID    id.UserID
	Subject   string
	Action    string
	Decision  string
	Reason    string
	RequestID string
}

// AuditEvent names an auditable action.
type AuditEvent string

const (
	EventVerificationStarted   AuditEvent = "address_verification_started"
	EventVerificationDecided   AuditEvent = "address_verification_decided"
	EventVerificationCompleted AuditEvent = "address_verification_completed"
	EventVerificationRestarted AuditEvent = "address_verification_restarted"
	EventPointsAwarded         AuditEvent = "trust_points_awarded"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventVerificationDecided:   CategoryCompliance,
	EventVerificationCompleted: CategoryCompliance,
	EventPointsAwarded:         CategoryCompliance,
	EventVerificationStarted:   CategoryOperations,
	EventVerificationRestarted: CategoryOperations,
}

// Category returns the category for e. Unknown events are operational.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// ComplianceEvent captures an action that must be persisted before the
// calling operation may succeed.
type ComplianceEvent struct {
	Timestamp time.Time // set automatically if zero
	UserID    id.UserID // required
	Subject   string    // verification session ID
	Action    AuditEvent
	Decision  string // trust level
	Reason    string
	RequestID string
}

// ToEvent converts to the stored form.
func (e ComplianceEvent) ToEvent() Event {
	return Event{
		Category:  e.Action.Category(),
		Timestamp: e.Timestamp,
		UserID:    e.UserID,
		Subject:   e.Subject,
		Action:    string(e.Action),
		Decision:  e.Decision,
		Reason:    e.Reason,
		RequestID: e.RequestID,
	}
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
}

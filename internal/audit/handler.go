// Package audit exposes the audit trail to operators.
package audit

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	id "trustline/pkg/domain"
	platformaudit "trustline/pkg/platform/audit"
	"trustline/pkg/platform/httputil"
	"trustline/pkg/requestcontext"
)

// Lister reads a user's audit trail.
type Lister interface {
	ListByUser(ctx context.Context, userID id.UserID) ([]platformaudit.Event, error)
}

type Handler struct {
	events Lister
	logger *slog.Logger
}

func New(events Lister, logger *slog.Logger) *Handler {
	return &Handler{events: events, logger: logger}
}

// RegisterAdmin mounts operator endpoints. The caller guards the router.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/users/{user_id}/audit-events", h.HandleList)
}

// EventResponse is one audit entry.
type EventResponse struct {
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
	Subject   string    `json:"subject,omitempty"`
	Action    string    `json:"action"`
	Decision  string    `json:"decision,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// ListResponse wraps a user's audit trail.
type ListResponse struct {
	UserID string          `json:"user_id"`
	Events []EventResponse `json:"events"`
}

// HandleList handles GET /admin/users/{user_id}/audit-events.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := id.ParseUserID(chi.URLParam(r, "user_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	events, err := h.events.ListByUser(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list audit events",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := ListResponse{UserID: userID.String(), Events: make([]EventResponse, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, EventResponse{
			Category:  string(e.Category),
			Timestamp: e.Timestamp,
			Subject:   e.Subject,
			Action:    e.Action,
			Decision:  e.Decision,
			Reason:    e.Reason,
			RequestID: e.RequestID,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

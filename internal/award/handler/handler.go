package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trustline/internal/award/models"
	id "trustline/pkg/domain"
	dErrors "trustline/pkg/domain-errors"
	"trustline/pkg/platform/httputil"
	"trustline/pkg/requestcontext"
)

// Service reads and grants trust points.
type Service interface {
	Score(ctx context.Context, userID id.UserID) (*models.Score, error)
	Award(ctx context.Context, grant models.Grant) (*models.Score, error)
}

// Handler exposes trust scores to users and point grants to operators.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts award endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/trust-score", h.HandleGetScore)
}

// RegisterAdmin mounts operator endpoints. The caller guards the router.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Route("/admin/users/{user_id}", func(r chi.Router) {
		r.Get("/trust-score", h.HandleAdminGetScore)
		r.Post("/trust-points", h.HandleAward)
	})
}

// HandleGetScore handles GET /trust-score.
func (h *Handler) HandleGetScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	score, err := h.service.Score(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load trust score",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, score)
}

// HandleAdminGetScore handles GET /admin/users/{user_id}/trust-score.
func (h *Handler) HandleAdminGetScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := id.ParseUserID(chi.URLParam(r, "user_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	score, err := h.service.Score(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load trust score",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, score)
}

// HandleAward handles POST /admin/users/{user_id}/trust-points.
func (h *Handler) HandleAward(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := id.ParseUserID(chi.URLParam(r, "user_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[AwardRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	score, err := h.service.Award(ctx, models.Grant{
		UserID:   userID,
		Category: models.Category(req.Category),
		Points:   req.Points(),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to award trust points",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"category", req.Category,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, score)
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"trustline/internal/decision"
	"trustline/internal/verification/models"
	dErrors "trustline/pkg/domain-errors"
	"trustline/pkg/platform/httputil"
	"trustline/pkg/requestcontext"
)

// Service defines the interface for decision operations.
type Service interface {
	Decide(ctx context.Context, profile decision.Profile, in decision.Input) (*models.ValidationResult, error)
}

// Handler exposes the engine for dry runs against caller-supplied signals.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a decision handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts decision endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/decision/evaluate", h.HandleEvaluate)
}

// HandleEvaluate handles POST /decision/evaluate requests.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[EvaluateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Decide(ctx, req.profile, req.Input())
	if err != nil {
		h.logger.WarnContext(ctx, "decision evaluation failed",
			"request_id", requestID,
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "decision evaluated",
		"request_id", requestID,
		"user_id", userID,
		"profile", req.profile.Name,
		"trust_level", result.TrustLevel,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromResult(req.profile, result))
}

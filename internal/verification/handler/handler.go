package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb/geojson"

	"trustline/internal/geo"
	"trustline/internal/verification/models"
	"trustline/internal/verification/service"
	id "trustline/pkg/domain"
	dErrors "trustline/pkg/domain-errors"
	"trustline/pkg/platform/httputil"
	"trustline/pkg/requestcontext"
)

// multipartOverhead leaves room for form boundaries around the photo part.
const multipartOverhead = 64 << 10

// Service defines the verification operations exposed over HTTP.
type Service interface {
	Start(ctx context.Context, userID id.UserID, profile string) (*models.Session, error)
	Get(ctx context.Context, userID id.UserID, sessionID id.SessionID) (*models.Session, error)
	SetAddress(ctx context.Context, userID id.UserID, sessionID id.SessionID, address models.AddressInput) (*models.Session, error)
	SetGPS(ctx context.Context, userID id.UserID, sessionID id.SessionID, c geo.Coordinate, accuracyM float64) (*models.Session, error)
	UploadPhoto(ctx context.Context, userID id.UserID, sessionID id.SessionID, upload service.PhotoUpload) (*models.Session, error)
	Verify(ctx context.Context, userID id.UserID, sessionID id.SessionID) (*models.Session, error)
	Back(ctx context.Context, userID id.UserID, sessionID id.SessionID) (*models.Session, error)
	Restart(ctx context.Context, userID id.UserID, sessionID id.SessionID) (*models.Session, error)
	Complete(ctx context.Context, userID id.UserID, sessionID id.SessionID) (*models.Completion, error)
	HistoryGeoJSON(ctx context.Context, userID id.UserID, sessionID id.SessionID) (*geojson.FeatureCollection, error)
}

// Handler serves the address-verification flow.
type Handler struct {
	service       Service
	logger        *slog.Logger
	maxPhotoBytes int64
}

// New constructs a verification handler. maxPhotoBytes bounds the multipart
// body; zero selects service.DefaultMaxPhotoBytes.
func New(svc Service, logger *slog.Logger, maxPhotoBytes int64) *Handler {
	if maxPhotoBytes <= 0 {
		maxPhotoBytes = service.DefaultMaxPhotoBytes
	}
	return &Handler{service: svc, logger: logger, maxPhotoBytes: maxPhotoBytes}
}

// Register mounts the verification endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/address-verifications", func(r chi.Router) {
		r.Post("/", h.HandleStart)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Put("/address", h.HandleSetAddress)
			r.Post("/gps", h.HandleSetGPS)
			r.Post("/photo", h.HandleUploadPhoto)
			r.Post("/verify", h.HandleVerify)
			r.Post("/back", h.HandleBack)
			r.Post("/restart", h.HandleRestart)
			r.Post("/complete", h.HandleComplete)
			r.Get("/history.geojson", h.HandleHistory)
		})
	})
}

// HandleStart handles POST /address-verifications.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	profile := ""
	if r.ContentLength > 0 {
		req, ok := httputil.DecodeAndPrepare[StartRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
		if !ok {
			return
		}
		profile = req.Profile
	}

	session, err := h.service.Start(ctx, userID, profile)
	if err != nil {
		h.fail(ctx, w, "failed to start verification", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromSession(session))
}

// HandleGet handles GET /address-verifications/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, "failed to load verification", h.service.Get)
}

// HandleSetAddress handles PUT /address-verifications/{id}/address.
func (h *Handler) HandleSetAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AddressRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	session, err := h.service.SetAddress(ctx, userID, sessionID, req.Address())
	if err != nil {
		h.fail(ctx, w, "failed to set address", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSession(session))
}

// HandleSetGPS handles POST /address-verifications/{id}/gps.
func (h *Handler) HandleSetGPS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[GPSRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	session, err := h.service.SetGPS(ctx, userID, sessionID, req.Coordinate(), req.AccuracyM)
	if err != nil {
		h.fail(ctx, w, "failed to record GPS fix", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSession(session))
}

// HandleUploadPhoto handles POST /address-verifications/{id}/photo. The image
// is read from the multipart field "photo".
func (h *Handler) HandleUploadPhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxPhotoBytes+multipartOverhead)
	file, header, err := r.FormFile("photo")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.fail(ctx, w, "photo upload rejected", dErrors.New(dErrors.CodePayloadTooLarge, "Image size must be less than 10MB"))
			return
		}
		h.fail(ctx, w, "photo upload rejected", dErrors.Wrap(err, dErrors.CodeBadRequest, "photo is required"))
		return
	}
	defer file.Close()

	session, err := h.service.UploadPhoto(ctx, userID, sessionID, service.PhotoUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     file,
	})
	if err != nil {
		h.fail(ctx, w, "failed to upload photo", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSession(session))
}

// HandleVerify handles POST /address-verifications/{id}/verify. It responds
// once the validation run has finished.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, "verification failed", h.service.Verify)
}

// HandleBack handles POST /address-verifications/{id}/back.
func (h *Handler) HandleBack(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, "failed to go back", h.service.Back)
}

// HandleRestart handles POST /address-verifications/{id}/restart.
func (h *Handler) HandleRestart(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, "failed to restart verification", h.service.Restart)
}

// HandleComplete handles POST /address-verifications/{id}/complete.
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	completion, err := h.service.Complete(ctx, userID, sessionID)
	if err != nil {
		h.fail(ctx, w, "failed to complete verification", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCompletion(completion))
}

// HandleHistory handles GET /address-verifications/{id}/history.geojson.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	fc, err := h.service.HistoryGeoJSON(ctx, userID, sessionID)
	if err != nil {
		h.fail(ctx, w, "failed to render location history", err)
		return
	}
	body, err := fc.MarshalJSON()
	if err != nil {
		h.fail(ctx, w, "failed to render location history", dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode history"))
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type sessionFunc func(ctx context.Context, userID id.UserID, sessionID id.SessionID) (*models.Session, error)

func (h *Handler) sessionAction(w http.ResponseWriter, r *http.Request, failMsg string, fn sessionFunc) {
	ctx := r.Context()
	userID, sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	session, err := fn(ctx, userID, sessionID)
	if err != nil {
		h.fail(ctx, w, failMsg, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSession(session))
}

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID := requestcontext.UserID(r.Context())
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, false
	}
	return userID, true
}

func (h *Handler) requireSession(w http.ResponseWriter, r *http.Request) (id.UserID, id.SessionID, bool) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return id.UserID{}, id.SessionID{}, false
	}
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.UserID{}, id.SessionID{}, false
	}
	return userID, sessionID, true
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	level := slog.LevelWarn
	if code := dErrors.CodeOf(err); code == dErrors.CodeInternal || code == dErrors.CodeInvariantViolation {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"user_id", requestcontext.UserID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}

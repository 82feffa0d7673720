package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"trustline/internal/geo"
	"trustline/internal/verification/handler/mocks"
	"trustline/internal/verification/models"
	"trustline/internal/verification/service"
	id "trustline/pkg/domain"
	dErrors "trustline/pkg/domain-errors"
	"trustline/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/verification-mocks.go -package=mocks Service
type VerificationHandlerSuite struct {
	suite.Suite
	service   *mocks.MockService
	router    chi.Router
	userID    id.UserID
	sessionID id.SessionID
}

func TestVerificationHandlerSuite(t *testing.T) {
	suite.Run(t, new(VerificationHandlerSuite))
}

func (s *VerificationHandlerSuite) SetupTest() {
	s.service = mocks.NewMockService(gomock.NewController(s.T()))
	s.userID = id.UserID(id.NewSessionID())
	s.sessionID = id.NewSessionID()
	s.router = chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)), 1<<10).Register(s.router)
}

func (s *VerificationHandlerSuite) do(req *http.Request, authenticated bool) *httptest.ResponseRecorder {
	if authenticated {
		req = req.WithContext(requestcontext.WithUserID(req.Context(), s.userID))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *VerificationHandlerSuite) path(suffix string) string {
	return "/address-verifications/" + s.sessionID.String() + suffix
}

func (s *VerificationHandlerSuite) session(step models.Step) *models.Session {
	return &models.Session{ID: s.sessionID, UserID: s.userID, Profile: "full", Step: step}
}

func (s *VerificationHandlerSuite) decode(w *httptest.ResponseRecorder) SessionResponse {
	var resp SessionResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (s *VerificationHandlerSuite) TestStart() {
	s.Run("without a body uses the default profile", func() {
		s.service.EXPECT().Start(gomock.Any(), s.userID, "").Return(s.session(models.StepInput), nil)
		w := s.do(httptest.NewRequest(http.MethodPost, "/address-verifications", nil), true)
		s.Equal(http.StatusCreated, w.Code)
		resp := s.decode(w)
		s.Equal(s.sessionID.String(), resp.ID)
		s.Equal(models.StepInput, resp.Step)
	})

	s.Run("with a profile", func() {
		s.service.EXPECT().Start(gomock.Any(), s.userID, "basic").Return(s.session(models.StepInput), nil)
		w := s.do(httptest.NewRequest(http.MethodPost, "/address-verifications", strings.NewReader(`{"profile":"basic"}`)), true)
		s.Equal(http.StatusCreated, w.Code)
	})

	s.Run("unknown profile is rejected by the service", func() {
		s.service.EXPECT().Start(gomock.Any(), s.userID, "gold").
			Return(nil, dErrors.New(dErrors.CodeValidation, "unknown verification profile: gold"))
		w := s.do(httptest.NewRequest(http.MethodPost, "/address-verifications", strings.NewReader(`{"profile":"gold"}`)), true)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("requires authentication", func() {
		w := s.do(httptest.NewRequest(http.MethodPost, "/address-verifications", nil), false)
		s.Equal(http.StatusUnauthorized, w.Code)
	})
}

func (s *VerificationHandlerSuite) TestGet() {
	s.Run("returns the session view", func() {
		session := s.session(models.StepGPS)
		session.Address = &models.AddressInput{Street: "1 Main St", City: "Springfield", State: "IL", ZipCode: "62701"}
		s.service.EXPECT().Get(gomock.Any(), s.userID, s.sessionID).Return(session, nil)

		w := s.do(httptest.NewRequest(http.MethodGet, s.path(""), nil), true)
		s.Equal(http.StatusOK, w.Code)
		resp := s.decode(w)
		s.Equal("1 Main St, Springfield, IL 62701", resp.FullAddress)
		s.Equal(models.StepGPS, resp.Step)
	})

	s.Run("rejects a malformed id", func() {
		w := s.do(httptest.NewRequest(http.MethodGet, "/address-verifications/not-a-uuid", nil), true)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("maps forbidden", func() {
		s.service.EXPECT().Get(gomock.Any(), s.userID, s.sessionID).
			Return(nil, dErrors.New(dErrors.CodeForbidden, "verification session belongs to another user"))
		w := s.do(httptest.NewRequest(http.MethodGet, s.path(""), nil), true)
		s.Equal(http.StatusForbidden, w.Code)
	})
}

func (s *VerificationHandlerSuite) TestSetAddress() {
	s.Run("passes the address through", func() {
		want := models.AddressInput{Street: "1 Main St", City: "Springfield", State: "IL", ZipCode: "62701"}
		s.service.EXPECT().SetAddress(gomock.Any(), s.userID, s.sessionID, want).Return(s.session(models.StepGPS), nil)
		body := `{"street":"1 Main St","city":"Springfield","state":"IL","zip_code":"62701"}`
		w := s.do(httptest.NewRequest(http.MethodPut, s.path("/address"), strings.NewReader(body)), true)
		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("rejects unknown fields", func() {
		w := s.do(httptest.NewRequest(http.MethodPut, s.path("/address"), strings.NewReader(`{"country":"US"}`)), true)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("surfaces the form message", func() {
		s.service.EXPECT().SetAddress(gomock.Any(), s.userID, s.sessionID, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeValidation, "Please fill in all address fields"))
		w := s.do(httptest.NewRequest(http.MethodPut, s.path("/address"), strings.NewReader(`{"street":"1 Main St"}`)), true)
		s.Equal(http.StatusBadRequest, w.Code)
		s.Contains(w.Body.String(), "Please fill in all address fields")
	})
}

func (s *VerificationHandlerSuite) TestSetGPS() {
	s.Run("records the fix", func() {
		s.service.EXPECT().SetGPS(gomock.Any(), s.userID, s.sessionID, geo.Coordinate{Lat: 40.7128, Lng: -74.006}, 12.5).
			Return(s.session(models.StepPhoto), nil)
		body := `{"lat":40.7128,"lng":-74.006,"accuracy_m":12.5}`
		w := s.do(httptest.NewRequest(http.MethodPost, s.path("/gps"), strings.NewReader(body)), true)
		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("requires both axes", func() {
		w := s.do(httptest.NewRequest(http.MethodPost, s.path("/gps"), strings.NewReader(`{"lat":40.7}`)), true)
		s.Equal(http.StatusBadRequest, w.Code)
		s.Contains(w.Body.String(), "lng is required")
	})

	s.Run("rejects out of range coordinates", func() {
		w := s.do(httptest.NewRequest(http.MethodPost, s.path("/gps"), strings.NewReader(`{"lat":91,"lng":0}`)), true)
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *VerificationHandlerSuite) photoRequest(contentType string, content []byte) *http.Request {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="photo"; filename="door.jpg"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	s.Require().NoError(err)
	_, err = part.Write(content)
	s.Require().NoError(err)
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, s.path("/photo"), &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (s *VerificationHandlerSuite) TestUploadPhoto() {
	s.Run("streams the part to the service", func() {
		s.service.EXPECT().UploadPhoto(gomock.Any(), s.userID, s.sessionID, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ id.UserID, _ id.SessionID, upload service.PhotoUpload) (*models.Session, error) {
				s.Equal("door.jpg", upload.Filename)
				s.Equal("image/jpeg", upload.ContentType)
				body, err := io.ReadAll(upload.Content)
				s.Require().NoError(err)
				s.Equal([]byte("jpeg-bytes"), body)
				return s.session(models.StepLocationHistory), nil
			})
		w := s.do(s.photoRequest("image/jpeg", []byte("jpeg-bytes")), true)
		s.Equal(http.StatusOK, w.Code)
		s.Equal(models.StepLocationHistory, s.decode(w).Step)
	})

	s.Run("requires the photo field", func() {
		req := httptest.NewRequest(http.MethodPost, s.path("/photo"), strings.NewReader(""))
		req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
		w := s.do(req, true)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("maps media type rejections", func() {
		s.service.EXPECT().UploadPhoto(gomock.Any(), s.userID, s.sessionID, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeUnsupportedMedia, "Please upload an image file"))
		w := s.do(s.photoRequest("application/pdf", []byte("%PDF")), true)
		s.Equal(http.StatusUnsupportedMediaType, w.Code)
	})
}

func (s *VerificationHandlerSuite) TestVerify() {
	s.Run("returns the result", func() {
		session := s.session(models.StepResult)
		session.Result = &models.ValidationResult{IsValid: true, TrustLevel: models.TrustLevelHigh, Points: 25}
		s.service.EXPECT().Verify(gomock.Any(), s.userID, s.sessionID).Return(session, nil)

		w := s.do(httptest.NewRequest(http.MethodPost, s.path("/verify"), nil), true)
		s.Equal(http.StatusOK, w.Code)
		resp := s.decode(w)
		s.Require().NotNil(resp.Result)
		s.Equal(models.TrustLevelHigh, resp.Result.TrustLevel)
	})

	s.Run("superseded run is a conflict", func() {
		s.service.EXPECT().Verify(gomock.Any(), s.userID, s.sessionID).
			Return(nil, dErrors.New(dErrors.CodeConflict, "verification was cancelled by a newer action"))
		w := s.do(httptest.NewRequest(http.MethodPost, s.path("/verify"), nil), true)
		s.Equal(http.StatusConflict, w.Code)
	})

	s.Run("retryable failure keeps its message", func() {
		s.service.EXPECT().Verify(gomock.Any(), s.userID, s.sessionID).
			Return(nil, dErrors.New(dErrors.CodeUnavailable, "Verification failed. Please try again."))
		w := s.do(httptest.NewRequest(http.MethodPost, s.path("/verify"), nil), true)
		s.Equal(http.StatusServiceUnavailable, w.Code)
		s.Contains(w.Body.String(), "Verification failed. Please try again.")
	})
}

func (s *VerificationHandlerSuite) TestNavigation() {
	s.service.EXPECT().Back(gomock.Any(), s.userID, s.sessionID).Return(s.session(models.StepPhoto), nil)
	w := s.do(httptest.NewRequest(http.MethodPost, s.path("/back"), nil), true)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(models.StepPhoto, s.decode(w).Step)

	s.service.EXPECT().Restart(gomock.Any(), s.userID, s.sessionID).Return(s.session(models.StepInput), nil)
	w = s.do(httptest.NewRequest(http.MethodPost, s.path("/restart"), nil), true)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(models.StepInput, s.decode(w).Step)

	s.service.EXPECT().Back(gomock.Any(), s.userID, s.sessionID).
		Return(nil, dErrors.New(dErrors.CodeInvalidState, "already at the first step"))
	w = s.do(httptest.NewRequest(http.MethodPost, s.path("/back"), nil), true)
	s.Equal(http.StatusConflict, w.Code)
}

func (s *VerificationHandlerSuite) TestComplete() {
	completedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.service.EXPECT().Complete(gomock.Any(), s.userID, s.sessionID).Return(&models.Completion{
		SessionID:   s.sessionID,
		UserID:      s.userID,
		Result:      models.ValidationResult{TrustLevel: models.TrustLevelMedium, Message: "Address verified with GPS match"},
		Points:      15,
		CompletedAt: completedAt,
	}, nil)

	w := s.do(httptest.NewRequest(http.MethodPost, s.path("/complete"), nil), true)
	s.Equal(http.StatusOK, w.Code)
	var resp CompletionResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal(15, resp.Points)
	s.Equal(models.TrustLevelMedium, resp.TrustLevel)
	s.True(completedAt.Equal(resp.CompletedAt))
}

func (s *VerificationHandlerSuite) TestHistory() {
	s.Run("renders geojson", func() {
		fc := geojson.NewFeatureCollection()
		fc.Append(geojson.NewFeature(orb.Point{-74.006, 40.7128}))
		s.service.EXPECT().HistoryGeoJSON(gomock.Any(), s.userID, s.sessionID).Return(fc, nil)

		w := s.do(httptest.NewRequest(http.MethodGet, s.path("/history.geojson"), nil), true)
		s.Equal(http.StatusOK, w.Code)
		s.Equal("application/geo+json", w.Header().Get("Content-Type"))
		got, err := geojson.UnmarshalFeatureCollection(w.Body.Bytes())
		s.Require().NoError(err)
		s.Len(got.Features, 1)
	})

	s.Run("not found before validation", func() {
		s.service.EXPECT().HistoryGeoJSON(gomock.Any(), s.userID, s.sessionID).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "no location history recorded for this session"))
		w := s.do(httptest.NewRequest(http.MethodGet, s.path("/history.geojson"), nil), true)
		s.Equal(http.StatusNotFound, w.Code)
	})
}

package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"trustline/internal/decision"
	"trustline/internal/decision/handler/mocks"
	"trustline/internal/verification/models"
	id "trustline/pkg/domain"
	dErrors "trustline/pkg/domain-errors"
	"trustline/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/decision-mocks.go -package=mocks Service
type DecisionHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
	userID  id.UserID
}

func TestDecisionHandlerSuite(t *testing.T) {
	suite.Run(t, new(DecisionHandlerSuite))
}

func (s *DecisionHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.userID = id.UserID(uuid.New())
	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *DecisionHandlerSuite) do(body string, authenticated bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/decision/evaluate", strings.NewReader(body))
	if authenticated {
		req = req.WithContext(requestcontext.WithUserID(req.Context(), s.userID))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type profileMatcher decision.ProfileName

func (m profileMatcher) Matches(x any) bool {
	p, ok := x.(decision.Profile)
	return ok && p.Name == decision.ProfileName(m)
}

func (m profileMatcher) String() string { return "profile " + string(m) }

func profileNamed(name decision.ProfileName) gomock.Matcher {
	return profileMatcher(name)
}

func (s *DecisionHandlerSuite) TestEvaluate() {
	s.Run("decides with parsed signals", func() {
		s.service.EXPECT().
			Decide(gomock.Any(), profileNamed(decision.ProfileBasic), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ decision.Profile, in decision.Input) (*models.ValidationResult, error) {
				s.True(in.AddressValidation.Valid)
				s.Require().NotNil(in.Exif)
				s.Nil(in.Analysis)
				return &models.ValidationResult{TrustLevel: models.TrustLevelHigh, Points: 15, Message: "ok", GPSMatch: true}, nil
			})

		w := s.do(`{"profile":"basic","address_valid":true,
			"address_coordinate":{"lat":40.7,"lng":-74},
			"gps":{"lat":40.7001,"lng":-74},
			"photo_coordinate":{"lat":40.7,"lng":-74}}`, true)

		s.Equal(http.StatusOK, w.Code, w.Body.String())
		var resp EvaluateResponse
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		s.Equal("basic", resp.Profile)
		s.Equal(models.TrustLevelHigh, resp.TrustLevel)
		s.Equal(15, resp.Points)
		s.True(resp.GPSMatch)
	})

	s.Run("requires authentication", func() {
		w := s.do(`{"gps":{"lat":1,"lng":1}}`, false)
		s.Equal(http.StatusUnauthorized, w.Code)
	})

	s.Run("rejects missing gps", func() {
		w := s.do(`{"address_valid":false}`, true)
		s.Equal(http.StatusBadRequest, w.Code)
		s.Contains(w.Body.String(), "gps is required")
	})

	s.Run("rejects out of range coordinates", func() {
		w := s.do(`{"gps":{"lat":91,"lng":0}}`, true)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("rejects unknown profile", func() {
		w := s.do(`{"profile":"strict","gps":{"lat":1,"lng":1}}`, true)
		s.Equal(http.StatusBadRequest, w.Code)
		s.Contains(w.Body.String(), string(dErrors.CodeValidation))
	})

	s.Run("valid address needs a coordinate", func() {
		w := s.do(`{"address_valid":true,"gps":{"lat":1,"lng":1}}`, true)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("service errors are rendered", func() {
		s.service.EXPECT().
			Decide(gomock.Any(), profileNamed(decision.ProfileFull), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeValidation, "GPS location is required"))

		w := s.do(`{"gps":{"lat":1,"lng":1}}`, true)
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

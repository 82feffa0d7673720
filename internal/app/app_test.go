package app_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustline/internal/app"
	"trustline/internal/audit"
	awardmodels "trustline/internal/award/models"
	"trustline/internal/platform/config"
	verificationhandler "trustline/internal/verification/handler"
	"trustline/internal/verification/models"
	id "trustline/pkg/domain"
	"trustline/pkg/testutil"
)

const adminToken = "operator-token-for-tests"

func newApp(t *testing.T, mutate func(*config.Config)) *app.App {
	t.Helper()
	cfg := config.Default()
	cfg.Env = "test"
	cfg.Verification.SimulateLatency = false
	cfg.Verification.Seed = 7
	cfg.Geocoder.Enabled = false
	cfg.Auth.AdminToken = adminToken
	if mutate != nil {
		mutate(&cfg)
	}
	a, err := app.New(context.Background(), &cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(context.Background()) })
	return a
}

func token(t *testing.T, a *app.App, userID id.UserID) string {
	t.Helper()
	tok, err := a.Tokens.GenerateAccessToken(userID, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestAddressVerificationJourney(t *testing.T) {
	a := newApp(t, nil)
	userID := id.UserID(uuid.New())
	bearer := token(t, a, userID)
	call := func(req *http.Request) *verificationhandler.SessionResponse {
		t.Helper()
		rr := testutil.DoRequest(a.Handler, testutil.WithBearer(req, bearer))
		require.Less(t, rr.Code, 300, rr.Body.String())
		return testutil.UnmarshalResponse[verificationhandler.SessionResponse](t, rr)
	}

	var session *verificationhandler.SessionResponse
	testutil.Given(t, "a started full-profile session", func(t *testing.T) {
		session = call(testutil.NewJSONRequest(t, http.MethodPost, "/v1/address-verifications", nil))
		assert.Equal(t, "full", session.Profile)
		assert.Equal(t, models.StepInput, session.Step)
	})
	base := "/v1/address-verifications/" + session.ID

	testutil.When(t, "the user submits address, location and photo", func(t *testing.T) {
		session = call(testutil.NewJSONRequest(t, http.MethodPut, base+"/address", map[string]string{
			"street": "221B Baker Street", "city": "London", "state": "Greater London", "zip_code": "NW1 6XE",
		}))
		assert.Equal(t, models.StepGPS, session.Step)
		assert.Equal(t, "221B Baker Street, London, Greater London NW1 6XE", session.FullAddress)

		session = call(testutil.NewJSONRequest(t, http.MethodPost, base+"/gps", map[string]float64{
			"lat": 51.5237, "lng": -0.1585, "accuracy_m": 8,
		}))
		assert.Equal(t, models.StepPhoto, session.Step)

		req := testutil.NewPhotoRequest(t, base+"/photo", "door.jpg", "image/jpeg", []byte("jpeg bytes"))
		req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1")
		session = call(req)
		assert.Equal(t, models.StepLocationHistory, session.Step)
		require.NotNil(t, session.Device)
		assert.True(t, session.Device.Mobile)
	})

	testutil.Then(t, "verification produces a result with a history trace", func(t *testing.T) {
		session = call(testutil.NewJSONRequest(t, http.MethodPost, base+"/verify", nil))
		assert.Equal(t, models.StepResult, session.Step)
		require.NotNil(t, session.Result)
		assert.Positive(t, session.HistoryCount)

		rr := testutil.DoRequest(a.Handler, testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodGet, base+"/history.geojson", nil), bearer))
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Equal(t, "application/geo+json", rr.Header().Get("Content-Type"))
	})

	testutil.Then(t, "completing credits the address category", func(t *testing.T) {
		rr := testutil.DoRequest(a.Handler, testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, base+"/complete", nil), bearer))
		testutil.AssertStatus(t, rr, http.StatusOK)
		completion := testutil.UnmarshalResponse[verificationhandler.CompletionResponse](t, rr)
		assert.Equal(t, session.Result.TrustLevel, completion.TrustLevel)

		rr = testutil.DoRequest(a.Handler, testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodGet, "/v1/trust-score", nil), bearer))
		testutil.AssertStatus(t, rr, http.StatusOK)
		score := testutil.UnmarshalResponse[awardmodels.Score](t, rr)
		assert.Equal(t, completion.Points, score.Breakdown.Address)
		assert.Equal(t, completion.Points, score.Total)

		rr = testutil.DoRequest(a.Handler, testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodGet, base, nil), bearer))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	})
}

func TestAuthAndOwnership(t *testing.T) {
	a := newApp(t, nil)

	testutil.Given(t, "no bearer token", func(t *testing.T) {
		rr := testutil.DoRequest(a.Handler, testutil.NewJSONRequest(t, http.MethodPost, "/v1/address-verifications", nil))
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	testutil.Given(t, "a session owned by someone else", func(t *testing.T) {
		owner := token(t, a, id.UserID(uuid.New()))
		rr := testutil.DoRequest(a.Handler, testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/v1/address-verifications", nil), owner))
		testutil.AssertStatus(t, rr, http.StatusCreated)
		session := testutil.UnmarshalResponse[verificationhandler.SessionResponse](t, rr)

		testutil.Then(t, "another user is forbidden", func(t *testing.T) {
			other := token(t, a, id.UserID(uuid.New()))
			rr := testutil.DoRequest(a.Handler, testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodGet, "/v1/address-verifications/"+session.ID, nil), other))
			testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")
		})
	})
}

func TestOperatorAward(t *testing.T) {
	a := newApp(t, nil)
	userID := id.UserID(uuid.New())
	path := "/v1/admin/users/" + userID.String() + "/trust-points"

	testutil.When(t, "the admin token is missing", func(t *testing.T) {
		rr := testutil.DoRequest(a.Handler, testutil.NewJSONRequest(t, http.MethodPost, path, map[string]any{"category": "email", "email_verified": true}))
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	testutil.When(t, "an operator grants email and referee points", func(t *testing.T) {
		for _, body := range []map[string]any{
			{"category": "email", "email_verified": true},
			{"category": "referee", "verified_referees": 2},
		} {
			req := testutil.NewJSONRequest(t, http.MethodPost, path, body)
			req.Header.Set("X-Admin-Token", adminToken)
			testutil.AssertStatus(t, testutil.DoRequest(a.Handler, req), http.StatusOK)
		}

		testutil.Then(t, "the user sees a medium score", func(t *testing.T) {
			rr := testutil.DoRequest(a.Handler, testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodGet, "/v1/trust-score", nil), token(t, a, userID)))
			testutil.AssertStatus(t, rr, http.StatusOK)
			score := testutil.UnmarshalResponse[awardmodels.Score](t, rr)
			assert.Equal(t, 50, score.Total)
			assert.Equal(t, awardmodels.LevelMedium, score.Level)
		})

		testutil.Then(t, "both grants are on the audit trail", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodGet, "/v1/admin/users/"+userID.String()+"/audit-events", nil)
			req.Header.Set("X-Admin-Token", adminToken)
			rr := testutil.DoRequest(a.Handler, req)
			testutil.AssertStatus(t, rr, http.StatusOK)
			trail := testutil.UnmarshalResponse[audit.ListResponse](t, rr)
			require.Len(t, trail.Events, 2)
			for _, e := range trail.Events {
				assert.Equal(t, "trust_points_awarded", e.Action)
				assert.Equal(t, "compliance", e.Category)
			}
		})
	})
}

func TestRateLimitAndHealthCheck(t *testing.T) {
	a := newApp(t, func(cfg *config.Config) {
		cfg.RateLimit.Limits = map[string]config.LimitSpec{"verify": {Requests: 2, Window: time.Minute}}
	})
	bearer := token(t, a, id.UserID(uuid.New()))

	testutil.When(t, "a user starts more sessions than the verify limit", func(t *testing.T) {
		for range 2 {
			rr := testutil.DoRequest(a.Handler, testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/v1/address-verifications", nil), bearer))
			testutil.AssertStatus(t, rr, http.StatusCreated)
		}
		rr := testutil.DoRequest(a.Handler, testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/v1/address-verifications", nil), bearer))
		testutil.AssertStatus(t, rr, http.StatusTooManyRequests)
		assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	})

	testutil.Then(t, "health and metrics stay reachable", func(t *testing.T) {
		rr := testutil.DoRequest(a.Handler, testutil.NewJSONRequest(t, http.MethodGet, "/healthz", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)

		rr = testutil.DoRequest(a.Handler, testutil.NewJSONRequest(t, http.MethodGet, "/metrics", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Contains(t, rr.Body.String(), "trustline_http_requests_total")
	})
}

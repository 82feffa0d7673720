package httptransport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"trustline/internal/ratelimit/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   models.EndpointClass
	}{
		{http.MethodGet, "/v1/address-verifications/abc", models.ClassRead},
		{http.MethodGet, "/v1/trust-score", models.ClassRead},
		{http.MethodPost, "/v1/address-verifications", models.ClassVerify},
		{http.MethodPost, "/v1/address-verifications/", models.ClassVerify},
		{http.MethodPost, "/v1/address-verifications/abc/verify", models.ClassVerify},
		{http.MethodPut, "/v1/address-verifications/abc/address", models.ClassWrite},
		{http.MethodPost, "/v1/address-verifications/abc/back", models.ClassWrite},
		{http.MethodPost, "/v1/decision/evaluate", models.ClassWrite},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			assert.Equal(t, tt.want, Classify(req))
		})
	}
}

func TestHealthz(t *testing.T) {
	t.Run("all checks pass", func(t *testing.T) {
		rr := httptest.NewRecorder()
		healthz(map[string]HealthCheck{
			"redis": func(context.Context) error { return nil },
		})(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"status":"ok","redis":"ok"}`, rr.Body.String())
	})

	t.Run("a failing check degrades", func(t *testing.T) {
		rr := httptest.NewRecorder()
		healthz(map[string]HealthCheck{
			"redis":    func(context.Context) error { return nil },
			"postgres": func(context.Context) error { return errors.New("connection refused") },
		})(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.JSONEq(t, `{"status":"degraded","redis":"ok","postgres":"connection refused"}`, rr.Body.String())
	})
}

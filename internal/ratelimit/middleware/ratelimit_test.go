package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"trustline/internal/ratelimit/models"
	id "trustline/pkg/domain"
)

type stubLimiter struct {
	result *models.RateLimitResult
	err    error
}

func (l stubLimiter) Check(context.Context, string, id.UserID, models.EndpointClass) (*models.RateLimitResult, error) {
	return l.result, l.err
}

func TestRateLimit(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reset := time.Now().Add(time.Minute)
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	cases := []struct {
		name    string
		limiter stubLimiter
		opts    []Option
		status  int
		headers bool
	}{
		{"allowed", stubLimiter{result: &models.RateLimitResult{Allowed: true, Limit: 10, Remaining: 9, ResetAt: reset}}, nil, http.StatusNoContent, true},
		{"rejected", stubLimiter{result: &models.RateLimitResult{Limit: 10, ResetAt: reset, RetryAfter: 42}}, nil, http.StatusTooManyRequests, true},
		{"store error fails open", stubLimiter{err: errors.New("down")}, nil, http.StatusNoContent, false},
		{"disabled", stubLimiter{err: errors.New("never called")}, []Option{WithDisabled(true)}, http.StatusNoContent, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			New(tc.limiter, logger, tc.opts...).RateLimit(models.ClassVerify)(ok).
				ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
			assert.Equal(t, tc.status, w.Code)
			if tc.headers {
				assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
			} else {
				assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
			}
			if tc.status == http.StatusTooManyRequests {
				assert.Equal(t, "42", w.Header().Get("Retry-After"))
				assert.Contains(t, w.Body.String(), "rate_limit_exceeded")
			}
		})
	}
}

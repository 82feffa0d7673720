package auth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	id "trustline/pkg/domain"
	"trustline/pkg/requestcontext"
)

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (v stubValidator) ValidateToken(string) (*JWTClaims, error) { return v.claims, v.err }

func TestRequireAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	userID := id.UserID(id.NewSessionID())

	var seen id.UserID
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	cases := []struct {
		name      string
		header    string
		validator stubValidator
		status    int
	}{
		{"valid token", "Bearer good", stubValidator{claims: &JWTClaims{UserID: userID.String()}}, http.StatusNoContent},
		{"missing header", "", stubValidator{}, http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", stubValidator{}, http.StatusUnauthorized},
		{"invalid token", "Bearer bad", stubValidator{err: errors.New("bad signature")}, http.StatusUnauthorized},
		{"invalid subject", "Bearer odd", stubValidator{claims: &JWTClaims{UserID: "not-a-uuid"}}, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seen = id.UserID{}
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			RequireAuth(tc.validator, logger)(next).ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusNoContent {
				assert.Equal(t, userID, seen)
			} else {
				assert.True(t, seen.IsNil())
				assert.Contains(t, w.Body.String(), `"error":"unauthorized"`)
			}
		})
	}
}

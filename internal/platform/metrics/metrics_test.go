package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRequestAndScrape(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg, reg)

	m.ObserveRequest(http.MethodPost, "/v1/address-verifications/{id}/verify", http.StatusOK, 120*time.Millisecond)
	m.ObserveRequest(http.MethodPost, "/v1/address-verifications/{id}/verify", http.StatusConflict, 5*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("POST", "/v1/address-verifications/{id}/verify", "409")))

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "trustline_http_request_duration_seconds")
}

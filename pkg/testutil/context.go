package testutil

import (
	"net/http"
	"time"

	id "trustline/pkg/domain"
	"trustline/pkg/requestcontext"
)

// WithUserID marks the request as authenticated the way the auth middleware
// would. Invalid IDs are ignored.
func WithUserID(req *http.Request, userID string) *http.Request {
	parsed, err := id.ParseUserID(userID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithUserID(req.Context(), parsed))
}

// WithDevice sets the capture device normally parsed from the User-Agent.
func WithDevice(req *http.Request, d requestcontext.Device) *http.Request {
	return req.WithContext(requestcontext.WithCaptureDevice(req.Context(), d))
}

// WithRequestTime pins the request clock.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// Package device parses the User-Agent into the capture device recorded with
// photo evidence.
package device

import (
	"net/http"

	"github.com/mssola/useragent"

	"trustline/pkg/requestcontext"
)

// Parse maps a User-Agent string to a Device. An empty string yields the
// zero Device.
func Parse(ua string) requestcontext.Device {
	if ua == "" {
		return requestcontext.Device{}
	}
	parsed := useragent.New(ua)
	browser, _ := parsed.Browser()
	return requestcontext.Device{
		Browser: browser,
		OS:      parsed.OS(),
		Mobile:  parsed.Mobile(),
	}
}

// Middleware stores the parsed device when the request carries a User-Agent.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := r.Header.Get("User-Agent")
		if ua == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := requestcontext.WithCaptureDevice(r.Context(), Parse(ua))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

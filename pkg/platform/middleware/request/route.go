package request

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// chiRoute returns the matched route pattern so metrics are not labelled
// with session IDs.
func chiRoute(r *http.Request) string {
	rc := chi.RouteContext(r.Context())
	if rc == nil {
		return ""
	}
	return rc.RoutePattern()
}

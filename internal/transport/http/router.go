// Package httptransport assembles the public HTTP surface: middleware chain,
// authenticated API routes, operator routes and health checks.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"trustline/internal/audit"
	awardhandler "trustline/internal/award/handler"
	decisionhandler "trustline/internal/decision/handler"
	"trustline/internal/ratelimit/models"
	ratelimitmw "trustline/internal/ratelimit/middleware"
	verificationhandler "trustline/internal/verification/handler"
	"trustline/pkg/platform/httputil"
	adminmw "trustline/pkg/platform/middleware/admin"
	authmw "trustline/pkg/platform/middleware/auth"
	"trustline/pkg/platform/middleware/device"
	"trustline/pkg/platform/middleware/metadata"
	"trustline/pkg/platform/middleware/request"
	"trustline/pkg/platform/middleware/requesttime"
)

// APIPrefix versions every public route.
const APIPrefix = "/v1"

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

// Deps are the pieces the router mounts. Nil RateLimit disables limiting;
// a nil Metrics skips request observation and the scrape endpoint.
type Deps struct {
	Logger       *slog.Logger
	Metrics      MetricsHandler
	Tokens       authmw.JWTValidator
	AdminToken   string
	RateLimit    *ratelimitmw.Middleware
	Verification *verificationhandler.Handler
	Decision     *decisionhandler.Handler
	Award        *awardhandler.Handler
	Audit        *audit.Handler
	Health       map[string]HealthCheck
}

// MetricsHandler observes requests and serves the scrape endpoint.
type MetricsHandler interface {
	request.Observer
	Handler() http.Handler
}

// NewRouter wires the middleware chain and every route.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	var observer request.Observer
	if d.Metrics != nil {
		observer = d.Metrics
	}
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(device.Middleware)
	r.Use(request.Logger(d.Logger, observer))
	r.Use(request.Recovery(d.Logger))

	r.Get("/healthz", healthz(d.Health))
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Route(APIPrefix, func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireAuth(d.Tokens, d.Logger))
			if d.RateLimit != nil {
				r.Use(byClass(d.RateLimit))
			}
			d.Verification.Register(r)
			d.Decision.Register(r)
			d.Award.Register(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(adminmw.RequireAdminToken(d.AdminToken, d.Logger))
			d.Award.RegisterAdmin(r)
			if d.Audit != nil {
				d.Audit.RegisterAdmin(r)
			}
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
	})
	return r
}

// byClass picks the rate-limit bucket from the request shape: reads, session
// starts and validation runs, everything else.
func byClass(m *ratelimitmw.Middleware) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		handlers := map[models.EndpointClass]http.Handler{
			models.ClassRead:   m.RateLimit(models.ClassRead)(next),
			models.ClassWrite:  m.RateLimit(models.ClassWrite)(next),
			models.ClassVerify: m.RateLimit(models.ClassVerify)(next),
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlers[Classify(r)].ServeHTTP(w, r)
		})
	}
}

// Classify maps a request to its rate-limit class.
func Classify(r *http.Request) models.EndpointClass {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return models.ClassRead
	}
	path := strings.TrimSuffix(r.URL.Path, "/")
	if strings.HasSuffix(path, "/verify") || strings.HasSuffix(path, "/address-verifications") {
		return models.ClassVerify
	}
	return models.ClassWrite
}

func healthz(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
				continue
			}
			body[name] = "ok"
		}
		httputil.WriteJSON(w, status, body)
	}
}

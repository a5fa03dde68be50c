// Package router sets up all HTTP routes and middleware chains for the
// gateway. Every /api request is screened and rate limited; everything
// except login and logout also passes authentication, CSRF and the access
// gate before reaching a handler or the upstream service.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"clinigate/internal/access"
	"clinigate/internal/auth"
	"clinigate/internal/handlers"
	"clinigate/internal/intrusion"
	"clinigate/internal/metrics"
	"clinigate/internal/middleware"
	"clinigate/internal/ratelimit"
)

// SessionStatusPath is polled by clients and never counts as activity.
const SessionStatusPath = "/api/session/status"

// Deps holds everything the router wires together.
type Deps struct {
	Authenticator *auth.Authenticator
	Gate          *access.Gate
	Limiter       *ratelimit.Limiter
	Detector      *intrusion.Detector
	Auth          *handlers.Auth
	Features      *handlers.Features
	Upstream      http.Handler

	TrustProxy bool
	Secure     bool // TLS in front: Secure cookies and HSTS
}

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(d Deps) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Metrics)
	r.Use(middleware.NewSecureHeaders(d.Secure))
	// Every later check and the upstream see the cleaned path.
	r.Use(middleware.CanonicalPath)

	// Health check, outside the pipeline. Metrics live on the internal router.
	r.Get("/health", healthHandler(d.Authenticator.Mode().String(), d.Limiter.Backend().Name()))

	csrf := middleware.NewCSRF(d.Secure)

	r.Route("/api", func(r chi.Router) {
		// Intrusion detection runs first so blocked requests spend no quota.
		r.Use(middleware.Screen(d.Detector, d.TrustProxy))
		r.Use(middleware.RateLimit(d.Limiter, d.TrustProxy))

		// Credential endpoints, accessible without a session.
		r.Post("/auth/login", d.Auth.Login)
		r.With(csrf).Post("/auth/logout", d.Auth.Logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(d.Authenticator, isPassive))
			r.Use(csrf)
			r.Use(middleware.RequireAccess(d.Gate, middleware.OrganizationFromRequest))

			r.Get("/session/status", d.Auth.SessionStatus)
			r.Post("/session/heartbeat", d.Auth.Heartbeat)
			r.Get("/me", d.Auth.Me)

			r.Put("/admin/users/{userID}/features/{code}", d.Features.Put)
			r.Delete("/admin/users/{userID}/features/{code}", d.Features.Delete)

			// Everything else belongs to the records service.
			r.Handle("/*", d.Upstream)
		})
	})

	return r
}

// NewInternal returns the router for the internal listener, which serves
// the Prometheus scrape endpoint. It must not be exposed publicly.
func NewInternal() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	return r
}

func isPassive(r *http.Request) bool {
	return r.Method == http.MethodGet && r.URL.Path == SessionStatusPath
}

// healthHandler returns a simple JSON health check response.
func healthHandler(mode, backend string) http.HandlerFunc {
	body := []byte(`{"status":"ok","identity":"` + mode + `","rateLimit":"` + backend + `"}`)
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}
}

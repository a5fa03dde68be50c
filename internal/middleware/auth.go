// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"clinigate/internal/access"
	"clinigate/internal/apierror"
	"clinigate/internal/auth"
	"clinigate/internal/session"
)

// LoginPage is where browsers are sent when they need a session.
const LoginPage = "/login"

// Authenticate resolves the session token of the request and stores the
// identity in the context. Requests without a live session get 401, or a
// redirect to LoginPage for browser navigation. A session that cannot be
// checked because the directory or activity store is down is denied too.
//
// passive reports requests that must not count as user activity, such as
// session status polling. It may be nil.
func Authenticate(a *auth.Authenticator, passive func(*http.Request) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, fromCookie := session.TokenFromRequest(r)
			if token == "" {
				unauthenticated(w, r)
				return
			}

			touch := passive == nil || !passive(r)
			id, err := a.Resolve(r.Context(), token, touch)
			if err != nil {
				if !errors.Is(err, auth.ErrIdentityUnavailable) {
					slog.Error("identity resolution failed", "error", err)
				}
				unauthenticated(w, r)
				return
			}
			if id == nil {
				if fromCookie {
					a.Sessions().ClearCookie(w)
				}
				unauthenticated(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

// wantsHTML reports whether the client is a browser navigating to a page.
func wantsHTML(r *http.Request) bool {
	return r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html")
}

func unauthenticated(w http.ResponseWriter, r *http.Request) {
	if wantsHTML(r) {
		http.Redirect(w, r, LoginPage, http.StatusSeeOther)
		return
	}
	apierror.Write(w, r, apierror.New(apierror.Authentication, apierror.MsgUnauthorized))
}

// OrganizationResolver extracts the organization a request addresses. It
// returns nil when the request is not organization-scoped.
type OrganizationResolver func(r *http.Request) (*uuid.UUID, error)

// OrganizationFromRequest reads the organization from the orgID route
// parameter, an /organizations/{id} path segment, or the organizationId
// query parameter, in that order.
func OrganizationFromRequest(r *http.Request) (*uuid.UUID, error) {
	raw := chi.URLParam(r, "orgID")
	if raw == "" {
		raw = orgFromPath(r.URL.Path)
	}
	if raw == "" {
		raw = r.URL.Query().Get("organizationId")
	}
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func orgFromPath(path string) string {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	for i := 0; i+1 < len(segs); i++ {
		if segs[i] == "organizations" {
			return segs[i+1]
		}
	}
	return ""
}

// RequireAccess consults the access gate for the authenticated identity and
// the addressed path and organization. Denials are written as JSON with the
// gate's status and message.
func RequireAccess(g *access.Gate, resolve OrganizationResolver) func(http.Handler) http.Handler {
	if resolve == nil {
		resolve = OrganizationFromRequest
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			org, err := resolve(r)
			if err != nil {
				apierror.Write(w, r, apierror.New(apierror.Validation, "Invalid organization id"))
				return
			}

			d := g.Authorize(r.Context(), auth.FromContext(r.Context()), access.Target{
				Path:           r.URL.Path,
				OrganizationID: org,
			})
			if !d.Allowed {
				apierror.Write(w, r, d.Err())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

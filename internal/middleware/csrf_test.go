// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"clinigate/internal/session"
)

func csrfHandler(secure bool) http.Handler {
	return NewCSRF(secure)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func withSessionCookie(r *http.Request) *http.Request {
	r.AddCookie(&http.Cookie{Name: session.CookieName, Value: "tok"})
	return r
}

func TestNewCSRFSecureFlag(t *testing.T) {
	for _, secure := range []bool{true, false} {
		req := withSessionCookie(httptest.NewRequest(http.MethodGet, "/api/me", nil))
		rr := httptest.NewRecorder()
		csrfHandler(secure).ServeHTTP(rr, req)

		var found bool
		for _, c := range rr.Result().Cookies() {
			if c.Name != CSRFCookieName {
				continue
			}
			found = true
			if c.Secure != secure {
				t.Errorf("cookie Secure: got %v, want %v", c.Secure, secure)
			}
			if c.SameSite != http.SameSiteStrictMode {
				t.Errorf("cookie SameSite: got %v, want StrictMode", c.SameSite)
			}
			if c.Value == "" {
				t.Error("cookie Value should not be empty")
			}
		}
		if !found {
			t.Error("CSRF cookie not set")
		}
	}
}

func TestCSRF(t *testing.T) {
	tests := []struct {
		name   string
		build  func() *http.Request
		status int
	}{
		{
			name: "bearer requests are exempt",
			build: func() *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/api/notes", nil)
				r.Header.Set("Authorization", "Bearer tok")
				return r
			},
			status: http.StatusOK,
		},
		{
			name: "cookie session without token is rejected",
			build: func() *http.Request {
				return withSessionCookie(httptest.NewRequest(http.MethodPost, "/api/notes", nil))
			},
			status: http.StatusForbidden,
		},
		{
			name: "cookie session with mismatched token is rejected",
			build: func() *http.Request {
				r := withSessionCookie(httptest.NewRequest(http.MethodDelete, "/api/notes/1", nil))
				r.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "aaaa"})
				r.Header.Set(CSRFHeaderName, "bbbb")
				return r
			},
			status: http.StatusForbidden,
		},
		{
			name: "cookie session with matching header passes",
			build: func() *http.Request {
				r := withSessionCookie(httptest.NewRequest(http.MethodPut, "/api/notes/1", nil))
				r.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "abcd"})
				r.Header.Set(CSRFHeaderName, "abcd")
				return r
			},
			status: http.StatusOK,
		},
		{
			name: "safe methods pass",
			build: func() *http.Request {
				return withSessionCookie(httptest.NewRequest(http.MethodGet, "/api/notes", nil))
			},
			status: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			csrfHandler(false).ServeHTTP(rr, tt.build())
			if rr.Code != tt.status {
				t.Errorf("status: got %d, want %d", rr.Code, tt.status)
			}
		})
	}
}

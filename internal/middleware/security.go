// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import "net/http"

// NewSecureHeaders returns middleware that adds security-related HTTP
// headers to every response. hsts enables Strict-Transport-Security and
// should only be set behind TLS.
func NewSecureHeaders(hsts bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()

			// Prevent the browser from MIME-sniffing the Content-Type.
			h.Set("X-Content-Type-Options", "nosniff")

			// API responses are never framed.
			h.Set("X-Frame-Options", "DENY")

			// Disable the legacy XSS filter (can cause issues; CSP is preferred).
			h.Set("X-XSS-Protection", "0")

			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

			// Responses may carry patient data; keep them out of shared caches.
			h.Set("Cache-Control", "no-store")

			if hsts {
				h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

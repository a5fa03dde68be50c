// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"net"
	"net/http"
	"strings"

	"clinigate/internal/apierror"
	"clinigate/internal/ratelimit"
)

// RateLimit returns middleware that applies the limiter's per-route policy
// to each client. Quota headers are set on every limited response; a
// denied request gets 429 with Retry-After and never reaches next.
func RateLimit(l *ratelimit.Limiter, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := l.Check(r.Context(), ClientIP(r, trustProxy), r.URL.Path)
			res.SetHeaders(w.Header())
			if !res.Allowed {
				apierror.Write(w, r, apierror.New(apierror.RateLimited, apierror.MsgTooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the client's IP address. Forwarding headers are only
// consulted when trustProxy is set, since any client can send them.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		// Check X-Forwarded-For first (may contain multiple IPs).
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			// Take the first (leftmost) IP, the original client.
			if idx := strings.IndexByte(xff, ','); idx != -1 {
				xff = xff[:idx]
			}
			if ip := strings.TrimSpace(xff); ip != "" {
				return ip
			}
		}

		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}

	// Fall back to RemoteAddr (strip port).
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

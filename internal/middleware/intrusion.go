package middleware

import (
	"log/slog"
	"net/http"

	"clinigate/internal/apierror"
	"clinigate/internal/intrusion"
	"clinigate/internal/metrics"
)

// Screen rejects requests whose path, query or (when enabled) body match
// an attack signature. It runs before rate limiting and authentication so
// blocked requests consume no quota and touch no session.
func Screen(d *intrusion.Detector, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v, err := d.ScanRequest(r)
			if err != nil {
				apierror.Write(w, r, apierror.New(apierror.Validation, "Invalid request body"))
				return
			}
			if v.Detected {
				metrics.ThreatsBlocked.WithLabelValues(string(v.ThreatType)).Inc()
				slog.Warn("request blocked",
					"request_id", RequestIDFromContext(r.Context()),
					"ip", ClientIP(r, trustProxy),
					"threat", v.ThreatType,
					"method", r.Method,
					"path", r.URL.Path,
				)
				apierror.Write(w, r, apierror.New(apierror.Authorization, apierror.MsgRequestBlocked))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

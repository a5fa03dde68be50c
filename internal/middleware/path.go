package middleware

import (
	"log/slog"
	"net/http"
	"path"
	"strings"
)

// CanonicalPath rewrites the request path to its cleaned form before
// routing, so rate-limit classification, access rules and the upstream all
// see the same path. Empty segments and "." segments are removed; a
// trailing slash is kept. Paths with ".." segments are left untouched for
// the intrusion detector to reject.
func CanonicalPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		if clean, ok := canonical(p); ok && clean != p {
			slog.Debug("request path canonicalized", "from", p, "to", clean)
			u := *r.URL
			u.Path = clean
			u.RawPath = ""
			r2 := r.Clone(r.Context())
			r2.URL = &u
			r = r2
		}
		next.ServeHTTP(w, r)
	})
}

// canonical returns the cleaned form of p. ok is false when p contains a
// ".." segment.
func canonical(p string) (string, bool) {
	if p == "" {
		return "/", true
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return p, false
		}
	}

	clean := path.Clean("/" + p)
	if strings.HasSuffix(p, "/") && clean != "/" {
		clean += "/"
	}
	return clean, true
}

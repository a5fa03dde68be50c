package handlers

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"clinigate/internal/apierror"
	"clinigate/internal/auth"
	"clinigate/internal/middleware"
	"clinigate/internal/session"
)

// Identity headers set on every forwarded request. Client-supplied values
// are always removed first.
const (
	HeaderUserID         = "X-User-Id"
	HeaderUserEmail      = "X-User-Email"
	HeaderUserRole       = "X-User-Role"
	HeaderOrganizationID = "X-Organization-Id"
)

// NewUpstream returns the handler that forwards authorized requests to the
// records service at rawURL. With no URL configured every request gets a
// 502.
func NewUpstream(rawURL string) (http.Handler, error) {
	if rawURL == "" {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apierror.Write(w, r, apierror.New(apierror.BadGateway, apierror.MsgUpstreamMissing))
		}), nil
	}

	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.Host = target.Host
			pr.SetXForwarded()
			setIdentityHeaders(pr.Out, auth.FromContext(pr.In.Context()))
			if id := middleware.RequestIDFromContext(pr.In.Context()); id != "" {
				pr.Out.Header.Set(middleware.RequestIDHeader, id)
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			slog.Error("upstream request failed",
				"request_id", middleware.RequestIDFromContext(r.Context()),
				"path", r.URL.Path,
				"error", err,
			)
			apierror.Write(w, r, apierror.New(apierror.BadGateway, apierror.MsgUpstreamFailed))
		},
	}
	return proxy, nil
}

// setIdentityHeaders replaces any client-sent identity headers and gateway
// credentials with the resolved identity.
func setIdentityHeaders(out *http.Request, id *auth.Identity) {
	h := out.Header
	for _, name := range []string{HeaderUserID, HeaderUserEmail, HeaderUserRole, HeaderOrganizationID} {
		h.Del(name)
	}
	h.Del("Authorization")
	h.Del(middleware.CSRFHeaderName)
	stripCookies(out, session.CookieName, middleware.CSRFCookieName)

	if id == nil {
		return
	}
	h.Set(HeaderUserID, id.UserID.String())
	h.Set(HeaderUserEmail, id.Email)
	h.Set(HeaderUserRole, string(id.Role))
	if id.OrganizationID != nil {
		h.Set(HeaderOrganizationID, id.OrganizationID.String())
	}
}

// stripCookies removes the named cookies and keeps the rest.
func stripCookies(r *http.Request, names ...string) {
	cookies := r.Cookies()
	if len(cookies) == 0 {
		return
	}
	r.Header.Del("Cookie")
	var kept []string
	for _, c := range cookies {
		drop := false
		for _, n := range names {
			if c.Name == n {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, c.String())
		}
	}
	if len(kept) > 0 {
		r.Header.Set("Cookie", strings.Join(kept, "; "))
	}
}

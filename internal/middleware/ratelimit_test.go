// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clinigate/internal/clock"
	"clinigate/internal/ratelimit"
)

type downBackend struct{}

func (downBackend) Name() string { return "down" }
func (downBackend) Hit(context.Context, string, ratelimit.Policy) (ratelimit.Window, error) {
	return ratelimit.Window{}, errors.New("connection refused")
}

func TestRateLimitMiddleware(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	mem := ratelimit.NewMemoryBackend(clk, 0)
	defer mem.Stop()
	l := ratelimit.New(mem, ratelimit.WithClock(clk))

	handler := RateLimit(l, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/export/csv", nil)
		req.RemoteAddr = "203.0.113.5:51000"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < ratelimit.PolicyExport.Limit; i++ {
		if rr := send(); rr.Code != http.StatusOK {
			t.Fatalf("request %d: got %d", i+1, rr.Code)
		}
	}

	rr := send()
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status: got %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if rr.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("remaining: got %q", rr.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimitMiddlewareFailsOpen(t *testing.T) {
	l := ratelimit.New(downBackend{})
	handler := RateLimit(l, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/patients", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rr.Code)
	}
	if rr.Header().Get("X-RateLimit-Limit") != "" {
		t.Error("no quota headers expected when the backend is down")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trust      bool
		want       string
	}{
		{"remote addr", "192.168.1.1:12345", nil, false, "192.168.1.1"},
		{"ipv6 remote addr", "[::1]:8080", nil, false, "::1"},
		{"forwarded header ignored untrusted", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "1.2.3.4"}, false, "10.0.0.1"},
		{"leftmost forwarded ip", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.2"}, true, "1.2.3.4"},
		{"real ip", "10.0.0.1:1", map[string]string{"X-Real-IP": " 5.6.7.8 "}, true, "5.6.7.8"},
		{"no port", "unix", nil, false, "unix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := ClientIP(req, tt.trust); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

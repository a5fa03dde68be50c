// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"clinigate/internal/clock"
	"clinigate/internal/metrics"
)

// DefaultTimeout bounds a single backend call.
const DefaultTimeout = 300 * time.Millisecond

// Result is the outcome of a rate limit check.
type Result struct {
	Policy     Policy
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds; set only when denied
	FailedOpen bool
}

// Limiter classifies requests into policies and consults a Backend.
type Limiter struct {
	backend Backend
	clock   clock.Clock
	timeout time.Duration
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(l *Limiter) { l.clock = c }
}

// WithTimeout bounds each backend call.
func WithTimeout(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// New creates a Limiter on the given backend.
func New(backend Backend, opts ...Option) *Limiter {
	l := &Limiter{
		backend: backend,
		clock:   clock.Real{},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Backend returns the configured counter backend.
func (l *Limiter) Backend() Backend { return l.backend }

// Check counts a request from clientID to path against its policy.
// Backend failures fail open: the request is allowed and the error logged.
func (l *Limiter) Check(ctx context.Context, clientID, path string) Result {
	p := Classify(path)
	key := p.Name + ":" + clientID + ":" + path

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	w, err := l.backend.Hit(ctx, key, p)
	now := l.clock.Now()
	if err != nil {
		slog.Warn("rate limit check failed, allowing request",
			"policy", p.Name,
			"backend", l.backend.Name(),
			"client", clientID,
			"error", err,
		)
		metrics.BackendErrors.WithLabelValues("ratelimit").Inc()
		metrics.RateLimitDecisions.WithLabelValues(p.Name, "failed_open").Inc()
		return Result{
			Policy:     p,
			Allowed:    true,
			Limit:      p.Limit,
			Remaining:  p.Limit,
			ResetAt:    now.Add(p.Window),
			FailedOpen: true,
		}
	}

	res := Result{
		Policy:    p,
		Allowed:   w.Allowed,
		Limit:     p.Limit,
		Remaining: max(0, p.Limit-w.Count),
		ResetAt:   w.ResetAt,
	}
	if !w.Allowed {
		res.RetryAfter = retryAfter(w.ResetAt.Sub(now))
		metrics.RateLimitDecisions.WithLabelValues(p.Name, "denied").Inc()
	} else {
		metrics.RateLimitDecisions.WithLabelValues(p.Name, "allowed").Inc()
	}
	return res
}

// SetHeaders writes the X-RateLimit-* headers, and Retry-After when the
// request was denied. Nothing is written for a failed-open result.
func (r Result) SetHeaders(h http.Header) {
	if r.FailedOpen {
		return
	}
	h.Set("X-RateLimit-Limit", strconv.Itoa(r.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(r.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(r.ResetAt.UnixMilli(), 10))
	if !r.Allowed {
		h.Set("Retry-After", strconv.Itoa(r.RetryAfter))
	}
}

// retryAfter rounds d up to whole seconds, never returning less than one.
func retryAfter(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

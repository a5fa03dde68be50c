// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package metrics exposes Prometheus instruments for the authorization
// pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RateLimitDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clinigate_ratelimit_decisions_total",
		Help: "Rate limit decisions by policy and outcome (allowed, denied, failed_open).",
	}, []string{"policy", "outcome"})
	ThreatsBlocked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clinigate_threats_blocked_total",
		Help: "Requests rejected by intrusion detection, by threat type.",
	}, []string{"threat"})
	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clinigate_auth_failures_total",
		Help: "Requests that failed session authentication, by reason.",
	}, []string{"reason"})
	AccessDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clinigate_access_denied_total",
		Help: "Requests denied by the access gate, by reason.",
	}, []string{"reason"})
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clinigate_login_attempts_total",
		Help: "Login attempts by result (success, failure, locked).",
	}, []string{"result"})
	BackendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clinigate_backend_errors_total",
		Help: "Dependency errors observed by pipeline components.",
	}, []string{"component"})
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clinigate_http_request_duration_seconds",
		Help:    "HTTP request latencies in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest records the latency of a finished HTTP request.
func ObserveRequest(method string, status int, d time.Duration) {
	HTTPDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(d.Seconds())
}

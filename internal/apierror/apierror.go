// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package apierror defines the error taxonomy of the gateway and renders
// errors as JSON responses. The wrapped cause of an error is logged
// server-side and never written to the client.
package apierror

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// Kind classifies an error by the HTTP status it maps to.
type Kind int

const (
	Internal Kind = iota
	Validation
	Authentication
	Authorization
	RateLimited
	ServiceUnavailable
	NotFound
	BadGateway
)

// Client-facing messages. These strings are part of the public contract.
const (
	MsgTooManyRequests    = "Too many requests. Please try again later."
	MsgRequestBlocked     = "Request blocked for security reasons"
	MsgUnauthorized       = "Unauthorized - Please log in"
	MsgForbidden          = "Forbidden - Insufficient permissions"
	MsgFeatureDisabled    = "Feature not enabled for your account"
	MsgFeatureUnavailable = "Feature validation unavailable"
	MsgInternal           = "Internal server error"
	MsgUpstreamMissing    = "Upstream service not configured"
	MsgUpstreamFailed     = "Upstream service unavailable"
)

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case Validation:
		return http.StatusBadRequest
	case Authentication:
		return http.StatusUnauthorized
	case Authorization:
		return http.StatusForbidden
	case RateLimited:
		return http.StatusTooManyRequests
	case ServiceUnavailable:
		return http.StatusServiceUnavailable
	case NotFound:
		return http.StatusNotFound
	case BadGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Authentication:
		return "authentication"
	case Authorization:
		return "authorization"
	case RateLimited:
		return "rate_limited"
	case ServiceUnavailable:
		return "service_unavailable"
	case NotFound:
		return "not_found"
	case BadGateway:
		return "bad_gateway"
	default:
		return "internal"
	}
}

// Error is a classified error with a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates an Error of the given kind carrying an internal cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of err, or Internal when err is unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Write renders err as a JSON error response. Unclassified errors become a
// generic 500; the cause is logged but not echoed.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	var e *Error
	if !errors.As(err, &e) {
		e = Wrap(Internal, MsgInternal, err)
	}

	if e.Err != nil {
		slog.Error("request failed",
			"kind", e.Kind.String(),
			"method", r.Method,
			"path", r.URL.Path,
			"error", e.Err,
		)
	}

	JSON(w, e.Kind.Status(), map[string]string{"error": e.Message})
}

// JSON writes v as a JSON response body with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encode failed", "error", err)
	}
}

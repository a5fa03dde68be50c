// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package access decides whether an authenticated identity may use a route.
// Role membership, organization scoping and feature assignments are checked
// independently; a feature lookup that fails denies the request.
package access

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"clinigate/internal/apierror"
	"clinigate/internal/auth"
	"clinigate/internal/clock"
	"clinigate/internal/metrics"
)

// DefaultFeatureTimeout bounds a single feature lookup.
const DefaultFeatureTimeout = 500 * time.Millisecond

// Denial reasons, also used as metric labels.
const (
	ReasonUnauthenticated    = "unauthenticated"
	ReasonNoRule             = "no_rule"
	ReasonRole               = "role"
	ReasonOrganization       = "organization"
	ReasonFeatureDisabled    = "feature_disabled"
	ReasonFeatureUnavailable = "feature_unavailable"
)

// Target is the resource a request addresses.
type Target struct {
	Path           string
	OrganizationID *uuid.UUID
}

// Decision is the outcome of Authorize.
type Decision struct {
	Allowed bool
	Status  int
	Message string
	Reason  string
}

// Err converts a denial into an apierror for rendering. It returns nil for
// allowed decisions.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	var kind apierror.Kind
	switch d.Status {
	case http.StatusUnauthorized:
		kind = apierror.Authentication
	case http.StatusServiceUnavailable:
		kind = apierror.ServiceUnavailable
	default:
		kind = apierror.Authorization
	}
	return apierror.New(kind, d.Message)
}

var allowed = Decision{Allowed: true, Status: http.StatusOK}

func deny(status int, msg, reason string) Decision {
	metrics.AccessDenied.WithLabelValues(reason).Inc()
	return Decision{Status: status, Message: msg, Reason: reason}
}

// Gate evaluates route rules against identities.
type Gate struct {
	rules    []Rule
	features Features
	clock    clock.Clock
	timeout  time.Duration
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithClock overrides the clock used to evaluate feature expiry.
func WithClock(c clock.Clock) GateOption {
	return func(g *Gate) { g.clock = c }
}

// WithFeatureTimeout overrides DefaultFeatureTimeout.
func WithFeatureTimeout(d time.Duration) GateOption {
	return func(g *Gate) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// NewGate creates a Gate. rules must come from ParseRules or LoadRules.
func NewGate(rules []Rule, features Features, opts ...GateOption) *Gate {
	g := &Gate{
		rules:    rules,
		features: features,
		clock:    clock.Real{},
		timeout:  DefaultFeatureTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Rules returns the rule set in match order.
func (g *Gate) Rules() []Rule { return g.rules }

// Authorize decides whether id may access t.
func (g *Gate) Authorize(ctx context.Context, id *auth.Identity, t Target) Decision {
	if id == nil {
		return deny(http.StatusUnauthorized, apierror.MsgUnauthorized, ReasonUnauthenticated)
	}

	rule, ok := match(g.rules, t.Path)
	if !ok {
		return deny(http.StatusForbidden, apierror.MsgForbidden, ReasonNoRule)
	}

	if !rule.Allows(id.Role) {
		slog.Info("access denied", "reason", ReasonRole, "user_id", id.UserID, "role", id.Role, "path", t.Path)
		return deny(http.StatusForbidden, apierror.MsgForbidden, ReasonRole)
	}

	if t.OrganizationID != nil && !id.IsSuperAdmin() && !id.InOrganization(*t.OrganizationID) {
		slog.Info("access denied", "reason", ReasonOrganization, "user_id", id.UserID, "organization_id", *t.OrganizationID)
		return deny(http.StatusForbidden, apierror.MsgForbidden, ReasonOrganization)
	}

	if rule.Feature != "" {
		return g.checkFeature(ctx, id, rule.Feature)
	}
	return allowed
}

// RequireFeature checks a single feature code for id, outside of any
// route rule.
func (g *Gate) RequireFeature(ctx context.Context, id *auth.Identity, code string) Decision {
	if id == nil {
		return deny(http.StatusUnauthorized, apierror.MsgUnauthorized, ReasonUnauthenticated)
	}
	return g.checkFeature(ctx, id, code)
}

func (g *Gate) checkFeature(ctx context.Context, id *auth.Identity, code string) Decision {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	res := g.features.Lookup(ctx, id.UserID, code)
	if ctx.Err() != nil {
		res = FeatureBackendError{Err: fmt.Errorf("feature lookup: %w", ctx.Err())}
	}

	switch res := res.(type) {
	case FeatureFound:
		if res.Assignment.ActiveAt(g.clock.Now()) {
			return allowed
		}
		return deny(http.StatusForbidden, apierror.MsgFeatureDisabled, ReasonFeatureDisabled)
	case FeatureNotFound:
		return deny(http.StatusForbidden, apierror.MsgFeatureDisabled, ReasonFeatureDisabled)
	case FeatureBackendError:
		metrics.BackendErrors.WithLabelValues("features").Inc()
		slog.Error("feature lookup failed", "user_id", id.UserID, "feature", code, "error", res.Err)
		return deny(http.StatusServiceUnavailable, apierror.MsgFeatureUnavailable, ReasonFeatureUnavailable)
	default:
		slog.Error("feature lookup returned unexpected result", "type", fmt.Sprintf("%T", res))
		return deny(http.StatusServiceUnavailable, apierror.MsgFeatureUnavailable, ReasonFeatureUnavailable)
	}
}

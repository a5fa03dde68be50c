// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"clinigate/internal/clock"
	"clinigate/internal/metrics"
	"clinigate/internal/models"
	"clinigate/internal/session"
)

// DefaultLookupTimeout bounds a single directory lookup.
const DefaultLookupTimeout = 500 * time.Millisecond

// ErrIdentityUnavailable means a session was presented but the account or
// its activity record could not be read. Callers must deny the request.
var ErrIdentityUnavailable = errors.New("auth: identity unavailable")

// Mode is the account source selected once at startup.
type Mode int

const (
	ModeLive Mode = iota
	ModeDemo
)

func (m Mode) String() string {
	if m == ModeDemo {
		return "demo"
	}
	return "live"
}

// Authenticator resolves session tokens to identities.
type Authenticator struct {
	directory Directory
	sessions  *session.Manager
	activity  session.ActivityStore
	timeouts  session.Timeouts
	clock     clock.Clock
	timeout   time.Duration
	mode      Mode
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithClock overrides the clock used for lifecycle evaluation.
func WithClock(c clock.Clock) Option {
	return func(a *Authenticator) { a.clock = c }
}

// WithLookupTimeout overrides DefaultLookupTimeout.
func WithLookupTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithTimeouts overrides the session lifecycle thresholds.
func WithTimeouts(t session.Timeouts) Option {
	return func(a *Authenticator) { a.timeouts = t }
}

// WithMode records which directory the authenticator was built with.
func WithMode(m Mode) Option {
	return func(a *Authenticator) { a.mode = m }
}

// New creates an Authenticator.
func New(dir Directory, sessions *session.Manager, activity session.ActivityStore, opts ...Option) *Authenticator {
	a := &Authenticator{
		directory: dir,
		sessions:  sessions,
		activity:  activity,
		timeouts:  session.DefaultTimeouts,
		clock:     clock.Real{},
		timeout:   DefaultLookupTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Mode returns the account source of the authenticator.
func (a *Authenticator) Mode() Mode { return a.mode }

// Sessions returns the token manager.
func (a *Authenticator) Sessions() *session.Manager { return a.sessions }

// Directory returns the account directory.
func (a *Authenticator) Directory() Directory { return a.directory }

// Resolve returns the identity behind token. A missing, invalid or expired
// session, an unknown account and an inactive account all yield nil, nil.
// ErrIdentityUnavailable is returned when the account or session state
// could not be read. When touch is set, the request counts as user
// activity and restarts the idle timer, but only once the account has
// resolved as active.
func (a *Authenticator) Resolve(ctx context.Context, token string, touch bool) (*Identity, error) {
	claims, err := a.sessions.Parse(token)
	if err != nil {
		metrics.AuthFailures.WithLabelValues("invalid_token").Inc()
		return nil, nil
	}
	userID, err := claims.UserID()
	if err != nil {
		metrics.AuthFailures.WithLabelValues("invalid_token").Inc()
		return nil, nil
	}
	sid := claims.SessionID()

	status, ok, err := a.checkActivity(ctx, sid)
	if err != nil {
		return nil, a.activityUnavailable(sid, err)
	}
	if !ok {
		return nil, nil
	}

	user, err := a.lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}

	if touch {
		status, ok, err = a.touchActivity(ctx, sid)
		if err != nil {
			return nil, a.activityUnavailable(sid, err)
		}
		if !ok {
			return nil, nil
		}
	}

	return &Identity{
		UserID:         user.ID,
		Email:          user.Email,
		DisplayName:    user.DisplayName,
		Role:           user.Role,
		OrganizationID: user.OrganizationID,
		IsActive:       user.IsActive,
		SessionID:      sid,
		Session:        status,
	}, nil
}

func (a *Authenticator) activityUnavailable(sid string, err error) error {
	metrics.BackendErrors.WithLabelValues("session_activity").Inc()
	slog.Error("session activity unavailable", "session_id", sid, "error", err)
	return ErrIdentityUnavailable
}

// checkActivity evaluates the session lifecycle without recording
// activity. Expired sessions are ended.
func (a *Authenticator) checkActivity(ctx context.Context, sid string) (session.Status, bool, error) {
	act, ok, err := a.activity.Get(ctx, sid)
	if err != nil {
		return session.Status{}, false, err
	}
	if !ok {
		metrics.AuthFailures.WithLabelValues("session_ended").Inc()
		return session.Status{}, false, nil
	}

	status := a.timeouts.Evaluate(act, a.clock.Now())
	if status.State == session.StateExpired {
		metrics.AuthFailures.WithLabelValues("session_" + string(status.Reason)).Inc()
		slog.Info("session expired", "session_id", sid, "reason", status.Reason)
		if err := a.activity.End(ctx, sid); err != nil {
			slog.Warn("failed to end expired session", "session_id", sid, "error", err)
		}
		return status, false, nil
	}
	return status, true, nil
}

// touchActivity restarts the idle timer of a live session.
func (a *Authenticator) touchActivity(ctx context.Context, sid string) (session.Status, bool, error) {
	now := a.clock.Now()
	act, ok, err := a.activity.Touch(ctx, sid, now)
	if err != nil || !ok {
		return session.Status{}, false, err
	}
	return a.timeouts.Evaluate(act, now), true, nil
}

// lookup reads the account under the lookup timeout. It returns nil, nil
// for unknown or inactive accounts.
func (a *Authenticator) lookup(ctx context.Context, id uuid.UUID) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	switch res := a.directory.ByID(ctx, id).(type) {
	case Found:
		if !res.User.IsActive {
			metrics.AuthFailures.WithLabelValues("inactive").Inc()
			return nil, nil
		}
		return res.User, nil
	case NotFound:
		metrics.AuthFailures.WithLabelValues("unknown_user").Inc()
		return nil, nil
	case BackendError:
		metrics.BackendErrors.WithLabelValues("identity").Inc()
		slog.Error("identity lookup failed", "user_id", id, "error", res.Err)
		return nil, ErrIdentityUnavailable
	default:
		return nil, fmt.Errorf("%w: unexpected lookup result %T", ErrIdentityUnavailable, res)
	}
}

// StartSession issues a token for u and opens its activity record.
func (a *Authenticator) StartSession(ctx context.Context, u *models.User) (string, *session.Claims, error) {
	token, claims, err := a.sessions.Issue(u.ID, u.Email)
	if err != nil {
		return "", nil, err
	}
	started := claims.StartedAt()
	if err := a.activity.Start(ctx, claims.SessionID(), session.Activity{
		LastActivityAt: started,
		StartedAt:      started,
	}); err != nil {
		return "", nil, fmt.Errorf("start session: %w", err)
	}
	return token, claims, nil
}

// EndSession deletes the activity record of token's session. Invalid
// tokens are ignored.
func (a *Authenticator) EndSession(ctx context.Context, token string) error {
	claims, err := a.sessions.Parse(token)
	if err != nil {
		return nil
	}
	return a.activity.End(ctx, claims.SessionID())
}

// Timeouts returns the lifecycle thresholds in force.
func (a *Authenticator) Timeouts() session.Timeouts { return a.timeouts }

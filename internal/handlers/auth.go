// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers implements the gateway's own HTTP endpoints: login,
// session lifecycle, feature administration and the upstream proxy.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"clinigate/internal/apierror"
	"clinigate/internal/auth"
	"clinigate/internal/clock"
	"clinigate/internal/lockout"
	"clinigate/internal/metrics"
	"clinigate/internal/middleware"
	"clinigate/internal/models"
	"clinigate/internal/session"
)

// Client-facing login messages.
const (
	msgInvalidCredentials = "Invalid email or password"
	msgTOTPRequired       = "Two-factor code required"
	msgAccountLocked      = "Account temporarily locked due to too many failed login attempts"
	msgAuthUnavailable    = "Authentication service unavailable"
)

// Auth groups the login and session lifecycle handlers.
type Auth struct {
	authn      *auth.Authenticator
	lockout    *lockout.Policy
	clock      clock.Clock
	trustProxy bool
}

// NewAuth creates a new Auth handler group.
func NewAuth(authn *auth.Authenticator, policy *lockout.Policy, clk clock.Clock, trustProxy bool) *Auth {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Auth{
		authn:      authn,
		lockout:    policy,
		clock:      clk,
		trustProxy: trustProxy,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TOTPCode string `json:"totp_code,omitempty"`
}

type loginResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	User      *auth.Identity `json:"user"`
}

// Login checks the lockout state of the email, then the credentials, and
// opens a session. Every credential failure is recorded in the ledger.
func (a *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierror.Write(w, r, err)
		return
	}
	if msg := validateLogin(req.Email, req.Password, req.TOTPCode); msg != "" {
		apierror.Write(w, r, apierror.New(apierror.Validation, msg))
		return
	}

	ctx := r.Context()
	email := models.NormalizeEmail(req.Email)
	ip := middleware.ClientIP(r, a.trustProxy)
	ua := r.UserAgent()

	if state := a.lockout.CheckLockout(ctx, email); state.Locked {
		// Attempts during a lockout still count and can extend it.
		a.lockout.RecordAttempt(ctx, email, false, ip, ua)
		if s := a.lockout.CheckLockout(ctx, email); s.Locked {
			state = s
		}
		metrics.LoginAttempts.WithLabelValues("locked").Inc()
		slog.Warn("login rejected, account locked", "email", email, "ip", ip, "ends_at", state.LockoutEndsAt)
		a.writeLocked(w, state)
		return
	}

	user, err := a.authn.Credentials(ctx, email, req.Password, req.TOTPCode)
	switch {
	case errors.Is(err, auth.ErrIdentityUnavailable):
		apierror.Write(w, r, apierror.New(apierror.ServiceUnavailable, msgAuthUnavailable))
		return
	case errors.Is(err, auth.ErrTOTPRequired):
		apierror.JSON(w, http.StatusUnauthorized, map[string]any{
			"error":        msgTOTPRequired,
			"totpRequired": true,
		})
		return
	case err != nil:
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		a.lockout.RecordAttempt(ctx, email, false, ip, ua)
		slog.Info("login failed", "email", email, "ip", ip)
		apierror.Write(w, r, apierror.New(apierror.Authentication, msgInvalidCredentials))
		return
	}

	token, claims, err := a.authn.StartSession(ctx, user)
	if err != nil {
		apierror.Write(w, r, apierror.Wrap(apierror.ServiceUnavailable, msgAuthUnavailable, err))
		return
	}
	metrics.LoginAttempts.WithLabelValues("success").Inc()
	a.lockout.RecordAttempt(ctx, email, true, ip, ua)
	a.authn.Sessions().SetCookie(w, token, claims)

	slog.Info("login succeeded", "user_id", user.ID, "session_id", claims.SessionID(), "ip", ip)
	apierror.JSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		User: &auth.Identity{
			UserID:         user.ID,
			Email:          user.Email,
			DisplayName:    user.DisplayName,
			Role:           user.Role,
			OrganizationID: user.OrganizationID,
			IsActive:       user.IsActive,
			SessionID:      claims.SessionID(),
			Session:        a.authn.Timeouts().Evaluate(session.Activity{LastActivityAt: claims.StartedAt(), StartedAt: claims.StartedAt()}, a.clock.Now()),
		},
	})
}

func (a *Auth) writeLocked(w http.ResponseWriter, state lockout.State) {
	retry := state.RetryAfter(a.clock.Now())
	secs := int(retry / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	apierror.JSON(w, http.StatusTooManyRequests, map[string]any{
		"error":          msgAccountLocked,
		"lockoutEndsAt":  state.LockoutEndsAt,
		"failedAttempts": state.FailedAttempts,
		"retryAfter":     secs,
	})
}

// Logout ends the session behind the request's token and clears the
// cookie. It succeeds even when the session has already expired.
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	if token, _ := session.TokenFromRequest(r); token != "" {
		if err := a.authn.EndSession(r.Context(), token); err != nil {
			slog.Warn("session end failed", "error", err)
		}
	}
	a.authn.Sessions().ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

type statusResponse struct {
	State                    session.State        `json:"state"`
	Reason                   session.ExpiryReason `json:"reason,omitempty"`
	IdleRemainingSeconds     int64                `json:"idleRemainingSeconds"`
	AbsoluteRemainingSeconds int64                `json:"absoluteRemainingSeconds"`
	ExpiresAt                time.Time            `json:"expiresAt"`
	WarningSeconds           int64                `json:"warningSeconds"`
}

func (a *Auth) writeStatus(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		apierror.Write(w, r, apierror.New(apierror.Authentication, apierror.MsgUnauthorized))
		return
	}
	st := id.Session
	apierror.JSON(w, http.StatusOK, statusResponse{
		State:                    st.State,
		Reason:                   st.Reason,
		IdleRemainingSeconds:     int64(st.IdleRemaining / time.Second),
		AbsoluteRemainingSeconds: int64(st.AbsoluteRemaining / time.Second),
		ExpiresAt:                st.ExpiresAt,
		WarningSeconds:           int64(a.authn.Timeouts().Warning / time.Second),
	})
}

// SessionStatus reports the lifecycle state for client countdowns. It is
// mounted behind passive authentication and does not extend the session.
func (a *Auth) SessionStatus(w http.ResponseWriter, r *http.Request) {
	a.writeStatus(w, r)
}

// Heartbeat records a user interaction. The authentication middleware has
// already touched the session; the refreshed status is returned.
func (a *Auth) Heartbeat(w http.ResponseWriter, r *http.Request) {
	a.writeStatus(w, r)
}

// Me returns the resolved identity of the request.
func (a *Auth) Me(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		apierror.Write(w, r, apierror.New(apierror.Authentication, apierror.MsgUnauthorized))
		return
	}
	apierror.JSON(w, http.StatusOK, id)
}

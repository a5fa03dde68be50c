// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package session

import "time"

// State is the lifecycle state of a session.
type State int

const (
	StateActive State = iota
	StateWarning
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateWarning:
		return "warning"
	default:
		return "expired"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ExpiryReason names the threshold that ended a session.
type ExpiryReason string

const (
	ReasonNone     ExpiryReason = ""
	ReasonIdle     ExpiryReason = "idle"
	ReasonAbsolute ExpiryReason = "absolute"
)

// Timeouts are the two independent session thresholds plus the warning
// lead time before idle expiry.
type Timeouts struct {
	Inactivity time.Duration
	Warning    time.Duration
	Absolute   time.Duration
}

// DefaultTimeouts: 15 minutes idle, warned 2 minutes ahead, 8 hours total.
var DefaultTimeouts = Timeouts{
	Inactivity: 15 * time.Minute,
	Warning:    2 * time.Minute,
	Absolute:   8 * time.Hour,
}

// Activity is the per-session activity record.
type Activity struct {
	LastActivityAt time.Time `json:"last_activity_at"`
	StartedAt      time.Time `json:"started_at"`
}

// Touch records user activity at now. Only LastActivityAt moves; the
// session start is never reset.
func (a Activity) Touch(now time.Time) Activity {
	if now.After(a.LastActivityAt) {
		a.LastActivityAt = now
	}
	return a
}

// Status is the evaluated lifecycle of a session at a point in time.
type Status struct {
	State             State         `json:"-"`
	Reason            ExpiryReason  `json:"reason,omitempty"`
	IdleRemaining     time.Duration `json:"-"`
	AbsoluteRemaining time.Duration `json:"-"`
	ExpiresAt         time.Time     `json:"expires_at"`
}

// Evaluate derives the session state at now. Either threshold alone
// expires the session; the absolute ceiling applies however active the
// session has been.
func (t Timeouts) Evaluate(a Activity, now time.Time) Status {
	idle := now.Sub(a.LastActivityAt)
	age := now.Sub(a.StartedAt)

	idleDeadline := a.LastActivityAt.Add(t.Inactivity)
	absoluteDeadline := a.StartedAt.Add(t.Absolute)

	st := Status{
		IdleRemaining:     max(0, t.Inactivity-idle),
		AbsoluteRemaining: max(0, t.Absolute-age),
		ExpiresAt:         idleDeadline,
	}
	if absoluteDeadline.Before(idleDeadline) {
		st.ExpiresAt = absoluteDeadline
	}

	switch {
	case age > t.Absolute:
		st.State, st.Reason = StateExpired, ReasonAbsolute
	case idle > t.Inactivity:
		st.State, st.Reason = StateExpired, ReasonIdle
	case idle > t.Inactivity-t.Warning:
		st.State = StateWarning
	default:
		st.State = StateActive
	}
	return st
}

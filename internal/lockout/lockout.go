// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package lockout keeps the login attempt ledger and derives account
// lockout from it. Lockout is purely time-based: it clears on its own once
// the lockout period after the last qualifying failure has passed. Ledger
// faults never lock anyone out.
package lockout

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"clinigate/internal/clock"
	"clinigate/internal/metrics"
	"clinigate/internal/models"
)

// ErrLedgerUnavailable marks ledger errors caused by missing storage, such
// as an unmigrated table.
var ErrLedgerUnavailable = errors.New("lockout: ledger unavailable")

// DefaultTimeout bounds a single ledger call.
const DefaultTimeout = 500 * time.Millisecond

// Ledger is the append-only record of login attempts.
type Ledger interface {
	Record(ctx context.Context, a models.LoginAttempt) error
	// FailuresSince returns the times of failed attempts for email at or
	// after since, oldest first.
	FailuresSince(ctx context.Context, email string, since time.Time) ([]time.Time, error)
	PurgeFailures(ctx context.Context, email string, before time.Time) (int64, error)
	PurgeAllFailures(ctx context.Context, before time.Time) (int64, error)
}

// Config holds the lockout thresholds.
type Config struct {
	MaxFailures int           // failures that trigger a lockout
	Window      time.Duration // rolling window the failures must fall in
	Duration    time.Duration // lockout length after the last qualifying failure
	Retention   time.Duration // failed entries older than this are purged
}

// DefaultConfig: 5 failures in 15 minutes lock the account for 30 minutes.
var DefaultConfig = Config{
	MaxFailures: 5,
	Window:      15 * time.Minute,
	Duration:    30 * time.Minute,
	Retention:   24 * time.Hour,
}

// State is the derived lockout state of an email.
type State struct {
	Locked         bool       `json:"locked"`
	FailedAttempts int        `json:"failedAttempts"`
	LockoutEndsAt  *time.Time `json:"lockoutEndsAt,omitempty"`
}

// RetryAfter returns the time left until the lockout ends, rounded up to
// whole seconds. Zero when not locked.
func (s State) RetryAfter(now time.Time) time.Duration {
	if !s.Locked || s.LockoutEndsAt == nil {
		return 0
	}
	d := s.LockoutEndsAt.Sub(now)
	if d <= 0 {
		return 0
	}
	if r := d % time.Second; r != 0 {
		d += time.Second - r
	}
	return d
}

// Policy records attempts and evaluates lockouts.
type Policy struct {
	ledger  Ledger
	cfg     Config
	clock   clock.Clock
	timeout time.Duration
}

// Option configures a Policy.
type Option func(*Policy)

// WithClock overrides the clock.
func WithClock(c clock.Clock) Option {
	return func(p *Policy) { p.clock = c }
}

// WithConfig overrides DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(p *Policy) { p.cfg = cfg }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewPolicy creates a lockout policy over ledger.
func NewPolicy(ledger Ledger, opts ...Option) *Policy {
	p := &Policy{
		ledger:  ledger,
		cfg:     DefaultConfig,
		clock:   clock.Real{},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the thresholds in force.
func (p *Policy) Config() Config { return p.cfg }

// RecordAttempt appends an attempt to the ledger. A successful attempt
// also purges the email's failures older than the retention window; it
// does not clear a lockout that is still running.
func (p *Policy) RecordAttempt(ctx context.Context, email string, success bool, ip, userAgent string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	now := p.clock.Now()
	email = models.NormalizeEmail(email)
	err := p.ledger.Record(ctx, models.LoginAttempt{
		Email:     email,
		IPAddress: ip,
		UserAgent: userAgent,
		Success:   success,
		At:        now,
	})
	if err != nil {
		metrics.BackendErrors.WithLabelValues("login_ledger").Inc()
		slog.Warn("login attempt not recorded", "email", email, "error", err)
		return err
	}

	if success {
		if _, err := p.ledger.PurgeFailures(ctx, email, now.Add(-p.cfg.Retention)); err != nil {
			slog.Warn("failed login purge failed", "email", email, "error", err)
		}
	}
	return nil
}

// CheckLockout derives the lockout state of email at the current time.
// Ledger errors are logged and reported as not locked.
func (p *Policy) CheckLockout(ctx context.Context, email string) State {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	now := p.clock.Now()
	email = models.NormalizeEmail(email)

	// A failure older than Window+Duration can neither end a lockout
	// in the future nor count toward one that does.
	failures, err := p.ledger.FailuresSince(ctx, email, now.Add(-(p.cfg.Window + p.cfg.Duration)))
	if err != nil {
		metrics.BackendErrors.WithLabelValues("login_ledger").Inc()
		if errors.Is(err, ErrLedgerUnavailable) {
			slog.Warn("login ledger missing, lockout disabled", "error", err)
		} else {
			slog.Warn("lockout check failed, allowing attempt", "email", email, "error", err)
		}
		return State{}
	}
	return Evaluate(p.cfg, failures, now)
}

// Evaluate computes the lockout state from failure times. The account is
// locked when some failure f has at least MaxFailures failures in
// (f-Window, f] and now is before f+Duration. The lockout ends Duration
// after the most recent such failure.
func Evaluate(cfg Config, failures []time.Time, now time.Time) State {
	sorted := make([]time.Time, 0, len(failures))
	for _, f := range failures {
		if !f.After(now) {
			sorted = append(sorted, f)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	st := State{FailedAttempts: countIn(sorted, now.Add(-cfg.Window), now)}
	if cfg.MaxFailures <= 0 {
		return st
	}

	// Walk newest first; the first qualifying failure gives the latest end.
	for i := len(sorted) - 1; i >= 0; i-- {
		f := sorted[i]
		end := f.Add(cfg.Duration)
		if !now.Before(end) {
			break
		}
		if n := countIn(sorted[:i+1], f.Add(-cfg.Window), f); n >= cfg.MaxFailures {
			st.Locked = true
			st.LockoutEndsAt = &end
			if n > st.FailedAttempts {
				st.FailedAttempts = n
			}
			return st
		}
	}
	return st
}

// countIn counts times in (from, to].
func countIn(sorted []time.Time, from, to time.Time) int {
	n := 0
	for _, t := range sorted {
		if t.After(from) && !t.After(to) {
			n++
		}
	}
	return n
}

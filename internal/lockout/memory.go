// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package lockout

import (
	"context"
	"sync"
	"time"

	"clinigate/internal/models"
)

// MemoryLedger is a process-local Ledger used in demo mode and tests.
type MemoryLedger struct {
	mu       sync.Mutex
	nextID   int64
	attempts map[string][]models.LoginAttempt
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{attempts: make(map[string][]models.LoginAttempt)}
}

func (l *MemoryLedger) Record(_ context.Context, a models.LoginAttempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	a.ID = l.nextID
	a.Email = models.NormalizeEmail(a.Email)
	l.attempts[a.Email] = append(l.attempts[a.Email], a)
	return nil
}

func (l *MemoryLedger) FailuresSince(_ context.Context, email string, since time.Time) ([]time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []time.Time
	for _, a := range l.attempts[models.NormalizeEmail(email)] {
		if !a.Success && !a.At.Before(since) {
			out = append(out, a.At)
		}
	}
	return out, nil
}

func (l *MemoryLedger) PurgeFailures(_ context.Context, email string, before time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	email = models.NormalizeEmail(email)
	n := l.purge(email, before)
	return n, nil
}

func (l *MemoryLedger) PurgeAllFailures(_ context.Context, before time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total int64
	for email := range l.attempts {
		total += l.purge(email, before)
	}
	return total, nil
}

// purge removes failed attempts of email older than before. Caller holds mu.
func (l *MemoryLedger) purge(email string, before time.Time) int64 {
	kept := l.attempts[email][:0]
	var removed int64
	for _, a := range l.attempts[email] {
		if !a.Success && a.At.Before(before) {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	if len(kept) == 0 {
		delete(l.attempts, email)
	} else {
		l.attempts[email] = kept
	}
	return removed
}

// Len returns the number of recorded attempts for email.
func (l *MemoryLedger) Len(email string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.attempts[models.NormalizeEmail(email)])
}

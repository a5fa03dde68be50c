// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ratelimit

import (
	"context"
	"sync"
	"time"

	"clinigate/internal/clock"
)

// DefaultSweepInterval is how often expired in-memory counters are removed.
const DefaultSweepInterval = 5 * time.Minute

type counter struct {
	count   int
	resetAt time.Time
}

// MemoryBackend keeps fixed-window counters in a process-local map.
// Counters are not shared between server instances, so this backend is only
// correct for single-instance deployments.
type MemoryBackend struct {
	mu       sync.Mutex
	counters map[string]*counter
	clock    clock.Clock
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMemoryBackend creates an in-memory backend and starts a background
// goroutine that sweeps expired counters every interval. A non-positive
// interval disables the sweeper.
func NewMemoryBackend(clk clock.Clock, interval time.Duration) *MemoryBackend {
	if clk == nil {
		clk = clock.Real{}
	}
	m := &MemoryBackend{
		counters: make(map[string]*counter),
		clock:    clk,
		interval: interval,
		stopCh:   make(chan struct{}),
	}

	if interval > 0 {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					m.Sweep()
				case <-m.stopCh:
					return
				}
			}
		}()
	}

	return m
}

func (m *MemoryBackend) Name() string { return "memory" }

// Hit implements Backend.
func (m *MemoryBackend) Hit(_ context.Context, key string, p Policy) (Window, error) {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if p.Limit <= 0 {
		return Window{Allowed: false, ResetAt: now.Add(p.Window)}, nil
	}

	c, ok := m.counters[key]
	if !ok || !now.Before(c.resetAt) {
		c = &counter{count: 1, resetAt: now.Add(p.Window)}
		m.counters[key] = c
		return Window{Allowed: true, Count: 1, ResetAt: c.resetAt}, nil
	}

	if c.count >= p.Limit {
		return Window{Allowed: false, Count: c.count, ResetAt: c.resetAt}, nil
	}

	c.count++
	return Window{Allowed: true, Count: c.count, ResetAt: c.resetAt}, nil
}

// Sweep removes counters whose window has elapsed.
func (m *MemoryBackend) Sweep() int {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, c := range m.counters {
		if !now.Before(c.resetAt) {
			delete(m.counters, key)
			removed++
		}
	}
	return removed
}

// SweepInterval returns how often expired counters are removed; zero
// means never.
func (m *MemoryBackend) SweepInterval() time.Duration {
	return max(m.interval, 0)
}

// Len returns the number of live counters.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.counters)
}

// Stop terminates the background sweeper. Safe to call more than once.
func (m *MemoryBackend) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ratelimit

import (
	"context"
	"time"
)

// Window is the state of one counter after a hit.
type Window struct {
	Allowed bool
	Count   int
	ResetAt time.Time
}

// Backend is a counter store with an atomic increment-and-check. A hit
// that would exceed the policy limit is rejected and not counted.
type Backend interface {
	Hit(ctx context.Context, key string, p Policy) (Window, error)
	Name() string
}

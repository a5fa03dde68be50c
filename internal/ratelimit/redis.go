// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"clinigate/internal/clock"
)

// keyPrefix namespaces rate limit keys in Valkey.
const keyPrefix = "ratelimit:"

// slidingWindow atomically trims the request log for a key, counts what is
// left and records the new request only if it fits under the limit.
// Returns {allowed, count, resetAtMillis}.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, member)
  redis.call('PEXPIRE', key, window)
  count = count + 1
  allowed = 1
end

local reset = now + window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
  reset = tonumber(oldest[2]) + window
end
return {allowed, count, reset}
`)

// RedisBackend is a distributed sliding-window log stored in Valkey sorted
// sets. All counter mutation happens inside a single Lua script, so
// concurrent hits from any number of instances are serialized by the server.
type RedisBackend struct {
	client redis.Scripter
	clock  clock.Clock
}

// NewRedisBackend creates a backend on the given Valkey client.
func NewRedisBackend(client redis.Scripter, clk clock.Clock) *RedisBackend {
	if clk == nil {
		clk = clock.Real{}
	}
	return &RedisBackend{client: client, clock: clk}
}

func (b *RedisBackend) Name() string { return "valkey" }

// Hit implements Backend.
func (b *RedisBackend) Hit(ctx context.Context, key string, p Policy) (Window, error) {
	now := b.clock.Now()
	if p.Limit <= 0 {
		return Window{Allowed: false, ResetAt: now.Add(p.Window)}, nil
	}

	res, err := slidingWindow.Run(ctx, b.client, []string{keyPrefix + key},
		now.UnixMilli(),
		p.Window.Milliseconds(),
		p.Limit,
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return Window{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 3 {
		return Window{}, fmt.Errorf("rate limit script: unexpected reply length %d", len(res))
	}

	return Window{
		Allowed: res[0] == 1,
		Count:   int(res[1]),
		ResetAt: time.UnixMilli(res[2]),
	}, nil
}

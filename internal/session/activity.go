// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"clinigate/internal/clock"
)

// ActivityStore holds the server-side activity record of each live
// session, keyed by session id. A missing record means the session has
// ended; expiry is terminal and records are never recreated by Touch.
type ActivityStore interface {
	Start(ctx context.Context, sessionID string, a Activity) error
	Get(ctx context.Context, sessionID string) (Activity, bool, error)
	Touch(ctx context.Context, sessionID string, now time.Time) (Activity, bool, error)
	End(ctx context.Context, sessionID string) error
}

// MemoryActivityStore is a process-local ActivityStore with a periodic
// sweep of records past either timeout.
type MemoryActivityStore struct {
	mu       sync.Mutex
	records  map[string]Activity
	timeouts Timeouts
	clock    clock.Clock
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMemoryActivityStore creates the store and starts its sweeper. A
// non-positive interval disables the sweeper.
func NewMemoryActivityStore(t Timeouts, clk clock.Clock, interval time.Duration) *MemoryActivityStore {
	if clk == nil {
		clk = clock.Real{}
	}
	s := &MemoryActivityStore{
		records:  make(map[string]Activity),
		timeouts: t,
		clock:    clk,
		stopCh:   make(chan struct{}),
	}

	if interval > 0 {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					s.Sweep()
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

func (s *MemoryActivityStore) Start(_ context.Context, sessionID string, a Activity) error {
	s.mu.Lock()
	s.records[sessionID] = a
	s.mu.Unlock()
	return nil
}

func (s *MemoryActivityStore) Get(_ context.Context, sessionID string) (Activity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.records[sessionID]
	return a, ok, nil
}

func (s *MemoryActivityStore) Touch(_ context.Context, sessionID string, now time.Time) (Activity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.records[sessionID]
	if !ok {
		return Activity{}, false, nil
	}
	a = a.Touch(now)
	s.records[sessionID] = a
	return a, true, nil
}

func (s *MemoryActivityStore) End(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.records, sessionID)
	s.mu.Unlock()
	return nil
}

// Sweep removes records that have expired by either threshold.
func (s *MemoryActivityStore) Sweep() int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, a := range s.records {
		if s.timeouts.Evaluate(a, now).State == StateExpired {
			delete(s.records, id)
			removed++
		}
	}
	return removed
}

// Stop terminates the background sweeper. Safe to call more than once.
func (s *MemoryActivityStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// activityKeyPrefix namespaces activity records in Valkey.
const activityKeyPrefix = "session:activity:"

// touchScript moves last_activity forward only if the record still exists
// and the new time is later.
var touchScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return {0, 0, 0}
end
local last = tonumber(redis.call('HGET', KEYS[1], 'last') or '0')
local now = tonumber(ARGV[1])
if now > last then
  redis.call('HSET', KEYS[1], 'last', now)
  last = now
end
local started = tonumber(redis.call('HGET', KEYS[1], 'started') or '0')
return {1, last, started}
`)

// RedisActivityStore keeps activity records as Valkey hashes that expire
// with the absolute session ceiling.
type RedisActivityStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisActivityStore creates a Valkey-backed ActivityStore.
func NewRedisActivityStore(client redis.Cmdable, t Timeouts) *RedisActivityStore {
	return &RedisActivityStore{client: client, ttl: t.Absolute + time.Minute}
}

func (s *RedisActivityStore) Start(ctx context.Context, sessionID string, a Activity) error {
	key := activityKeyPrefix + sessionID
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		"last", a.LastActivityAt.UnixMilli(),
		"started", a.StartedAt.UnixMilli(),
	)
	pipe.PExpire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session activity start: %w", err)
	}
	return nil
}

func (s *RedisActivityStore) Get(ctx context.Context, sessionID string) (Activity, bool, error) {
	vals, err := s.client.HGetAll(ctx, activityKeyPrefix+sessionID).Result()
	if err != nil {
		return Activity{}, false, fmt.Errorf("session activity get: %w", err)
	}
	if len(vals) == 0 {
		return Activity{}, false, nil
	}

	last, err1 := strconv.ParseInt(vals["last"], 10, 64)
	started, err2 := strconv.ParseInt(vals["started"], 10, 64)
	if err := errors.Join(err1, err2); err != nil {
		return Activity{}, false, fmt.Errorf("session activity decode: %w", err)
	}
	return Activity{
		LastActivityAt: time.UnixMilli(last),
		StartedAt:      time.UnixMilli(started),
	}, true, nil
}

func (s *RedisActivityStore) Touch(ctx context.Context, sessionID string, now time.Time) (Activity, bool, error) {
	res, err := touchScript.Run(ctx, s.client, []string{activityKeyPrefix + sessionID}, now.UnixMilli()).Int64Slice()
	if err != nil {
		return Activity{}, false, fmt.Errorf("session activity touch: %w", err)
	}
	if len(res) != 3 || res[0] == 0 {
		return Activity{}, false, nil
	}
	return Activity{
		LastActivityAt: time.UnixMilli(res[1]),
		StartedAt:      time.UnixMilli(res[2]),
	}, true, nil
}

func (s *RedisActivityStore) End(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, activityKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("session activity end: %w", err)
	}
	return nil
}

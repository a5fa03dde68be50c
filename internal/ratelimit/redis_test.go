package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"clinigate/internal/clock"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testValkey returns a client for the test Valkey instance, skipping the
// test when it is not reachable.
func testValkey(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr:     envOr("VALKEY_HOST", "localhost") + ":" + envOr("VALKEY_PORT", "6379"),
		Password: os.Getenv("VALKEY_PASSWORD"),
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping: valkey not reachable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisBackendLimit(t *testing.T) {
	client := testValkey(t)
	b := NewRedisBackend(client, nil)
	ctx := context.Background()
	key := "test:" + uuid.NewString()
	t.Cleanup(func() { client.Del(ctx, keyPrefix+key) })

	p := Policy{Name: "test", Limit: 3, Window: time.Minute}
	for i := 1; i <= 3; i++ {
		w, err := b.Hit(ctx, key, p)
		if err != nil {
			t.Fatalf("hit %d: %v", i, err)
		}
		if !w.Allowed || w.Count != i {
			t.Fatalf("hit %d: %+v", i, w)
		}
	}

	w, err := b.Hit(ctx, key, p)
	if err != nil {
		t.Fatalf("hit 4: %v", err)
	}
	if w.Allowed {
		t.Fatal("4th hit should be denied")
	}
	if w.Count != 3 {
		t.Errorf("denied hit must not be recorded: count %d", w.Count)
	}
	if time.Until(w.ResetAt) <= 0 || time.Until(w.ResetAt) > time.Minute {
		t.Errorf("reset at out of range: %v", w.ResetAt)
	}
}

func TestRedisBackendWindowSlides(t *testing.T) {
	client := testValkey(t)
	clk := clock.NewFake(time.Now())
	b := NewRedisBackend(client, clk)
	ctx := context.Background()
	key := "test:" + uuid.NewString()
	t.Cleanup(func() { client.Del(ctx, keyPrefix+key) })

	p := Policy{Name: "test", Limit: 2, Window: time.Minute}
	b.Hit(ctx, key, p)
	clk.Advance(30 * time.Second)
	b.Hit(ctx, key, p)

	if w, _ := b.Hit(ctx, key, p); w.Allowed {
		t.Fatal("third hit within the window should be denied")
	}

	// The first entry leaves the window; one slot frees up.
	clk.Advance(31 * time.Second)
	if w, _ := b.Hit(ctx, key, p); !w.Allowed {
		t.Fatal("hit after oldest entry expired should be allowed")
	}
	if w, _ := b.Hit(ctx, key, p); w.Allowed {
		t.Fatal("window is full again")
	}
}

func TestRedisBackendUnreachableFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	b := NewRedisBackend(client, nil)
	if _, err := b.Hit(context.Background(), "k", PolicyAPI); err == nil {
		t.Fatal("expected error from unreachable valkey")
	}

	l := New(b)
	res := l.Check(context.Background(), "10.0.0.1", "/api/patients")
	if !res.Allowed || !res.FailedOpen {
		t.Errorf("unreachable backend must fail open: %+v", res)
	}
}

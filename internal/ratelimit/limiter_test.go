package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"clinigate/internal/clock"
)

type failingBackend struct{ calls int }

func (f *failingBackend) Name() string { return "failing" }
func (f *failingBackend) Hit(context.Context, string, Policy) (Window, error) {
	f.calls++
	return Window{}, errors.New("connection refused")
}

type slowBackend struct{}

func (slowBackend) Name() string { return "slow" }
func (slowBackend) Hit(ctx context.Context, _ string, _ Policy) (Window, error) {
	<-ctx.Done()
	return Window{}, ctx.Err()
}

func TestLimiterCheck(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	mem := NewMemoryBackend(clk, 0)
	defer mem.Stop()
	l := New(mem, WithClock(clk))
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		res := l.Check(ctx, "10.0.0.1", "/api/export/report")
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if res.Policy.Name != "export" {
			t.Fatalf("policy: got %s, want export", res.Policy.Name)
		}
		if res.Remaining != 5-i {
			t.Errorf("request %d: remaining %d, want %d", i, res.Remaining, 5-i)
		}
	}

	clk.Advance(20*time.Second + 500*time.Millisecond)
	res := l.Check(ctx, "10.0.0.1", "/api/export/report")
	if res.Allowed {
		t.Fatal("6th request should be denied")
	}
	if res.RetryAfter != 40 {
		t.Errorf("retry after: got %d, want 40 (ceil of 39.5s)", res.RetryAfter)
	}
	if res.Remaining != 0 {
		t.Errorf("remaining: got %d, want 0", res.Remaining)
	}

	// Same client, different route has its own counter.
	if !l.Check(ctx, "10.0.0.1", "/api/export/other").Allowed {
		t.Error("different route should have an independent counter")
	}
}

func TestLimiterFailsOpen(t *testing.T) {
	fb := &failingBackend{}
	l := New(fb)

	for i := 0; i < 200; i++ {
		res := l.Check(context.Background(), "10.0.0.1", "/api/patients")
		if !res.Allowed {
			t.Fatalf("request %d denied; backend errors must fail open", i)
		}
		if !res.FailedOpen {
			t.Fatal("result should be marked as failed open")
		}
	}
	if fb.calls != 200 {
		t.Errorf("backend calls: got %d, want 200", fb.calls)
	}
}

func TestLimiterTimeoutFailsOpen(t *testing.T) {
	l := New(slowBackend{}, WithTimeout(20*time.Millisecond))

	start := time.Now()
	res := l.Check(context.Background(), "10.0.0.1", "/api/patients")
	if !res.Allowed || !res.FailedOpen {
		t.Fatalf("timeout should fail open: %+v", res)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("check blocked for %v", elapsed)
	}
}

func TestResultHeaders(t *testing.T) {
	reset := time.UnixMilli(1767268800000)

	h := http.Header{}
	Result{Allowed: true, Limit: 100, Remaining: 99, ResetAt: reset}.SetHeaders(h)
	if h.Get("X-RateLimit-Limit") != "100" || h.Get("X-RateLimit-Remaining") != "99" {
		t.Errorf("unexpected headers: %v", h)
	}
	if h.Get("X-RateLimit-Reset") != "1767268800000" {
		t.Errorf("reset header: got %q", h.Get("X-RateLimit-Reset"))
	}
	if h.Get("Retry-After") != "" {
		t.Error("Retry-After must not be set on allowed responses")
	}

	h = http.Header{}
	Result{Allowed: false, Limit: 5, ResetAt: reset, RetryAfter: 12}.SetHeaders(h)
	if h.Get("Retry-After") != "12" {
		t.Errorf("Retry-After: got %q, want 12", h.Get("Retry-After"))
	}

	h = http.Header{}
	Result{Allowed: true, FailedOpen: true}.SetHeaders(h)
	if len(h) != 0 {
		t.Errorf("failed-open result should not set headers: %v", h)
	}
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int
	}{
		{0, 1},
		{-time.Second, 1},
		{time.Millisecond, 1},
		{time.Second, 1},
		{1001 * time.Millisecond, 2},
		{15 * time.Minute, 900},
	}
	for _, tt := range tests {
		if got := retryAfter(tt.d); got != tt.want {
			t.Errorf("retryAfter(%v) = %d, want %d", tt.d, got, tt.want)
		}
	}
}

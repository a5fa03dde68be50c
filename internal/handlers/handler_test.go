// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler tests.
// Everything runs against the demo directory and in-memory stores.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clinigate/internal/access"
	"clinigate/internal/auth"
	"clinigate/internal/clock"
	"clinigate/internal/lockout"
	"clinigate/internal/models"
	"clinigate/internal/session"
)

const demoPassword = "demo-password-for-tests"

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// testEnv holds all dependencies for handler tests.
type testEnv struct {
	Clock    *clock.Fake
	Activity *session.MemoryActivityStore
	Ledger   *lockout.MemoryLedger
	Lockout  *lockout.Policy
	Authn    *auth.Authenticator
	Features *access.MemoryFeatures
	Auth     *Auth
	Admin    *Features
}

// newTestEnv creates a complete test environment with all handler dependencies.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clk := clock.NewFake(time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC))
	mgr, err := session.NewManager(testSecret, session.DefaultTimeouts.Absolute, false, clk)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	activity := session.NewMemoryActivityStore(session.DefaultTimeouts, clk, 0)
	t.Cleanup(activity.Stop)

	dir := auth.NewDemoDirectory(demoPassword)
	authn := auth.New(dir, mgr, activity, auth.WithClock(clk), auth.WithMode(auth.ModeDemo))
	ledger := lockout.NewMemoryLedger()
	policy := lockout.NewPolicy(ledger, lockout.WithClock(clk))
	features := access.NewMemoryFeatures(auth.DemoFeatures(clk.Now())...)

	return &testEnv{
		Clock:    clk,
		Activity: activity,
		Ledger:   ledger,
		Lockout:  policy,
		Authn:    authn,
		Features: features,
		Auth:     NewAuth(authn, policy, clk, false),
		Admin:    NewFeatures(features, dir, clk),
	}
}

// identity builds the identity the authentication middleware would store
// for a demo account.
func (e *testEnv) identity(t *testing.T, u models.User) *auth.Identity {
	t.Helper()
	token, _, err := e.Authn.StartSession(context.Background(), &u)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	id, err := e.Authn.Resolve(context.Background(), token, false)
	if err != nil || id == nil {
		t.Fatalf("Resolve: id=%v err=%v", id, err)
	}
	return id
}

// jsonRequest builds a request with a JSON body.
func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// decodeBody decodes a JSON response body into a map.
func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return m
}

// withIdentity returns a copy of r carrying id in its context.
func withIdentity(r *http.Request, id *auth.Identity) *http.Request {
	return r.WithContext(auth.WithIdentity(r.Context(), id))
}

package ratelimit

import (
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/auth/login", "login"},
		{"/api/auth/login/", "login"},
		{"/api/auth/logout", "auth"},
		{"/api/auth", "auth"},
		{"/api/ai/notes/generate", "ai"},
		{"/api/telehealth/rooms", "telehealth"},
		{"/api/export/patients.csv", "export"},
		{"/api/patients/42", "api"},
		{"/api/aide", "api"},
		{"/api/authorize", "api"},
		{"/", "api"},
		{"", "api"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := Classify(tt.path).Name; got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestPolicyTable(t *testing.T) {
	want := map[string]Policy{
		"api":        {Name: "api", Limit: 100, Window: time.Minute},
		"auth":       {Name: "auth", Limit: 10, Window: time.Minute},
		"ai":         {Name: "ai", Limit: 20, Window: time.Minute},
		"telehealth": {Name: "telehealth", Limit: 10, Window: time.Hour},
		"export":     {Name: "export", Limit: 5, Window: time.Minute},
		"login":      {Name: "login", Limit: 5, Window: 15 * time.Minute},
	}

	got := Policies()
	if len(got) != len(want) {
		t.Fatalf("got %d policies, want %d", len(got), len(want))
	}
	for _, p := range got {
		if want[p.Name] != p {
			t.Errorf("policy %s: got %+v, want %+v", p.Name, p, want[p.Name])
		}
	}
}

func TestHasPathPrefix(t *testing.T) {
	if !HasPathPrefix("/api/ai", "/api/ai") {
		t.Error("exact path should match")
	}
	if !HasPathPrefix("/api/ai/x", "/api/ai") {
		t.Error("child path should match")
	}
	if HasPathPrefix("/api/aix", "/api/ai") {
		t.Error("sibling with shared prefix must not match")
	}
	if !HasPathPrefix("/api/x", "/api/") {
		t.Error("prefix with trailing slash should match children")
	}
}

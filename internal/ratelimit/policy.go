// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package ratelimit implements per-client, per-route request quotas with
// interchangeable counter backends (in-process memory or Valkey).
package ratelimit

import (
	"strings"
	"time"
)

// Policy is a named quota: at most Limit requests per Window.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

var (
	PolicyAPI        = Policy{Name: "api", Limit: 100, Window: time.Minute}
	PolicyAuth       = Policy{Name: "auth", Limit: 10, Window: time.Minute}
	PolicyAI         = Policy{Name: "ai", Limit: 20, Window: time.Minute}
	PolicyTelehealth = Policy{Name: "telehealth", Limit: 10, Window: time.Hour}
	PolicyExport     = Policy{Name: "export", Limit: 5, Window: time.Minute}
	PolicyLogin      = Policy{Name: "login", Limit: 5, Window: 15 * time.Minute}
)

// LoginPath is the credential submission route governed by PolicyLogin.
const LoginPath = "/api/auth/login"

type routeRule struct {
	prefix string
	exact  bool
	policy Policy
}

// classification is evaluated top to bottom. More specific security
// policies come first so overlapping prefixes never fall through to the
// general api policy.
var classification = []routeRule{
	{prefix: LoginPath, exact: true, policy: PolicyLogin},
	{prefix: "/api/auth", policy: PolicyAuth},
	{prefix: "/api/ai", policy: PolicyAI},
	{prefix: "/api/telehealth", policy: PolicyTelehealth},
	{prefix: "/api/export", policy: PolicyExport},
}

// Classify returns the policy governing path. Every path maps to exactly
// one policy; unmatched paths get PolicyAPI.
func Classify(path string) Policy {
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	for _, rule := range classification {
		if rule.exact {
			if path == rule.prefix {
				return rule.policy
			}
			continue
		}
		if HasPathPrefix(path, rule.prefix) {
			return rule.policy
		}
	}
	return PolicyAPI
}

// Policies lists every named policy.
func Policies() []Policy {
	return []Policy{PolicyAPI, PolicyAuth, PolicyAI, PolicyTelehealth, PolicyExport, PolicyLogin}
}

// HasPathPrefix reports whether path equals prefix or lies beneath it on a
// segment boundary ("/api/ai/x" matches "/api/ai", "/api/aide" does not).
func HasPathPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	if strings.HasSuffix(prefix, "/") {
		return strings.HasPrefix(path, prefix)
	}
	return strings.HasPrefix(path, prefix+"/")
}

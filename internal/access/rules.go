// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package access

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"clinigate/internal/models"
)

//go:embed rules.yaml
var defaultRules []byte

// Rule grants a route prefix to a set of roles, optionally behind a
// feature flag.
type Rule struct {
	Prefix  string        `yaml:"prefix"`
	Roles   []models.Role `yaml:"roles"`
	Feature string        `yaml:"feature,omitempty"`
}

// Allows reports whether role is listed by the rule.
func (r Rule) Allows(role models.Role) bool {
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// DefaultRules returns the built-in rule set.
func DefaultRules() ([]Rule, error) {
	return ParseRules(defaultRules)
}

// LoadRules reads rules from path, or the built-in set if path is empty.
func LoadRules(path string) ([]Rule, error) {
	if path == "" {
		return DefaultRules()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read access rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes and validates a YAML rule document.
func ParseRules(data []byte) ([]Rule, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse access rules: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, errors.New("access rules: no rules defined")
	}

	seen := make(map[string]bool, len(f.Rules))
	for i := range f.Rules {
		r := &f.Rules[i]
		r.Prefix = strings.TrimSuffix(strings.TrimSpace(r.Prefix), "/")
		if !strings.HasPrefix(r.Prefix, "/") {
			return nil, fmt.Errorf("access rules: prefix %q must start with /", r.Prefix)
		}
		if seen[r.Prefix] {
			return nil, fmt.Errorf("access rules: duplicate prefix %q", r.Prefix)
		}
		seen[r.Prefix] = true

		if len(r.Roles) == 0 {
			return nil, fmt.Errorf("access rules: prefix %q allows no roles", r.Prefix)
		}
		for j, role := range r.Roles {
			parsed, ok := models.ParseRole(string(role))
			if !ok {
				return nil, fmt.Errorf("access rules: prefix %q: unknown role %q", r.Prefix, role)
			}
			r.Roles[j] = parsed
		}
		r.Feature = strings.TrimSpace(r.Feature)
	}

	// Longest prefix first so the first match is the most specific.
	sort.SliceStable(f.Rules, func(i, j int) bool {
		return len(f.Rules[i].Prefix) > len(f.Rules[j].Prefix)
	})
	return f.Rules, nil
}

// match returns the most specific rule covering path.
func match(rules []Rule, path string) (Rule, bool) {
	for _, r := range rules {
		if hasPathPrefix(path, r.Prefix) {
			return r, true
		}
	}
	return Rule{}, false
}

// hasPathPrefix matches prefix on a path-segment boundary.
func hasPathPrefix(path, prefix string) bool {
	if prefix == "" {
		return true
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

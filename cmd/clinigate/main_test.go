package main

import (
	"testing"

	"clinigate/internal/clock"
	"clinigate/internal/ratelimit"
)

func TestLocalStoresSweepIntervals(t *testing.T) {
	counters, activity := newLocalStores(clock.Real{})
	defer counters.Stop()
	defer activity.Stop()

	if got := counters.SweepInterval(); got != ratelimit.DefaultSweepInterval {
		t.Errorf("counter sweep: got %v, want %v", got, ratelimit.DefaultSweepInterval)
	}
}

func TestLoadRulesDefaults(t *testing.T) {
	rules, err := loadRules("")
	if err != nil {
		t.Fatalf("loadRules: %v", err)
	}
	if len(rules) == 0 {
		t.Error("expected the built-in access rules")
	}
}

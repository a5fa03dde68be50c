// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package access

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"clinigate/internal/models"
)

// FeatureResult is the result of a feature assignment lookup: exactly one
// of FeatureFound, FeatureNotFound or FeatureBackendError.
type FeatureResult interface {
	isFeatureResult()
}

// FeatureFound carries the stored assignment. It may still be disabled or
// expired.
type FeatureFound struct {
	Assignment *models.FeatureAssignment
}

// FeatureNotFound means no assignment exists for the user and code.
type FeatureNotFound struct{}

// FeatureBackendError means the assignment could not be read.
type FeatureBackendError struct {
	Err error
}

func (FeatureFound) isFeatureResult()        {}
func (FeatureNotFound) isFeatureResult()     {}
func (FeatureBackendError) isFeatureResult() {}

// Features looks up feature assignments.
type Features interface {
	Lookup(ctx context.Context, userID uuid.UUID, code string) FeatureResult
}

// FeatureFinder is the subset of the feature store used by StoreFeatures.
// Find returns nil, nil when no assignment exists.
type FeatureFinder interface {
	Find(ctx context.Context, userID uuid.UUID, code string) (*models.FeatureAssignment, error)
}

// StoreFeatures adapts the Postgres feature store.
type StoreFeatures struct {
	finder FeatureFinder
}

// NewStoreFeatures wraps a feature store.
func NewStoreFeatures(f FeatureFinder) *StoreFeatures {
	return &StoreFeatures{finder: f}
}

func (s *StoreFeatures) Lookup(ctx context.Context, userID uuid.UUID, code string) FeatureResult {
	fa, err := s.finder.Find(ctx, userID, code)
	switch {
	case err != nil:
		return FeatureBackendError{Err: err}
	case fa == nil:
		return FeatureNotFound{}
	default:
		return FeatureFound{Assignment: fa}
	}
}

type featureKey struct {
	userID uuid.UUID
	code   string
}

// MemoryFeatures is an in-process feature table used in demo mode.
type MemoryFeatures struct {
	mu          sync.RWMutex
	assignments map[featureKey]models.FeatureAssignment
}

// NewMemoryFeatures creates a table seeded with assignments.
func NewMemoryFeatures(assignments ...models.FeatureAssignment) *MemoryFeatures {
	m := &MemoryFeatures{assignments: make(map[featureKey]models.FeatureAssignment)}
	for _, fa := range assignments {
		m.assignments[featureKey{fa.UserID, fa.FeatureCode}] = fa
	}
	return m
}

func (m *MemoryFeatures) Lookup(_ context.Context, userID uuid.UUID, code string) FeatureResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fa, ok := m.assignments[featureKey{userID, code}]
	if !ok {
		return FeatureNotFound{}
	}
	return FeatureFound{Assignment: &fa}
}

// Upsert creates or replaces an assignment.
func (m *MemoryFeatures) Upsert(_ context.Context, fa *models.FeatureAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := featureKey{fa.UserID, fa.FeatureCode}
	if prev, ok := m.assignments[key]; ok {
		fa.CreatedAt = prev.CreatedAt
	}
	m.assignments[key] = *fa
	return nil
}

// Delete removes an assignment. It reports whether one existed.
func (m *MemoryFeatures) Delete(_ context.Context, userID uuid.UUID, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := featureKey{userID, code}
	_, ok := m.assignments[key]
	delete(m.assignments, key)
	return ok, nil
}

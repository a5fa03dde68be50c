package models

import (
	"time"

	"github.com/google/uuid"
)

// FeatureAssignment grants a named capability to a single user,
// independently of role, with optional expiry.
type FeatureAssignment struct {
	UserID      uuid.UUID  `json:"user_id"`
	FeatureCode string     `json:"feature_code"`
	Enabled     bool       `json:"enabled"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ActiveAt reports whether the assignment grants the feature at now.
// Expiry is evaluated on read; an enabled assignment past its expiry is
// treated as disabled.
func (f *FeatureAssignment) ActiveAt(now time.Time) bool {
	if !f.Enabled {
		return false
	}
	return f.ExpiresAt == nil || now.Before(*f.ExpiresAt)
}

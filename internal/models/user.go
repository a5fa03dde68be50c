// Package models defines the data structures that map to database tables
// and provides the core types used throughout the gateway.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role represents a user's permission level in the system.
type Role string

const (
	RoleUser       Role = "USER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAuditor    Role = "AUDITOR"
)

// ParseRole maps a stored role string to a known Role. Unknown values are
// rejected rather than mapped to a default.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleUser, RoleAdmin, RoleSuperAdmin, RoleAuditor:
		return r, true
	}
	return "", false
}

// User represents a gateway account.
type User struct {
	ID             uuid.UUID  `json:"id"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"` // Never serialize the hash
	DisplayName    string     `json:"display_name"`
	Role           Role       `json:"role"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	IsActive       bool       `json:"is_active"`
	TOTPSecret     *string    `json:"-"` // Nullable; set during 2FA enrollment
	TOTPEnabled    bool       `json:"totp_enabled"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsSuperAdmin returns true if the user has the super admin role.
func (u *User) IsSuperAdmin() bool {
	return u.Role == RoleSuperAdmin
}

// RequiresTOTP returns true if the user must present a TOTP code at login.
func (u *User) RequiresTOTP() bool {
	return u.TOTPEnabled && u.TOTPSecret != nil
}

// InOrganization reports whether the user belongs to org.
func (u *User) InOrganization(org uuid.UUID) bool {
	return u.OrganizationID != nil && *u.OrganizationID == org
}

// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package auth resolves session tokens to authenticated identities. An
// identity is built per request from the account directory and is never
// cached; any doubt about the account's role denies the request.
package auth

import (
	"context"

	"github.com/google/uuid"

	"clinigate/internal/models"
	"clinigate/internal/session"
)

// Identity is the authenticated principal of a request.
type Identity struct {
	UserID         uuid.UUID      `json:"user_id"`
	Email          string         `json:"email"`
	DisplayName    string         `json:"display_name"`
	Role           models.Role    `json:"role"`
	OrganizationID *uuid.UUID     `json:"organization_id,omitempty"`
	IsActive       bool           `json:"is_active"`
	SessionID      string         `json:"-"`
	Session        session.Status `json:"session"`
}

// IsSuperAdmin returns true if the identity has the super admin role.
func (id *Identity) IsSuperAdmin() bool {
	return id.Role == models.RoleSuperAdmin
}

// InOrganization reports whether the identity belongs to org.
func (id *Identity) InOrganization(org uuid.UUID) bool {
	return id.OrganizationID != nil && *id.OrganizationID == org
}

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

const identityKey contextKey = "identity"

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext extracts the identity stored by the authentication
// middleware. Returns nil if the request is unauthenticated.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}

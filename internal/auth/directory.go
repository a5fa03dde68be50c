// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"clinigate/internal/models"
)

// Lookup is the result of an account lookup. It is exactly one of Found,
// NotFound or BackendError; callers switch on the concrete type.
type Lookup interface {
	isLookup()
}

// Found carries the account that was looked up.
type Found struct {
	User *models.User
}

// NotFound means the directory answered and has no such account.
type NotFound struct{}

// BackendError means the directory could not answer.
type BackendError struct {
	Err error
}

func (Found) isLookup()        {}
func (NotFound) isLookup()     {}
func (BackendError) isLookup() {}

// Directory resolves accounts for authentication and login.
type Directory interface {
	ByID(ctx context.Context, id uuid.UUID) Lookup
	ByEmail(ctx context.Context, email string) Lookup
	VerifyPassword(u *models.User, password string) bool
}

// UserFinder is the subset of the user store the directory needs. Both
// methods return nil, nil when the account does not exist.
type UserFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// StoreDirectory is the live Directory backed by the users table.
type StoreDirectory struct {
	users UserFinder
}

// NewStoreDirectory wraps a user store.
func NewStoreDirectory(users UserFinder) *StoreDirectory {
	return &StoreDirectory{users: users}
}

func (d *StoreDirectory) ByID(ctx context.Context, id uuid.UUID) Lookup {
	u, err := d.users.FindByID(ctx, id)
	return toLookup(u, err)
}

func (d *StoreDirectory) ByEmail(ctx context.Context, email string) Lookup {
	u, err := d.users.FindByEmail(ctx, models.NormalizeEmail(email))
	return toLookup(u, err)
}

// VerifyPassword checks a plaintext password against the stored bcrypt hash.
func (d *StoreDirectory) VerifyPassword(u *models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// toLookup converts a store result. A stored role that is not one of the
// known roles cannot be trusted and is reported as a backend error.
func toLookup(u *models.User, err error) Lookup {
	if err != nil {
		return BackendError{Err: err}
	}
	if u == nil {
		return NotFound{}
	}
	role, ok := models.ParseRole(string(u.Role))
	if !ok {
		return BackendError{Err: fmt.Errorf("user %s has unrecognized role %q", u.ID, u.Role)}
	}
	u.Role = role
	return Found{User: u}
}

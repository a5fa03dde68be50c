// Package store provides database access methods for the gateway's
// accounts, feature assignments and login ledger. Each store struct wraps
// a *sql.DB and exposes typed query methods.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"clinigate/internal/models"
)

const userColumns = `id, email, password_hash, display_name, role, organization_id,
	is_active, totp_secret, totp_enabled, created_at, updated_at`

// UserStore handles all user-related database operations.
type UserStore struct {
	db *sql.DB
}

// NewUserStore creates a new UserStore with the given database connection.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.Role, &u.OrganizationID,
		&u.IsActive, &u.TOTPSecret, &u.TOTPEnabled, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// FindByEmail retrieves a user by their email address. Returns nil if not found.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = $1`,
		models.NormalizeEmail(email),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

// FindByID retrieves a user by their UUID. Returns nil if not found.
func (s *UserStore) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

// NewUser holds the fields needed to create an account.
type NewUser struct {
	Email          string
	Password       string
	DisplayName    string
	Role           models.Role
	OrganizationID *uuid.UUID
}

// Create inserts a new active user with a bcrypt-hashed password.
func (s *UserStore) Create(ctx context.Context, nu NewUser) (*models.User, error) {
	if _, ok := models.ParseRole(string(nu.Role)); !ok {
		return nil, fmt.Errorf("create user: unknown role %q", nu.Role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(nu.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := scanUser(s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, display_name, role, organization_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		models.NormalizeEmail(nu.Email), string(hash), nu.DisplayName, nu.Role, nu.OrganizationID,
	))
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// SetActive enables or disables an account.
func (s *UserStore) SetActive(ctx context.Context, userID uuid.UUID, active bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET is_active = $1, updated_at = NOW() WHERE id = $2
	`, active, userID)
	if err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	return nil
}

// Delete removes a user by ID.
func (s *UserStore) Delete(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

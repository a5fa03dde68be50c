package database

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// SeedEmail is the account created by Seed.
const SeedEmail = "superadmin@clinigate.local"

// Seed populates an empty database with a super admin account for local
// development. If password is empty a random one is generated and logged
// once. It is a no-op when any user exists.
func Seed(ctx context.Context, db *sql.DB, password string) error {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("seed check users: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	generated := password == ""
	if generated {
		b := make([]byte, 12)
		if _, err := rand.Read(b); err != nil {
			return fmt.Errorf("seed password: %w", err)
		}
		password = base64.RawURLEncoding.EncodeToString(b)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed bcrypt: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO users (email, password_hash, display_name, role, is_active, totp_enabled)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, SeedEmail, string(hash), "Super Admin", "SUPER_ADMIN", true, false)
	if err != nil {
		return fmt.Errorf("seed insert super admin: %w", err)
	}

	if generated {
		slog.Info("database seeded with development super admin",
			"email", SeedEmail,
			"password", password,
		)
	} else {
		slog.Info("database seeded with development super admin", "email", SeedEmail)
	}
	return nil
}

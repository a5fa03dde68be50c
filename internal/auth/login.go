// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"clinigate/internal/metrics"
	"clinigate/internal/models"
)

var (
	// ErrInvalidCredentials covers unknown accounts, inactive accounts,
	// wrong passwords and wrong TOTP codes alike.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrTOTPRequired means the password was correct but the account has
	// two-factor authentication enabled and no code was sent.
	ErrTOTPRequired = errors.New("auth: totp code required")
)

var (
	dummyOnce sync.Once
	dummyHash string
)

// dummyUser carries a throwaway bcrypt hash so that unknown emails cost
// the same as a wrong password.
func dummyUser() *models.User {
	dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("clinigate-timing-equalizer"), bcrypt.DefaultCost)
		if err == nil {
			dummyHash = string(h)
		}
	})
	return &models.User{PasswordHash: dummyHash}
}

// Credentials checks an email/password pair and, for accounts with 2FA
// enabled, a TOTP code. It returns ErrInvalidCredentials, ErrTOTPRequired
// or ErrIdentityUnavailable on failure.
func (a *Authenticator) Credentials(ctx context.Context, email, password, code string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var user *models.User
	switch res := a.directory.ByEmail(ctx, email).(type) {
	case Found:
		user = res.User
	case NotFound:
		a.directory.VerifyPassword(dummyUser(), password)
		return nil, ErrInvalidCredentials
	case BackendError:
		metrics.BackendErrors.WithLabelValues("identity").Inc()
		slog.Error("login lookup failed", "error", res.Err)
		return nil, ErrIdentityUnavailable
	default:
		return nil, ErrIdentityUnavailable
	}

	if !a.directory.VerifyPassword(user, password) || !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	if user.RequiresTOTP() {
		code = strings.TrimSpace(code)
		if code == "" {
			return nil, ErrTOTPRequired
		}
		if !totp.Validate(code, *user.TOTPSecret) {
			return nil, ErrInvalidCredentials
		}
	}
	return user, nil
}

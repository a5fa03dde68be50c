package models

import (
	"strings"
	"time"
)

// LoginAttempt is a single entry in the append-only login ledger.
type LoginAttempt struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"` // always lowercased
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	Success   bool      `json:"success"`
	At        time.Time `json:"at"`
}

// NormalizeEmail lowercases and trims an email for use as a ledger key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

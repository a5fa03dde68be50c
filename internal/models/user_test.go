package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in     string
		want   Role
		wantOK bool
	}{
		{"USER", RoleUser, true},
		{"admin", RoleAdmin, true},
		{" SUPER_ADMIN ", RoleSuperAdmin, true},
		{"Auditor", RoleAuditor, true},
		{"", "", false},
		{"editor", "", false},
		{"superadmin", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseRole(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseRole(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestUserRequiresTOTP(t *testing.T) {
	secret := "JBSWY3DPEHPK3PXP"

	tests := []struct {
		name        string
		totpSecret  *string
		totpEnabled bool
		want        bool
	}{
		{"not enrolled", nil, false, false},
		{"secret set but not enabled", &secret, false, false},
		{"enabled without secret", nil, true, false},
		{"enrolled", &secret, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &User{TOTPSecret: tt.totpSecret, TOTPEnabled: tt.totpEnabled}
			if got := u.RequiresTOTP(); got != tt.want {
				t.Errorf("RequiresTOTP() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUserInOrganization(t *testing.T) {
	org := uuid.New()
	other := uuid.New()

	u := &User{OrganizationID: &org}
	if !u.InOrganization(org) {
		t.Error("expected membership in own organization")
	}
	if u.InOrganization(other) {
		t.Error("unexpected membership in other organization")
	}
	if (&User{}).InOrganization(org) {
		t.Error("user without organization belongs to none")
	}
}

func TestFeatureAssignmentActiveAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		fa   FeatureAssignment
		want bool
	}{
		{"enabled without expiry", FeatureAssignment{Enabled: true}, true},
		{"enabled with future expiry", FeatureAssignment{Enabled: true, ExpiresAt: &future}, true},
		{"enabled but expired one second ago", FeatureAssignment{Enabled: true, ExpiresAt: &past}, false},
		{"enabled expiring exactly now", FeatureAssignment{Enabled: true, ExpiresAt: &now}, false},
		{"disabled", FeatureAssignment{Enabled: false}, false},
		{"disabled with future expiry", FeatureAssignment{Enabled: false, ExpiresAt: &future}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fa.ActiveAt(now); got != tt.want {
				t.Errorf("ActiveAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  User@X.com "); got != "user@x.com" {
		t.Errorf("got %q", got)
	}
}

// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package auth

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/google/uuid"

	"clinigate/internal/models"
)

// DemoOrganizationID is the organization every scoped demo account belongs to.
var DemoOrganizationID = uuid.MustParse("0b6f7c1e-5d2a-4f0e-9a51-3c7d2e8f4b10")

// DemoAccounts is the fixed table of demo identities. It is only consulted
// when the gateway starts in demo mode; any other email is NotFound.
var DemoAccounts = []models.User{
	{
		ID:             uuid.MustParse("6f1c2a9e-0d4b-4c7a-8e25-1b9f3d6a7c01"),
		Email:          "clinician@demo.clinigate.test",
		DisplayName:    "Demo Clinician",
		Role:           models.RoleUser,
		OrganizationID: &DemoOrganizationID,
		IsActive:       true,
	},
	{
		ID:             uuid.MustParse("6f1c2a9e-0d4b-4c7a-8e25-1b9f3d6a7c02"),
		Email:          "admin@demo.clinigate.test",
		DisplayName:    "Demo Admin",
		Role:           models.RoleAdmin,
		OrganizationID: &DemoOrganizationID,
		IsActive:       true,
	},
	{
		ID:          uuid.MustParse("6f1c2a9e-0d4b-4c7a-8e25-1b9f3d6a7c03"),
		Email:       "superadmin@demo.clinigate.test",
		DisplayName: "Demo Super Admin",
		Role:        models.RoleSuperAdmin,
		IsActive:    true,
	},
	{
		ID:             uuid.MustParse("6f1c2a9e-0d4b-4c7a-8e25-1b9f3d6a7c04"),
		Email:          "auditor@demo.clinigate.test",
		DisplayName:    "Demo Auditor",
		Role:           models.RoleAuditor,
		OrganizationID: &DemoOrganizationID,
		IsActive:       true,
	},
}

// DemoFeatures returns the feature assignments granted to demo accounts.
// The clinician holds AI note generation and telehealth; nothing else is
// granted.
func DemoFeatures(now time.Time) []models.FeatureAssignment {
	clinician := DemoAccounts[0].ID
	return []models.FeatureAssignment{
		{UserID: clinician, FeatureCode: "ai_note_generation", Enabled: true, CreatedAt: now, UpdatedAt: now},
		{UserID: clinician, FeatureCode: "telehealth", Enabled: true, CreatedAt: now, UpdatedAt: now},
	}
}

// DemoDirectory serves the DemoAccounts table. All demo accounts share one
// password.
type DemoDirectory struct {
	byID     map[uuid.UUID]models.User
	byEmail  map[string]models.User
	password []byte
}

// NewDemoDirectory builds the demo directory. An empty password disables
// password login for every demo account.
func NewDemoDirectory(password string) *DemoDirectory {
	d := &DemoDirectory{
		byID:     make(map[uuid.UUID]models.User, len(DemoAccounts)),
		byEmail:  make(map[string]models.User, len(DemoAccounts)),
		password: []byte(password),
	}
	for _, u := range DemoAccounts {
		d.byID[u.ID] = u
		d.byEmail[models.NormalizeEmail(u.Email)] = u
	}
	return d
}

func (d *DemoDirectory) ByID(_ context.Context, id uuid.UUID) Lookup {
	u, ok := d.byID[id]
	if !ok {
		return NotFound{}
	}
	return Found{User: &u}
}

func (d *DemoDirectory) ByEmail(_ context.Context, email string) Lookup {
	u, ok := d.byEmail[models.NormalizeEmail(email)]
	if !ok {
		return NotFound{}
	}
	return Found{User: &u}
}

func (d *DemoDirectory) VerifyPassword(_ *models.User, password string) bool {
	if len(d.password) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(d.password, []byte(password)) == 1
}

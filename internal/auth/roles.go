// Package auth provides the role model and the authenticated actor type.
package auth

import (
	"github.com/addis-gov/cas/internal/shared/types"
)

// Role represents a user role in the system.
type Role string

// Citizen role - end users filing cases
const (
	RoleCitizen Role = "citizen"
)

// Staff roles - office hierarchy, lowest to highest
const (
	RoleOfficer         Role = "officer"
	RoleSupervisor      Role = "supervisor"
	RoleDirector        Role = "director"
	RolePresidentOffice Role = "president_office"
	RolePresident       Role = "president"
)

// AllRoles lists every valid role.
var AllRoles = []Role{
	RoleCitizen,
	RoleOfficer,
	RoleSupervisor,
	RoleDirector,
	RolePresidentOffice,
	RolePresident,
}

// directorTier is the fixed set of roles with announcement management
// privileges ("Director and above").
var directorTier = map[Role]bool{
	RoleDirector:        true,
	RolePresidentOffice: true,
	RolePresident:       true,
}

// ParseRole parses a role name, reporting whether it is known.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// IsStaff reports whether the role is any non-citizen role.
func (r Role) IsStaff() bool {
	return r.Valid() && r != RoleCitizen
}

// IsDirectorTier reports whether the role is Director or above.
func (r Role) IsDirectorTier() bool {
	return directorTier[r]
}

// Actor is the authenticated identity a request acts as. It is built from
// token claims by the auth middleware; the session provider itself is
// external to this service.
type Actor struct {
	ID        types.ID `json:"id"`
	Username  string   `json:"username"`
	OfficeID  types.ID `json:"office_id,omitempty"`
	Roles     []Role   `json:"roles"`
	Superuser bool     `json:"superuser"`
}

// HasRole checks role membership.
func (a Actor) HasRole(role Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsStaff reports whether the actor carries any staff role or the
// superuser override.
func (a Actor) IsStaff() bool {
	if a.Superuser {
		return true
	}
	for _, r := range a.Roles {
		if r.IsStaff() {
			return true
		}
	}
	return false
}

// IsCitizen reports whether the actor is scoped to their own cases only.
func (a Actor) IsCitizen() bool {
	return !a.IsStaff()
}

// IsDirectorTier reports whether the actor may manage announcements.
func (a Actor) IsDirectorTier() bool {
	if a.Superuser {
		return true
	}
	for _, r := range a.Roles {
		if r.IsDirectorTier() {
			return true
		}
	}
	return false
}

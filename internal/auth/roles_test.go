package auth

import (
	"testing"

	"github.com/addis-gov/cas/internal/shared/types"
)

func TestRoleValid(t *testing.T) {
	tests := []struct {
		name  string
		role  Role
		valid bool
	}{
		{"citizen", RoleCitizen, true},
		{"officer", RoleOfficer, true},
		{"president", RolePresident, true},
		{"unknown", Role("admin"), false},
		{"empty", Role(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.role.Valid(); got != tt.valid {
				t.Errorf("Valid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestRoleIsStaff(t *testing.T) {
	if RoleCitizen.IsStaff() {
		t.Error("citizen must not be staff")
	}
	if !RoleOfficer.IsStaff() {
		t.Error("officer must be staff")
	}
	if Role("admin").IsStaff() {
		t.Error("unknown role must not be staff")
	}
}

func TestRoleIsDirectorTier(t *testing.T) {
	tier := map[Role]bool{
		RoleCitizen:         false,
		RoleOfficer:         false,
		RoleSupervisor:      false,
		RoleDirector:        true,
		RolePresidentOffice: true,
		RolePresident:       true,
	}
	for role, want := range tier {
		if got := role.IsDirectorTier(); got != want {
			t.Errorf("%s.IsDirectorTier() = %v, want %v", role, got, want)
		}
	}
}

func TestActorIsStaff(t *testing.T) {
	citizen := Actor{ID: types.NewID(), Roles: []Role{RoleCitizen}}
	if citizen.IsStaff() {
		t.Error("citizen actor must not be staff")
	}
	if !citizen.IsCitizen() {
		t.Error("citizen actor must be citizen")
	}

	officer := Actor{ID: types.NewID(), Roles: []Role{RoleCitizen, RoleOfficer}}
	if !officer.IsStaff() {
		t.Error("actor with any staff role must be staff")
	}

	super := Actor{ID: types.NewID(), Roles: []Role{RoleCitizen}, Superuser: true}
	if !super.IsStaff() {
		t.Error("superuser must count as staff")
	}
	if !super.IsDirectorTier() {
		t.Error("superuser must count as director tier")
	}
}

func TestParseRole(t *testing.T) {
	if _, ok := ParseRole("officer"); !ok {
		t.Error("officer must parse")
	}
	if _, ok := ParseRole("Officer"); ok {
		t.Error("role names are case sensitive")
	}
}

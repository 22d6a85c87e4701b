package access

import (
	"testing"

	"github.com/addis-gov/cas/internal/auth"
	"github.com/addis-gov/cas/internal/shared/errors"
	"github.com/addis-gov/cas/internal/shared/types"
)

func citizen(id types.ID) auth.Actor {
	return auth.Actor{ID: id, Roles: []auth.Role{auth.RoleCitizen}}
}

func officer(id types.ID) auth.Actor {
	return auth.Actor{ID: id, Roles: []auth.Role{auth.RoleOfficer}}
}

func TestCanCaseUnauthenticated(t *testing.T) {
	err := CanCase(auth.Actor{}, ActionRetrieve, CaseRef{OwnerID: types.NewID()})
	if err == nil || err.Code != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED, got %v", err)
	}
}

func TestCanCaseDeletedInvisibleToEveryone(t *testing.T) {
	owner := types.NewID()
	ref := CaseRef{OwnerID: owner, Deleted: true}

	for name, actor := range map[string]auth.Actor{
		"owner": citizen(owner),
		"staff": officer(types.NewID()),
	} {
		err := CanCase(actor, ActionRetrieve, ref)
		if err == nil || !errors.IsNotFound(err) {
			t.Errorf("%s: expected not found for deleted case, got %v", name, err)
		}
	}
}

func TestCanCaseCitizenScope(t *testing.T) {
	owner := types.NewID()
	other := types.NewID()

	// Another citizen's case reads as not found, never forbidden.
	err := CanCase(citizen(other), ActionRetrieve, CaseRef{OwnerID: owner})
	if err == nil || !errors.IsNotFound(err) {
		t.Fatalf("expected not found for foreign case, got %v", err)
	}

	allowed := []Action{ActionRetrieve, ActionUpdate, ActionMarkSeen, ActionSubmitFeedback, ActionSubmitAppeal}
	for _, action := range allowed {
		if err := CanCase(citizen(owner), action, CaseRef{OwnerID: owner}); err != nil {
			t.Errorf("owner must be allowed %s, got %v", action, err)
		}
	}

	denied := []Action{ActionChangeStatus, ActionDelete}
	for _, action := range denied {
		err := CanCase(citizen(owner), action, CaseRef{OwnerID: owner})
		if err == nil || err.Code != "FORBIDDEN" {
			t.Errorf("owner must be forbidden %s, got %v", action, err)
		}
	}
}

func TestCanCaseStaffUnrestricted(t *testing.T) {
	ref := CaseRef{OwnerID: types.NewID()}
	actions := []Action{ActionRetrieve, ActionUpdate, ActionDelete, ActionChangeStatus, ActionMarkSeen}
	for _, action := range actions {
		if err := CanCase(officer(types.NewID()), action, ref); err != nil {
			t.Errorf("staff must be allowed %s, got %v", action, err)
		}
	}
}

func TestCaseOwner(t *testing.T) {
	me := types.NewID()
	someone := types.NewID()

	// Citizens always file for themselves, payload ignored.
	if got := CaseOwner(citizen(me), someone); got != me {
		t.Errorf("citizen owner = %s, want %s", got, me)
	}

	// Staff may file on behalf of a citizen.
	if got := CaseOwner(officer(me), someone); got != someone {
		t.Errorf("staff owner = %s, want %s", got, someone)
	}

	// Staff with no target files for themselves.
	if got := CaseOwner(officer(me), ""); got != me {
		t.Errorf("staff default owner = %s, want %s", got, me)
	}
}

func TestCanManageAnnouncements(t *testing.T) {
	tests := []struct {
		name    string
		actor   auth.Actor
		allowed bool
	}{
		{"unauthenticated", auth.Actor{}, false},
		{"citizen", citizen(types.NewID()), false},
		{"officer", officer(types.NewID()), false},
		{"director", auth.Actor{ID: types.NewID(), Roles: []auth.Role{auth.RoleDirector}}, true},
		{"president office", auth.Actor{ID: types.NewID(), Roles: []auth.Role{auth.RolePresidentOffice}}, true},
		{"president", auth.Actor{ID: types.NewID(), Roles: []auth.Role{auth.RolePresident}}, true},
		{"superuser", auth.Actor{ID: types.NewID(), Superuser: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanManageAnnouncements(tt.actor)
			if tt.allowed && err != nil {
				t.Errorf("expected allow, got %v", err)
			}
			if !tt.allowed && err == nil {
				t.Error("expected deny")
			}
		})
	}
}

func TestCanUser(t *testing.T) {
	me := types.NewID()
	other := types.NewID()

	if err := CanUser(citizen(me), UserActionRetrieve, me); err != nil {
		t.Errorf("self retrieve must be allowed, got %v", err)
	}
	if err := CanUser(citizen(me), UserActionUpdate, me); err != nil {
		t.Errorf("self update must be allowed, got %v", err)
	}

	err := CanUser(citizen(me), UserActionRetrieve, other)
	if err == nil || !errors.IsNotFound(err) {
		t.Errorf("foreign retrieve must read as not found, got %v", err)
	}

	err = CanUser(citizen(me), UserActionList, "")
	if err == nil || err.Code != "FORBIDDEN" {
		t.Errorf("citizen list must be forbidden, got %v", err)
	}
	err = CanUser(citizen(me), UserActionDelete, me)
	if err == nil || err.Code != "FORBIDDEN" {
		t.Errorf("citizen self delete must be forbidden, got %v", err)
	}

	for _, action := range []UserAction{UserActionRetrieve, UserActionUpdate, UserActionList, UserActionDelete} {
		if err := CanUser(officer(me), action, other); err != nil {
			t.Errorf("staff must be allowed %s, got %v", action, err)
		}
	}
}

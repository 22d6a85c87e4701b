// Package access is the authorization engine: pure decision functions
// mapping (actor, action, resource) to allow or deny. Policies have no
// side effects and no I/O so they can be tested in isolation.
package access

import (
	"github.com/addis-gov/cas/internal/auth"
	"github.com/addis-gov/cas/internal/shared/errors"
	"github.com/addis-gov/cas/internal/shared/types"
)

// Action names an operation evaluated against a case.
type Action string

const (
	ActionList           Action = "list"
	ActionRetrieve       Action = "retrieve"
	ActionCreate         Action = "create"
	ActionUpdate         Action = "update"
	ActionDelete         Action = "delete"
	ActionChangeStatus   Action = "change_status"
	ActionMarkSeen       Action = "mark_seen"
	ActionSubmitFeedback Action = "submit_feedback"
	ActionSubmitAppeal   Action = "submit_appeal"
)

// citizenCaseActions are the per-case actions a citizen may perform on an
// owned, non-deleted case. Everything else is staff-only.
var citizenCaseActions = map[Action]bool{
	ActionRetrieve:       true,
	ActionUpdate:         true,
	ActionMarkSeen:       true,
	ActionSubmitFeedback: true,
	ActionSubmitAppeal:   true,
}

// CaseRef is the minimal view of a case the policy needs to decide.
type CaseRef struct {
	OwnerID types.ID
	Deleted bool
}

// CanCase decides whether the actor may perform action on the referenced
// case. Scope-excluded targets fail as not-found so that existence of
// other citizens' cases is never revealed.
func CanCase(actor auth.Actor, action Action, ref CaseRef) *errors.AppError {
	if actor.ID.IsZero() {
		return errors.Unauthorized("authentication required")
	}

	// Soft-deleted cases are invisible to everyone.
	if ref.Deleted {
		return errors.NotFound("case", ref.OwnerID.String())
	}

	if actor.IsStaff() {
		return nil
	}

	// Citizens never learn about cases they do not own.
	if ref.OwnerID != actor.ID {
		return errors.NotFound("case", "")
	}

	if citizenCaseActions[action] {
		return nil
	}

	return errors.Forbidden("not permitted")
}

// CaseOwner resolves the owning citizen for a new case: citizens always
// file for themselves regardless of payload, staff may file on behalf of
// any citizen and default to themselves.
func CaseOwner(actor auth.Actor, requested types.ID) types.ID {
	if actor.IsCitizen() || requested.IsZero() {
		return actor.ID
	}
	return requested
}

// CanListAllCases reports whether listing is unrestricted for the actor;
// citizens get a pre-scoped listing instead.
func CanListAllCases(actor auth.Actor) bool {
	return actor.IsStaff()
}

// CanManageAnnouncements decides announcement create/update/delete/toggle:
// Director-tier roles and superusers only, regardless of ownership.
func CanManageAnnouncements(actor auth.Actor) *errors.AppError {
	if actor.ID.IsZero() {
		return errors.Unauthorized("authentication required")
	}
	if actor.IsDirectorTier() {
		return nil
	}
	return errors.Forbidden("director-tier role required")
}

// UserAction names an operation evaluated against a user record.
type UserAction string

const (
	UserActionRetrieve UserAction = "retrieve"
	UserActionUpdate   UserAction = "update"
	UserActionList     UserAction = "list"
	UserActionDelete   UserAction = "delete"
)

// CanUser decides user-record access: staff may act on anyone, others only
// retrieve and update themselves. Listing and soft deletion are staff-only.
func CanUser(actor auth.Actor, action UserAction, targetID types.ID) *errors.AppError {
	if actor.ID.IsZero() {
		return errors.Unauthorized("authentication required")
	}
	if actor.IsStaff() {
		return nil
	}

	switch action {
	case UserActionRetrieve, UserActionUpdate:
		if targetID == actor.ID {
			return nil
		}
		return errors.NotFound("user", "")
	default:
		return errors.Forbidden("staff role required")
	}
}

// RequireStaff is the guard for staff-only collections (offices, ledgers).
func RequireStaff(actor auth.Actor) *errors.AppError {
	if actor.ID.IsZero() {
		return errors.Unauthorized("authentication required")
	}
	if !actor.IsStaff() {
		return errors.Forbidden("staff role required")
	}
	return nil
}

// RequireAuthenticated is the guard for any-authenticated endpoints.
func RequireAuthenticated(actor auth.Actor) *errors.AppError {
	if actor.ID.IsZero() {
		return errors.Unauthorized("authentication required")
	}
	return nil
}

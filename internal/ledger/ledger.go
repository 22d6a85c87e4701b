// Package ledger records case handovers: office-to-office transfers and
// staff-to-staff assignments. Both ledgers are append-only; a transfer
// additionally moves the case's current office as part of the same write.
package ledger

import (
	"time"

	"github.com/addis-gov/cas/internal/shared/errors"
	"github.com/addis-gov/cas/internal/shared/types"
)

// Transfer is an immutable record of a case moving between offices.
type Transfer struct {
	ID           types.ID  `json:"id"`
	CaseID       types.ID  `json:"case_id"`
	FromOfficeID types.ID  `json:"from_office_id"`
	ToOfficeID   types.ID  `json:"to_office_id"`
	Reason       string    `json:"reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewTransfer validates a transfer request. References are raw payload
// strings and must parse as ids. The stale from_office check happens
// against the live case row inside the repository transaction; here only
// the shape is validated.
func NewTransfer(caseID, fromOffice, toOffice, reason string) (*Transfer, *errors.AppError) {
	details := map[string]string{}
	cid := parseRef(details, "case_id", caseID, "case")
	from := parseRef(details, "from_office_id", fromOffice, "source office")
	to := parseRef(details, "to_office_id", toOffice, "target office")
	if !from.IsZero() && from == to {
		details["to_office_id"] = "target office must differ from source office"
	}
	if len(details) > 0 {
		return nil, errors.Validation("invalid transfer", details)
	}

	return &Transfer{
		ID:           types.NewID(),
		CaseID:       cid,
		FromOfficeID: from,
		ToOfficeID:   to,
		Reason:       reason,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Assignment is an immutable record of a staff-to-staff handover. Purely
// informational; the case row is untouched.
type Assignment struct {
	ID         types.ID  `json:"id"`
	CaseID     types.ID  `json:"case_id"`
	FromUserID types.ID  `json:"from_user_id,omitempty"`
	ToUserID   types.ID  `json:"to_user_id"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewAssignment validates an assignment. An omitted from_user defaults
// to the acting user.
func NewAssignment(caseID, fromUser, toUser string, actor types.ID, reason string) (*Assignment, *errors.AppError) {
	details := map[string]string{}
	cid := parseRef(details, "case_id", caseID, "case")

	from := actor
	if fromUser != "" {
		from = parseRef(details, "from_user_id", fromUser, "source user")
	}

	to := parseRef(details, "to_user_id", toUser, "target user")
	if !to.IsZero() && from == to {
		details["to_user_id"] = "target user must differ from source user"
	}
	if len(details) > 0 {
		return nil, errors.Validation("invalid assignment", details)
	}

	return &Assignment{
		ID:         types.NewID(),
		CaseID:     cid,
		FromUserID: from,
		ToUserID:   to,
		Reason:     reason,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// parseRef records a validation detail for a missing or malformed id
// reference and returns the parsed id, zero on failure.
func parseRef(details map[string]string, field, value, label string) types.ID {
	if value == "" {
		details[field] = label + " is required"
		return ""
	}
	id, err := types.ParseID(value)
	if err != nil {
		details[field] = label + " must be a valid id"
		return ""
	}
	return id
}

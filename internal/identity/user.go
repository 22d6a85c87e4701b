// Package identity manages user records: self-registration, profile
// updates, and the soft-delete lifecycle. Sessions and token issuance
// live in the external auth provider; this package only owns the records
// that provider authenticates against.
package identity

import (
	"time"

	"github.com/addis-gov/cas/internal/auth"
	"github.com/addis-gov/cas/internal/shared/errors"
	"github.com/addis-gov/cas/internal/shared/types"
	"golang.org/x/crypto/bcrypt"
)

// Account statuses. Deleted accounts are never hard-removed; the row
// stays for audit references.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusDeleted  = "deleted"
)

// User is a registered identity, citizen or staff.
type User struct {
	ID           types.ID    `json:"id"`
	Username     string      `json:"username"`
	Email        string      `json:"email,omitempty"`
	PasswordHash string      `json:"-"`
	FirstName    string      `json:"first_name"`
	LastName     string      `json:"last_name"`
	NationalID   string      `json:"national_id,omitempty"`
	PhoneNumber  string      `json:"phone_number,omitempty"`
	Address      string      `json:"address,omitempty"`
	OfficeID     types.ID    `json:"office_id,omitempty"`
	Roles        []auth.Role `json:"roles"`
	IsSuperuser  bool        `json:"is_superuser"`
	Status       string      `json:"status"`

	AddedBy         types.ID `json:"added_by,omitempty"`
	StatusChangedBy types.ID `json:"status_changed_by,omitempty"`
	DeletedBy       types.ID `json:"deleted_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Deleted reports whether the account is soft-deleted.
func (u *User) Deleted() bool {
	return u.Status == StatusDeleted
}

// RegisterInput carries the self-registration fields.
type RegisterInput struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	NationalID  string `json:"national_id"`
	PhoneNumber string `json:"phone_number"`
	Address     string `json:"address"`
}

// Register validates input and builds a citizen account. Self-registered
// users always start as citizens; staff roles are granted by staff
// afterwards.
func Register(in RegisterInput) (*User, *errors.AppError) {
	details := map[string]string{}
	if in.Username == "" {
		details["username"] = "username is required"
	}
	if len(in.Password) < 8 {
		details["password"] = "password must be at least 8 characters"
	}
	if len(details) > 0 {
		return nil, errors.Validation("invalid registration", details)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Internal(err)
	}

	now := time.Now().UTC()
	return &User{
		ID:           types.NewID(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		NationalID:   in.NationalID,
		PhoneNumber:  in.PhoneNumber,
		Address:      in.Address,
		Roles:        []auth.Role{auth.RoleCitizen},
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// UpdateInput carries profile fields any account holder may change on
// themselves. Role, office, and status changes go through staff paths.
type UpdateInput struct {
	Email       *string `json:"email"`
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	PhoneNumber *string `json:"phone_number"`
	Address     *string `json:"address"`
}

// Apply updates profile fields.
func (u *User) Apply(in UpdateInput) {
	if in.Email != nil {
		u.Email = *in.Email
	}
	if in.FirstName != nil {
		u.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		u.LastName = *in.LastName
	}
	if in.PhoneNumber != nil {
		u.PhoneNumber = *in.PhoneNumber
	}
	if in.Address != nil {
		u.Address = *in.Address
	}
	u.UpdatedAt = time.Now().UTC()
}

// StaffUpdateInput carries the fields only staff may change.
type StaffUpdateInput struct {
	OfficeID *string  `json:"office_id"`
	Roles    []string `json:"roles"`
	Status   *string  `json:"status"`
}

// ApplyStaff updates staff-managed fields and stamps the actor on status
// changes.
func (u *User) ApplyStaff(in StaffUpdateInput, by types.ID) *errors.AppError {
	if in.Roles != nil {
		roles := make([]auth.Role, 0, len(in.Roles))
		for _, name := range in.Roles {
			role, ok := auth.ParseRole(name)
			if !ok {
				return errors.Validation("invalid role", map[string]string{"roles": "unknown role " + name})
			}
			roles = append(roles, role)
		}
		u.Roles = roles
	}
	if in.OfficeID != nil {
		if *in.OfficeID == "" {
			u.OfficeID = ""
		} else {
			id, err := types.ParseID(*in.OfficeID)
			if err != nil {
				return errors.Validation("invalid office", map[string]string{"office_id": "must be a valid id"})
			}
			u.OfficeID = id
		}
	}
	if in.Status != nil {
		if *in.Status != StatusActive && *in.Status != StatusInactive {
			return errors.Validation("invalid status", map[string]string{"status": "must be active or inactive"})
		}
		if *in.Status != u.Status {
			u.Status = *in.Status
			u.StatusChangedBy = by
		}
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// SoftDelete marks the account deleted. Idempotent.
func (u *User) SoftDelete(by types.ID) {
	if u.Status == StatusDeleted {
		return
	}
	u.Status = StatusDeleted
	u.StatusChangedBy = by
	u.DeletedBy = by
	u.UpdatedAt = time.Now().UTC()
}

// CheckPassword compares a candidate password against the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

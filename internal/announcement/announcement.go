// Package announcement manages audience-scoped broadcast messages.
// Announcements are broadcast by default: every authenticated user sees
// active ones, and audience filtering only applies when a reader opts in.
package announcement

import (
	"time"

	"github.com/addis-gov/cas/internal/auth"
	"github.com/addis-gov/cas/internal/shared/errors"
	"github.com/addis-gov/cas/internal/shared/types"
)

// Announcement is a broadcast message. Empty audience sets mean public.
type Announcement struct {
	ID              types.ID    `json:"id"`
	Title           string      `json:"title"`
	Content         string      `json:"content"`
	IsActive        bool        `json:"is_active"`
	AudienceRoles   []auth.Role `json:"audience_roles"`
	AudienceOffices []types.ID  `json:"audience_offices"`
	CreatedBy       types.ID    `json:"created_by,omitempty"`
	UpdatedBy       types.ID    `json:"updated_by,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Public reports whether the announcement targets everyone.
func (a *Announcement) Public() bool {
	return len(a.AudienceRoles) == 0 && len(a.AudienceOffices) == 0
}

// For reports whether the announcement addresses the actor: public, or
// a role intersection, or the actor's office in the target set.
func (a *Announcement) For(actor auth.Actor) bool {
	if a.Public() {
		return true
	}
	for _, role := range a.AudienceRoles {
		if actor.HasRole(role) {
			return true
		}
	}
	if !actor.OfficeID.IsZero() {
		for _, office := range a.AudienceOffices {
			if office == actor.OfficeID {
				return true
			}
		}
	}
	return false
}

// TargetsOffice reports whether the announcement addresses an office,
// counting public announcements as addressed to all offices.
func (a *Announcement) TargetsOffice(officeID types.ID) bool {
	if a.Public() {
		return true
	}
	for _, office := range a.AudienceOffices {
		if office == officeID {
			return true
		}
	}
	return false
}

// Input carries the mutable announcement fields.
type Input struct {
	Title           string   `json:"title"`
	Content         string   `json:"content"`
	AudienceRoles   []string `json:"audience_roles"`
	AudienceOffices []string `json:"audience_offices"`
}

// New validates input and builds an active announcement.
func New(in Input, createdBy types.ID) (*Announcement, *errors.AppError) {
	roles, offices, appErr := parseAudience(in)
	if appErr != nil {
		return nil, appErr
	}

	now := time.Now().UTC()
	return &Announcement{
		ID:              types.NewID(),
		Title:           in.Title,
		Content:         in.Content,
		IsActive:        true,
		AudienceRoles:   roles,
		AudienceOffices: offices,
		CreatedBy:       createdBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Apply updates the mutable fields.
func (a *Announcement) Apply(in Input, updatedBy types.ID) *errors.AppError {
	roles, offices, appErr := parseAudience(in)
	if appErr != nil {
		return appErr
	}

	a.Title = in.Title
	a.Content = in.Content
	a.AudienceRoles = roles
	a.AudienceOffices = offices
	a.UpdatedBy = updatedBy
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// ToggleActive flips visibility.
func (a *Announcement) ToggleActive(updatedBy types.ID) {
	a.IsActive = !a.IsActive
	a.UpdatedBy = updatedBy
	a.UpdatedAt = time.Now().UTC()
}

func parseAudience(in Input) ([]auth.Role, []types.ID, *errors.AppError) {
	details := map[string]string{}
	if in.Title == "" {
		details["title"] = "title is required"
	}
	if in.Content == "" {
		details["content"] = "content is required"
	}

	roles := make([]auth.Role, 0, len(in.AudienceRoles))
	for _, name := range in.AudienceRoles {
		role, ok := auth.ParseRole(name)
		if !ok {
			details["audience_roles"] = "unknown role " + name
			break
		}
		roles = append(roles, role)
	}

	offices := make([]types.ID, 0, len(in.AudienceOffices))
	for _, raw := range in.AudienceOffices {
		id, err := types.ParseID(raw)
		if err != nil {
			details["audience_offices"] = "invalid office id " + raw
			break
		}
		offices = append(offices, id)
	}

	if len(details) > 0 {
		return nil, nil, errors.Validation("invalid announcement", details)
	}
	return roles, offices, nil
}

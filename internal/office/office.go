// Package office manages the organizational units cases are routed to.
package office

import (
	"time"

	"github.com/addis-gov/cas/internal/shared/errors"
	"github.com/addis-gov/cas/internal/shared/types"
)

// Office is an organizational unit. Offices own no cases directly; cases
// reference them through routing.
type Office struct {
	ID          types.ID  `json:"id"`
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	Email       string    `json:"email,omitempty"`
	Address     string    `json:"address,omitempty"`
	IsActive    bool      `json:"is_active"`
	AddedBy     types.ID  `json:"added_by,omitempty"`
	UpdatedBy   types.ID  `json:"updated_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Input carries the mutable office fields.
type Input struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email"`
	Address     string `json:"address"`
}

// New validates input and builds an active office.
func New(in Input, addedBy types.ID) (*Office, *errors.AppError) {
	if in.Name == "" {
		return nil, errors.Validation("invalid office", map[string]string{"name": "name is required"})
	}

	now := time.Now().UTC()
	return &Office{
		ID:          types.NewID(),
		Name:        in.Name,
		PhoneNumber: in.PhoneNumber,
		Email:       in.Email,
		Address:     in.Address,
		IsActive:    true,
		AddedBy:     addedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Apply updates the mutable fields and stamps the editor.
func (o *Office) Apply(in Input, updatedBy types.ID) *errors.AppError {
	if in.Name == "" {
		return errors.Validation("invalid office", map[string]string{"name": "name is required"})
	}

	o.Name = in.Name
	o.PhoneNumber = in.PhoneNumber
	o.Email = in.Email
	o.Address = in.Address
	o.UpdatedBy = updatedBy
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// SetActive toggles routing eligibility.
func (o *Office) SetActive(active bool, updatedBy types.ID) {
	o.IsActive = active
	o.UpdatedBy = updatedBy
	o.UpdatedAt = time.Now().UTC()
}

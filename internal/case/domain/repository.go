package domain

import (
	"context"
	"time"

	"github.com/addis-gov/cas/internal/shared/types"
)

// Filter narrows case listings. Zero values mean "no restriction".
type Filter struct {
	// CitizenID scopes the listing to one owner; set for citizen actors.
	CitizenID types.ID
	OfficeID  types.ID
	Category  Category
	Status    Status
	// Start and End bound the creation date, inclusive.
	Start  *time.Time
	End    *time.Time
	Limit  int
	Offset int
}

// Repository persists cases, their ledger, and feedback. Implementations
// must keep the multi-row operations atomic.
type Repository interface {
	// Create persists a case together with its initial history entry.
	Create(ctx context.Context, c *Case, entry *HistoryEntry) error

	// Get returns a case by id, including soft-deleted rows; callers
	// decide visibility through the policy engine.
	Get(ctx context.Context, id types.ID) (*Case, error)

	// List returns non-deleted cases matching the filter, newest first,
	// plus the total match count for pagination.
	List(ctx context.Context, filter Filter) ([]*Case, int, error)

	// Update persists mutable case fields (edits, mark_seen, soft delete).
	Update(ctx context.Context, c *Case) error

	// UpdateStatus persists a status change and appends its history entry
	// in one transaction. A nil entry persists only the case.
	UpdateStatus(ctx context.Context, c *Case, entry *HistoryEntry) error

	// History returns the case ledger, newest first.
	History(ctx context.Context, caseID types.ID) ([]*HistoryEntry, error)

	// AddFeedback persists feedback with its audit entry in one
	// transaction. A duplicate (case, citizen) pair yields a conflict.
	AddFeedback(ctx context.Context, fb *Feedback, entry *HistoryEntry) error

	// ListFeedback returns feedback for a case, newest first.
	ListFeedback(ctx context.Context, caseID types.ID) ([]*Feedback, error)

	// CreateAppeal persists the appeal case, its initial history entry,
	// and the optional reason annotation in one transaction.
	CreateAppeal(ctx context.Context, appeal *Case, entry *HistoryEntry, annotation *Feedback) error
}

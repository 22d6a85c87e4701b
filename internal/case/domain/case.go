// Package domain holds the case lifecycle model: the case aggregate, its
// status machine, the append-only history ledger, feedback and appeals.
package domain

import (
	"time"

	"github.com/addis-gov/cas/internal/shared/errors"
	"github.com/addis-gov/cas/internal/shared/types"
)

// Status is the current lifecycle state of a case.
type Status string

const (
	StatusPending       Status = "pending"
	StatusInvestigation Status = "investigation"
	StatusResolved      Status = "resolved"
	StatusRejected      Status = "rejected"
	StatusClosed        Status = "closed"
)

// AllStatuses lists every valid case status in lifecycle order.
var AllStatuses = []Status{
	StatusPending,
	StatusInvestigation,
	StatusResolved,
	StatusRejected,
	StatusClosed,
}

// Valid reports whether the status is one of the five lifecycle states.
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether the status ends active handling. Terminal
// cases still count toward totals but not toward the open backlog.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusRejected || s == StatusClosed
}

// Category classifies what kind of filing a case is.
type Category string

const (
	CategoryComplaint Category = "complaint"
	CategoryAppeal    Category = "appeal"
	CategoryOther     Category = "other"
)

func (c Category) Valid() bool {
	return c == CategoryComplaint || c == CategoryAppeal || c == CategoryOther
}

// Channel records how the case reached the office.
type Channel string

const (
	ChannelWeb    Channel = "web"
	ChannelWalkIn Channel = "walk_in"
	ChannelPhone  Channel = "phone"
)

func (c Channel) Valid() bool {
	return c == ChannelWeb || c == ChannelWalkIn || c == ChannelPhone
}

// Priority orders cases for triage.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh || p == PriorityUrgent
}

// EventKind tags a history entry with what actually happened. The ledger
// records more than status changes; consumers reading the trail need to
// tell a transition apart from a feedback receipt.
type EventKind string

const (
	EventCreated          EventKind = "created"
	EventStatusChanged    EventKind = "status_changed"
	EventFeedbackReceived EventKind = "feedback_received"
	EventAppealFiled      EventKind = "appeal_filed"
)

// Case is the central aggregate: a citizen filing routed to an office and
// tracked through its lifecycle.
type Case struct {
	ID          types.ID  `json:"id"`
	CitizenID   types.ID  `json:"citizen_id"`
	OfficeID    types.ID  `json:"office_id,omitempty"`
	ParentCase  types.ID  `json:"parent_case_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Attachments []string  `json:"attachments,omitempty"`
	Category    Category  `json:"category"`
	Channel     Channel   `json:"channel"`
	Priority    Priority  `json:"priority"`
	Status      Status    `json:"status"`

	StatusChangedBy types.ID `json:"status_changed_by,omitempty"`
	LastSeenBy      types.ID `json:"last_seen_by,omitempty"`
	DeletedBy       types.ID `json:"-"`

	CreatedBy types.ID  `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Deleted reports whether the case is soft-deleted. Deleted cases are
// invisible to every listing and mutation.
func (c *Case) Deleted() bool {
	return !c.DeletedBy.IsZero()
}

// HistoryEntry is one row in the append-only case ledger. Rows are never
// mutated or deleted.
type HistoryEntry struct {
	ID        types.ID  `json:"id"`
	CaseID    types.ID  `json:"case_id"`
	Status    Status    `json:"status"`
	Event     EventKind `json:"event"`
	ChangedBy types.ID  `json:"changed_by,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

// Feedback is a citizen's rating of a closed case. At most one per
// (case, citizen) pair; the storage layer enforces the uniqueness.
type Feedback struct {
	ID        types.ID  `json:"id"`
	CaseID    types.ID  `json:"case_id"`
	CreatedBy types.ID  `json:"created_by"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCaseInput carries the fields a caller may set at creation.
type NewCaseInput struct {
	CitizenID   types.ID
	OfficeID    types.ID
	Title       string
	Description string
	Attachments []string
	Category    Category
	Channel     Channel
	Priority    Priority
}

// NewCase validates input and builds a pending case with its initial
// history entry. The pair must be persisted together.
func NewCase(in NewCaseInput, createdBy types.ID) (*Case, *HistoryEntry, *errors.AppError) {
	details := map[string]string{}
	if in.Title == "" {
		details["title"] = "title is required"
	}
	if in.CitizenID.IsZero() {
		details["citizen_id"] = "citizen is required"
	}
	if in.Category == "" {
		in.Category = CategoryComplaint
	}
	if !in.Category.Valid() {
		details["category"] = "invalid category"
	}
	if in.Channel == "" {
		in.Channel = ChannelWeb
	}
	if !in.Channel.Valid() {
		details["channel"] = "invalid channel"
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !in.Priority.Valid() {
		details["priority"] = "invalid priority"
	}
	if len(details) > 0 {
		return nil, nil, errors.Validation("invalid case", details)
	}

	now := time.Now().UTC()
	c := &Case{
		ID:          types.NewID(),
		CitizenID:   in.CitizenID,
		OfficeID:    in.OfficeID,
		Title:       in.Title,
		Description: in.Description,
		Attachments: in.Attachments,
		Category:    in.Category,
		Channel:     in.Channel,
		Priority:    in.Priority,
		Status:      StatusPending,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	return c, c.historyEntry(EventCreated, createdBy, now), nil
}

// ChangeStatus moves the case to a new lifecycle state. A request for the
// current status is a successful no-op and returns no history entry. Any
// of the five states may follow any other.
func (c *Case) ChangeStatus(to Status, by types.ID) (*HistoryEntry, *errors.AppError) {
	if !to.Valid() {
		return nil, errors.Validation("invalid status", map[string]string{"status": "must be one of pending, investigation, resolved, rejected, closed"})
	}
	if to == c.Status {
		return nil, nil
	}

	now := time.Now().UTC()
	c.Status = to
	c.StatusChangedBy = by
	c.UpdatedAt = now

	return c.historyEntry(EventStatusChanged, by, now), nil
}

// CitizenEdit carries the fields a citizen may change on an owned case.
// Anything else a client submits is dropped before this point.
type CitizenEdit struct {
	Title       *string
	Description *string
	Attachments []string
	Channel     *Channel
}

// ApplyCitizenEdit updates the citizen-editable fields.
func (c *Case) ApplyCitizenEdit(edit CitizenEdit) *errors.AppError {
	if edit.Channel != nil && !edit.Channel.Valid() {
		return errors.Validation("invalid channel", map[string]string{"channel": "must be one of web, walk_in, phone"})
	}

	if edit.Title != nil {
		if *edit.Title == "" {
			return errors.Validation("invalid title", map[string]string{"title": "title is required"})
		}
		c.Title = *edit.Title
	}
	if edit.Description != nil {
		c.Description = *edit.Description
	}
	if edit.Attachments != nil {
		c.Attachments = edit.Attachments
	}
	if edit.Channel != nil {
		c.Channel = *edit.Channel
	}
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// StaffEdit carries the fields staff may change directly. Status moves
// through ChangeStatus and the office through a transfer, never here.
type StaffEdit struct {
	Title       *string
	Description *string
	Attachments []string
	Category    *Category
	Channel     *Channel
	Priority    *Priority
}

// ApplyStaffEdit updates staff-editable fields.
func (c *Case) ApplyStaffEdit(edit StaffEdit) *errors.AppError {
	details := map[string]string{}
	if edit.Category != nil && !edit.Category.Valid() {
		details["category"] = "invalid category"
	}
	if edit.Channel != nil && !edit.Channel.Valid() {
		details["channel"] = "invalid channel"
	}
	if edit.Priority != nil && !edit.Priority.Valid() {
		details["priority"] = "invalid priority"
	}
	if len(details) > 0 {
		return errors.Validation("invalid case update", details)
	}

	if edit.Title != nil {
		if *edit.Title == "" {
			return errors.Validation("invalid title", map[string]string{"title": "title is required"})
		}
		c.Title = *edit.Title
	}
	if edit.Description != nil {
		c.Description = *edit.Description
	}
	if edit.Attachments != nil {
		c.Attachments = edit.Attachments
	}
	if edit.Category != nil {
		c.Category = *edit.Category
	}
	if edit.Channel != nil {
		c.Channel = *edit.Channel
	}
	if edit.Priority != nil {
		c.Priority = *edit.Priority
	}
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkSeen records the most recent viewer. Idempotent overwrite, no
// history impact.
func (c *Case) MarkSeen(by types.ID) {
	c.LastSeenBy = by
	c.UpdatedAt = time.Now().UTC()
}

// SoftDelete marks the case deleted. The row stays for already-loaded
// references and the ledger, but leaves every listing and report scope.
func (c *Case) SoftDelete(by types.ID) {
	c.DeletedBy = by
	c.UpdatedAt = time.Now().UTC()
}

// NewFeedback validates a citizen feedback submission against the case
// state and returns the feedback plus the audit history entry. The
// current status is recorded unchanged on the entry.
func (c *Case) NewFeedback(by types.ID, rating int, comment string) (*Feedback, *HistoryEntry, *errors.AppError) {
	// Ownership is decided before case state so non-owners learn nothing
	// about the status.
	if by != c.CitizenID {
		return nil, nil, errors.Forbidden("only the case owner may submit feedback")
	}
	if c.Status != StatusClosed {
		return nil, nil, errors.Validation("feedback allowed only on closed cases", map[string]string{"status": string(c.Status)})
	}
	if rating < 1 || rating > 5 {
		return nil, nil, errors.Validation("invalid rating", map[string]string{"rating": "must be between 1 and 5"})
	}

	now := time.Now().UTC()
	fb := &Feedback{
		ID:        types.NewID(),
		CaseID:    c.ID,
		CreatedBy: by,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: now,
	}

	return fb, c.historyEntry(EventFeedbackReceived, by, now), nil
}

// appealReasonPrefix marks the annotation carrying an appeal's
// justification in the feedback feed of the appeal case.
const appealReasonPrefix = "[Appeal Reason] "

// NewAppeal builds the child case for an appeal of this case, plus its
// initial history entry and, when a reason is supplied, a feedback-shaped
// annotation attached to the appeal case. Everything returned must be
// persisted atomically.
func (c *Case) NewAppeal(by types.ID, toOffice types.ID, reason string) (*Case, *HistoryEntry, *Feedback, *errors.AppError) {
	if by != c.CitizenID {
		return nil, nil, nil, errors.Forbidden("only the case owner may appeal")
	}
	if c.Status != StatusClosed {
		return nil, nil, nil, errors.Validation("appeal allowed only on closed cases", map[string]string{"status": string(c.Status)})
	}

	office := c.OfficeID
	if !toOffice.IsZero() {
		office = toOffice
	}

	now := time.Now().UTC()
	appeal := &Case{
		ID:          types.NewID(),
		CitizenID:   c.CitizenID,
		OfficeID:    office,
		ParentCase:  c.ID,
		Title:       "Appeal: " + c.Title,
		Description: c.Description,
		Category:    CategoryAppeal,
		Channel:     ChannelWeb,
		Priority:    c.Priority,
		Status:      StatusPending,
		CreatedBy:   by,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	entry := appeal.historyEntry(EventAppealFiled, by, now)

	var annotation *Feedback
	if reason != "" {
		annotation = &Feedback{
			ID:        types.NewID(),
			CaseID:    appeal.ID,
			CreatedBy: by,
			Rating:    5,
			Comment:   appealReasonPrefix + reason,
			CreatedAt: now,
		}
	}

	return appeal, entry, annotation, nil
}

func (c *Case) historyEntry(event EventKind, by types.ID, at time.Time) *HistoryEntry {
	return &HistoryEntry{
		ID:        types.NewID(),
		CaseID:    c.ID,
		Status:    c.Status,
		Event:     event,
		ChangedBy: by,
		ChangedAt: at,
	}
}

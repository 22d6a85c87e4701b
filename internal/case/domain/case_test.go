package domain

import (
	"testing"

	"github.com/addis-gov/cas/internal/shared/types"
)

func newTestCase(t *testing.T) *Case {
	t.Helper()
	citizen := types.NewID()
	c, entry, err := NewCase(NewCaseInput{
		CitizenID: citizen,
		Title:     "Water outage",
	}, citizen)
	if err != nil {
		t.Fatalf("NewCase failed: %v", err)
	}
	if entry == nil {
		t.Fatal("NewCase must return an initial history entry")
	}
	return c
}

func TestNewCaseDefaults(t *testing.T) {
	c := newTestCase(t)

	if c.Status != StatusPending {
		t.Errorf("status = %s, want pending", c.Status)
	}
	if c.Category != CategoryComplaint {
		t.Errorf("category = %s, want complaint", c.Category)
	}
	if c.Channel != ChannelWeb {
		t.Errorf("channel = %s, want web", c.Channel)
	}
	if c.Priority != PriorityMedium {
		t.Errorf("priority = %s, want medium", c.Priority)
	}
}

func TestNewCaseInitialHistory(t *testing.T) {
	citizen := types.NewID()
	c, entry, err := NewCase(NewCaseInput{CitizenID: citizen, Title: "Water outage"}, citizen)
	if err != nil {
		t.Fatalf("NewCase failed: %v", err)
	}

	if entry.CaseID != c.ID {
		t.Error("history entry must reference the case")
	}
	if entry.Status != StatusPending {
		t.Errorf("initial history status = %s, want pending", entry.Status)
	}
	if entry.Event != EventCreated {
		t.Errorf("initial history event = %s, want created", entry.Event)
	}
}

func TestNewCaseValidation(t *testing.T) {
	tests := []struct {
		name  string
		input NewCaseInput
	}{
		{"missing title", NewCaseInput{CitizenID: types.NewID()}},
		{"missing citizen", NewCaseInput{Title: "x"}},
		{"bad category", NewCaseInput{CitizenID: types.NewID(), Title: "x", Category: "spam"}},
		{"bad channel", NewCaseInput{CitizenID: types.NewID(), Title: "x", Channel: "fax"}},
		{"bad priority", NewCaseInput{CitizenID: types.NewID(), Title: "x", Priority: "extreme"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := NewCase(tt.input, types.NewID()); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestChangeStatus(t *testing.T) {
	c := newTestCase(t)
	staff := types.NewID()

	entry, err := c.ChangeStatus(StatusInvestigation, staff)
	if err != nil {
		t.Fatalf("ChangeStatus failed: %v", err)
	}
	if c.Status != StatusInvestigation {
		t.Errorf("status = %s, want investigation", c.Status)
	}
	if c.StatusChangedBy != staff {
		t.Error("status_changed_by must record the actor")
	}
	if entry == nil || entry.Event != EventStatusChanged || entry.Status != StatusInvestigation {
		t.Errorf("unexpected history entry: %+v", entry)
	}
}

func TestChangeStatusSameValueIsNoOp(t *testing.T) {
	c := newTestCase(t)

	entry, err := c.ChangeStatus(StatusPending, types.NewID())
	if err != nil {
		t.Fatalf("same-status change must succeed, got %v", err)
	}
	if entry != nil {
		t.Error("same-status change must not append history")
	}
}

func TestChangeStatusInvalid(t *testing.T) {
	c := newTestCase(t)
	if _, err := c.ChangeStatus("archived", types.NewID()); err == nil {
		t.Error("expected validation error for unknown status")
	}
}

func TestFeedbackRequiresClosedCase(t *testing.T) {
	c := newTestCase(t)

	_, _, err := c.NewFeedback(c.CitizenID, 4, "ok")
	if err == nil || err.Code != "VALIDATION_ERROR" {
		t.Fatalf("feedback on open case must fail validation, got %v", err)
	}
}

func TestFeedbackRequiresOwner(t *testing.T) {
	c := newTestCase(t)
	c.ChangeStatus(StatusClosed, types.NewID())

	_, _, err := c.NewFeedback(types.NewID(), 4, "ok")
	if err == nil || err.Code != "FORBIDDEN" {
		t.Fatalf("feedback by non-owner must be forbidden, got %v", err)
	}
}

func TestFeedbackOwnerCheckedBeforeStatus(t *testing.T) {
	// A non-owner probing an open case gets forbidden, not a status hint.
	c := newTestCase(t)

	_, _, err := c.NewFeedback(types.NewID(), 4, "ok")
	if err == nil || err.Code != "FORBIDDEN" {
		t.Fatalf("non-owner on open case must be forbidden, got %v", err)
	}
}

func TestFeedbackRatingBounds(t *testing.T) {
	c := newTestCase(t)
	c.ChangeStatus(StatusClosed, types.NewID())

	for _, rating := range []int{0, 6, -1} {
		if _, _, err := c.NewFeedback(c.CitizenID, rating, ""); err == nil {
			t.Errorf("rating %d must fail validation", rating)
		}
	}
	if _, _, err := c.NewFeedback(c.CitizenID, 1, ""); err != nil {
		t.Errorf("rating 1 must pass, got %v", err)
	}
	if _, _, err := c.NewFeedback(c.CitizenID, 5, ""); err != nil {
		t.Errorf("rating 5 must pass, got %v", err)
	}
}

func TestFeedbackAppendsAuditEntry(t *testing.T) {
	c := newTestCase(t)
	c.ChangeStatus(StatusClosed, types.NewID())

	fb, entry, err := c.NewFeedback(c.CitizenID, 4, "ok")
	if err != nil {
		t.Fatalf("NewFeedback failed: %v", err)
	}
	if fb.Rating != 4 || fb.CaseID != c.ID {
		t.Errorf("unexpected feedback: %+v", fb)
	}
	// The audit entry carries the current status unchanged.
	if entry.Status != StatusClosed || entry.Event != EventFeedbackReceived {
		t.Errorf("unexpected history entry: %+v", entry)
	}
}

func TestAppealRequiresClosedCase(t *testing.T) {
	c := newTestCase(t)
	if _, _, _, err := c.NewAppeal(c.CitizenID, "", "unfair"); err == nil {
		t.Error("appeal on open case must fail")
	}
}

func TestAppealRequiresOwner(t *testing.T) {
	c := newTestCase(t)
	c.ChangeStatus(StatusClosed, types.NewID())

	_, _, _, err := c.NewAppeal(types.NewID(), "", "unfair")
	if err == nil || err.Code != "FORBIDDEN" {
		t.Fatalf("appeal by non-owner must be forbidden, got %v", err)
	}
}

func TestAppealOwnerCheckedBeforeStatus(t *testing.T) {
	c := newTestCase(t)

	_, _, _, err := c.NewAppeal(types.NewID(), "", "unfair")
	if err == nil || err.Code != "FORBIDDEN" {
		t.Fatalf("non-owner on open case must be forbidden, got %v", err)
	}
}

func TestAppealBuildsChildCase(t *testing.T) {
	c := newTestCase(t)
	c.OfficeID = types.NewID()
	c.Priority = PriorityHigh
	c.ChangeStatus(StatusClosed, types.NewID())

	appeal, entry, annotation, err := c.NewAppeal(c.CitizenID, "", "decision was unfair")
	if err != nil {
		t.Fatalf("NewAppeal failed: %v", err)
	}

	if appeal.ParentCase != c.ID {
		t.Error("appeal must reference the parent case")
	}
	if appeal.Status != StatusPending {
		t.Errorf("appeal status = %s, want pending", appeal.Status)
	}
	if appeal.Category != CategoryAppeal {
		t.Errorf("appeal category = %s, want appeal", appeal.Category)
	}
	if appeal.Channel != ChannelWeb {
		t.Errorf("appeal channel = %s, want web", appeal.Channel)
	}
	if appeal.CitizenID != c.CitizenID {
		t.Error("appeal must inherit the citizen")
	}
	if appeal.OfficeID != c.OfficeID {
		t.Error("appeal must inherit the office when not re-targeted")
	}
	if appeal.Priority != PriorityHigh {
		t.Error("appeal must inherit the priority")
	}

	if entry.CaseID != appeal.ID || entry.Event != EventAppealFiled {
		t.Errorf("unexpected history entry: %+v", entry)
	}

	if annotation == nil {
		t.Fatal("reason must produce an annotation")
	}
	if annotation.CaseID != appeal.ID {
		t.Error("annotation must attach to the appeal, not the original")
	}
	if annotation.Comment != "[Appeal Reason] decision was unfair" {
		t.Errorf("annotation comment = %q", annotation.Comment)
	}
}

func TestAppealRetarget(t *testing.T) {
	c := newTestCase(t)
	c.OfficeID = types.NewID()
	c.ChangeStatus(StatusClosed, types.NewID())

	target := types.NewID()
	appeal, _, annotation, err := c.NewAppeal(c.CitizenID, target, "")
	if err != nil {
		t.Fatalf("NewAppeal failed: %v", err)
	}
	if appeal.OfficeID != target {
		t.Error("appeal must route to the requested office")
	}
	if annotation != nil {
		t.Error("empty reason must not produce an annotation")
	}
}

func TestCitizenEditAllowList(t *testing.T) {
	c := newTestCase(t)

	title := "Updated title"
	channel := ChannelPhone
	err := c.ApplyCitizenEdit(CitizenEdit{
		Title:       &title,
		Attachments: []string{"photo.jpg"},
		Channel:     &channel,
	})
	if err != nil {
		t.Fatalf("ApplyCitizenEdit failed: %v", err)
	}
	if c.Title != title || c.Channel != ChannelPhone || len(c.Attachments) != 1 {
		t.Errorf("edit not applied: %+v", c)
	}
}

func TestCitizenEditRejectsEmptyTitle(t *testing.T) {
	c := newTestCase(t)
	empty := ""
	if err := c.ApplyCitizenEdit(CitizenEdit{Title: &empty}); err == nil {
		t.Error("empty title must fail validation")
	}
}

func TestMarkSeenIdempotent(t *testing.T) {
	c := newTestCase(t)
	viewer := types.NewID()

	c.MarkSeen(viewer)
	c.MarkSeen(viewer)
	if c.LastSeenBy != viewer {
		t.Error("last_seen_by must record the viewer")
	}

	next := types.NewID()
	c.MarkSeen(next)
	if c.LastSeenBy != next {
		t.Error("mark_seen must overwrite")
	}
}

func TestSoftDelete(t *testing.T) {
	c := newTestCase(t)
	staff := types.NewID()

	if c.Deleted() {
		t.Fatal("new case must not be deleted")
	}
	c.SoftDelete(staff)
	if !c.Deleted() || c.DeletedBy != staff {
		t.Error("soft delete must record the actor")
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := map[Status]bool{
		StatusPending:       false,
		StatusInvestigation: false,
		StatusResolved:      true,
		StatusRejected:      true,
		StatusClosed:        true,
	}
	for status, want := range terminal {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}

// TestLifecycleWalkthrough follows a case from filing to feedback and
// checks the ledger grows by exactly one entry per effective event.
func TestLifecycleWalkthrough(t *testing.T) {
	citizen := types.NewID()
	staff := types.NewID()

	c, first, err := NewCase(NewCaseInput{CitizenID: citizen, Title: "Water outage"}, citizen)
	if err != nil {
		t.Fatalf("NewCase failed: %v", err)
	}
	ledger := []*HistoryEntry{first}

	entry, cerr := c.ChangeStatus(StatusInvestigation, staff)
	if cerr != nil {
		t.Fatalf("ChangeStatus failed: %v", cerr)
	}
	ledger = append(ledger, entry)

	entry, cerr = c.ChangeStatus(StatusClosed, staff)
	if cerr != nil {
		t.Fatalf("ChangeStatus failed: %v", cerr)
	}
	ledger = append(ledger, entry)

	_, entry, ferr := c.NewFeedback(citizen, 4, "ok")
	if ferr != nil {
		t.Fatalf("NewFeedback failed: %v", ferr)
	}
	ledger = append(ledger, entry)

	if len(ledger) != 4 {
		t.Fatalf("ledger length = %d, want 4", len(ledger))
	}
	wantEvents := []EventKind{EventCreated, EventStatusChanged, EventStatusChanged, EventFeedbackReceived}
	wantStatuses := []Status{StatusPending, StatusInvestigation, StatusClosed, StatusClosed}
	for i, e := range ledger {
		if e.Event != wantEvents[i] {
			t.Errorf("entry %d event = %s, want %s", i, e.Event, wantEvents[i])
		}
		if e.Status != wantStatuses[i] {
			t.Errorf("entry %d status = %s, want %s", i, e.Status, wantStatuses[i])
		}
	}
}

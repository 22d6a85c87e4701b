package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/addis-gov/cas/internal/auth"
	"github.com/addis-gov/cas/internal/case/domain"
	"github.com/addis-gov/cas/internal/shared/errors"
	sharedauth "github.com/addis-gov/cas/internal/shared/auth"
	"github.com/addis-gov/cas/internal/shared/types"
)

// fakeRepo is an in-memory domain.Repository for handler tests.
type fakeRepo struct {
	cases    map[types.ID]*domain.Case
	history  map[types.ID][]*domain.HistoryEntry
	feedback map[types.ID][]*domain.Feedback
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		cases:    make(map[types.ID]*domain.Case),
		history:  make(map[types.ID][]*domain.HistoryEntry),
		feedback: make(map[types.ID][]*domain.Feedback),
	}
}

func (f *fakeRepo) Create(ctx context.Context, c *domain.Case, entry *domain.HistoryEntry) error {
	f.cases[c.ID] = c
	f.history[c.ID] = append(f.history[c.ID], entry)
	return nil
}

func (f *fakeRepo) Get(ctx context.Context, id types.ID) (*domain.Case, error) {
	c, ok := f.cases[id]
	if !ok {
		return nil, errors.NotFound("case", id.String())
	}
	return c, nil
}

func (f *fakeRepo) List(ctx context.Context, filter domain.Filter) ([]*domain.Case, int, error) {
	var out []*domain.Case
	for _, c := range f.cases {
		if c.Deleted() {
			continue
		}
		if !filter.CitizenID.IsZero() && c.CitizenID != filter.CitizenID {
			continue
		}
		out = append(out, c)
	}
	return out, len(out), nil
}

func (f *fakeRepo) Update(ctx context.Context, c *domain.Case) error {
	f.cases[c.ID] = c
	return nil
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, c *domain.Case, entry *domain.HistoryEntry) error {
	f.cases[c.ID] = c
	if entry != nil {
		f.history[c.ID] = append(f.history[c.ID], entry)
	}
	return nil
}

func (f *fakeRepo) History(ctx context.Context, caseID types.ID) ([]*domain.HistoryEntry, error) {
	return f.history[caseID], nil
}

func (f *fakeRepo) AddFeedback(ctx context.Context, fb *domain.Feedback, entry *domain.HistoryEntry) error {
	for _, existing := range f.feedback[fb.CaseID] {
		if existing.CreatedBy == fb.CreatedBy {
			return errors.Conflict("feedback already submitted for this case")
		}
	}
	f.feedback[fb.CaseID] = append(f.feedback[fb.CaseID], fb)
	f.history[fb.CaseID] = append(f.history[fb.CaseID], entry)
	return nil
}

func (f *fakeRepo) ListFeedback(ctx context.Context, caseID types.ID) ([]*domain.Feedback, error) {
	return f.feedback[caseID], nil
}

func (f *fakeRepo) CreateAppeal(ctx context.Context, appeal *domain.Case, entry *domain.HistoryEntry, annotation *domain.Feedback) error {
	f.cases[appeal.ID] = appeal
	f.history[appeal.ID] = append(f.history[appeal.ID], entry)
	if annotation != nil {
		f.feedback[appeal.ID] = append(f.feedback[appeal.ID], annotation)
	}
	return nil
}

type fakeOffices struct{ known map[types.ID]bool }

func (f *fakeOffices) Exists(ctx context.Context, id types.ID) (bool, error) {
	return f.known[id], nil
}

// fakeUsers treats every id as a known citizen unless listed as missing.
type fakeUsers struct{ missing map[types.ID]bool }

func (f *fakeUsers) Exists(ctx context.Context, id types.ID) (bool, error) {
	return !f.missing[id], nil
}

func setup() (*fakeRepo, *Handler) {
	repo := newFakeRepo()
	handler := NewHandler(repo, &fakeOffices{known: map[types.ID]bool{}}, &fakeUsers{}, nil)
	return repo, handler
}

func doRequest(h *Handler, actor auth.Actor, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if !actor.ID.IsZero() {
		req = req.WithContext(sharedauth.WithActor(req.Context(), actor))
	}
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func citizenActor() auth.Actor {
	return auth.Actor{ID: types.NewID(), Roles: []auth.Role{auth.RoleCitizen}}
}

func staffActor() auth.Actor {
	return auth.Actor{ID: types.NewID(), Roles: []auth.Role{auth.RoleOfficer}}
}

func seedCase(repo *fakeRepo, citizen types.ID) *domain.Case {
	c, entry, _ := domain.NewCase(domain.NewCaseInput{CitizenID: citizen, Title: "Water outage"}, citizen)
	repo.Create(context.Background(), c, entry)
	return c
}

func TestCreateForcesOwnerForCitizens(t *testing.T) {
	_, handler := setup()
	actor := citizenActor()

	rec := doRequest(handler, actor, http.MethodPost, "/", map[string]string{
		"title":      "Water outage",
		"citizen_id": types.NewID().String(),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var created domain.Case
	json.Unmarshal(rec.Body.Bytes(), &created)
	if created.CitizenID != actor.ID {
		t.Errorf("citizen_id = %s, want acting citizen %s", created.CitizenID, actor.ID)
	}
}

func TestCreateRejectsMalformedReferences(t *testing.T) {
	_, handler := setup()

	rec := doRequest(handler, staffActor(), http.MethodPost, "/", map[string]string{
		"title":      "Water outage",
		"citizen_id": "garbage",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed citizen_id status = %d, want 400", rec.Code)
	}

	rec = doRequest(handler, citizenActor(), http.MethodPost, "/", map[string]string{
		"title":     "Water outage",
		"office_id": "garbage",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed office_id status = %d, want 400", rec.Code)
	}
}

func TestStaffCreateForUnknownCitizen(t *testing.T) {
	repo := newFakeRepo()
	missing := types.NewID()
	handler := NewHandler(repo, &fakeOffices{known: map[types.ID]bool{}},
		&fakeUsers{missing: map[types.ID]bool{missing: true}}, nil)

	rec := doRequest(handler, staffActor(), http.MethodPost, "/", map[string]string{
		"title":      "Water outage",
		"citizen_id": missing.String(),
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown citizen status = %d, want 404", rec.Code)
	}
	if len(repo.cases) != 0 {
		t.Error("no case must be created for an unknown citizen")
	}
}

func TestListRejectsMalformedOfficeFilter(t *testing.T) {
	_, handler := setup()
	rec := doRequest(handler, staffActor(), http.MethodGet, "/?office=garbage", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed office filter status = %d, want 400", rec.Code)
	}
}

func TestCreateRequiresAuthentication(t *testing.T) {
	_, handler := setup()
	rec := doRequest(handler, auth.Actor{}, http.MethodPost, "/", map[string]string{"title": "x"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestForeignCaseReadsAsNotFound(t *testing.T) {
	repo, handler := setup()
	owner := citizenActor()
	c := seedCase(repo, owner.ID)

	rec := doRequest(handler, citizenActor(), http.MethodGet, "/"+c.ID.String(), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCitizenListIsScoped(t *testing.T) {
	repo, handler := setup()
	mine := citizenActor()
	seedCase(repo, mine.ID)
	seedCase(repo, types.NewID())

	rec := doRequest(handler, mine, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Cases []*domain.Case `json:"cases"`
		Total int            `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 || len(resp.Cases) != 1 {
		t.Errorf("citizen sees %d cases, want 1", resp.Total)
	}
	if len(resp.Cases) == 1 && resp.Cases[0].CitizenID != mine.ID {
		t.Error("citizen must only see own cases")
	}
}

func TestChangeStatusStaffOnly(t *testing.T) {
	repo, handler := setup()
	owner := citizenActor()
	c := seedCase(repo, owner.ID)

	rec := doRequest(handler, owner, http.MethodPost, "/"+c.ID.String()+"/change_status",
		map[string]string{"status": "investigation"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("citizen change_status status = %d, want 403", rec.Code)
	}

	rec = doRequest(handler, staffActor(), http.MethodPost, "/"+c.ID.String()+"/change_status",
		map[string]string{"status": "investigation"})
	if rec.Code != http.StatusOK {
		t.Fatalf("staff change_status status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if repo.cases[c.ID].Status != domain.StatusInvestigation {
		t.Error("status not persisted")
	}
	if len(repo.history[c.ID]) != 2 {
		t.Errorf("history length = %d, want 2", len(repo.history[c.ID]))
	}
}

func TestChangeStatusNoOpAddsNoHistory(t *testing.T) {
	repo, handler := setup()
	c := seedCase(repo, types.NewID())

	rec := doRequest(handler, staffActor(), http.MethodPost, "/"+c.ID.String()+"/change_status",
		map[string]string{"status": "pending"})
	if rec.Code != http.StatusOK {
		t.Fatalf("no-op change_status status = %d", rec.Code)
	}
	if len(repo.history[c.ID]) != 1 {
		t.Errorf("history length = %d, want 1", len(repo.history[c.ID]))
	}
}

func TestSubmitFeedbackFlow(t *testing.T) {
	repo, handler := setup()
	owner := citizenActor()
	c := seedCase(repo, owner.ID)

	// Feedback before closure fails validation.
	rec := doRequest(handler, owner, http.MethodPost, "/"+c.ID.String()+"/submit_feedback",
		map[string]interface{}{"rating": 4, "comment": "ok"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("open-case feedback status = %d, want 400", rec.Code)
	}

	doRequest(handler, staffActor(), http.MethodPost, "/"+c.ID.String()+"/change_status",
		map[string]string{"status": "closed"})

	rec = doRequest(handler, owner, http.MethodPost, "/"+c.ID.String()+"/submit_feedback",
		map[string]interface{}{"rating": 4, "comment": "ok"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("feedback status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// Second submission by the same citizen conflicts.
	rec = doRequest(handler, owner, http.MethodPost, "/"+c.ID.String()+"/submit_feedback",
		map[string]interface{}{"rating": 5})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate feedback status = %d, want 409", rec.Code)
	}
}

func TestSubmitAppealCreatesChildCase(t *testing.T) {
	repo, handler := setup()
	owner := citizenActor()
	c := seedCase(repo, owner.ID)
	doRequest(handler, staffActor(), http.MethodPost, "/"+c.ID.String()+"/change_status",
		map[string]string{"status": "closed"})

	rec := doRequest(handler, owner, http.MethodPost, "/"+c.ID.String()+"/submit_appeal",
		map[string]string{"reason": "decision was unfair"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("appeal status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var appeal domain.Case
	json.Unmarshal(rec.Body.Bytes(), &appeal)
	if appeal.ParentCase != c.ID {
		t.Error("appeal must reference the parent case")
	}
	if len(repo.feedback[appeal.ID]) != 1 {
		t.Error("reason must produce one annotation on the appeal")
	}
	if len(repo.feedback[c.ID]) != 0 {
		t.Error("annotation must not attach to the original case")
	}
}

func TestSubmitAppealRejectsMalformedOffice(t *testing.T) {
	repo, handler := setup()
	owner := citizenActor()
	c := seedCase(repo, owner.ID)
	doRequest(handler, staffActor(), http.MethodPost, "/"+c.ID.String()+"/change_status",
		map[string]string{"status": "closed"})

	rec := doRequest(handler, owner, http.MethodPost, "/"+c.ID.String()+"/submit_appeal",
		map[string]string{"reason": "unfair", "to_office_id": "garbage"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed to_office_id status = %d, want 400", rec.Code)
	}
}

func TestDeletedCaseInvisible(t *testing.T) {
	repo, handler := setup()
	owner := citizenActor()
	c := seedCase(repo, owner.ID)

	rec := doRequest(handler, staffActor(), http.MethodDelete, "/"+c.ID.String(), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = doRequest(handler, owner, http.MethodGet, "/"+c.ID.String(), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("deleted case read by owner status = %d, want 404", rec.Code)
	}
	rec = doRequest(handler, staffActor(), http.MethodGet, "/"+c.ID.String(), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("deleted case read by staff status = %d, want 404", rec.Code)
	}
}

func TestCitizenUpdateDropsForbiddenFields(t *testing.T) {
	repo, handler := setup()
	owner := citizenActor()
	c := seedCase(repo, owner.ID)

	rec := doRequest(handler, owner, http.MethodPatch, "/"+c.ID.String(), map[string]interface{}{
		"title":    "Updated title",
		"priority": "urgent",
		"status":   "resolved",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", rec.Code, rec.Body.String())
	}

	updated := repo.cases[c.ID]
	if updated.Title != "Updated title" {
		t.Error("allowed field must apply")
	}
	if updated.Priority != domain.PriorityMedium {
		t.Error("priority must be silently dropped for citizens")
	}
	if updated.Status != domain.StatusPending {
		t.Error("status must be silently dropped for citizens")
	}
}

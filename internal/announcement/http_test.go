package announcement

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/addis-gov/cas/internal/auth"
	"github.com/addis-gov/cas/internal/shared/errors"
	sharedauth "github.com/addis-gov/cas/internal/shared/auth"
	"github.com/addis-gov/cas/internal/shared/types"
)

// fakeStore is an in-memory Store for handler tests.
type fakeStore struct {
	announcements []*Announcement
}

func (f *fakeStore) Create(ctx context.Context, a *Announcement) error {
	f.announcements = append(f.announcements, a)
	return nil
}

func (f *fakeStore) Get(ctx context.Context, id types.ID) (*Announcement, error) {
	for _, a := range f.announcements {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, errors.NotFound("announcement", id.String())
}

func (f *fakeStore) List(ctx context.Context, activeOnly bool) ([]*Announcement, error) {
	var out []*Announcement
	for _, a := range f.announcements {
		if activeOnly && !a.IsActive {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeStore) Update(ctx context.Context, a *Announcement) error {
	for i, existing := range f.announcements {
		if existing.ID == a.ID {
			f.announcements[i] = a
			return nil
		}
	}
	return errors.NotFound("announcement", a.ID.String())
}

func (f *fakeStore) Delete(ctx context.Context, id types.ID) error {
	for i, a := range f.announcements {
		if a.ID == id {
			f.announcements = append(f.announcements[:i], f.announcements[i+1:]...)
			return nil
		}
	}
	return errors.NotFound("announcement", id.String())
}

func seed(store *fakeStore, active bool, roles []auth.Role, offices []types.ID) *Announcement {
	a := &Announcement{
		ID:              types.NewID(),
		Title:           "Notice",
		Content:         "Details",
		IsActive:        active,
		AudienceRoles:   roles,
		AudienceOffices: offices,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	store.announcements = append(store.announcements, a)
	return a
}

func listRequest(h *Handler, actor auth.Actor, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/"+query, nil)
	if !actor.ID.IsZero() {
		req = req.WithContext(sharedauth.WithActor(req.Context(), actor))
	}
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func listedIDs(t *testing.T, rec *httptest.ResponseRecorder) []types.ID {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Announcements []*Announcement `json:"announcements"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	ids := make([]types.ID, 0, len(resp.Announcements))
	for _, a := range resp.Announcements {
		ids = append(ids, a.ID)
	}
	return ids
}

func directorActor() auth.Actor {
	return auth.Actor{ID: types.NewID(), Roles: []auth.Role{auth.RoleDirector}}
}

func officerActor() auth.Actor {
	return auth.Actor{ID: types.NewID(), Roles: []auth.Role{auth.RoleOfficer}}
}

func TestListDefaultIsActiveBroadcast(t *testing.T) {
	store := &fakeStore{}
	active := seed(store, true, []auth.Role{auth.RoleDirector}, nil)
	seed(store, false, nil, nil)
	h := NewHandler(store)

	// Audience targeting does not hide rows from the default listing.
	ids := listedIDs(t, listRequest(h, officerActor(), ""))
	if len(ids) != 1 || ids[0] != active.ID {
		t.Errorf("default list = %v, want only the active announcement", ids)
	}
}

func TestListAllFlagIncludesInactiveForDirectors(t *testing.T) {
	store := &fakeStore{}
	seed(store, true, nil, nil)
	seed(store, false, nil, nil)
	h := NewHandler(store)

	for _, query := range []string{"?all=1", "?all=true"} {
		ids := listedIDs(t, listRequest(h, directorActor(), query))
		if len(ids) != 2 {
			t.Errorf("director %s sees %d announcements, want 2", query, len(ids))
		}
	}

	// Non-directors never see inactive rows, flag or not.
	ids := listedIDs(t, listRequest(h, officerActor(), "?all=1"))
	if len(ids) != 1 {
		t.Errorf("officer with all=1 sees %d announcements, want 1", len(ids))
	}
}

func TestListForMeFlagFilters(t *testing.T) {
	store := &fakeStore{}
	public := seed(store, true, nil, nil)
	forOfficers := seed(store, true, []auth.Role{auth.RoleOfficer}, nil)
	seed(store, true, []auth.Role{auth.RoleDirector}, nil)
	h := NewHandler(store)

	actor := officerActor()

	// Without the flag the full broadcast comes back.
	if ids := listedIDs(t, listRequest(h, actor, "")); len(ids) != 3 {
		t.Fatalf("unfiltered list = %d announcements, want 3", len(ids))
	}

	for _, query := range []string{"?for_me=1", "?for_me=true"} {
		ids := listedIDs(t, listRequest(h, actor, query))
		if len(ids) != 2 {
			t.Fatalf("%s list = %d announcements, want 2", query, len(ids))
		}
		got := map[types.ID]bool{ids[0]: true, ids[1]: true}
		if !got[public.ID] || !got[forOfficers.ID] {
			t.Errorf("%s list = %v, want public and role match", query, ids)
		}
	}
}

func TestListOfficeFilterKeepsPublic(t *testing.T) {
	store := &fakeStore{}
	office := types.NewID()
	public := seed(store, true, nil, nil)
	targeted := seed(store, true, nil, []types.ID{office})
	seed(store, true, nil, []types.ID{types.NewID()})
	h := NewHandler(store)

	ids := listedIDs(t, listRequest(h, officerActor(), "?office="+office.String()))
	if len(ids) != 2 {
		t.Fatalf("office filter = %d announcements, want 2", len(ids))
	}
	got := map[types.ID]bool{ids[0]: true, ids[1]: true}
	if !got[public.ID] || !got[targeted.ID] {
		t.Errorf("office filter = %v, want public and targeted", ids)
	}
}

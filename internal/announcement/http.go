package announcement

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/addis-gov/cas/internal/access"
	"github.com/addis-gov/cas/internal/shared/errors"
	sharedauth "github.com/addis-gov/cas/internal/shared/auth"
	"github.com/addis-gov/cas/internal/shared/types"
)

// Store is the persistence surface the handler needs.
type Store interface {
	Create(ctx context.Context, a *Announcement) error
	Get(ctx context.Context, id types.ID) (*Announcement, error)
	List(ctx context.Context, activeOnly bool) ([]*Announcement, error)
	Update(ctx context.Context, a *Announcement) error
	Delete(ctx context.Context, id types.ID) error
}

// Handler serves the announcement endpoints. Reads are open to any
// authenticated user; writes require a Director-tier role.
type Handler struct {
	repo Store
}

// NewHandler creates an announcement HTTP handler.
func NewHandler(repo Store) *Handler {
	return &Handler{repo: repo}
}

// Routes returns the announcement router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/", h.update)
		r.Delete("/", h.delete)
		r.Post("/toggle_active", h.toggleActive)
	})

	return r
}

// list returns announcements. The default is broadcast: every active
// announcement regardless of audience. Filters narrow on request:
//   - all=1       includes inactive rows (Director-tier only)
//   - for_me=1    keeps rows addressed to the actor's roles or office,
//     public ones included
//   - office=<id> keeps rows targeting that office, public ones included
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor := sharedauth.GetActor(r.Context())
	if appErr := access.RequireAuthenticated(actor); appErr != nil {
		writeError(w, appErr)
		return
	}

	q := r.URL.Query()
	includeInactive := flagSet(q, "all") && actor.IsDirectorTier()

	announcements, err := h.repo.List(r.Context(), !includeInactive)
	if err != nil {
		writeError(w, err)
		return
	}

	if flagSet(q, "for_me") {
		announcements = filter(announcements, func(a *Announcement) bool {
			return a.For(actor)
		})
	}
	if office := q.Get("office"); office != "" {
		officeID, parseErr := types.ParseID(office)
		if parseErr != nil {
			writeError(w, errors.BadRequest("invalid office id"))
			return
		}
		announcements = filter(announcements, func(a *Announcement) bool {
			return a.TargetsOffice(officeID)
		})
	}

	if announcements == nil {
		announcements = []*Announcement{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"announcements": announcements})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor := sharedauth.GetActor(r.Context())
	if appErr := access.CanManageAnnouncements(actor); appErr != nil {
		writeError(w, appErr)
		return
	}

	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	a, appErr := New(in, actor.ID)
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	if err := h.repo.Create(r.Context(), a); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor := sharedauth.GetActor(r.Context())
	if appErr := access.RequireAuthenticated(actor); appErr != nil {
		writeError(w, appErr)
		return
	}

	a, ok := h.load(w, r)
	if !ok {
		return
	}
	if !a.IsActive && !actor.IsDirectorTier() {
		writeError(w, errors.NotFound("announcement", a.ID.String()))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor := sharedauth.GetActor(r.Context())
	if appErr := access.CanManageAnnouncements(actor); appErr != nil {
		writeError(w, appErr)
		return
	}

	a, ok := h.load(w, r)
	if !ok {
		return
	}

	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if appErr := a.Apply(in, actor.ID); appErr != nil {
		writeError(w, appErr)
		return
	}

	if err := h.repo.Update(r.Context(), a); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if appErr := access.CanManageAnnouncements(sharedauth.GetActor(r.Context())); appErr != nil {
		writeError(w, appErr)
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid announcement id"))
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) toggleActive(w http.ResponseWriter, r *http.Request) {
	actor := sharedauth.GetActor(r.Context())
	if appErr := access.CanManageAnnouncements(actor); appErr != nil {
		writeError(w, appErr)
		return
	}

	a, ok := h.load(w, r)
	if !ok {
		return
	}

	a.ToggleActive(actor.ID)
	if err := h.repo.Update(r.Context(), a); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*Announcement, bool) {
	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid announcement id"))
		return nil, false
	}

	a, getErr := h.repo.Get(r.Context(), id)
	if getErr != nil {
		writeError(w, getErr)
		return nil, false
	}
	return a, true
}

// flagSet reports whether a boolean query flag is on. Both the 1 and
// true spellings are accepted.
func flagSet(q url.Values, name string) bool {
	v := q.Get(name)
	return v == "1" || v == "true"
}

func filter(announcements []*Announcement, keep func(*Announcement) bool) []*Announcement {
	out := announcements[:0]
	for _, a := range announcements {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *errors.AppError
	if e, ok := err.(*errors.AppError); ok {
		appErr = e
	} else {
		appErr = errors.Internal(err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{"error": appErr})
}

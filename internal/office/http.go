package office

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/addis-gov/cas/internal/access"
	"github.com/addis-gov/cas/internal/shared/errors"
	sharedauth "github.com/addis-gov/cas/internal/shared/auth"
	"github.com/addis-gov/cas/internal/shared/types"
)

// Handler serves the office endpoints. All operations are staff-only.
type Handler struct {
	repo *Repository
}

// NewHandler creates an office HTTP handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Routes returns the office router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/", h.update)
		r.Delete("/", h.delete)
	})

	return r
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	if appErr := access.RequireStaff(sharedauth.GetActor(r.Context())); appErr != nil {
		writeError(w, appErr)
		return
	}

	offices, err := h.repo.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if offices == nil {
		offices = []*Office{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"offices": offices})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor := sharedauth.GetActor(r.Context())
	if appErr := access.RequireStaff(actor); appErr != nil {
		writeError(w, appErr)
		return
	}

	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	o, appErr := New(in, actor.ID)
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	if err := h.repo.Create(r.Context(), o); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	if appErr := access.RequireStaff(sharedauth.GetActor(r.Context())); appErr != nil {
		writeError(w, appErr)
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid office id"))
		return
	}

	o, getErr := h.repo.Get(r.Context(), id)
	if getErr != nil {
		writeError(w, getErr)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type updateRequest struct {
	Input
	IsActive *bool `json:"is_active"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor := sharedauth.GetActor(r.Context())
	if appErr := access.RequireStaff(actor); appErr != nil {
		writeError(w, appErr)
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid office id"))
		return
	}

	o, getErr := h.repo.Get(r.Context(), id)
	if getErr != nil {
		writeError(w, getErr)
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if appErr := o.Apply(req.Input, actor.ID); appErr != nil {
		writeError(w, appErr)
		return
	}
	if req.IsActive != nil {
		o.SetActive(*req.IsActive, actor.ID)
	}

	if err := h.repo.Update(r.Context(), o); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if appErr := access.RequireStaff(sharedauth.GetActor(r.Context())); appErr != nil {
		writeError(w, appErr)
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid office id"))
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
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

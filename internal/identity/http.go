package identity

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/addis-gov/cas/internal/access"
	"github.com/addis-gov/cas/internal/shared/errors"
	sharedauth "github.com/addis-gov/cas/internal/shared/auth"
	"github.com/addis-gov/cas/internal/shared/types"
)

// Handler serves the user endpoints.
type Handler struct {
	repo *Repository
}

// NewHandler creates a user HTTP handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Routes returns the user router. Registration is the one anonymous
// operation in the whole API.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.register)
	r.Get("/", h.list)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Patch("/", h.update)
		r.Delete("/", h.delete)
	})

	return r
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	u, appErr := Register(in)
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	// A staff actor registering someone else is recorded as the creator.
	actor := sharedauth.GetActor(r.Context())
	if actor.IsStaff() {
		u.AddedBy = actor.ID
	}

	if err := h.repo.Create(r.Context(), u); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor := sharedauth.GetActor(r.Context())
	if appErr := access.CanUser(actor, access.UserActionList, ""); appErr != nil {
		writeError(w, appErr)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	users, total, err := h.repo.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	if users == nil {
		users = []*User{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users, "total": total})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor := sharedauth.GetActor(r.Context())

	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid user id"))
		return
	}

	if appErr := access.CanUser(actor, access.UserActionRetrieve, id); appErr != nil {
		writeError(w, appErr)
		return
	}

	u, getErr := h.repo.Get(r.Context(), id)
	if getErr != nil {
		writeError(w, getErr)
		return
	}
	if u.Deleted() && !actor.IsStaff() {
		writeError(w, errors.NotFound("user", id.String()))
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type updateUserRequest struct {
	UpdateInput
	StaffUpdateInput
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor := sharedauth.GetActor(r.Context())

	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid user id"))
		return
	}

	if appErr := access.CanUser(actor, access.UserActionUpdate, id); appErr != nil {
		writeError(w, appErr)
		return
	}

	u, getErr := h.repo.Get(r.Context(), id)
	if getErr != nil {
		writeError(w, getErr)
		return
	}
	if u.Deleted() {
		writeError(w, errors.NotFound("user", id.String()))
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	u.Apply(req.UpdateInput)
	if actor.IsStaff() {
		if appErr := u.ApplyStaff(req.StaffUpdateInput, actor.ID); appErr != nil {
			writeError(w, appErr)
			return
		}
	}

	if err := h.repo.Update(r.Context(), u); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor := sharedauth.GetActor(r.Context())

	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid user id"))
		return
	}

	if appErr := access.CanUser(actor, access.UserActionDelete, id); appErr != nil {
		writeError(w, appErr)
		return
	}

	u, getErr := h.repo.Get(r.Context(), id)
	if getErr != nil {
		writeError(w, getErr)
		return
	}

	u.SoftDelete(actor.ID)
	if err := h.repo.Update(r.Context(), u); err != nil {
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

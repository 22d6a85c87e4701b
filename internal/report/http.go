package report

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/addis-gov/cas/internal/access"
	"github.com/addis-gov/cas/internal/case/domain"
	"github.com/addis-gov/cas/internal/shared/errors"
	sharedauth "github.com/addis-gov/cas/internal/shared/auth"
	"github.com/addis-gov/cas/internal/shared/types"
)

// Handler serves the report endpoints.
type Handler struct {
	service *Service
}

// NewHandler creates a report HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the report router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/summary", h.summary)
	r.Get("/cases_by_status", h.byStatus)
	r.Get("/cases_by_office", h.byOffice)
	r.Get("/cases_by_category", h.byCategory)
	r.Get("/top_assignees", h.topAssignees)
	return r
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	sum, err := h.service.Summary(r.Context(), scope)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *Handler) byStatus(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	buckets, err := h.service.ByStatus(r.Context(), scope)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": buckets})
}

func (h *Handler) byOffice(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	buckets, err := h.service.ByOffice(r.Context(), scope)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": buckets})
}

func (h *Handler) byCategory(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	buckets, err := h.service.ByCategory(r.Context(), scope)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": buckets})
}

func (h *Handler) topAssignees(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	assignees, err := h.service.TopAssignees(r.Context(), scope)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": assignees})
}

// scope authenticates the request and builds the report scope from query
// filters. Citizens are always pinned to their own cases.
func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (Scope, bool) {
	actor := sharedauth.GetActor(r.Context())
	if appErr := access.RequireAuthenticated(actor); appErr != nil {
		writeError(w, appErr)
		return Scope{}, false
	}

	q := r.URL.Query()
	scope := Scope{
		Category: domain.Category(q.Get("category")),
		Status:   domain.Status(q.Get("status")),
	}
	if office := q.Get("office"); office != "" {
		id, err := types.ParseID(office)
		if err != nil {
			writeError(w, errors.Validation("invalid office filter", map[string]string{"office": "must be a valid id"}))
			return Scope{}, false
		}
		scope.OfficeID = id
	}
	if !access.CanListAllCases(actor) {
		scope.CitizenID = actor.ID
	}

	if v := q.Get("start"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, errors.Validation("invalid start date", map[string]string{"start": "use YYYY-MM-DD"}))
			return Scope{}, false
		}
		scope.Start = &t
	}
	if v := q.Get("end"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, errors.Validation("invalid end date", map[string]string{"end": "use YYYY-MM-DD"}))
			return Scope{}, false
		}
		// End of day, inclusive.
		end := t.Add(24*time.Hour - time.Nanosecond)
		scope.End = &end
	}

	return scope, true
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

package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/addis-gov/cas/internal/access"
	"github.com/addis-gov/cas/internal/shared/errors"
	"github.com/addis-gov/cas/internal/shared/events"
	sharedauth "github.com/addis-gov/cas/internal/shared/auth"
	"github.com/addis-gov/cas/internal/shared/metrics"
	"github.com/addis-gov/cas/internal/shared/types"
)

// OfficeDirectory verifies that a referenced office exists.
type OfficeDirectory interface {
	Exists(ctx context.Context, id types.ID) (bool, error)
}

// UserDirectory verifies that a referenced user exists and is active.
type UserDirectory interface {
	Exists(ctx context.Context, id types.ID) (bool, error)
}

// Handler serves the transfer and assignment endpoints. Both ledgers are
// staff-only.
type Handler struct {
	repo    *Repository
	offices OfficeDirectory
	users   UserDirectory
	bus     events.Publisher
}

// NewHandler creates a ledger HTTP handler.
func NewHandler(repo *Repository, offices OfficeDirectory, users UserDirectory, bus events.Publisher) *Handler {
	return &Handler{repo: repo, offices: offices, users: users, bus: bus}
}

// TransferRoutes returns the transfer router.
func (h *Handler) TransferRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.createTransfer)
	r.Get("/by_case/{caseID}", h.transfersByCase)
	return r
}

// AssignmentRoutes returns the assignment router.
func (h *Handler) AssignmentRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.createAssignment)
	r.Get("/by_case/{caseID}", h.assignmentsByCase)
	return r
}

type createTransferRequest struct {
	CaseID       string `json:"case_id"`
	FromOfficeID string `json:"from_office_id"`
	ToOfficeID   string `json:"to_office_id"`
	Reason       string `json:"reason"`
}

func (h *Handler) createTransfer(w http.ResponseWriter, r *http.Request) {
	actor := sharedauth.GetActor(r.Context())
	if appErr := access.RequireStaff(actor); appErr != nil {
		writeError(w, appErr)
		return
	}

	var req createTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	t, appErr := NewTransfer(req.CaseID, req.FromOfficeID, req.ToOfficeID, req.Reason)
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	ok, err := h.offices.Exists(r.Context(), t.ToOfficeID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, errors.NotFound("office", t.ToOfficeID.String()))
		return
	}

	if err := h.repo.CreateTransfer(r.Context(), t); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordTransfer()
	if h.bus != nil {
		_ = h.bus.Publish(r.Context(), events.NewEvent("case", t.CaseID, "case.transferred", t))
	}

	writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) transfersByCase(w http.ResponseWriter, r *http.Request) {
	if appErr := access.RequireStaff(sharedauth.GetActor(r.Context())); appErr != nil {
		writeError(w, appErr)
		return
	}

	caseID, err := types.ParseID(chi.URLParam(r, "caseID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid case id"))
		return
	}

	limit, offset := pageParams(r)
	transfers, total, listErr := h.repo.TransfersByCase(r.Context(), caseID, limit, offset)
	if listErr != nil {
		writeError(w, listErr)
		return
	}
	if transfers == nil {
		transfers = []*Transfer{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transfers": transfers, "total": total})
}

type createAssignmentRequest struct {
	CaseID     string `json:"case_id"`
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
	Reason     string `json:"reason"`
}

func (h *Handler) createAssignment(w http.ResponseWriter, r *http.Request) {
	actor := sharedauth.GetActor(r.Context())
	if appErr := access.RequireStaff(actor); appErr != nil {
		writeError(w, appErr)
		return
	}

	var req createAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	a, appErr := NewAssignment(req.CaseID, req.FromUserID, req.ToUserID, actor.ID, req.Reason)
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	ok, err := h.users.Exists(r.Context(), a.ToUserID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, errors.NotFound("user", a.ToUserID.String()))
		return
	}

	if err := h.repo.CreateAssignment(r.Context(), a); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordAssignment()
	if h.bus != nil {
		_ = h.bus.Publish(r.Context(), events.NewEvent("case", a.CaseID, "case.assigned", a))
	}

	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) assignmentsByCase(w http.ResponseWriter, r *http.Request) {
	if appErr := access.RequireStaff(sharedauth.GetActor(r.Context())); appErr != nil {
		writeError(w, appErr)
		return
	}

	caseID, err := types.ParseID(chi.URLParam(r, "caseID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid case id"))
		return
	}

	limit, offset := pageParams(r)
	assignments, total, listErr := h.repo.AssignmentsByCase(r.Context(), caseID, limit, offset)
	if listErr != nil {
		writeError(w, listErr)
		return
	}
	if assignments == nil {
		assignments = []*Assignment{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"assignments": assignments, "total": total})
}

func pageParams(r *http.Request) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
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

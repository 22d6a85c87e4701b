// Package api exposes case lifecycle operations over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/addis-gov/cas/internal/access"
	"github.com/addis-gov/cas/internal/auth"
	"github.com/addis-gov/cas/internal/case/domain"
	"github.com/addis-gov/cas/internal/shared/errors"
	"github.com/addis-gov/cas/internal/shared/events"
	sharedauth "github.com/addis-gov/cas/internal/shared/auth"
	"github.com/addis-gov/cas/internal/shared/metrics"
	"github.com/addis-gov/cas/internal/shared/types"
)

// OfficeDirectory verifies that a referenced office exists and accepts
// routed cases.
type OfficeDirectory interface {
	Exists(ctx context.Context, id types.ID) (bool, error)
}

// UserDirectory verifies that a referenced citizen exists and is active.
type UserDirectory interface {
	Exists(ctx context.Context, id types.ID) (bool, error)
}

// Handler serves the case endpoints.
type Handler struct {
	repo    domain.Repository
	offices OfficeDirectory
	users   UserDirectory
	bus     events.Publisher
}

// NewHandler creates a case HTTP handler.
func NewHandler(repo domain.Repository, offices OfficeDirectory, users UserDirectory, bus events.Publisher) *Handler {
	return &Handler{repo: repo, offices: offices, users: users, bus: bus}
}

// Routes returns the case router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Patch("/", h.update)
		r.Delete("/", h.delete)
		r.Post("/change_status", h.changeStatus)
		r.Post("/mark_seen", h.markSeen)
		r.Post("/submit_feedback", h.submitFeedback)
		r.Post("/submit_appeal", h.submitAppeal)
		r.Get("/history", h.history)
		r.Get("/feedback", h.listFeedback)
	})

	return r
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor := sharedauth.GetActor(r.Context())
	if appErr := access.RequireAuthenticated(actor); appErr != nil {
		writeError(w, appErr)
		return
	}

	filter, appErr := parseFilter(r)
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	if !access.CanListAllCases(actor) {
		// Citizens only ever see their own cases.
		filter.CitizenID = actor.ID
	}

	cases, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if cases == nil {
		cases = []*domain.Case{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cases":  cases,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

type createCaseRequest struct {
	CitizenID   string   `json:"citizen_id"`
	OfficeID    string   `json:"office_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Attachments []string `json:"attachments"`
	Category    string   `json:"category"`
	Channel     string   `json:"channel"`
	Priority    string   `json:"priority"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor := sharedauth.GetActor(r.Context())
	if appErr := access.RequireAuthenticated(actor); appErr != nil {
		writeError(w, appErr)
		return
	}

	var req createCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	var requested types.ID
	if req.CitizenID != "" {
		id, err := types.ParseID(req.CitizenID)
		if err != nil {
			writeError(w, errors.Validation("invalid case", map[string]string{"citizen_id": "must be a valid id"}))
			return
		}
		requested = id
	}

	var officeID types.ID
	if req.OfficeID != "" {
		id, err := types.ParseID(req.OfficeID)
		if err != nil {
			writeError(w, errors.Validation("invalid case", map[string]string{"office_id": "must be a valid id"}))
			return
		}
		officeID = id
		if err := h.checkOffice(r.Context(), officeID); err != nil {
			writeError(w, err)
			return
		}
	}

	// Citizens always file for themselves, whatever the payload says.
	owner := access.CaseOwner(actor, requested)
	if owner != actor.ID {
		// Staff filing on behalf of a citizen must name a real one.
		if err := h.checkCitizen(r.Context(), owner); err != nil {
			writeError(w, err)
			return
		}
	}

	c, entry, appErr := domain.NewCase(domain.NewCaseInput{
		CitizenID:   owner,
		OfficeID:    officeID,
		Title:       req.Title,
		Description: req.Description,
		Attachments: req.Attachments,
		Category:    domain.Category(req.Category),
		Channel:     domain.Channel(req.Channel),
		Priority:    domain.Priority(req.Priority),
	}, actor.ID)
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	if err := h.repo.Create(r.Context(), c, entry); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordCaseCreated(string(c.Category), string(c.Channel))
	h.publish(r.Context(), c.ID, "case.created", c)

	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	c, _, ok := h.loadCase(w, r, access.ActionRetrieve)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	c, actor, ok := h.loadCase(w, r, access.ActionUpdate)
	if !ok {
		return
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	var appErr *errors.AppError
	if actor.IsCitizen() {
		// Fields outside the citizen allow-list are dropped, not rejected.
		edit := domain.CitizenEdit{
			Title:       stringField(raw, "title"),
			Description: stringField(raw, "description"),
			Attachments: stringsField(raw, "attachments"),
		}
		if ch := stringField(raw, "channel"); ch != nil {
			channel := domain.Channel(*ch)
			edit.Channel = &channel
		}
		appErr = c.ApplyCitizenEdit(edit)
	} else {
		edit := domain.StaffEdit{
			Title:       stringField(raw, "title"),
			Description: stringField(raw, "description"),
			Attachments: stringsField(raw, "attachments"),
		}
		if v := stringField(raw, "category"); v != nil {
			category := domain.Category(*v)
			edit.Category = &category
		}
		if v := stringField(raw, "channel"); v != nil {
			channel := domain.Channel(*v)
			edit.Channel = &channel
		}
		if v := stringField(raw, "priority"); v != nil {
			priority := domain.Priority(*v)
			edit.Priority = &priority
		}
		appErr = c.ApplyStaffEdit(edit)
	}
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	if err := h.repo.Update(r.Context(), c); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	c, actor, ok := h.loadCase(w, r, access.ActionDelete)
	if !ok {
		return
	}

	c.SoftDelete(actor.ID)
	if err := h.repo.Update(r.Context(), c); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type changeStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	c, actor, ok := h.loadCase(w, r, access.ActionChangeStatus)
	if !ok {
		return
	}

	var req changeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	from := c.Status
	entry, appErr := c.ChangeStatus(domain.Status(req.Status), actor.ID)
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	// Same status is a successful idempotent no-op.
	if entry != nil {
		if err := h.repo.UpdateStatus(r.Context(), c, entry); err != nil {
			writeError(w, err)
			return
		}
		metrics.RecordCaseStatusChange(string(from), string(c.Status))
		h.publish(r.Context(), c.ID, "case.status_changed", map[string]interface{}{
			"case_id": c.ID,
			"from":    from,
			"to":      c.Status,
			"by":      actor.ID,
		})
	}

	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) markSeen(w http.ResponseWriter, r *http.Request) {
	c, actor, ok := h.loadCase(w, r, access.ActionMarkSeen)
	if !ok {
		return
	}

	c.MarkSeen(actor.ID)
	if err := h.repo.Update(r.Context(), c); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type submitFeedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *Handler) submitFeedback(w http.ResponseWriter, r *http.Request) {
	c, actor, ok := h.loadCase(w, r, access.ActionSubmitFeedback)
	if !ok {
		return
	}

	var req submitFeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	fb, entry, appErr := c.NewFeedback(actor.ID, req.Rating, req.Comment)
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	if err := h.repo.AddFeedback(r.Context(), fb, entry); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordFeedback(fb.Rating)
	h.publish(r.Context(), c.ID, "case.feedback_received", fb)

	writeJSON(w, http.StatusCreated, fb)
}

type submitAppealRequest struct {
	ToOfficeID string `json:"to_office_id"`
	Reason     string `json:"reason"`
}

func (h *Handler) submitAppeal(w http.ResponseWriter, r *http.Request) {
	c, actor, ok := h.loadCase(w, r, access.ActionSubmitAppeal)
	if !ok {
		return
	}

	var req submitAppealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	var toOffice types.ID
	if req.ToOfficeID != "" {
		id, err := types.ParseID(req.ToOfficeID)
		if err != nil {
			writeError(w, errors.Validation("invalid appeal", map[string]string{"to_office_id": "must be a valid id"}))
			return
		}
		toOffice = id
		if err := h.checkOffice(r.Context(), toOffice); err != nil {
			writeError(w, err)
			return
		}
	}

	appeal, entry, annotation, appErr := c.NewAppeal(actor.ID, toOffice, req.Reason)
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	if err := h.repo.CreateAppeal(r.Context(), appeal, entry, annotation); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordAppeal()
	h.publish(r.Context(), appeal.ID, "case.appeal_filed", map[string]interface{}{
		"appeal_id":   appeal.ID,
		"parent_case": c.ID,
		"by":          actor.ID,
	})

	writeJSON(w, http.StatusCreated, appeal)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	c, _, ok := h.loadCase(w, r, access.ActionRetrieve)
	if !ok {
		return
	}

	entries, err := h.repo.History(r.Context(), c.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []*domain.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": entries})
}

func (h *Handler) listFeedback(w http.ResponseWriter, r *http.Request) {
	c, _, ok := h.loadCase(w, r, access.ActionRetrieve)
	if !ok {
		return
	}

	feedback, err := h.repo.ListFeedback(r.Context(), c.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if feedback == nil {
		feedback = []*domain.Feedback{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"feedback": feedback})
}

// loadCase fetches the case and runs the access policy for the action.
// The policy decides what a denied actor learns: scope-excluded cases
// read as not found.
func (h *Handler) loadCase(w http.ResponseWriter, r *http.Request, action access.Action) (*domain.Case, auth.Actor, bool) {
	actor := sharedauth.GetActor(r.Context())

	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid case id"))
		return nil, actor, false
	}

	c, getErr := h.repo.Get(r.Context(), id)
	if getErr != nil {
		writeError(w, getErr)
		return nil, actor, false
	}

	appErr := access.CanCase(actor, action, access.CaseRef{OwnerID: c.CitizenID, Deleted: c.Deleted()})
	metrics.RecordAuthorizationDecision("case", string(action), appErr == nil)
	if appErr != nil {
		writeError(w, appErr)
		return nil, actor, false
	}

	return c, actor, true
}

func (h *Handler) checkOffice(ctx context.Context, id types.ID) error {
	ok, err := h.offices.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return errors.NotFound("office", id.String())
	}
	return nil
}

func (h *Handler) checkCitizen(ctx context.Context, id types.ID) error {
	ok, err := h.users.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return errors.NotFound("user", id.String())
	}
	return nil
}

func (h *Handler) publish(ctx context.Context, caseID types.ID, eventType string, data interface{}) {
	if h.bus == nil {
		return
	}
	// Streaming is best effort and never fails the request.
	_ = h.bus.Publish(ctx, events.NewEvent("case", caseID, eventType, data))
}

func parseFilter(r *http.Request) (domain.Filter, *errors.AppError) {
	q := r.URL.Query()
	filter := domain.Filter{
		Category: domain.Category(q.Get("category")),
		Status:   domain.Status(q.Get("status")),
		Limit:    20,
	}
	if office := q.Get("office"); office != "" {
		id, err := types.ParseID(office)
		if err != nil {
			return filter, errors.Validation("invalid office filter", map[string]string{"office": "must be a valid id"})
		}
		filter.OfficeID = id
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}
	if v := q.Get("start"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.Start = &t
		}
	}
	if v := q.Get("end"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			end := t.Add(24*time.Hour - time.Nanosecond)
			filter.End = &end
		}
	}
	return filter, nil
}

func stringField(raw map[string]json.RawMessage, key string) *string {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil
	}
	return &s
}

func stringsField(raw map[string]json.RawMessage, key string) []string {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	var s []string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil
	}
	return s
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

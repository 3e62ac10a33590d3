package handler

import (
	"context"
	"net/http"

	"fieldops_backend/internal/tenant"
	"fieldops_backend/internal/visits/domain"
	"fieldops_backend/internal/visits/service"
	"fieldops_backend/internal/visits/transport"
	"fieldops_backend/platform/httpkit"
	"fieldops_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest = "invalid request"
	msgInvalidID      = "invalid id"
)

// Visits is the service surface used by the handler.
type Visits interface {
	Transition(ctx context.Context, tc tenant.Context, visitID uuid.UUID, newStatus string) (*domain.Visit, error)
	TransitionJob(ctx context.Context, tc tenant.Context, jobID uuid.UUID, newStatus string) (*domain.Job, error)
	ListVisits(ctx context.Context, tc tenant.Context, limit int) ([]domain.Visit, error)
	ListJobTimeline(ctx context.Context, accountID, jobID uuid.UUID) ([]domain.TimelineEntry, error)
	AddNote(ctx context.Context, tc tenant.Context, jobID uuid.UUID, body string) (*domain.Note, error)
	LogTime(ctx context.Context, tc tenant.Context, jobID uuid.UUID, minutes int, description string) (*domain.TimeEntry, error)
	AddLineItem(ctx context.Context, tc tenant.Context, jobID uuid.UUID, in service.LineItemInput) (*domain.LineItem, error)
}

// Handler handles HTTP requests for visits and jobs.
type Handler struct {
	svc Visits
	val *validator.Validator
}

// New creates a new visits handler.
func New(svc Visits, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// ListVisits returns the caller's visits, or all visits for admins.
// GET /api/v1/visits
func (h *Handler) ListVisits(c *gin.Context) {
	var req transport.ListVisitsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if httpkit.HandleError(c, h.val.Struct(req)) {
		return
	}
	tc, ok := tenant.MustFromGin(c)
	if !ok {
		return
	}

	visits, err := h.svc.ListVisits(c.Request.Context(), tc, req.Limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.VisitListResponse{Items: visits, Total: len(visits)})
}

// TransitionVisit changes a visit status.
// PATCH /api/v1/visits/:id/status
func (h *Handler) TransitionVisit(c *gin.Context) {
	id, req, tc, ok := h.bindTransition(c)
	if !ok {
		return
	}

	visit, err := h.svc.Transition(c.Request.Context(), tc, id, req.Status)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, visit)
}

// TransitionJob changes a job status.
// PATCH /api/v1/jobs/:id/status
func (h *Handler) TransitionJob(c *gin.Context) {
	id, req, tc, ok := h.bindTransition(c)
	if !ok {
		return
	}

	job, err := h.svc.TransitionJob(c.Request.Context(), tc, id, req.Status)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, job)
}

// Timeline returns the merged job timeline.
// GET /api/v1/jobs/:id/timeline
func (h *Handler) Timeline(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}
	tc, ok := tenant.MustFromGin(c)
	if !ok {
		return
	}

	entries, err := h.svc.ListJobTimeline(c.Request.Context(), tc.AccountID, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToTimelineResponse(id, entries))
}

// AddNote appends a note to a job.
// POST /api/v1/jobs/:id/notes
func (h *Handler) AddNote(c *gin.Context) {
	var req transport.AddNoteRequest
	id, tc, ok := h.bindJobWrite(c, &req)
	if !ok {
		return
	}

	note, err := h.svc.AddNote(c.Request.Context(), tc, id, req.Body)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.ToNoteResponse(*note))
}

// LogTime records time against a job.
// POST /api/v1/jobs/:id/time-entries
func (h *Handler) LogTime(c *gin.Context) {
	var req transport.LogTimeRequest
	id, tc, ok := h.bindJobWrite(c, &req)
	if !ok {
		return
	}

	entry, err := h.svc.LogTime(c.Request.Context(), tc, id, req.Minutes, req.Description)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.ToTimeEntryResponse(*entry))
}

// AddLineItem records a cost against a job.
// POST /api/v1/jobs/:id/line-items
func (h *Handler) AddLineItem(c *gin.Context) {
	var req transport.AddLineItemRequest
	id, tc, ok := h.bindJobWrite(c, &req)
	if !ok {
		return
	}

	item, err := h.svc.AddLineItem(c.Request.Context(), tc, id, service.LineItemInput{
		Description:    req.Description,
		Quantity:       req.Quantity,
		UnitPriceCents: req.UnitPriceCents,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.ToLineItemResponse(*item))
}

func (h *Handler) bindTransition(c *gin.Context) (uuid.UUID, transport.TransitionRequest, tenant.Context, bool) {
	var req transport.TransitionRequest
	id, tc, ok := h.bindJobWrite(c, &req)
	return id, req, tc, ok
}

// bindJobWrite parses :id, binds and validates the JSON body into req and
// resolves the tenant. It writes the error response itself.
func (h *Handler) bindJobWrite(c *gin.Context, req any) (uuid.UUID, tenant.Context, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return uuid.Nil, tenant.Context{}, false
	}
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.Nil, tenant.Context{}, false
	}
	if httpkit.HandleError(c, h.val.Struct(req)) {
		return uuid.Nil, tenant.Context{}, false
	}
	tc, ok := tenant.MustFromGin(c)
	if !ok {
		return uuid.Nil, tenant.Context{}, false
	}
	return id, tc, true
}

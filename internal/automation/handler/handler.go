package handler

import (
	"context"
	"net/http"
	"time"

	"fieldops_backend/internal/automation/domain"
	"fieldops_backend/internal/automation/hooks"
	"fieldops_backend/internal/automation/transport"
	"fieldops_backend/internal/events"
	"fieldops_backend/internal/tenant"
	"fieldops_backend/platform/httpkit"
	"fieldops_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest = "invalid request"
	msgInvalidID      = "invalid id"
	msgEmptyPatch     = "at least one setting is required"
)

// Automations is the service surface used by the handler.
type Automations interface {
	GetAutomation(ctx context.Context, accountID, id uuid.UUID) (*domain.WorkItem, error)
	ListAutomationsWithHistory(ctx context.Context, accountID uuid.UUID, status *domain.Status, limit int) ([]domain.WorkItemWithHistory, error)
	GetAutomationSettings(ctx context.Context, accountID uuid.UUID) (domain.Settings, error)
	UpdateAutomationSettings(ctx context.Context, accountID uuid.UUID, patch domain.Overrides) (domain.Settings, error)
}

// HookRunner re-fires hooks on demand.
type HookRunner interface {
	Fire(ctx context.Context, kind hooks.Kind, accountID, entityID uuid.UUID) (hooks.HookResult, error)
}

// Publisher delivers business events to their subscribers.
type Publisher interface {
	PublishSync(ctx context.Context, event events.Event) error
}

// Handler handles HTTP requests for automations.
type Handler struct {
	svc       Automations
	hooks     HookRunner
	publisher Publisher
	val       *validator.Validator
}

// New creates a new automations handler.
func New(svc Automations, hookRunner HookRunner, publisher Publisher, val *validator.Validator) *Handler {
	return &Handler{svc: svc, hooks: hookRunner, publisher: publisher, val: val}
}

// List returns the account's automations with their history.
// GET /api/v1/automations
func (h *Handler) List(c *gin.Context) {
	var req transport.ListAutomationsRequest
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

	var status *domain.Status
	if req.Status != "" {
		s := domain.Status(req.Status)
		status = &s
	}

	items, err := h.svc.ListAutomationsWithHistory(c.Request.Context(), tc.AccountID, status, req.Limit)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.AutomationListResponse{Items: make([]transport.AutomationResponse, 0, len(items)), Total: len(items)}
	for _, item := range items {
		resp.Items = append(resp.Items, transport.ToAutomationResponse(item.WorkItem, item.History))
	}
	httpkit.OK(c, resp)
}

// Get returns one automation.
// GET /api/v1/automations/:id
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}
	tc, ok := tenant.MustFromGin(c)
	if !ok {
		return
	}

	item, err := h.svc.GetAutomation(c.Request.Context(), tc.AccountID, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToAutomationResponse(*item, nil))
}

// GetSettings returns the merged automation toggles.
// GET /api/v1/automations/settings
func (h *Handler) GetSettings(c *gin.Context) {
	tc, ok := tenant.MustFromGin(c)
	if !ok {
		return
	}

	settings, err := h.svc.GetAutomationSettings(c.Request.Context(), tc.AccountID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, settings)
}

// UpdateSettings patches automation toggles (admin only).
// PATCH /api/v1/admin/automations/settings
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req transport.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if req.Empty() {
		httpkit.Error(c, http.StatusBadRequest, msgEmptyPatch, nil)
		return
	}
	tc, ok := tenant.MustFromGin(c)
	if !ok {
		return
	}

	settings, err := h.svc.UpdateAutomationSettings(c.Request.Context(), tc.AccountID, req.Overrides())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, settings)
}

// FireHook re-runs a trigger hook for one entity (admin only).
// POST /api/v1/admin/automations/hooks/:kind/:id
func (h *Handler) FireHook(c *gin.Context) {
	kind := hooks.Kind(c.Param("kind"))
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}
	tc, ok := tenant.MustFromGin(c)
	if !ok {
		return
	}

	result, err := h.hooks.Fire(c.Request.Context(), kind, tc.AccountID, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToHookResponse(result))
}

// EmitEvent publishes the business event for one entity on the event bus, so
// every subscriber reacts as if the owning system had raised it (admin only).
// POST /api/v1/admin/automations/events/:kind/:id
func (h *Handler) EmitEvent(c *gin.Context) {
	if h.publisher == nil {
		httpkit.Error(c, http.StatusServiceUnavailable, "event bus not configured", nil)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}
	tc, ok := tenant.MustFromGin(c)
	if !ok {
		return
	}

	event, err := hooks.EventFor(hooks.Kind(c.Param("kind")), tc.AccountID, id, time.Now().UTC())
	if httpkit.HandleError(c, err) {
		return
	}
	if httpkit.HandleError(c, h.publisher.PublishSync(c.Request.Context(), event)) {
		return
	}
	c.JSON(http.StatusAccepted, transport.EventResponse{Event: event.EventName(), EntityID: id})
}

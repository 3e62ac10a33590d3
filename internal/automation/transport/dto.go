package transport

import (
	"encoding/json"
	"time"

	"fieldops_backend/internal/automation/domain"
	"fieldops_backend/internal/automation/hooks"

	"github.com/google/uuid"
)

// ListAutomationsRequest are the query parameters of the reporting endpoint.
type ListAutomationsRequest struct {
	Status string `form:"status" validate:"omitempty,oneof=pending processing completed failed"`
	Limit  int    `form:"limit" validate:"omitempty,min=1,max=500"`
}

// UpdateSettingsRequest patches automation toggles. Omitted keys keep their value.
type UpdateSettingsRequest struct {
	EstimateFollowUps *bool `json:"estimate_followups"`
	InvoiceFollowUps  *bool `json:"invoice_followups"`
	JobCloseout       *bool `json:"job_closeout"`
	ReviewRequests    *bool `json:"review_requests"`
	LeadResponse      *bool `json:"lead_response"`
}

// Empty reports whether the patch sets nothing.
func (r UpdateSettingsRequest) Empty() bool {
	return r.EstimateFollowUps == nil && r.InvoiceFollowUps == nil && r.JobCloseout == nil &&
		r.ReviewRequests == nil && r.LeadResponse == nil
}

// Overrides converts the patch to the domain type.
func (r UpdateSettingsRequest) Overrides() domain.Overrides {
	return domain.Overrides{
		EstimateFollowUps: r.EstimateFollowUps,
		InvoiceFollowUps:  r.InvoiceFollowUps,
		JobCloseout:       r.JobCloseout,
		ReviewRequests:    r.ReviewRequests,
		LeadResponse:      r.LeadResponse,
	}
}

// HistoryEntryResponse is one audit entry.
type HistoryEntryResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// AutomationResponse is a work item in API responses.
type AutomationResponse struct {
	ID          uuid.UUID              `json:"id"`
	Type        string                 `json:"type"`
	RelatedID   *uuid.UUID             `json:"relatedId,omitempty"`
	Status      string                 `json:"status"`
	RunAt       time.Time              `json:"runAt"`
	Payload     json.RawMessage        `json:"payload"`
	Attempts    int                    `json:"attempts"`
	LastAttempt *time.Time             `json:"lastAttempt,omitempty"`
	Result      json.RawMessage        `json:"result,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`
	History     []HistoryEntryResponse `json:"history,omitempty"`
}

// AutomationListResponse wraps the reporting list.
type AutomationListResponse struct {
	Items []AutomationResponse `json:"items"`
	Total int                  `json:"total"`
}

// HookResponse reports a manual hook run.
type HookResponse struct {
	Outcome string               `json:"outcome"`
	Reason  string               `json:"reason,omitempty"`
	Items   []AutomationResponse `json:"items"`
}

// EventResponse acknowledges an emitted business event.
type EventResponse struct {
	Event    string    `json:"event"`
	EntityID uuid.UUID `json:"entityId"`
}

// ToAutomationResponse maps a work item.
func ToAutomationResponse(item domain.WorkItem, history []domain.HistoryEntry) AutomationResponse {
	resp := AutomationResponse{
		ID:          item.ID,
		Type:        string(item.Type),
		RelatedID:   item.RelatedID,
		Status:      string(item.Status),
		RunAt:       item.RunAt,
		Payload:     item.Payload,
		Attempts:    item.Attempts,
		LastAttempt: item.LastAttempt,
		Result:      item.Result,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
	for _, h := range history {
		resp.History = append(resp.History, HistoryEntryResponse{
			Status:    string(h.Status),
			Message:   h.Message,
			CreatedAt: h.CreatedAt,
		})
	}
	return resp
}

// ToHookResponse maps a hook result.
func ToHookResponse(result hooks.HookResult) HookResponse {
	resp := HookResponse{
		Outcome: string(result.Outcome),
		Reason:  result.Reason,
		Items:   make([]AutomationResponse, 0, len(result.Items)),
	}
	for _, item := range result.Items {
		resp.Items = append(resp.Items, ToAutomationResponse(item, nil))
	}
	return resp
}

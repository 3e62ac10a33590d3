// Package domain holds the automation work item model and its state machine.
package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type is the kind of follow-up a work item produces.
type Type string

const (
	TypeEstimateFollowUp Type = "estimate_followup"
	TypeInvoiceFollowUp  Type = "invoice_followup"
	TypeJobCloseout      Type = "job_closeout"
	TypeReviewRequest    Type = "review_request"
	TypeLeadResponse     Type = "lead_response"
)

// AllTypes lists every automation type in a stable order.
var AllTypes = []Type{
	TypeEstimateFollowUp,
	TypeInvoiceFollowUp,
	TypeJobCloseout,
	TypeReviewRequest,
	TypeLeadResponse,
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseType validates raw as an automation type.
func ParseType(raw string) (Type, error) {
	t := Type(raw)
	if !t.Valid() {
		return "", fmt.Errorf("unknown automation type %q", raw)
	}
	return t, nil
}

// Status is the lifecycle state of a work item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanFinishAs reports whether an item in s may be finished with target.
// Only completed and failed are finishing states, and terminal items stay put.
func (s Status) CanFinishAs(target Status) bool {
	if target != StatusCompleted && target != StatusFailed {
		return false
	}
	return !s.IsTerminal()
}

// History messages written by the scheduler itself.
const (
	MessageScheduled = "Automation scheduled"
	MessageClaimed   = "Picked up by scheduler"
	MessageTimedOut  = "Processing timed out"
)

// WorkItem is one durable, claimable unit of deferred work.
type WorkItem struct {
	ID          uuid.UUID       `json:"id"`
	AccountID   uuid.UUID       `json:"accountId"`
	Type        Type            `json:"type"`
	RelatedID   *uuid.UUID      `json:"relatedId,omitempty"`
	Status      Status          `json:"status"`
	RunAt       time.Time       `json:"runAt"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"`
	LastAttempt *time.Time      `json:"lastAttempt,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// PayloadMap decodes the payload snapshot.
func (w *WorkItem) PayloadMap() (map[string]any, error) {
	snapshot := map[string]any{}
	if len(w.Payload) == 0 {
		return snapshot, nil
	}
	if err := json.Unmarshal(w.Payload, &snapshot); err != nil {
		return nil, fmt.Errorf("decode automation payload: %w", err)
	}
	return snapshot, nil
}

// HistoryEntry is one append-only audit record of a work item.
type HistoryEntry struct {
	ID           uuid.UUID `json:"id"`
	AutomationID uuid.UUID `json:"automationId"`
	Status       Status    `json:"status"`
	Message      string    `json:"message"`
	CreatedAt    time.Time `json:"createdAt"`
}

// WorkItemWithHistory is the reporting view of a work item.
type WorkItemWithHistory struct {
	WorkItem
	History []HistoryEntry `json:"history"`
}

// Key is the idempotency key of a work item within one account.
type Key struct {
	Type      Type
	RelatedID *uuid.UUID
	RunAt     time.Time
}

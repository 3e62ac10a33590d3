// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"fieldops_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// Event names. Hooks subscribe by these strings.
const (
	EstimateSentName  = "sales.estimate.sent"
	InvoiceIssuedName = "billing.invoice.issued"
	JobCompletedName  = "jobs.job.completed"
	LeadCreatedName   = "leads.lead.created"
)

// =============================================================================
// Sales / Billing Events
// =============================================================================

// EstimateSent is published when an estimate is sent to the customer.
type EstimateSent struct {
	BaseEvent
	AccountID  uuid.UUID `json:"accountId"`
	EstimateID uuid.UUID `json:"estimateId"`
}

func (e EstimateSent) EventName() string { return EstimateSentName }

// InvoiceIssued is published when an invoice is issued.
type InvoiceIssued struct {
	BaseEvent
	AccountID uuid.UUID `json:"accountId"`
	InvoiceID uuid.UUID `json:"invoiceId"`
}

func (e InvoiceIssued) EventName() string { return InvoiceIssuedName }

// =============================================================================
// Jobs Events
// =============================================================================

// JobCompleted is published after a job transitions to completed.
type JobCompleted struct {
	BaseEvent
	AccountID   uuid.UUID `json:"accountId"`
	JobID       uuid.UUID `json:"jobId"`
	CompletedBy uuid.UUID `json:"completedBy"`
	CompletedAt time.Time `json:"completedAt"`
}

func (e JobCompleted) EventName() string { return JobCompletedName }

// =============================================================================
// Leads Events
// =============================================================================

// LeadCreated is published when a new lead is captured.
type LeadCreated struct {
	BaseEvent
	AccountID uuid.UUID `json:"accountId"`
	LeadID    uuid.UUID `json:"leadId"`
	Source    string    `json:"source,omitempty"`
}

func (e LeadCreated) EventName() string { return LeadCreatedName }

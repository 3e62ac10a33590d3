// Package hooks turns business events into scheduled automation work. Each
// hook reads one entity, computes the run times and delegates to the scheduler.
package hooks

import (
	"context"
	"fmt"
	"time"

	"fieldops_backend/internal/automation/domain"
	"fieldops_backend/internal/automation/service"
	"fieldops_backend/platform/apperr"
	"fieldops_backend/platform/logger"
	"fieldops_backend/platform/phone"

	"github.com/google/uuid"
)

const (
	estimateFollowUpDelay = 48 * time.Hour
	jobCloseoutDelay      = time.Hour
	reviewRequestDelay    = 24 * time.Hour
)

// invoiceSequenceDays are the follow-up offsets from the invoice issue date.
var invoiceSequenceDays = []int{3, 7, 14, 30}

// Outcome tags what a hook did. Only genuine failures are errors.
type Outcome string

const (
	OutcomeScheduled Outcome = "scheduled"
	OutcomeNotFound  Outcome = "not_found"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeDisabled  Outcome = "disabled"
)

// HookResult is returned by every hook.
type HookResult struct {
	Outcome Outcome           `json:"outcome"`
	Reason  string            `json:"reason,omitempty"`
	Items   []domain.WorkItem `json:"items"`
}

// Scheduler is the part of the automation service hooks depend on.
type Scheduler interface {
	Schedule(ctx context.Context, p service.ScheduleParams) (service.ScheduleResult, error)
}

// EntityReader fetches the source entities. Missing entities are apperr NotFound.
type EntityReader interface {
	GetEstimate(ctx context.Context, accountID, estimateID uuid.UUID) (domain.Estimate, error)
	GetInvoiceWithRelations(ctx context.Context, accountID, invoiceID uuid.UUID) (domain.Invoice, error)
	GetJob(ctx context.Context, accountID, jobID uuid.UUID) (domain.Job, error)
	GetLead(ctx context.Context, accountID, leadID uuid.UUID) (domain.Lead, error)
}

// Hooks schedules follow-ups for estimates, invoices, jobs and leads.
type Hooks struct {
	scheduler   Scheduler
	entities    EntityReader
	log         *logger.Logger
	now         func() time.Time
	phoneRegion string
}

// Option customizes Hooks.
type Option func(*Hooks)

// WithClock replaces time.Now; used by tests.
func WithClock(now func() time.Time) Option {
	return func(h *Hooks) { h.now = now }
}

// WithPhoneRegion sets the region used to normalize national lead phone numbers.
func WithPhoneRegion(region string) Option {
	return func(h *Hooks) { h.phoneRegion = region }
}

// New creates the hooks.
func New(scheduler Scheduler, entities EntityReader, log *logger.Logger, opts ...Option) *Hooks {
	h := &Hooks{
		scheduler: scheduler,
		entities:  entities,
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ScheduleEstimateFollowUp schedules one follow-up 48 hours after the
// estimate was sent, or after now when it has no send stamp.
func (h *Hooks) ScheduleEstimateFollowUp(ctx context.Context, accountID, estimateID uuid.UUID) (HookResult, error) {
	estimate, err := h.entities.GetEstimate(ctx, accountID, estimateID)
	if result, done, err := h.lookupOutcome(ctx, "estimate", estimateID, err); done {
		return result, err
	}

	anchor := h.now()
	if estimate.SentAt != nil {
		anchor = *estimate.SentAt
	}

	plan := []planned{{
		Type:  domain.TypeEstimateFollowUp,
		RunAt: anchor.Add(estimateFollowUpDelay),
		Payload: map[string]any{
			"estimate_id":     estimate.ID,
			"estimate_number": estimate.Number,
			"status":          estimate.Status,
			"sent_at":         estimate.SentAt,
			"customer_name":   estimate.CustomerName,
		},
	}}
	return h.schedule(ctx, accountID, estimate.ID, plan)
}

// ScheduleInvoiceFollowUps schedules the escalating reminder sequence for an
// unpaid invoice. Paid or void invoices are skipped.
func (h *Hooks) ScheduleInvoiceFollowUps(ctx context.Context, accountID, invoiceID uuid.UUID) (HookResult, error) {
	invoice, err := h.entities.GetInvoiceWithRelations(ctx, accountID, invoiceID)
	if result, done, err := h.lookupOutcome(ctx, "invoice", invoiceID, err); done {
		return result, err
	}
	if invoice.Settled() {
		return HookResult{Outcome: OutcomeSkipped, Reason: "invoice_" + invoice.Status}, nil
	}

	issued := invoice.IssueDate()
	plan := make([]planned, 0, len(invoiceSequenceDays))
	for _, days := range invoiceSequenceDays {
		plan = append(plan, planned{
			Type:  domain.TypeInvoiceFollowUp,
			RunAt: issued.AddDate(0, 0, days),
			Payload: map[string]any{
				"invoice_id":     invoice.ID,
				"invoice_number": invoice.Number,
				"status":         invoice.Status,
				"issued_at":      issued,
				"due_at":         invoice.DueAt,
				"customer_name":  invoice.CustomerName,
				"job_number":     invoice.JobNumber,
				"sequence_days":  days,
			},
		})
	}
	return h.schedule(ctx, accountID, invoice.ID, plan)
}

// ScheduleJobCompletion schedules the closeout summary and the review
// request for a completed job.
func (h *Hooks) ScheduleJobCompletion(ctx context.Context, accountID, jobID uuid.UUID) (HookResult, error) {
	job, err := h.entities.GetJob(ctx, accountID, jobID)
	if result, done, err := h.lookupOutcome(ctx, "job", jobID, err); done {
		return result, err
	}
	if job.Status != "completed" {
		return HookResult{Outcome: OutcomeSkipped, Reason: "job_" + job.Status}, nil
	}

	snapshot := map[string]any{
		"job_id":        job.ID,
		"job_number":    job.Number,
		"title":         job.Title,
		"status":        job.Status,
		"completed_at":  job.UpdatedAt,
		"customer_name": job.CustomerName,
	}
	plan := []planned{
		{Type: domain.TypeJobCloseout, RunAt: job.UpdatedAt.Add(jobCloseoutDelay), Payload: snapshot},
		{Type: domain.TypeReviewRequest, RunAt: job.UpdatedAt.Add(reviewRequestDelay), Payload: snapshot},
	}
	return h.schedule(ctx, accountID, job.ID, plan)
}

// ScheduleLeadResponse schedules an immediate reply to a new lead.
func (h *Hooks) ScheduleLeadResponse(ctx context.Context, accountID, leadID uuid.UUID) (HookResult, error) {
	lead, err := h.entities.GetLead(ctx, accountID, leadID)
	if result, done, err := h.lookupOutcome(ctx, "lead", leadID, err); done {
		return result, err
	}

	// Unparseable numbers are kept as typed.
	contactPhone, _ := phone.NormalizeE164(lead.Phone, h.phoneRegion)

	plan := []planned{{
		Type:  domain.TypeLeadResponse,
		RunAt: lead.CreatedAt,
		Payload: map[string]any{
			"lead_id": lead.ID,
			"name":    lead.Name,
			"email":   lead.Email,
			"phone":   contactPhone,
			"source":  lead.Source,
			"message": lead.Message,
		},
	}}
	return h.schedule(ctx, accountID, lead.ID, plan)
}

// Kind names a hook for manual re-firing.
type Kind string

const (
	KindEstimate Kind = "estimate"
	KindInvoice  Kind = "invoice"
	KindJob      Kind = "job"
	KindLead     Kind = "lead"
)

// Fire runs the hook named by kind against entityID.
func (h *Hooks) Fire(ctx context.Context, kind Kind, accountID, entityID uuid.UUID) (HookResult, error) {
	switch kind {
	case KindEstimate:
		return h.ScheduleEstimateFollowUp(ctx, accountID, entityID)
	case KindInvoice:
		return h.ScheduleInvoiceFollowUps(ctx, accountID, entityID)
	case KindJob:
		return h.ScheduleJobCompletion(ctx, accountID, entityID)
	case KindLead:
		return h.ScheduleLeadResponse(ctx, accountID, entityID)
	default:
		return HookResult{}, apperr.BadRequest(fmt.Sprintf("unknown hook kind %q", kind))
	}
}

type planned struct {
	Type    domain.Type
	RunAt   time.Time
	Payload map[string]any
}

// lookupOutcome converts a NotFound from the entity reader into a tagged result.
func (h *Hooks) lookupOutcome(ctx context.Context, entity string, id uuid.UUID, err error) (HookResult, bool, error) {
	if err == nil {
		return HookResult{}, false, nil
	}
	if apperr.Is(err, apperr.KindNotFound) {
		h.log.WithContext(ctx).Debug("automation hook source not found", "entity", entity, "id", id)
		return HookResult{Outcome: OutcomeNotFound}, true, nil
	}
	return HookResult{}, true, fmt.Errorf("load %s for automation hook: %w", entity, err)
}

func (h *Hooks) schedule(ctx context.Context, accountID, relatedID uuid.UUID, plan []planned) (HookResult, error) {
	result := HookResult{Outcome: OutcomeDisabled, Items: make([]domain.WorkItem, 0, len(plan))}
	for _, p := range plan {
		scheduled, err := h.scheduler.Schedule(ctx, service.ScheduleParams{
			AccountID: accountID,
			Type:      p.Type,
			RelatedID: &relatedID,
			RunAt:     p.RunAt,
			Payload:   p.Payload,
		})
		if err != nil {
			return HookResult{}, err
		}
		if scheduled.Item != nil {
			result.Outcome = OutcomeScheduled
			result.Items = append(result.Items, *scheduled.Item)
		}
	}
	return result, nil
}

// Package processor runs one claimed work item: re-check, generate, finish.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fieldops_backend/internal/automation/domain"
	"fieldops_backend/internal/automation/generator"
	"fieldops_backend/platform/apperr"
	"fieldops_backend/platform/logger"
	"fieldops_backend/platform/telemetry"

	"github.com/google/uuid"
)

const (
	defaultGenerationTimeout = 45 * time.Second
	messageGenerated         = "Message generated"
	messageInvoiceSettled    = "Invoice settled before follow-up"
	messageInvoiceGone       = "Invoice no longer exists"
)

// Automations is the scheduler surface the processor drives.
type Automations interface {
	GetAutomation(ctx context.Context, accountID, id uuid.UUID) (*domain.WorkItem, error)
	ClaimAutomation(ctx context.Context, item *domain.WorkItem) (*domain.WorkItem, error)
	UpdateAutomationStatus(ctx context.Context, accountID, id uuid.UUID, status domain.Status, result any, message string) error
}

// InvoiceReader re-reads invoices right before a follow-up is generated.
type InvoiceReader interface {
	GetInvoiceWithRelations(ctx context.Context, accountID, invoiceID uuid.UUID) (domain.Invoice, error)
}

// Outcome reports what Process did with the item.
type Outcome string

const (
	OutcomeCompleted  Outcome = "completed"
	OutcomeFailed     Outcome = "failed"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeNotPending Outcome = "not_pending"
	OutcomeClaimLost  Outcome = "claim_lost"
)

// Processor turns a due work item into a generated message.
type Processor struct {
	automations Automations
	invoices    InvoiceReader
	generator   generator.Generator
	timeout     time.Duration
	log         *logger.Logger
}

// New creates a processor. A non-positive timeout falls back to 45s.
func New(automations Automations, invoices InvoiceReader, gen generator.Generator, timeout time.Duration, log *logger.Logger) *Processor {
	if timeout <= 0 {
		timeout = defaultGenerationTimeout
	}
	return &Processor{
		automations: automations,
		invoices:    invoices,
		generator:   gen,
		timeout:     timeout,
		log:         log,
	}
}

type completedResult struct {
	Message string      `json:"message"`
	Kind    domain.Type `json:"kind"`
}

type skippedResult struct {
	Skipped string `json:"skipped"`
}

type failedResult struct {
	Error string `json:"error"`
}

// Process claims and runs one item. Only infrastructure failures are returned
// as errors; generation failures are recorded on the item.
func (p *Processor) Process(ctx context.Context, accountID, automationID uuid.UUID) (Outcome, error) {
	item, err := p.automations.GetAutomation(ctx, accountID, automationID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return OutcomeNotPending, nil
		}
		return "", err
	}
	if item.Status != domain.StatusPending {
		return OutcomeNotPending, nil
	}

	claimed, err := p.automations.ClaimAutomation(ctx, item)
	if err != nil {
		return "", err
	}
	if claimed == nil {
		return OutcomeClaimLost, nil
	}

	// Status writes after the claim must land even when the task context is done.
	settle := context.WithoutCancel(ctx)

	if claimed.Type == domain.TypeInvoiceFollowUp && claimed.RelatedID != nil {
		outcome, done, err := p.recheckInvoice(ctx, settle, claimed)
		if done || err != nil {
			return outcome, err
		}
	}

	snapshot, err := claimed.PayloadMap()
	if err != nil {
		return p.fail(settle, claimed, err)
	}

	genCtx, cancel := context.WithTimeout(ctx, p.timeout)
	started := time.Now()
	text, genErr := p.generator.Generate(genCtx, claimed.Type, snapshot)
	cancel()

	if genErr != nil {
		telemetry.GenerationDuration.WithLabelValues(string(claimed.Type), "error").Observe(time.Since(started).Seconds())
		switch {
		case ctx.Err() != nil:
			genErr = &generator.GenerationError{Kind: claimed.Type, Err: fmt.Errorf("task aborted: %w", ctx.Err())}
		case errors.Is(genErr, context.DeadlineExceeded):
			genErr = &generator.GenerationError{Kind: claimed.Type, Err: fmt.Errorf("timed out after %s", p.timeout)}
		}
		return p.fail(settle, claimed, genErr)
	}
	telemetry.GenerationDuration.WithLabelValues(string(claimed.Type), "ok").Observe(time.Since(started).Seconds())

	if err := p.automations.UpdateAutomationStatus(settle, accountID, claimed.ID, domain.StatusCompleted,
		completedResult{Message: text, Kind: claimed.Type}, messageGenerated); err != nil {
		return "", err
	}
	return OutcomeCompleted, nil
}

// recheckInvoice completes the item without a message when the invoice was
// paid, voided or removed after the follow-up was scheduled. Reads use ctx;
// status writes use settle.
func (p *Processor) recheckInvoice(ctx, settle context.Context, item *domain.WorkItem) (Outcome, bool, error) {
	invoice, err := p.invoices.GetInvoiceWithRelations(ctx, item.AccountID, *item.RelatedID)
	switch {
	case apperr.Is(err, apperr.KindNotFound):
		return p.skip(settle, item, "invoice_not_found", messageInvoiceGone)
	case err != nil:
		outcome, failErr := p.fail(settle, item, fmt.Errorf("re-check invoice: %w", err))
		return outcome, true, failErr
	case invoice.Settled():
		return p.skip(settle, item, "invoice_settled", messageInvoiceSettled)
	}
	return "", false, nil
}

func (p *Processor) skip(ctx context.Context, item *domain.WorkItem, reason, message string) (Outcome, bool, error) {
	if err := p.automations.UpdateAutomationStatus(ctx, item.AccountID, item.ID, domain.StatusCompleted,
		skippedResult{Skipped: reason}, message); err != nil {
		return "", true, err
	}
	return OutcomeSkipped, true, nil
}

func (p *Processor) fail(ctx context.Context, item *domain.WorkItem, cause error) (Outcome, error) {
	p.log.WithContext(ctx).Warn("automation generation failed",
		"automation_id", item.ID,
		"account_id", item.AccountID,
		"type", item.Type,
		"error", cause,
	)
	if err := p.automations.UpdateAutomationStatus(ctx, item.AccountID, item.ID, domain.StatusFailed,
		failedResult{Error: cause.Error()}, cause.Error()); err != nil {
		return "", err
	}
	return OutcomeFailed, nil
}

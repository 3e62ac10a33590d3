package repository

import (
	"context"
	"errors"
	"fmt"

	"fieldops_backend/internal/automation/domain"
	"fieldops_backend/internal/tenant"
	"fieldops_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	getEstimateQuery = `
		SELECT e.id, e.number, e.status, e.sent_at, COALESCE(c.name, '')
		FROM estimates e
		LEFT JOIN customers c ON c.id = e.customer_id AND c.account_id = e.account_id
		WHERE e.account_id = $1 AND e.id = $2`

	getInvoiceWithRelationsQuery = `
		SELECT i.id, i.number, i.status, i.issued_at, i.due_at, i.created_at,
			COALESCE(c.name, ''), COALESCE(j.number, '')
		FROM invoices i
		LEFT JOIN customers c ON c.id = i.customer_id AND c.account_id = i.account_id
		LEFT JOIN jobs j ON j.id = i.job_id AND j.account_id = i.account_id
		WHERE i.account_id = $1 AND i.id = $2`

	getJobQuery = `
		SELECT j.id, j.number, j.title, j.status, j.updated_at, COALESCE(c.name, '')
		FROM jobs j
		LEFT JOIN customers c ON c.id = j.customer_id AND c.account_id = j.account_id
		WHERE j.account_id = $1 AND j.id = $2`

	getLeadQuery = `
		SELECT id, name, COALESCE(email, ''), COALESCE(phone, ''), source, COALESCE(message, ''), created_at
		FROM leads
		WHERE account_id = $1 AND id = $2`
)

// EntityReader loads the source entities of automation hooks, scoped to one account.
type EntityReader struct {
	repo *Repository
}

// Entities returns the tenant-scoped entity reader backed by the same pool.
func (r *Repository) Entities() *EntityReader {
	return &EntityReader{repo: r}
}

// GetEstimate returns the estimate or an apperr not-found error.
func (e *EntityReader) GetEstimate(ctx context.Context, accountID, estimateID uuid.UUID) (domain.Estimate, error) {
	if err := tenant.RequireAccount(accountID); err != nil {
		return domain.Estimate{}, err
	}

	var est domain.Estimate
	err := e.repo.pool.QueryRow(ctx, getEstimateQuery, accountID, estimateID).Scan(
		&est.ID, &est.Number, &est.Status, &est.SentAt, &est.CustomerName,
	)
	if err != nil {
		return domain.Estimate{}, notFoundOr(err, "estimate not found", "failed to get estimate")
	}
	return est, nil
}

// GetInvoiceWithRelations returns the invoice with its customer and job labels.
func (e *EntityReader) GetInvoiceWithRelations(ctx context.Context, accountID, invoiceID uuid.UUID) (domain.Invoice, error) {
	if err := tenant.RequireAccount(accountID); err != nil {
		return domain.Invoice{}, err
	}

	var inv domain.Invoice
	err := e.repo.pool.QueryRow(ctx, getInvoiceWithRelationsQuery, accountID, invoiceID).Scan(
		&inv.ID, &inv.Number, &inv.Status, &inv.IssuedAt, &inv.DueAt, &inv.CreatedAt,
		&inv.CustomerName, &inv.JobNumber,
	)
	if err != nil {
		return domain.Invoice{}, notFoundOr(err, "invoice not found", "failed to get invoice")
	}
	return inv, nil
}

// GetJob returns the job or an apperr not-found error.
func (e *EntityReader) GetJob(ctx context.Context, accountID, jobID uuid.UUID) (domain.Job, error) {
	if err := tenant.RequireAccount(accountID); err != nil {
		return domain.Job{}, err
	}

	var job domain.Job
	err := e.repo.pool.QueryRow(ctx, getJobQuery, accountID, jobID).Scan(
		&job.ID, &job.Number, &job.Title, &job.Status, &job.UpdatedAt, &job.CustomerName,
	)
	if err != nil {
		return domain.Job{}, notFoundOr(err, "job not found", "failed to get job")
	}
	return job, nil
}

// GetLead returns the lead or an apperr not-found error.
func (e *EntityReader) GetLead(ctx context.Context, accountID, leadID uuid.UUID) (domain.Lead, error) {
	if err := tenant.RequireAccount(accountID); err != nil {
		return domain.Lead{}, err
	}

	var lead domain.Lead
	err := e.repo.pool.QueryRow(ctx, getLeadQuery, accountID, leadID).Scan(
		&lead.ID, &lead.Name, &lead.Email, &lead.Phone, &lead.Source, &lead.Message, &lead.CreatedAt,
	)
	if err != nil {
		return domain.Lead{}, notFoundOr(err, "lead not found", "failed to get lead")
	}
	return lead, nil
}

func notFoundOr(err error, notFoundMsg, wrapMsg string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(notFoundMsg)
	}
	return fmt.Errorf("%s: %w", wrapMsg, err)
}

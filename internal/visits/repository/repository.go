// Package repository persists visits, jobs and the three job timeline streams.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fieldops_backend/internal/tenant"
	"fieldops_backend/internal/visits/domain"
	"fieldops_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	visitNotFoundMsg = "visit not found"
	jobNotFoundMsg   = "job not found"
)

// Repository provides database operations for visits and jobs.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new visits repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TransitionParams describes one conditional status change and the note
// recording it.
type TransitionParams struct {
	AccountID uuid.UUID
	ID        uuid.UUID
	From      domain.Status
	To        domain.Status
	At        time.Time
	ActorID   uuid.UUID
	NoteBody  string
}

// GetVisit returns the visit or an apperr not-found error.
func (r *Repository) GetVisit(ctx context.Context, accountID, visitID uuid.UUID) (*domain.Visit, error) {
	if err := tenant.RequireAccount(accountID); err != nil {
		return nil, err
	}

	visit, err := scanVisit(r.pool.QueryRow(ctx, getVisitQuery, accountID, visitID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(visitNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get visit: %w", err)
	}
	return visit, nil
}

// ListVisits lists visits, optionally only those of one technician.
func (r *Repository) ListVisits(ctx context.Context, accountID uuid.UUID, technicianID *uuid.UUID, limit int) ([]domain.Visit, error) {
	if err := tenant.RequireAccount(accountID); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, listVisitsQuery, accountID, technicianID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list visits: %w", err)
	}
	defer rows.Close()

	visits := make([]domain.Visit, 0)
	for rows.Next() {
		visit, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		visits = append(visits, *visit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate visits: %w", err)
	}
	return visits, nil
}

// TransitionVisit moves the visit from p.From to p.To and appends the
// status-change note to its job in one transaction. It returns nil when the
// visit was no longer in p.From.
func (r *Repository) TransitionVisit(ctx context.Context, p TransitionParams) (visit *domain.Visit, err error) {
	if err := tenant.RequireAccount(p.AccountID); err != nil {
		return nil, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	visit, err = scanVisit(tx.QueryRow(ctx, transitionVisitQuery, p.AccountID, p.ID, string(p.From), string(p.To), p.At))
	if errors.Is(err, pgx.ErrNoRows) {
		err = nil
		_ = tx.Rollback(ctx)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update visit status: %w", err)
	}

	if _, err = tx.Exec(ctx, insertNoteQuery, p.AccountID, visit.JobID, p.ActorID, string(domain.NoteKindStatusChange), p.NoteBody, p.At); err != nil {
		return nil, fmt.Errorf("failed to append status note: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return visit, nil
}

// GetJob returns the job or an apperr not-found error.
func (r *Repository) GetJob(ctx context.Context, accountID, jobID uuid.UUID) (*domain.Job, error) {
	if err := tenant.RequireAccount(accountID); err != nil {
		return nil, err
	}

	job, err := scanJob(r.pool.QueryRow(ctx, getJobQuery, accountID, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(jobNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// TransitionJob is TransitionVisit for jobs.
func (r *Repository) TransitionJob(ctx context.Context, p TransitionParams) (job *domain.Job, err error) {
	if err := tenant.RequireAccount(p.AccountID); err != nil {
		return nil, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	job, err = scanJob(tx.QueryRow(ctx, transitionJobQuery, p.AccountID, p.ID, string(p.From), string(p.To), p.At))
	if errors.Is(err, pgx.ErrNoRows) {
		err = nil
		_ = tx.Rollback(ctx)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update job status: %w", err)
	}

	if _, err = tx.Exec(ctx, insertNoteQuery, p.AccountID, job.ID, p.ActorID, string(domain.NoteKindStatusChange), p.NoteBody, p.At); err != nil {
		return nil, fmt.Errorf("failed to append status note: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return job, nil
}

func scanVisit(row pgx.Row) (*domain.Visit, error) {
	var v domain.Visit
	var status string
	if err := row.Scan(
		&v.ID, &v.AccountID, &v.JobID, &v.TechnicianID, &status,
		&v.ScheduledFor, &v.StartAt, &v.EndAt, &v.Notes, &v.CreatedAt, &v.UpdatedAt,
	); err != nil {
		return nil, err
	}
	v.Status = domain.Status(status)
	return &v, nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var j domain.Job
	var status string
	if err := row.Scan(
		&j.ID, &j.AccountID, &j.Number, &j.Title, &status,
		&j.TechnicianID, &j.CustomerID, &j.CreatedAt, &j.UpdatedAt,
	); err != nil {
		return nil, err
	}
	j.Status = domain.Status(status)
	return &j, nil
}

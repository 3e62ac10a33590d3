package repository

import (
	"context"
	"errors"
	"fmt"

	"fieldops_backend/internal/tenant"
	"fieldops_backend/internal/visits/domain"
	"fieldops_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// InsertNote appends a note to the job's notes stream.
func (r *Repository) InsertNote(ctx context.Context, accountID uuid.UUID, note domain.Note) (*domain.Note, error) {
	if err := tenant.RequireAccount(accountID); err != nil {
		return nil, err
	}

	var n domain.Note
	var kind string
	err := r.pool.QueryRow(ctx, insertNoteQuery, accountID, note.JobID, note.AuthorID, string(note.Kind), note.Body, note.CreatedAt).
		Scan(&n.ID, &n.JobID, &n.AuthorID, &kind, &n.Body, &n.CreatedAt)
	if err != nil {
		return nil, jobWriteErr(err, "failed to insert note")
	}
	n.Kind = domain.NoteKind(kind)
	return &n, nil
}

// InsertTimeEntry appends to the job's time stream.
func (r *Repository) InsertTimeEntry(ctx context.Context, accountID uuid.UUID, entry domain.TimeEntry) (*domain.TimeEntry, error) {
	if err := tenant.RequireAccount(accountID); err != nil {
		return nil, err
	}

	var e domain.TimeEntry
	err := r.pool.QueryRow(ctx, insertTimeEntryQuery, accountID, entry.JobID, entry.TechnicianID, entry.Minutes, entry.Description, entry.CreatedAt).
		Scan(&e.ID, &e.JobID, &e.TechnicianID, &e.Minutes, &e.Description, &e.CreatedAt)
	if err != nil {
		return nil, jobWriteErr(err, "failed to insert time entry")
	}
	return &e, nil
}

// InsertLineItem appends to the job's cost stream.
func (r *Repository) InsertLineItem(ctx context.Context, accountID uuid.UUID, item domain.LineItem) (*domain.LineItem, error) {
	if err := tenant.RequireAccount(accountID); err != nil {
		return nil, err
	}

	var li domain.LineItem
	err := r.pool.QueryRow(ctx, insertLineItemQuery, accountID, item.JobID, item.Description, item.Quantity, item.UnitPriceCents, item.CreatedBy, item.CreatedAt).
		Scan(&li.ID, &li.JobID, &li.Description, &li.Quantity, &li.UnitPriceCents, &li.CreatedBy, &li.CreatedAt)
	if err != nil {
		return nil, jobWriteErr(err, "failed to insert line item")
	}
	return &li, nil
}

// ListTimelineStreams reads the three streams of one job.
func (r *Repository) ListTimelineStreams(ctx context.Context, accountID, jobID uuid.UUID) ([]domain.Note, []domain.TimeEntry, []domain.LineItem, error) {
	if err := tenant.RequireAccount(accountID); err != nil {
		return nil, nil, nil, err
	}

	notes, err := collect(ctx, r, listNotesQuery, accountID, jobID, func(row pgx.Rows) (domain.Note, error) {
		var n domain.Note
		var kind string
		err := row.Scan(&n.ID, &n.JobID, &n.AuthorID, &kind, &n.Body, &n.CreatedAt)
		n.Kind = domain.NoteKind(kind)
		return n, err
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to list notes: %w", err)
	}

	entries, err := collect(ctx, r, listTimeEntriesQuery, accountID, jobID, func(row pgx.Rows) (domain.TimeEntry, error) {
		var e domain.TimeEntry
		err := row.Scan(&e.ID, &e.JobID, &e.TechnicianID, &e.Minutes, &e.Description, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to list time entries: %w", err)
	}

	items, err := collect(ctx, r, listLineItemsQuery, accountID, jobID, func(row pgx.Rows) (domain.LineItem, error) {
		var li domain.LineItem
		err := row.Scan(&li.ID, &li.JobID, &li.Description, &li.Quantity, &li.UnitPriceCents, &li.CreatedBy, &li.CreatedAt)
		return li, err
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to list line items: %w", err)
	}

	return notes, entries, items, nil
}

func collect[T any](ctx context.Context, r *Repository, query string, accountID, jobID uuid.UUID, scan func(pgx.Rows) (T, error)) ([]T, error) {
	rows, err := r.pool.Query(ctx, query, accountID, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func jobWriteErr(err error, msg string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(jobNotFoundMsg)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

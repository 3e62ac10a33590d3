package service

import (
	"context"
	"math/big"
	"strings"

	"fieldops_backend/internal/tenant"
	"fieldops_backend/internal/visits/domain"
	"fieldops_backend/platform/apperr"
	"fieldops_backend/platform/sanitize"

	"github.com/google/uuid"
)

// LineItemInput is the payload of AddLineItem.
type LineItemInput struct {
	Description    string
	Quantity       string
	UnitPriceCents int64
}

// ListJobTimeline merges the job's notes, time entries and line items.
func (s *Service) ListJobTimeline(ctx context.Context, accountID, jobID uuid.UUID) ([]domain.TimelineEntry, error) {
	if _, err := s.store.GetJob(ctx, accountID, jobID); err != nil {
		return nil, err
	}
	notes, entries, items, err := s.store.ListTimelineStreams(ctx, accountID, jobID)
	if err != nil {
		return nil, err
	}
	return domain.MergeTimeline(notes, entries, items), nil
}

// AddNote appends a free note written by the caller.
func (s *Service) AddNote(ctx context.Context, tc tenant.Context, jobID uuid.UUID, body string) (*domain.Note, error) {
	clean := sanitize.Text(body)
	if clean == "" {
		return nil, apperr.Validation("note body is required")
	}
	return s.store.InsertNote(ctx, tc.AccountID, domain.Note{
		JobID:     jobID,
		AuthorID:  tc.UserID,
		Kind:      domain.NoteKindNote,
		Body:      clean,
		CreatedAt: s.clock(),
	})
}

// LogTime records minutes worked by the caller.
func (s *Service) LogTime(ctx context.Context, tc tenant.Context, jobID uuid.UUID, minutes int, description string) (*domain.TimeEntry, error) {
	if minutes <= 0 {
		return nil, apperr.Validation("minutes must be positive")
	}
	return s.store.InsertTimeEntry(ctx, tc.AccountID, domain.TimeEntry{
		JobID:        jobID,
		TechnicianID: tc.UserID,
		Minutes:      minutes,
		Description:  sanitize.Text(description),
		CreatedAt:    s.clock(),
	})
}

// AddLineItem records a cost against the job.
func (s *Service) AddLineItem(ctx context.Context, tc tenant.Context, jobID uuid.UUID, in LineItemInput) (*domain.LineItem, error) {
	description := sanitize.Text(in.Description)
	if description == "" {
		return nil, apperr.Validation("line item description is required")
	}
	quantity, err := normalizeQuantity(in.Quantity)
	if err != nil {
		return nil, err
	}
	if in.UnitPriceCents < 0 {
		return nil, apperr.Validation("unit price cannot be negative")
	}
	return s.store.InsertLineItem(ctx, tc.AccountID, domain.LineItem{
		JobID:          jobID,
		Description:    description,
		Quantity:       quantity,
		UnitPriceCents: in.UnitPriceCents,
		CreatedBy:      tc.UserID,
		CreatedAt:      s.clock(),
	})
}

// normalizeQuantity accepts a positive decimal with at most two fraction
// digits. An empty quantity means 1.
func normalizeQuantity(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "1.00", nil
	}
	q, ok := new(big.Rat).SetString(raw)
	if !ok || q.Sign() <= 0 {
		return "", apperr.Validation("quantity must be a positive number")
	}
	scaled := new(big.Rat).Mul(q, big.NewRat(100, 1))
	if !scaled.IsInt() {
		return "", apperr.Validation("quantity allows at most two decimals")
	}
	return q.FloatString(2), nil
}

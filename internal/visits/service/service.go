// Package service implements the visit and job status machine and the job
// timeline streams.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fieldops_backend/internal/events"
	"fieldops_backend/internal/tenant"
	"fieldops_backend/internal/visits/domain"
	"fieldops_backend/internal/visits/repository"
	"fieldops_backend/platform/apperr"
	"fieldops_backend/platform/logger"
	"fieldops_backend/platform/telemetry"

	"github.com/google/uuid"
)

const (
	defaultVisitLimit = 100
	maxVisitLimit     = 500

	msgNotAssigned = "visit is not assigned to you"
	msgJobNotYours = "job is not assigned to you"
)

// Store is the persistence the state machine needs. *repository.Repository implements it.
type Store interface {
	GetVisit(ctx context.Context, accountID, visitID uuid.UUID) (*domain.Visit, error)
	ListVisits(ctx context.Context, accountID uuid.UUID, technicianID *uuid.UUID, limit int) ([]domain.Visit, error)
	TransitionVisit(ctx context.Context, p repository.TransitionParams) (*domain.Visit, error)
	GetJob(ctx context.Context, accountID, jobID uuid.UUID) (*domain.Job, error)
	TransitionJob(ctx context.Context, p repository.TransitionParams) (*domain.Job, error)
	InsertNote(ctx context.Context, accountID uuid.UUID, note domain.Note) (*domain.Note, error)
	InsertTimeEntry(ctx context.Context, accountID uuid.UUID, entry domain.TimeEntry) (*domain.TimeEntry, error)
	InsertLineItem(ctx context.Context, accountID uuid.UUID, item domain.LineItem) (*domain.LineItem, error)
	ListTimelineStreams(ctx context.Context, accountID, jobID uuid.UUID) ([]domain.Note, []domain.TimeEntry, []domain.LineItem, error)
}

// Service applies status transitions and timeline writes.
type Service struct {
	store Store
	bus   events.Bus
	log   *logger.Logger
	now   func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now; used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates the visits service. bus may be nil, in which case job
// completion is not announced.
func New(store Store, bus events.Bus, log *logger.Logger, opts ...Option) *Service {
	s := &Service{store: store, bus: bus, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// Transition moves a visit to newStatus on behalf of tc.
func (s *Service) Transition(ctx context.Context, tc tenant.Context, visitID uuid.UUID, newStatus string) (*domain.Visit, error) {
	to, err := domain.ParseStatus(newStatus)
	if err != nil {
		return nil, err
	}

	visit, err := s.store.GetVisit(ctx, tc.AccountID, visitID)
	if err != nil {
		return nil, err
	}
	if !tc.IsAdmin() && visit.TechnicianID != tc.UserID {
		return nil, apperr.Forbidden(msgNotAssigned)
	}
	if err := domain.ValidateTransition(visit.Status, to); err != nil {
		return nil, err
	}

	updated, err := s.store.TransitionVisit(ctx, repository.TransitionParams{
		AccountID: tc.AccountID,
		ID:        visit.ID,
		From:      visit.Status,
		To:        to,
		At:        s.clock(),
		ActorID:   tc.UserID,
		NoteBody:  statusNote("Visit", visit.Status, to, tc.UserID),
	})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, s.lostVisitRace(ctx, tc.AccountID, visitID, to)
	}

	telemetry.VisitTransitions.WithLabelValues("visit", string(to)).Inc()
	s.log.WithContext(ctx).Info("visit transitioned",
		"visit_id", visitID.String(),
		"from", string(visit.Status),
		"to", string(to),
	)
	return updated, nil
}

// TransitionJob moves a job to newStatus. Completing a job publishes
// JobCompleted.
func (s *Service) TransitionJob(ctx context.Context, tc tenant.Context, jobID uuid.UUID, newStatus string) (*domain.Job, error) {
	to, err := domain.ParseStatus(newStatus)
	if err != nil {
		return nil, err
	}

	job, err := s.store.GetJob(ctx, tc.AccountID, jobID)
	if err != nil {
		return nil, err
	}
	if !tc.IsAdmin() && (job.TechnicianID == nil || *job.TechnicianID != tc.UserID) {
		return nil, apperr.Forbidden(msgJobNotYours)
	}
	if err := domain.ValidateTransition(job.Status, to); err != nil {
		return nil, err
	}

	at := s.clock()
	updated, err := s.store.TransitionJob(ctx, repository.TransitionParams{
		AccountID: tc.AccountID,
		ID:        job.ID,
		From:      job.Status,
		To:        to,
		At:        at,
		ActorID:   tc.UserID,
		NoteBody:  statusNote("Job", job.Status, to, tc.UserID),
	})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		fresh, err := s.store.GetJob(ctx, tc.AccountID, jobID)
		if err != nil {
			return nil, err
		}
		return nil, apperr.InvalidTransition(string(fresh.Status), string(to))
	}

	telemetry.VisitTransitions.WithLabelValues("job", string(to)).Inc()
	if to == domain.StatusCompleted && s.bus != nil {
		s.bus.Publish(ctx, events.JobCompleted{
			BaseEvent:   events.NewBaseEvent(),
			AccountID:   tc.AccountID,
			JobID:       jobID,
			CompletedBy: tc.UserID,
			CompletedAt: at,
		})
	}
	return updated, nil
}

// ListVisits returns every visit for admins and the caller's own otherwise.
func (s *Service) ListVisits(ctx context.Context, tc tenant.Context, limit int) ([]domain.Visit, error) {
	var technicianID *uuid.UUID
	if !tc.IsAdmin() {
		id := tc.UserID
		technicianID = &id
	}
	if limit <= 0 {
		limit = defaultVisitLimit
	}
	if limit > maxVisitLimit {
		limit = maxVisitLimit
	}
	return s.store.ListVisits(ctx, tc.AccountID, technicianID, limit)
}

// lostVisitRace reports the transition against the status that won.
func (s *Service) lostVisitRace(ctx context.Context, accountID, visitID uuid.UUID, to domain.Status) error {
	fresh, err := s.store.GetVisit(ctx, accountID, visitID)
	if err != nil {
		return err
	}
	return apperr.InvalidTransition(string(fresh.Status), string(to))
}

func statusNote(entity string, from, to domain.Status, actor uuid.UUID) string {
	return fmt.Sprintf("%s status changed from %s to %s by %s",
		entity, humanStatus(from), humanStatus(to), actor)
}

func humanStatus(s domain.Status) string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// Package service implements the automation scheduler: idempotent scheduling,
// due listing, compare-and-swap claims, completion and reporting.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fieldops_backend/internal/automation/domain"
	"fieldops_backend/internal/automation/repository"
	"fieldops_backend/platform/apperr"
	"fieldops_backend/platform/logger"
	"fieldops_backend/platform/telemetry"

	"github.com/google/uuid"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// Store is the persistence the scheduler needs. *repository.Repository implements it.
type Store interface {
	FindByKey(ctx context.Context, accountID uuid.UUID, key domain.Key) (*domain.WorkItem, error)
	InsertPending(ctx context.Context, p repository.InsertParams) (*domain.WorkItem, bool, error)
	GetByID(ctx context.Context, accountID, id uuid.UUID) (*domain.WorkItem, error)
	ListDue(ctx context.Context, accountID uuid.UUID, now time.Time, limit int) ([]domain.WorkItem, error)
	Claim(ctx context.Context, accountID, id uuid.UUID, now time.Time) (*domain.WorkItem, error)
	Finish(ctx context.Context, accountID, id uuid.UUID, status domain.Status, result json.RawMessage, message string) (domain.Type, error)
	ListWithHistory(ctx context.Context, accountID uuid.UUID, status *domain.Status, limit int) ([]domain.WorkItemWithHistory, error)
	ReapStuck(ctx context.Context, accountID uuid.UUID, cutoff time.Time) ([]repository.ReapedItem, error)
	ListAccountsWithDueWork(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	ListAccountsWithStuckWork(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
	GetSettingsOverrides(ctx context.Context, accountID uuid.UUID) (domain.Overrides, error)
	MergeSettingsOverrides(ctx context.Context, accountID uuid.UUID, patch domain.Overrides) (domain.Overrides, error)
}

// SettingsCache caches merged settings per account generation.
// *repository.SettingsCache implements it.
type SettingsCache interface {
	Get(ctx context.Context, accountID uuid.UUID) (settings domain.Settings, generation int64, hit bool, err error)
	Set(ctx context.Context, accountID uuid.UUID, generation int64, settings domain.Settings) error
	Invalidate(ctx context.Context, accountID uuid.UUID) error
}

// Service is the automation scheduler.
type Service struct {
	store    Store
	cache    SettingsCache
	defaults domain.Settings
	log      *logger.Logger
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithSettingsCache enables the Redis settings cache.
func WithSettingsCache(cache SettingsCache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithClock replaces time.Now; used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates the scheduler service.
func New(store Store, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		defaults: domain.DefaultSettings(),
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock in UTC.
func (s *Service) Now() time.Time {
	return s.now().UTC()
}

// ScheduleOutcome tells callers what a schedule request did.
type ScheduleOutcome string

const (
	OutcomeCreated  ScheduleOutcome = "created"
	OutcomeExisting ScheduleOutcome = "existing"
	OutcomeDisabled ScheduleOutcome = "disabled"
)

// ScheduleParams describes one schedule request.
type ScheduleParams struct {
	AccountID uuid.UUID
	Type      domain.Type
	RelatedID *uuid.UUID
	RunAt     time.Time
	Payload   any
}

// ScheduleResult carries the item (nil when disabled) and the outcome.
type ScheduleResult struct {
	Item    *domain.WorkItem
	Outcome ScheduleOutcome
}

// Schedule creates a pending work item unless the account disabled the type
// or an item with the same (type, relatedID, runAt) already exists, in which
// case the existing item is returned unchanged.
func (s *Service) Schedule(ctx context.Context, p ScheduleParams) (ScheduleResult, error) {
	if !p.Type.Valid() {
		return ScheduleResult{}, apperr.Validation(fmt.Sprintf("unknown automation type %q", p.Type))
	}
	if p.RunAt.IsZero() {
		return ScheduleResult{}, apperr.Validation("runAt is required")
	}

	settings, err := s.GetAutomationSettings(ctx, p.AccountID)
	if err != nil {
		return ScheduleResult{}, err
	}
	if !settings.Enabled(p.Type) {
		telemetry.AutomationsDisabled.WithLabelValues(string(p.Type)).Inc()
		return ScheduleResult{Outcome: OutcomeDisabled}, nil
	}

	// Postgres keeps microseconds; normalizing here keeps the key comparable.
	key := domain.Key{Type: p.Type, RelatedID: p.RelatedID, RunAt: p.RunAt.UTC().Truncate(time.Microsecond)}

	existing, err := s.store.FindByKey(ctx, p.AccountID, key)
	if err != nil {
		return ScheduleResult{}, err
	}
	if existing != nil {
		telemetry.AutomationsDeduplicated.WithLabelValues(string(p.Type)).Inc()
		return ScheduleResult{Item: existing, Outcome: OutcomeExisting}, nil
	}

	payload, err := encodeJSON(p.Payload)
	if err != nil {
		return ScheduleResult{}, apperr.Validation("payload must be JSON encodable")
	}

	item, inserted, err := s.store.InsertPending(ctx, repository.InsertParams{
		AccountID: p.AccountID,
		Type:      key.Type,
		RelatedID: key.RelatedID,
		RunAt:     key.RunAt,
		Payload:   payload,
	})
	if err != nil {
		return ScheduleResult{}, err
	}
	if !inserted {
		telemetry.AutomationsDeduplicated.WithLabelValues(string(p.Type)).Inc()
		return ScheduleResult{Item: item, Outcome: OutcomeExisting}, nil
	}

	telemetry.AutomationsScheduled.WithLabelValues(string(p.Type)).Inc()
	s.log.WithContext(ctx).AutomationEvent("scheduled", item.ID.String(), p.AccountID.String(), string(item.Type),
		"run_at", item.RunAt)
	return ScheduleResult{Item: item, Outcome: OutcomeCreated}, nil
}

// ScheduleAutomation is Schedule returning only the item: nil when the type
// is disabled for the account.
func (s *Service) ScheduleAutomation(ctx context.Context, accountID uuid.UUID, t domain.Type, relatedID *uuid.UUID, runAt time.Time, payload any) (*domain.WorkItem, error) {
	result, err := s.Schedule(ctx, ScheduleParams{
		AccountID: accountID,
		Type:      t,
		RelatedID: relatedID,
		RunAt:     runAt,
		Payload:   payload,
	})
	if err != nil {
		return nil, err
	}
	return result.Item, nil
}

// GetAutomation returns one work item of the account.
func (s *Service) GetAutomation(ctx context.Context, accountID, id uuid.UUID) (*domain.WorkItem, error) {
	return s.store.GetByID(ctx, accountID, id)
}

// GetDueAutomations returns up to limit pending items whose runAt has passed,
// earliest first. "Now" is re-evaluated on every call.
func (s *Service) GetDueAutomations(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.WorkItem, error) {
	return s.store.ListDue(ctx, accountID, s.Now(), clampLimit(limit))
}

// ClaimAutomation atomically moves item from pending to processing. It
// returns nil, nil when another worker claimed it first.
func (s *Service) ClaimAutomation(ctx context.Context, item *domain.WorkItem) (*domain.WorkItem, error) {
	if item == nil {
		return nil, apperr.Validation("automation is required")
	}

	now := s.Now()
	claimed, err := s.store.Claim(ctx, item.AccountID, item.ID, now)
	if err != nil {
		return nil, err
	}
	if claimed == nil {
		telemetry.ClaimConflicts.WithLabelValues(string(item.Type)).Inc()
		return nil, nil
	}

	telemetry.AutomationsClaimed.WithLabelValues(string(claimed.Type)).Inc()
	telemetry.ObserveDispatchLag(claimed.RunAt, now)
	s.log.WithContext(ctx).AutomationEvent("claimed", claimed.ID.String(), claimed.AccountID.String(), string(claimed.Type),
		"attempts", claimed.Attempts)
	return claimed, nil
}

// UpdateAutomationStatus finishes an item as completed or failed. result is
// stored when non-nil; message is appended to the history when non-empty.
func (s *Service) UpdateAutomationStatus(ctx context.Context, accountID, id uuid.UUID, status domain.Status, result any, message string) error {
	if status != domain.StatusCompleted && status != domain.StatusFailed {
		return apperr.Validation(fmt.Sprintf("status must be %q or %q", domain.StatusCompleted, domain.StatusFailed))
	}

	var encoded json.RawMessage
	if result != nil {
		raw, err := encodeJSON(result)
		if err != nil {
			return apperr.Validation("result must be JSON encodable")
		}
		encoded = raw
	}

	itemType, err := s.store.Finish(ctx, accountID, id, status, encoded, message)
	if err != nil {
		return err
	}

	if status == domain.StatusCompleted {
		telemetry.AutomationsCompleted.WithLabelValues(string(itemType)).Inc()
	} else {
		telemetry.AutomationsFailed.WithLabelValues(string(itemType)).Inc()
	}
	s.log.WithContext(ctx).AutomationEvent(string(status), id.String(), accountID.String(), string(itemType),
		"message", message)
	return nil
}

// ListAutomationsWithHistory is the reporting view, ordered by runAt.
func (s *Service) ListAutomationsWithHistory(ctx context.Context, accountID uuid.UUID, status *domain.Status, limit int) ([]domain.WorkItemWithHistory, error) {
	if status != nil && !status.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("unknown status %q", *status))
	}
	return s.store.ListWithHistory(ctx, accountID, status, clampLimit(limit))
}

// ListAccountsWithDueWork lists accounts the dispatcher should scope into next.
func (s *Service) ListAccountsWithDueWork(ctx context.Context, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = maxListLimit
	}
	return s.store.ListAccountsWithDueWork(ctx, s.Now(), limit)
}

// ListAccountsWithStuckWork lists accounts holding items that have been
// processing for longer than olderThan. A non-positive olderThan lists none.
func (s *Service) ListAccountsWithStuckWork(ctx context.Context, olderThan time.Duration, limit int) ([]uuid.UUID, error) {
	if olderThan <= 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = maxListLimit
	}
	return s.store.ListAccountsWithStuckWork(ctx, s.Now().Add(-olderThan), limit)
}

// ReapStuckAutomations fails processing items claimed longer than olderThan
// ago. They are never put back to pending. A non-positive olderThan disables reaping.
func (s *Service) ReapStuckAutomations(ctx context.Context, accountID uuid.UUID, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, nil
	}

	reaped, err := s.store.ReapStuck(ctx, accountID, s.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	for _, item := range reaped {
		telemetry.AutomationsReaped.Inc()
		telemetry.AutomationsFailed.WithLabelValues(string(item.Type)).Inc()
		s.log.WithContext(ctx).AutomationEvent("reaped", item.ID.String(), accountID.String(), string(item.Type))
	}
	return len(reaped), nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func encodeJSON(value any) (json.RawMessage, error) {
	if value == nil {
		return json.RawMessage(`{}`), nil
	}
	if raw, ok := value.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return nil, fmt.Errorf("invalid json")
		}
		return raw, nil
	}
	return json.Marshal(value)
}

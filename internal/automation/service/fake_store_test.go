package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"fieldops_backend/internal/automation/domain"
	"fieldops_backend/internal/automation/repository"
	"fieldops_backend/platform/apperr"

	"github.com/google/uuid"
)

// fakeStore mirrors the repository semantics in memory, including the
// unique key and the conditional claim.
type fakeStore struct {
	mu        sync.Mutex
	items     map[uuid.UUID]*domain.WorkItem
	history   map[uuid.UUID][]domain.HistoryEntry
	overrides map[uuid.UUID]domain.Overrides
	findCalls int
	// afterSettingsRead runs once after an overrides read returns.
	afterSettingsRead func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items:     map[uuid.UUID]*domain.WorkItem{},
		history:   map[uuid.UUID][]domain.HistoryEntry{},
		overrides: map[uuid.UUID]domain.Overrides{},
	}
}

func sameRelated(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (f *fakeStore) lookup(accountID uuid.UUID, key domain.Key) *domain.WorkItem {
	for _, item := range f.items {
		if item.AccountID == accountID && item.Type == key.Type && sameRelated(item.RelatedID, key.RelatedID) && item.RunAt.Equal(key.RunAt) {
			return item
		}
	}
	return nil
}

func (f *fakeStore) appendHistory(id uuid.UUID, status domain.Status, message string) {
	f.history[id] = append(f.history[id], domain.HistoryEntry{
		ID:           uuid.New(),
		AutomationID: id,
		Status:       status,
		Message:      message,
		CreatedAt:    time.Now(),
	})
}

func (f *fakeStore) FindByKey(_ context.Context, accountID uuid.UUID, key domain.Key) (*domain.WorkItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	if item := f.lookup(accountID, key); item != nil {
		copied := *item
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeStore) InsertPending(_ context.Context, p repository.InsertParams) (*domain.WorkItem, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing := f.lookup(p.AccountID, domain.Key{Type: p.Type, RelatedID: p.RelatedID, RunAt: p.RunAt}); existing != nil {
		copied := *existing
		return &copied, false, nil
	}
	now := time.Now()
	item := &domain.WorkItem{
		ID:        uuid.New(),
		AccountID: p.AccountID,
		Type:      p.Type,
		RelatedID: p.RelatedID,
		Status:    domain.StatusPending,
		RunAt:     p.RunAt,
		Payload:   p.Payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.items[item.ID] = item
	f.appendHistory(item.ID, domain.StatusPending, domain.MessageScheduled)
	copied := *item
	return &copied, true, nil
}

func (f *fakeStore) GetByID(_ context.Context, accountID, id uuid.UUID) (*domain.WorkItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok || item.AccountID != accountID {
		return nil, apperr.NotFound("automation not found")
	}
	copied := *item
	return &copied, nil
}

func (f *fakeStore) ListDue(_ context.Context, accountID uuid.UUID, now time.Time, limit int) ([]domain.WorkItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	due := make([]domain.WorkItem, 0)
	for _, item := range f.items {
		if item.AccountID == accountID && item.Status == domain.StatusPending && !item.RunAt.After(now) {
			due = append(due, *item)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RunAt.Before(due[j].RunAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (f *fakeStore) Claim(_ context.Context, accountID, id uuid.UUID, now time.Time) (*domain.WorkItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok || item.AccountID != accountID || item.Status != domain.StatusPending {
		return nil, nil
	}
	item.Status = domain.StatusProcessing
	item.Attempts++
	claimedAt := now
	item.LastAttempt = &claimedAt
	item.UpdatedAt = now
	f.appendHistory(id, domain.StatusProcessing, domain.MessageClaimed)
	copied := *item
	return &copied, nil
}

func (f *fakeStore) Finish(_ context.Context, accountID, id uuid.UUID, status domain.Status, result json.RawMessage, message string) (domain.Type, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok || item.AccountID != accountID {
		return "", apperr.NotFound("automation not found")
	}
	if !item.Status.CanFinishAs(status) {
		return "", apperr.InvalidTransition(string(item.Status), string(status))
	}
	item.Status = status
	if result != nil {
		item.Result = result
	}
	if message != "" {
		f.appendHistory(id, status, message)
	}
	return item.Type, nil
}

func (f *fakeStore) ListWithHistory(_ context.Context, accountID uuid.UUID, status *domain.Status, limit int) ([]domain.WorkItemWithHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.WorkItemWithHistory, 0)
	for _, item := range f.items {
		if item.AccountID != accountID || (status != nil && item.Status != *status) {
			continue
		}
		out = append(out, domain.WorkItemWithHistory{WorkItem: *item, History: append([]domain.HistoryEntry(nil), f.history[item.ID]...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunAt.Before(out[j].RunAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) ReapStuck(_ context.Context, accountID uuid.UUID, cutoff time.Time) ([]repository.ReapedItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var reaped []repository.ReapedItem
	for _, item := range f.items {
		if item.AccountID != accountID || item.Status != domain.StatusProcessing || item.LastAttempt == nil || !item.LastAttempt.Before(cutoff) {
			continue
		}
		item.Status = domain.StatusFailed
		item.Result = json.RawMessage(`{"error":"Processing timed out"}`)
		f.appendHistory(item.ID, domain.StatusFailed, domain.MessageTimedOut)
		reaped = append(reaped, repository.ReapedItem{ID: item.ID, Type: item.Type})
	}
	return reaped, nil
}

func (f *fakeStore) ListAccountsWithDueWork(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	return f.accountsWhere(limit, func(item *domain.WorkItem) bool {
		return item.Status == domain.StatusPending && !item.RunAt.After(now)
	}), nil
}

func (f *fakeStore) ListAccountsWithStuckWork(_ context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	return f.accountsWhere(limit, func(item *domain.WorkItem) bool {
		return item.Status == domain.StatusProcessing && item.LastAttempt != nil && item.LastAttempt.Before(cutoff)
	}), nil
}

func (f *fakeStore) accountsWhere(limit int, match func(*domain.WorkItem) bool) []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[uuid.UUID]bool{}
	var out []uuid.UUID
	for _, item := range f.items {
		if !match(item) || seen[item.AccountID] {
			continue
		}
		seen[item.AccountID] = true
		out = append(out, item.AccountID)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (f *fakeStore) GetSettingsOverrides(_ context.Context, accountID uuid.UUID) (domain.Overrides, error) {
	f.mu.Lock()
	overrides := f.overrides[accountID]
	hook := f.afterSettingsRead
	f.afterSettingsRead = nil
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return overrides, nil
}

func (f *fakeStore) MergeSettingsOverrides(_ context.Context, accountID uuid.UUID, patch domain.Overrides) (domain.Overrides, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	merged := f.overrides[accountID].Patch(patch)
	f.overrides[accountID] = merged
	return merged, nil
}

func (f *fakeStore) historyOf(id uuid.UUID) []domain.HistoryEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.HistoryEntry(nil), f.history[id]...)
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

type cacheKey struct {
	account    uuid.UUID
	generation int64
}

// memoryCache mirrors the generation keying of the Redis cache.
type memoryCache struct {
	mu          sync.Mutex
	entries     map[cacheKey]domain.Settings
	generations map[uuid.UUID]int64
	invalidated int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[cacheKey]domain.Settings{}, generations: map[uuid.UUID]int64{}}
}

func (c *memoryCache) Get(_ context.Context, accountID uuid.UUID) (domain.Settings, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gen := c.generations[accountID]
	s, ok := c.entries[cacheKey{accountID, gen}]
	return s, gen, ok, nil
}

func (c *memoryCache) Set(_ context.Context, accountID uuid.UUID, generation int64, settings domain.Settings) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{accountID, generation}] = settings
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, accountID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[accountID]++
	c.invalidated++
	return nil
}

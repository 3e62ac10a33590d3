// Package repository persists automation work items, their history and the
// per-account automation settings.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fieldops_backend/internal/automation/domain"
	"fieldops_backend/internal/tenant"
	"fieldops_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const automationNotFoundMsg = "automation not found"

// Repository provides database operations for automations.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new automations repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertParams describes a new pending work item.
type InsertParams struct {
	AccountID uuid.UUID
	Type      domain.Type
	RelatedID *uuid.UUID
	RunAt     time.Time
	Payload   json.RawMessage
}

// FindByKey returns the item with the given idempotency key, or nil.
func (r *Repository) FindByKey(ctx context.Context, accountID uuid.UUID, key domain.Key) (*domain.WorkItem, error) {
	if err := tenant.RequireAccount(accountID); err != nil {
		return nil, err
	}

	item, err := scanWorkItem(r.pool.QueryRow(ctx, findByKeyQuery, accountID, string(key.Type), key.RelatedID, key.RunAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find automation by key: %w", err)
	}
	return item, nil
}

// InsertPending inserts a pending item together with its "scheduled" history
// entry. When a concurrent caller already inserted the same key, the existing
// row is returned and inserted is false.
func (r *Repository) InsertPending(ctx context.Context, p InsertParams) (item *domain.WorkItem, inserted bool, err error) {
	if err := tenant.RequireAccount(p.AccountID); err != nil {
		return nil, false, err
	}
	payload := p.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	item, err = scanWorkItem(tx.QueryRow(ctx, insertPendingQuery, p.AccountID, string(p.Type), p.RelatedID, p.RunAt, []byte(payload)))
	if errors.Is(err, pgx.ErrNoRows) {
		existing, findErr := scanWorkItem(tx.QueryRow(ctx, findByKeyQuery, p.AccountID, string(p.Type), p.RelatedID, p.RunAt))
		if findErr != nil {
			err = fmt.Errorf("failed to load conflicting automation: %w", findErr)
			return nil, false, err
		}
		if err = tx.Commit(ctx); err != nil {
			return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert automation: %w", err)
	}

	if _, err = tx.Exec(ctx, insertHistoryQuery, item.ID, p.AccountID, string(domain.StatusPending), domain.MessageScheduled); err != nil {
		return nil, false, fmt.Errorf("failed to append automation history: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return item, true, nil
}

// GetByID retrieves one item.
func (r *Repository) GetByID(ctx context.Context, accountID, id uuid.UUID) (*domain.WorkItem, error) {
	if err := tenant.RequireAccount(accountID); err != nil {
		return nil, err
	}

	item, err := scanWorkItem(r.pool.QueryRow(ctx, getByIDQuery, accountID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(automationNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get automation: %w", err)
	}
	return item, nil
}

// ListDue returns pending items with run_at <= now, earliest first.
func (r *Repository) ListDue(ctx context.Context, accountID uuid.UUID, now time.Time, limit int) ([]domain.WorkItem, error) {
	if err := tenant.RequireAccount(accountID); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, listDueQuery, accountID, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due automations: %w", err)
	}
	return collectWorkItems(rows)
}

// Claim moves one item from pending to processing in a single conditional
// update. It returns nil when the item was no longer pending.
func (r *Repository) Claim(ctx context.Context, accountID, id uuid.UUID, now time.Time) (claimed *domain.WorkItem, err error) {
	if err := tenant.RequireAccount(accountID); err != nil {
		return nil, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil || claimed == nil {
			_ = tx.Rollback(ctx)
		}
	}()

	claimed, err = scanWorkItem(tx.QueryRow(ctx, claimQuery, accountID, id, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim automation: %w", err)
	}

	if _, err = tx.Exec(ctx, insertHistoryQuery, claimed.ID, accountID, string(domain.StatusProcessing), domain.MessageClaimed); err != nil {
		return nil, fmt.Errorf("failed to append automation history: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return claimed, nil
}

// Finish moves a non-terminal item to completed or failed, storing result
// when given and appending message to the history when non-empty. It returns
// the item's type.
func (r *Repository) Finish(ctx context.Context, accountID, id uuid.UUID, status domain.Status, result json.RawMessage, message string) (itemType domain.Type, err error) {
	if err := tenant.RequireAccount(accountID); err != nil {
		return "", err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var resultArg any
	if len(result) > 0 {
		resultArg = []byte(result)
	}

	var rawType string
	err = tx.QueryRow(ctx, finishQuery, accountID, id, string(status), resultArg).Scan(&rawType)
	if errors.Is(err, pgx.ErrNoRows) {
		var current string
		if lookupErr := tx.QueryRow(ctx, currentStatusQuery, accountID, id).Scan(&current); lookupErr != nil {
			if errors.Is(lookupErr, pgx.ErrNoRows) {
				err = apperr.NotFound(automationNotFoundMsg)
				return "", err
			}
			err = fmt.Errorf("failed to read automation status: %w", lookupErr)
			return "", err
		}
		err = apperr.InvalidTransition(current, string(status))
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("failed to update automation status: %w", err)
	}

	if message != "" {
		if _, err = tx.Exec(ctx, insertHistoryQuery, id, accountID, string(status), message); err != nil {
			return "", fmt.Errorf("failed to append automation history: %w", err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return domain.Type(rawType), nil
}

// ListWithHistory returns items (optionally filtered by status) joined with
// their history, ordered by run_at.
func (r *Repository) ListWithHistory(ctx context.Context, accountID uuid.UUID, status *domain.Status, limit int) ([]domain.WorkItemWithHistory, error) {
	if err := tenant.RequireAccount(accountID); err != nil {
		return nil, err
	}

	var statusArg *string
	if status != nil {
		s := string(*status)
		statusArg = &s
	}

	rows, err := r.pool.Query(ctx, listWithHistoryQuery, accountID, statusArg, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list automations: %w", err)
	}
	items, err := collectWorkItems(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []domain.WorkItemWithHistory{}, nil
	}

	ids := make([]uuid.UUID, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}

	historyRows, err := r.pool.Query(ctx, historyForItemsQuery, accountID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list automation history: %w", err)
	}
	defer historyRows.Close()

	byItem := make(map[uuid.UUID][]domain.HistoryEntry, len(items))
	for historyRows.Next() {
		var entry domain.HistoryEntry
		var entryStatus string
		if err := historyRows.Scan(&entry.ID, &entry.AutomationID, &entryStatus, &entry.Message, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan automation history: %w", err)
		}
		entry.Status = domain.Status(entryStatus)
		byItem[entry.AutomationID] = append(byItem[entry.AutomationID], entry)
	}
	if err := historyRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate automation history: %w", err)
	}

	result := make([]domain.WorkItemWithHistory, len(items))
	for i, item := range items {
		history := byItem[item.ID]
		if history == nil {
			history = []domain.HistoryEntry{}
		}
		result[i] = domain.WorkItemWithHistory{WorkItem: item, History: history}
	}
	return result, nil
}

// ReapedItem identifies an item failed by ReapStuck.
type ReapedItem struct {
	ID   uuid.UUID
	Type domain.Type
}

// ReapStuck fails processing items whose last claim is older than cutoff.
func (r *Repository) ReapStuck(ctx context.Context, accountID uuid.UUID, cutoff time.Time) (reaped []ReapedItem, err error) {
	if err := tenant.RequireAccount(accountID); err != nil {
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

	rows, err := tx.Query(ctx, reapStuckQuery, accountID, cutoff, domain.MessageTimedOut)
	if err != nil {
		return nil, fmt.Errorf("failed to reap stuck automations: %w", err)
	}
	for rows.Next() {
		var item ReapedItem
		var itemType string
		if err = rows.Scan(&item.ID, &itemType); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan reaped automation: %w", err)
		}
		item.Type = domain.Type(itemType)
		reaped = append(reaped, item)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reaped automations: %w", err)
	}

	for _, item := range reaped {
		if _, err = tx.Exec(ctx, insertHistoryQuery, item.ID, accountID, string(domain.StatusFailed), domain.MessageTimedOut); err != nil {
			return nil, fmt.Errorf("failed to append automation history: %w", err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return reaped, nil
}

// ListAccountsWithDueWork returns accounts that have pending items due at
// now, most overdue first.
func (r *Repository) ListAccountsWithDueWork(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, listAccountsWithDueWorkQuery, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts with due work: %w", err)
	}
	return collectAccountIDs(rows)
}

// ListAccountsWithStuckWork returns accounts that have items claimed before
// cutoff and still processing, oldest claim first.
func (r *Repository) ListAccountsWithStuckWork(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, listAccountsWithStuckWorkQuery, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts with stuck work: %w", err)
	}
	return collectAccountIDs(rows)
}

func collectAccountIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	defer rows.Close()

	var accounts []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan account id: %w", err)
		}
		accounts = append(accounts, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}

func scanWorkItem(row pgx.Row) (*domain.WorkItem, error) {
	var item domain.WorkItem
	var itemType, status string
	var payload, result []byte
	if err := row.Scan(
		&item.ID, &item.AccountID, &itemType, &item.RelatedID, &status, &item.RunAt,
		&payload, &item.Attempts, &item.LastAttempt, &result, &item.CreatedAt, &item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	item.Type = domain.Type(itemType)
	item.Status = domain.Status(status)
	item.Payload = json.RawMessage(payload)
	if len(result) > 0 {
		item.Result = json.RawMessage(result)
	}
	return &item, nil
}

func collectWorkItems(rows pgx.Rows) ([]domain.WorkItem, error) {
	defer rows.Close()

	items := make([]domain.WorkItem, 0)
	for rows.Next() {
		item, err := scanWorkItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate automations: %w", err)
	}
	return items, nil
}

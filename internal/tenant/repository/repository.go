// Package repository reads account memberships for tenant resolution.
package repository

import (
	"context"
	"errors"
	"fmt"

	"fieldops_backend/internal/tenant"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// These two lookups are keyed by user, not account: they are how the account
// is established in the first place.
const (
	listMembershipsQuery = `
		SELECT account_id, user_id, role, permissions, created_at
		FROM account_members
		WHERE user_id = $1
		ORDER BY created_at ASC, account_id ASC`

	findCustomerIdentityQuery = `
		SELECT id, account_id
		FROM customers
		WHERE portal_user_id = $1
		ORDER BY created_at ASC
		LIMIT 1`
)

// Repository implements tenant.MembershipStore over PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new membership repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListMemberships returns every membership of userID, oldest first.
func (r *Repository) ListMemberships(ctx context.Context, userID uuid.UUID) ([]tenant.Membership, error) {
	rows, err := r.pool.Query(ctx, listMembershipsQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []tenant.Membership
	for rows.Next() {
		var m tenant.Membership
		var role string
		if err := rows.Scan(&m.AccountID, &m.UserID, &role, &m.Permissions, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		m.Role = tenant.Role(role)
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memberships: %w", err)
	}

	return memberships, nil
}

// FindCustomerIdentity returns the customer linked to a portal user, or nil.
func (r *Repository) FindCustomerIdentity(ctx context.Context, userID uuid.UUID) (*tenant.CustomerIdentity, error) {
	var identity tenant.CustomerIdentity
	err := r.pool.QueryRow(ctx, findCustomerIdentityQuery, userID).Scan(&identity.CustomerID, &identity.AccountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find customer identity: %w", err)
	}
	return &identity, nil
}

var _ tenant.MembershipStore = (*Repository)(nil)

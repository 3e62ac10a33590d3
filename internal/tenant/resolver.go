package tenant

import (
	"context"
	"fmt"
	"time"

	"fieldops_backend/platform/apperr"

	"github.com/google/uuid"
)

// Principal is the authenticated caller as proven by the access token.
type Principal struct {
	UserID uuid.UUID
	Email  string
}

// Membership is one account_members row.
type Membership struct {
	AccountID   uuid.UUID
	UserID      uuid.UUID
	Role        Role
	Permissions []string
	CreatedAt   time.Time
}

// CustomerIdentity links a portal user to a customer record.
type CustomerIdentity struct {
	CustomerID uuid.UUID
	AccountID  uuid.UUID
}

// MembershipStore is the persistence the resolver reads from. These are the
// only lookups keyed by user instead of account: they establish the account.
type MembershipStore interface {
	// ListMemberships returns memberships ordered by created_at, account_id.
	ListMemberships(ctx context.Context, userID uuid.UUID) ([]Membership, error)
	// FindCustomerIdentity returns nil, nil when the user is not a portal customer.
	FindCustomerIdentity(ctx context.Context, userID uuid.UUID) (*CustomerIdentity, error)
}

// Resolver turns principals into tenant contexts.
type Resolver struct {
	store MembershipStore
}

// NewResolver creates a Resolver over store.
func NewResolver(store MembershipStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve picks the principal's first membership. Account switching is not
// supported: with several memberships the oldest one is always primary.
// A principal without membership falls back to a CUSTOMER context when it is
// a known portal identity, otherwise resolution fails Unauthorized.
func (r *Resolver) Resolve(ctx context.Context, p Principal) (Context, error) {
	if p.UserID == uuid.Nil {
		return Context{}, apperr.Unauthorized("unauthenticated principal")
	}

	memberships, err := r.store.ListMemberships(ctx, p.UserID)
	if err != nil {
		return Context{}, fmt.Errorf("failed to list memberships: %w", err)
	}
	if len(memberships) > 0 {
		primary := memberships[0]
		return Context{
			AccountID:   primary.AccountID,
			UserID:      p.UserID,
			Role:        primary.Role,
			Permissions: append([]string(nil), primary.Permissions...),
		}, nil
	}

	customer, err := r.store.FindCustomerIdentity(ctx, p.UserID)
	if err != nil {
		return Context{}, fmt.Errorf("failed to look up customer identity: %w", err)
	}
	if customer == nil {
		return Context{}, apperr.Unauthorized("no account membership")
	}

	customerID := customer.CustomerID
	return Context{
		AccountID:   customer.AccountID,
		UserID:      p.UserID,
		Role:        RoleCustomer,
		Permissions: []string{},
		CustomerID:  &customerID,
	}, nil
}

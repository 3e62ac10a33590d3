// Package tenant resolves the request-scoped account context every other
// module depends on and guards the account filter on persistence calls.
package tenant

import (
	"context"
	"slices"

	"fieldops_backend/platform/apperr"

	"github.com/google/uuid"
)

// Role is the membership role inside one account.
type Role string

const (
	RoleOwner      Role = "OWNER"
	RoleAdmin      Role = "ADMIN"
	RoleTechnician Role = "TECHNICIAN"
	RoleStaff      Role = "STAFF"
	// RoleCustomer is the degraded context given to customer portal users.
	RoleCustomer Role = "CUSTOMER"
)

// Context is the resolved tenant identity of one request. It is never persisted.
type Context struct {
	AccountID   uuid.UUID  `json:"accountId"`
	UserID      uuid.UUID  `json:"userId"`
	Role        Role       `json:"role"`
	Permissions []string   `json:"permissions"`
	CustomerID  *uuid.UUID `json:"customerId,omitempty"`
}

// IsAdmin reports whether the actor administers the account.
func (c Context) IsAdmin() bool {
	return c.Role == RoleOwner || c.Role == RoleAdmin
}

// IsCustomer reports whether this is a degraded customer portal context.
func (c Context) IsCustomer() bool {
	return c.Role == RoleCustomer
}

// Has reports whether the membership carries permission.
func (c Context) Has(permission string) bool {
	return slices.Contains(c.Permissions, permission)
}

// RequireAccount rejects a missing account id before any query is built.
// Every tenant-scoped repository method calls it first.
func RequireAccount(accountID uuid.UUID) error {
	if accountID == uuid.Nil {
		return apperr.Internal("tenant scope missing: account id is required")
	}
	return nil
}

type ctxKey struct{}

// WithContext stores tc on ctx.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// FromContext returns the tenant context stored by Middleware.
func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(ctxKey{}).(Context)
	return tc, ok
}

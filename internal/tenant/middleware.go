package tenant

import (
	"context"
	"net/http"

	"fieldops_backend/platform/httpkit"
	"fieldops_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

const ginContextKey = "tenantContext"

// Middleware resolves the tenant context once per request. It must run after
// httpkit.AuthRequired.
func Middleware(resolver *Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := httpkit.RequirePrincipal(c)
		if !ok {
			return
		}

		tc, err := resolver.Resolve(c.Request.Context(), Principal{
			UserID: principal.UserID,
			Email:  principal.Email,
		})
		if err != nil {
			httpkit.HandleError(c, err)
			c.Abort()
			return
		}

		Attach(c, tc)
		c.Next()
	}
}

// Attach stores tc on the gin context and on the request context.
func Attach(c *gin.Context, tc Context) {
	ctx := WithContext(c.Request.Context(), tc)
	ctx = context.WithValue(ctx, logger.AccountIDKey, tc.AccountID.String())
	c.Request = c.Request.WithContext(ctx)
	c.Set(ginContextKey, tc)
}

// RequireStaff rejects degraded customer contexts on back-office routes.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		tc, ok := MustFromGin(c)
		if !ok {
			return
		}
		if tc.IsCustomer() {
			c.AbortWithStatusJSON(http.StatusForbidden, httpkit.ErrorResponse{Error: "forbidden"})
			return
		}
		c.Next()
	}
}

// RequireAdmin allows only account owners and admins.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		tc, ok := MustFromGin(c)
		if !ok {
			return
		}
		if !tc.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, httpkit.ErrorResponse{Error: "forbidden"})
			return
		}
		c.Next()
	}
}

// FromGin returns the tenant context resolved by Middleware.
func FromGin(c *gin.Context) (Context, bool) {
	value, ok := c.Get(ginContextKey)
	if !ok {
		return Context{}, false
	}
	tc, ok := value.(Context)
	return tc, ok
}

// MustFromGin is FromGin that aborts with 401 when no context was resolved.
func MustFromGin(c *gin.Context) (Context, bool) {
	tc, ok := FromGin(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, httpkit.ErrorResponse{Error: "unauthorized"})
		return Context{}, false
	}
	return tc, true
}

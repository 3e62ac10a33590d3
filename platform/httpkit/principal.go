package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const principalKey = "principal"

// Principal is the caller a verified access token vouches for. It names a
// user and nothing more: the account a request acts on and the role it acts
// with come from the tenant resolver's membership lookup.
type Principal struct {
	UserID uuid.UUID
	// Email is the token's email claim; customer portal logins are matched on it.
	Email string
}

// SetPrincipal stores p for the handlers further down the chain.
func SetPrincipal(c *gin.Context, p Principal) {
	c.Set(principalKey, p)
}

// PrincipalFrom returns the principal AuthRequired stored on c.
func PrincipalFrom(c *gin.Context) (Principal, bool) {
	value, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := value.(Principal)
	if !ok || p.UserID == uuid.Nil {
		return Principal{}, false
	}
	return p, true
}

// RequirePrincipal answers 401 and aborts when the request has no principal.
func RequirePrincipal(c *gin.Context) (Principal, bool) {
	p, ok := PrincipalFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	return p, ok
}

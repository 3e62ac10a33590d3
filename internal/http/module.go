// Package http provides HTTP server infrastructure including the Module interface
// that all domain modules must implement for route registration.
package http

import (
	"fieldops_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Module represents a bounded context that can register its HTTP routes.
// Each domain module implements this interface to encapsulate its own
// route setup, keeping the main router decoupled from specific endpoints.
type Module interface {
	// Name returns the module's identifier for logging purposes.
	Name() string
	// RegisterRoutes mounts the module's routes on the provided router group.
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext provides shared dependencies for module route registration.
type RouterContext struct {
	// Engine is the root Gin engine for modules that need engine-level access.
	Engine *gin.Engine
	// V1 is the unauthenticated /api/v1 route group.
	V1 *gin.RouterGroup
	// Protected is authenticated and tenant-scoped; customer contexts are allowed.
	Protected *gin.RouterGroup
	// Staff is Protected restricted to account members.
	Staff *gin.RouterGroup
	// Admin is Staff restricted to owners and admins, under /api/v1/admin.
	Admin *gin.RouterGroup
	// AdminRateLimiter throttles expensive admin operations per client IP.
	AdminRateLimiter *httpkit.IPRateLimiter
}

// Package visits provides the field work bounded context: the visit and job
// status machine and the job timeline.
package visits

import (
	"fieldops_backend/internal/events"
	apphttp "fieldops_backend/internal/http"
	"fieldops_backend/internal/visits/handler"
	"fieldops_backend/internal/visits/repository"
	"fieldops_backend/internal/visits/service"
	"fieldops_backend/platform/logger"
	"fieldops_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the visits bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the visits module with all its dependencies.
func NewModule(pool *pgxpool.Pool, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), bus, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "visits"
}

// Service returns the visits service.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts visit and job routes on the staff group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	visits := ctx.Staff.Group("/visits")
	visits.GET("", m.handler.ListVisits)
	visits.PATCH("/:id/status", m.handler.TransitionVisit)

	jobs := ctx.Staff.Group("/jobs")
	jobs.PATCH("/:id/status", m.handler.TransitionJob)
	jobs.GET("/:id/timeline", m.handler.Timeline)
	jobs.POST("/:id/notes", m.handler.AddNote)
	jobs.POST("/:id/time-entries", m.handler.LogTime)
	jobs.POST("/:id/line-items", m.handler.AddLineItem)
}

// Package automation provides the automation bounded context: scheduling of
// follow-up work, the trigger hooks and the reporting endpoints.
package automation

import (
	"time"

	"fieldops_backend/internal/automation/handler"
	"fieldops_backend/internal/automation/hooks"
	"fieldops_backend/internal/automation/repository"
	"fieldops_backend/internal/automation/service"
	"fieldops_backend/internal/events"
	apphttp "fieldops_backend/internal/http"
	"fieldops_backend/platform/logger"
	"fieldops_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Options tune the automation module.
type Options struct {
	// Redis enables the settings cache when non-nil.
	Redis            *redis.Client
	SettingsCacheTTL time.Duration
	PhoneRegion      string
	// Events backs the admin event endpoint. Nil disables it.
	Events events.Bus
}

// Module is the automation bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	hooks   *hooks.Hooks
	repo    *repository.Repository
}

// NewModule creates and initializes the automation module with all its dependencies.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger, opts Options) *Module {
	repo := repository.New(pool)

	var svcOpts []service.Option
	if opts.Redis != nil {
		svcOpts = append(svcOpts, service.WithSettingsCache(repository.NewSettingsCache(opts.Redis, opts.SettingsCacheTTL)))
	}
	svc := service.New(repo, log, svcOpts...)

	var hookOpts []hooks.Option
	if opts.PhoneRegion != "" {
		hookOpts = append(hookOpts, hooks.WithPhoneRegion(opts.PhoneRegion))
	}
	h := hooks.New(svc, repo.Entities(), log, hookOpts...)

	return &Module{
		handler: handler.New(svc, h, publisherFor(opts.Events), val),
		service: svc,
		hooks:   h,
		repo:    repo,
	}
}

func publisherFor(bus events.Bus) handler.Publisher {
	if bus == nil {
		return nil
	}
	return bus
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "automation"
}

// Service returns the scheduler service for the driver and other modules.
func (m *Module) Service() *service.Service {
	return m.service
}

// Hooks returns the trigger hooks.
func (m *Module) Hooks() *hooks.Hooks {
	return m.hooks
}

// Entities returns the tenant-scoped entity reader.
func (m *Module) Entities() *repository.EntityReader {
	return m.repo.Entities()
}

// RegisterRoutes mounts automation routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Staff.Group("/automations")
	group.GET("", m.handler.List)
	group.GET("/settings", m.handler.GetSettings)
	group.GET("/:id", m.handler.Get)

	adminGroup := ctx.Admin.Group("/automations")
	adminGroup.PATCH("/settings", m.handler.UpdateSettings)
	adminGroup.POST("/hooks/:kind/:id", ctx.AdminRateLimiter.RateLimit(), m.handler.FireHook)
	adminGroup.POST("/events/:kind/:id", ctx.AdminRateLimiter.RateLimit(), m.handler.EmitEvent)
}

// RegisterHandlers subscribes the trigger hooks to domain events.
func (m *Module) RegisterHandlers(bus events.Bus) {
	m.hooks.RegisterHandlers(bus)
}

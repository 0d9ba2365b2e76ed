// Package credits is the account ledger bounded context.
package credits

import (
	"leadgen_backend/internal/credits/handler"
	"leadgen_backend/internal/credits/repository"
	"leadgen_backend/internal/credits/service"
	"leadgen_backend/internal/events"
	apphttp "leadgen_backend/internal/http"
	"leadgen_backend/platform/logger"
	"leadgen_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the credits bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the credits module.
func NewModule(pool *pgxpool.Pool, bus events.Publisher, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), log)
	svc.SetEventBus(bus)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Service exposes the ledger for adapters.
func (m *Module) Service() *service.Service {
	return m.service
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "credits"
}

// RegisterRoutes mounts /api/me/* and /api/admin/credits/*.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/me"))
	m.handler.RegisterAdminRoutes(ctx.Admin.Group("/credits"))
}

var _ apphttp.Module = (*Module)(nil)

// Package leads is the lead delivery bounded context: cache search, live
// top-up, billing through the ledger and CSV export.
package leads

import (
	"time"

	"leadgen_backend/internal/events"
	apphttp "leadgen_backend/internal/http"
	"leadgen_backend/internal/leads/handler"
	"leadgen_backend/internal/leads/ports"
	"leadgen_backend/internal/leads/repository"
	"leadgen_backend/internal/leads/service"
	"leadgen_backend/platform/config"
	"leadgen_backend/platform/logger"
	"leadgen_backend/platform/metrics"
	"leadgen_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config is what the leads module reads from application configuration.
type Config interface {
	config.SearchConfig
	GetDiscoveryTimeout() time.Duration
}

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler          *handler.Handler
	service          *service.Service
	searchMiddleware []gin.HandlerFunc
}

// NewModule creates the leads module. discovery may be nil, in which case
// searches are served from the cache only.
func NewModule(pool *pgxpool.Pool, ledger ports.DeliveryLedger, discovery ports.LiveDiscovery, cfg Config, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, ledger, discovery, service.Limits{
		MaxLimit:         cfg.GetSearchMaxLimit(),
		HistoryCap:       cfg.GetDeliveryHistoryCap(),
		DiscoveryTimeout: cfg.GetDiscoveryTimeout(),
	}, log)

	return &Module{
		handler: handler.New(svc, val, cfg.GetSearchDefaultLimit()),
		service: svc,
	}
}

// Service exposes the coordinator to the jobs module through adapters.
func (m *Module) Service() *service.Service {
	return m.service
}

// SetBackfillScheduler wires asynchronous cache backfill.
func (m *Module) SetBackfillScheduler(b ports.BackfillScheduler) {
	m.service.SetBackfillScheduler(b)
}

// SetEventBus wires domain event publishing.
func (m *Module) SetEventBus(bus events.Publisher) {
	m.service.SetEventBus(bus)
}

// SetMetrics wires the metrics recorder.
func (m *Module) SetMetrics(rec metrics.Recorder) {
	m.service.SetMetrics(rec)
}

// UseSearchMiddleware adds middleware in front of POST /search only.
func (m *Module) UseSearchMiddleware(mw ...gin.HandlerFunc) {
	m.searchMiddleware = append(m.searchMiddleware, mw...)
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// RegisterRoutes mounts /api/search and /api/export-csv.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected, m.searchMiddleware...)
}

var _ apphttp.Module = (*Module)(nil)

// Package jobs runs lead searches in the background and exposes their
// progress for polling and push delivery.
package jobs

import (
	"leadgen_backend/internal/events"
	apphttp "leadgen_backend/internal/http"
	"leadgen_backend/internal/jobs/handler"
	"leadgen_backend/internal/jobs/repository"
	"leadgen_backend/internal/jobs/service"
	"leadgen_backend/platform/config"
	"leadgen_backend/platform/logger"
	"leadgen_backend/platform/metrics"
	"leadgen_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the search jobs module implementing http.Module.
type Module struct {
	handler          *handler.Handler
	service          *service.Service
	submitMiddleware []gin.HandlerFunc
}

// NewModule creates the jobs module. The enqueuer is wired later with SetEnqueuer.
func NewModule(pool *pgxpool.Pool, searcher service.Searcher, cfg config.SearchConfig, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), searcher, cfg.GetSearchMaxLimit(), log)
	return &Module{
		handler: handler.New(svc, val, cfg.GetSearchDefaultLimit()),
		service: svc,
	}
}

// Service exposes job processing to the worker.
func (m *Module) Service() *service.Service {
	return m.service
}

func (m *Module) SetEnqueuer(e service.Enqueuer) {
	m.service.SetEnqueuer(e)
}

func (m *Module) SetEventBus(bus events.Publisher) {
	m.service.SetEventBus(bus)
}

func (m *Module) SetMetrics(rec metrics.Recorder) {
	m.service.SetMetrics(rec)
}

// UseSubmitMiddleware adds middleware in front of POST /search/jobs only.
func (m *Module) UseSubmitMiddleware(mw ...gin.HandlerFunc) {
	m.submitMiddleware = append(m.submitMiddleware, mw...)
}

func (m *Module) Name() string {
	return "jobs"
}

// RegisterRoutes mounts /api/search/jobs.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected, m.submitMiddleware...)
}

var _ apphttp.Module = (*Module)(nil)

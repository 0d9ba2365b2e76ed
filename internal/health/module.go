// Package health serves the readiness endpoint.
package health

import (
	"context"
	"net/http"
	"time"

	"leadgen_backend/internal/discovery/client"
	apphttp "leadgen_backend/internal/http"
	"leadgen_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const (
	checkTimeout = 3 * time.Second

	statusOK       = "ok"
	statusDown     = "down"
	statusDisabled = "disabled"
)

// Pinger is a dependency that answers a ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// DiscoveryChecker reports the discovery service's own health.
type DiscoveryChecker interface {
	Health(ctx context.Context) (client.HealthStatus, error)
}

// Response is the body of GET /api/health.
type Response struct {
	OK        bool                `json:"ok"`
	Database  string              `json:"database"`
	Redis     string              `json:"redis"`
	Discovery client.HealthStatus `json:"discovery"`
}

type Module struct {
	db        Pinger
	redis     Pinger
	discovery DiscoveryChecker
	log       *logger.Logger
}

// NewModule creates the health module. redis and discovery may be nil.
func NewModule(db Pinger, redis Pinger, discovery DiscoveryChecker, log *logger.Logger) *Module {
	return &Module{db: db, redis: redis, discovery: discovery, log: log}
}

// Check runs every dependency check concurrently. Only the database decides readiness.
func (m *Module) Check(ctx context.Context) Response {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	resp := Response{Database: statusDown, Redis: statusDisabled}

	// Checks never fail the group; each records its own outcome.
	var g errgroup.Group
	g.Go(func() error {
		if err := m.db.Ping(ctx); err != nil {
			m.log.WithContext(ctx).DatabaseError("health.ping", err)
			return nil
		}
		resp.Database = statusOK
		return nil
	})
	if m.redis != nil {
		g.Go(func() error {
			if err := m.redis.Ping(ctx); err != nil {
				m.log.WithContext(ctx).UpstreamFailure("redis", "ping", err)
				resp.Redis = statusDown
				return nil
			}
			resp.Redis = statusOK
			return nil
		})
	}
	if m.discovery != nil {
		g.Go(func() error {
			status, err := m.discovery.Health(ctx)
			if err != nil {
				m.log.WithContext(ctx).UpstreamFailure("discovery", "health", err)
			}
			resp.Discovery = status
			return nil
		})
	}
	_ = g.Wait()

	resp.OK = resp.Database == statusOK
	return resp
}

func (m *Module) handle(c *gin.Context) {
	resp := m.Check(c.Request.Context())
	status := http.StatusOK
	if !resp.OK {
		status = http.StatusServiceUnavailable
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(status, resp)
}

func (m *Module) Name() string {
	return "health"
}

// RegisterRoutes mounts GET /api/health without authentication.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.API.GET("/health", m.handle)
}

var _ apphttp.Module = (*Module)(nil)

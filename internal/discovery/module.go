// Package discovery provides the live discovery bounded context module: the
// HTTP client for the scraping backend and the cache backfill handler.
package discovery

import (
	"context"
	"time"

	"leadgen_backend/internal/discovery/client"
	"leadgen_backend/internal/events"
	"leadgen_backend/platform/config"
	"leadgen_backend/platform/logger"
	"leadgen_backend/platform/metrics"
)

// Module is the discovery bounded context module. It has no HTTP routes.
type Module struct {
	client          *client.Client
	backfillTimeout time.Duration
	log             *logger.Logger
}

// NewModule creates the discovery client from configuration.
func NewModule(cfg config.DiscoveryConfig, log *logger.Logger) *Module {
	backfillTimeout := cfg.GetDiscoveryBackfillTimeout()
	if backfillTimeout <= 0 {
		backfillTimeout = 2 * time.Minute
	}

	c := client.New(cfg.GetDiscoveryBaseURL(), cfg.GetDiscoveryAPIKey(), backfillTimeout, log)
	log.Info("discovery module initialized", "base_url", cfg.GetDiscoveryBaseURL())

	return &Module{
		client:          c,
		backfillTimeout: backfillTimeout,
		log:             log,
	}
}

// Client returns the discovery client for adapters and health checks.
func (m *Module) Client() *client.Client {
	return m.client
}

// SetMetrics wires call metrics into the client.
func (m *Module) SetMetrics(rec metrics.Recorder) {
	m.client.SetMetrics(rec)
}

// RegisterHandlers subscribes the in-process backfill handler. Used when no
// task queue is configured.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.DiscoveryBackfillRequested{}.EventName(), events.HandlerFunc(m.handleBackfillRequested))
}

func (m *Module) handleBackfillRequested(ctx context.Context, event events.Event) error {
	e, ok := event.(events.DiscoveryBackfillRequested)
	if !ok {
		return nil
	}
	return m.Backfill(ctx, client.Request{Query: e.Query, Limit: e.Limit, Exclude: e.Exclude})
}

// Backfill calls /discover under its own deadline, independent of any request.
// Failures are logged and returned for the task queue's retry policy.
func (m *Module) Backfill(ctx context.Context, req client.Request) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.backfillTimeout)
	defer cancel()

	if err := m.client.Discover(ctx, req); err != nil {
		m.log.WithContext(ctx).UpstreamFailure("discovery", "discover", err)
		return err
	}
	m.log.Debug("discovery backfill requested", "query", req.Query, "limit", req.Limit)
	return nil
}

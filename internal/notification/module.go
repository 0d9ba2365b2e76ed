// Package notification pushes job progress and balance changes to connected
// clients over Server-Sent Events.
package notification

import (
	"context"

	"leadgen_backend/internal/events"
	apphttp "leadgen_backend/internal/http"
	"leadgen_backend/internal/notification/relay"
	"leadgen_backend/internal/notification/sse"
	"leadgen_backend/platform/httpkit"
	"leadgen_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Module turns domain events into per-user SSE events. With a relay set,
// events travel through Redis so any API instance can deliver them.
type Module struct {
	sse   *sse.Service
	relay *relay.Relay
	log   *logger.Logger
}

func New(log *logger.Logger) *Module {
	return &Module{
		sse: sse.New(log),
		log: log,
	}
}

// SetRelay routes events through Redis pub/sub.
func (m *Module) SetRelay(r *relay.Relay) {
	m.relay = r
}

// SSE exposes the connection registry.
func (m *Module) SSE() *sse.Service {
	return m.sse
}

// RegisterHandlers subscribes to the events that clients can observe.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.SearchJobUpdated{}.EventName(), m)
	bus.Subscribe(events.CreditsChanged{}.EventName(), m)
	bus.Subscribe(events.LeadsDelivered{}.EventName(), m)
}

func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.SearchJobUpdated:
		return m.push(ctx, e.UserID, sse.Event{
			Type:    sse.EventJobProgress,
			JobID:   e.JobID,
			Message: e.Step,
			Data: gin.H{
				"status":          e.Status,
				"step":            e.Step,
				"progressPercent": e.ProgressPercent,
				"error":           e.Error,
			},
		})
	case events.CreditsChanged:
		return m.push(ctx, e.UserID, sse.Event{
			Type: sse.EventCreditsUpdated,
			Data: gin.H{
				"credits_available": e.CreditsAvailable,
				"delta":             e.Delta,
				"reason":            e.Reason,
			},
		})
	case events.LeadsDelivered:
		return m.push(ctx, e.UserID, sse.Event{
			Type: sse.EventLeadsDelivered,
			Data: gin.H{
				"runId":         e.RunID,
				"leadCount":     e.LeadCount,
				"emailsCharged": e.EmailsCharged,
			},
		})
	}
	return nil
}

func (m *Module) push(ctx context.Context, userID uuid.UUID, event sse.Event) error {
	if userID == uuid.Nil {
		return nil
	}
	if m.relay != nil {
		return m.relay.Publish(ctx, userID, event)
	}
	m.sse.Publish(userID, event)
	return nil
}

// RunRelay delivers relayed events to local connections until ctx is done.
// It is a no-op without a relay.
func (m *Module) RunRelay(ctx context.Context) {
	if m.relay == nil {
		return
	}
	if err := m.relay.Run(ctx, m.sse.Publish, nil); err != nil {
		m.log.Error("sse relay stopped", "error", err)
	}
}

// Close disconnects all SSE clients.
func (m *Module) Close() {
	m.sse.Close()
}

func (m *Module) Name() string {
	return "notification"
}

// RegisterRoutes mounts GET /api/events.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/events", m.sse.Handler(httpkit.UserIDFromContext))
}

var (
	_ apphttp.Module = (*Module)(nil)
	_ events.Handler = (*Module)(nil)
)

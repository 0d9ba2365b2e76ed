package adapters

import (
	"context"

	"leadgen_backend/internal/discovery/client"
	"leadgen_backend/internal/events"
	"leadgen_backend/internal/leads/ports"
	"leadgen_backend/internal/scheduler"
)

// backfillEnqueuer is implemented by *scheduler.Client.
type backfillEnqueuer interface {
	EnqueueDiscoveryBackfill(ctx context.Context, payload scheduler.DiscoveryBackfillPayload) error
}

// BackfillScheduler hands cache backfills to the task queue, or to the
// in-process event bus when no queue is configured.
// It implements the leads/ports.BackfillScheduler interface.
type BackfillScheduler struct {
	queue backfillEnqueuer
	bus   events.Publisher
}

// NewBackfillScheduler prefers queue when it is non-nil.
func NewBackfillScheduler(queue backfillEnqueuer, bus events.Publisher) *BackfillScheduler {
	return &BackfillScheduler{queue: queue, bus: bus}
}

func (s *BackfillScheduler) ScheduleBackfill(ctx context.Context, req ports.DiscoveryRequest) error {
	if s.queue != nil {
		return s.queue.EnqueueDiscoveryBackfill(ctx, scheduler.DiscoveryBackfillPayload{
			Query:   req.Query,
			Limit:   req.Limit,
			Exclude: req.Exclude,
		})
	}
	if s.bus != nil {
		s.bus.Publish(ctx, events.DiscoveryBackfillRequested{
			BaseEvent: events.NewBaseEvent(),
			Query:     req.Query,
			Limit:     req.Limit,
			Exclude:   req.Exclude,
		})
	}
	return nil
}

// discoveryBackfill is implemented by *discovery.Module.
type discoveryBackfill interface {
	Backfill(ctx context.Context, req client.Request) error
}

// DiscoveryBackfiller runs queued backfill tasks on the worker.
// It implements the scheduler.Backfiller interface.
type DiscoveryBackfiller struct {
	discovery discoveryBackfill
}

func NewDiscoveryBackfiller(d discoveryBackfill) *DiscoveryBackfiller {
	return &DiscoveryBackfiller{discovery: d}
}

func (b *DiscoveryBackfiller) RunBackfill(ctx context.Context, payload scheduler.DiscoveryBackfillPayload) error {
	return b.discovery.Backfill(ctx, client.Request{
		Query:   payload.Query,
		Limit:   payload.Limit,
		Exclude: payload.Exclude,
	})
}

var (
	_ ports.BackfillScheduler = (*BackfillScheduler)(nil)
	_ scheduler.Backfiller    = (*DiscoveryBackfiller)(nil)
)

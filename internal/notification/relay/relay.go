// Package relay carries SSE events between processes over Redis pub/sub, so
// progress raised by the background worker reaches clients connected to the
// API.
package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"leadgen_backend/internal/notification/sse"
	"leadgen_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel shared by API and worker.
const DefaultChannel = "leadgen:sse"

type envelope struct {
	UserID uuid.UUID `json:"userId"`
	Event  sse.Event `json:"event"`
}

// DeliverFunc hands a relayed event to local connections.
type DeliverFunc func(userID uuid.UUID, event sse.Event)

type Relay struct {
	rdb     *redis.Client
	channel string
	log     *logger.Logger
}

func New(rdb *redis.Client, channel string, log *logger.Logger) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Relay{rdb: rdb, channel: channel, log: log}
}

// Publish broadcasts an event for a user to every subscribed process.
func (r *Relay) Publish(ctx context.Context, userID uuid.UUID, event sse.Event) error {
	payload, err := json.Marshal(envelope{UserID: userID, Event: event})
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("relay publish: %w", err)
	}
	return nil
}

// Run subscribes and delivers events until ctx is cancelled. ready, if not
// nil, is closed once the subscription is active.
func (r *Relay) Run(ctx context.Context, deliver DeliverFunc, ready chan<- struct{}) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("relay subscribe: %w", err)
	}
	if ready != nil {
		close(ready)
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.log.Warn("relay message dropped", "error", err)
				continue
			}
			if env.UserID == uuid.Nil {
				continue
			}
			deliver(env.UserID, env.Event)
		}
	}
}

package ws

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/queueup/queueup/internal/event"
)

// Relay subscribes to the Redis event channels and forwards each message
// to the hub. It is the only consumer side of the publisher: every API
// instance runs one relay, so events published by any instance reach the
// WebSocket clients of all of them.
type Relay struct {
	client *redis.Client
	hub    *Hub
	logger *slog.Logger
}

// NewRelay creates a new Relay.
func NewRelay(client *redis.Client, hub *Hub, logger *slog.Logger) *Relay {
	return &Relay{
		client: client,
		hub:    hub,
		logger: logger.With("component", "ws.relay"),
	}
}

// Run consumes events until the context is cancelled. Pattern subscribe
// covers every per-recruitment channel; the global channel name contains
// no glob characters so it matches itself.
func (r *Relay) Run(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, event.GlobalChannel, event.ChannelPattern)
	defer func() {
		_ = pubsub.Close()
	}()

	r.logger.Info("event relay started",
		slog.String("global_channel", event.GlobalChannel),
		slog.String("pattern", event.ChannelPattern),
	)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("event relay stopped")
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				r.logger.Warn("event relay subscription closed")
				return nil
			}
			r.hub.Broadcast(msg.Channel, []byte(msg.Payload))
		}
	}
}

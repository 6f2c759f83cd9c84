package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"feedline/internal/observability"
)

// Frame is the envelope every websocket message uses.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// EncodeFrame wraps data in a Frame for event.
func EncodeFrame(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", event, err)
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

// Broadcaster delivers events to every connected client. With Redis it
// publishes and lets each instance's subscriber fan out, otherwise it writes
// to the local hub directly. Exactly one of the two paths delivers an event.
type Broadcaster struct {
	hub      *Hub
	notifier *Notifier
}

// NewBroadcaster returns a Broadcaster over hub. notifier may be nil.
func NewBroadcaster(hub *Hub, notifier *Notifier) (*Broadcaster, error) {
	if hub == nil {
		return nil, errors.New("broadcaster: hub is required")
	}
	return &Broadcaster{hub: hub, notifier: notifier}, nil
}

// Start wires the hub to the Redis subscriber when Redis is configured.
func (b *Broadcaster) Start(ctx context.Context) error {
	if !b.notifier.Enabled() {
		b.hub.log.LogLifecycle(ctx, "started", slog.String("transport", "local"))
		return nil
	}
	if err := b.hub.StartWiring(ctx, b.notifier); err != nil {
		return fmt.Errorf("subscribe %s: %w", FeedChannel, err)
	}
	b.hub.log.LogLifecycle(ctx, "started", slog.String("transport", "redis"))
	return nil
}

// Emit encodes data as an event frame and delivers it.
func (b *Broadcaster) Emit(ctx context.Context, event string, data any) error {
	frame, err := EncodeFrame(event, data)
	if err != nil {
		return err
	}

	if b.notifier.Enabled() {
		err := b.notifier.Publish(ctx, frame)
		if err == nil {
			observability.RealtimeEvents.WithLabelValues(event, "redis").Inc()
			return nil
		}
		observability.Logger.WarnContext(ctx, "feed publish failed, delivering locally",
			slog.String("event", event), slog.String("error", err.Error()))
	}

	b.hub.BroadcastAll(frame)
	observability.RealtimeEvents.WithLabelValues(event, "local").Inc()
	return nil
}

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
)

// Handler processes one decoded message.
type Handler func(ctx context.Context, env Envelope) error

// PublishEnvelope encodes env and publishes it on channel.
func PublishEnvelope(ctx context.Context, b Broker, channel string, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return b.Publish(ctx, channel, data)
}

// Consume subscribes to channel and calls handler for every message until
// ctx is done or the subscription closes. Decode and handler errors go to
// onError and do not stop consumption.
func Consume(ctx context.Context, b Broker, channel string, handler Handler, onError func(error)) error {
	msgs, err := b.Subscribe(ctx, channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}
	if onError == nil {
		onError = func(error) {}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-msgs:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				onError(fmt.Errorf("failed to decode message: %w", err))
				continue
			}
			if err := handler(ctx, env); err != nil {
				onError(fmt.Errorf("failed to handle %s: %w", env.Type, err))
			}
		}
	}
}

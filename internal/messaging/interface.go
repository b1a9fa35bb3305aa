package messaging

import (
	"context"

	"github.com/rs/zerolog/log"
)

// PublisherInterface defines the contract for event publishing
// This allows for easy mocking in tests
type PublisherInterface interface {
	Publish(ctx context.Context, routingKey string, eventData interface{}) error
	Close() error
}

// Ensure Publisher implements PublisherInterface
var _ PublisherInterface = (*Publisher)(nil)

// NoopPublisher drops every event. It is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, routingKey string, eventData interface{}) error {
	log.Debug().Str("routing_key", routingKey).Msg("event publishing disabled, dropping event")
	return nil
}

func (NoopPublisher) Close() error { return nil }

// PublishAfterCommit publishes an event whose data is already durable.
// Failures are logged and never returned to the request.
func PublishAfterCommit(ctx context.Context, p PublisherInterface, routingKey string, eventData interface{}) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, routingKey, eventData); err != nil {
		log.Error().Err(err).Str("routing_key", routingKey).Msg("failed to publish event")
	}
}

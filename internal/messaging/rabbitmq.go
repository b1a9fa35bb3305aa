package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const (
	ExchangeName = "hdu.events"
	ExchangeType = "topic"
)

// Publisher sends domain events to a durable topic exchange. A dropped
// broker connection is re-dialled on the next Publish.
type Publisher struct {
	url      string
	exchange string

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewPublisher connects to RabbitMQ and declares the topic exchange.
func NewPublisher(rabbitmqURL string) (*Publisher, error) {
	if rabbitmqURL == "" {
		return nil, fmt.Errorf("rabbitmq url is empty")
	}
	p := &Publisher{url: rabbitmqURL, exchange: ExchangeName}
	if err := p.connect(); err != nil {
		return nil, err
	}
	log.Info().Str("url", maskPassword(rabbitmqURL)).Str("exchange", p.exchange).Msg("connected to RabbitMQ")
	return p, nil
}

// connect must be called with mu held or before p is shared.
func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}
	if err := declareTopology(ch, p.exchange); err != nil {
		ch.Close()
		conn.Close()
		return err
	}
	p.conn, p.channel = conn, ch
	return nil
}

func declareTopology(ch *amqp.Channel, exchange string) error {
	// durable, not auto-deleted, not internal, wait for confirmation
	if err := ch.ExchangeDeclare(exchange, ExchangeType, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return nil
}

func newMessage(eventData interface{}) (amqp.Publishing, error) {
	body, err := json.Marshal(eventData)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal event data: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
	}
	if base, ok := eventData.(interface{ EventMeta() BaseEvent }); ok {
		meta := base.EventMeta()
		msg.MessageId = meta.EventID
		msg.Type = meta.EventType
	}
	return msg, nil
}

// Publish sends eventData as JSON under routingKey. amqp channels are not
// safe for concurrent use, so publishes are serialized.
func (p *Publisher) Publish(ctx context.Context, routingKey string, eventData interface{}) error {
	if p == nil {
		log.Warn().Str("routing_key", routingKey).Msg("RabbitMQ publisher not initialized, skipping event")
		return nil
	}

	msg, err := newMessage(eventData)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil || p.channel.IsClosed() {
		p.closeLocked()
		if err := p.connect(); err != nil {
			return fmt.Errorf("failed to publish event to %s: %w", routingKey, err)
		}
		log.Info().Str("exchange", p.exchange).Msg("reconnected to RabbitMQ")
	}

	if err := p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish event to %s: %w", routingKey, err)
	}

	log.Debug().Str("routing_key", routingKey).Str("message_id", msg.MessageId).Msg("published event")
	return nil
}

func (p *Publisher) closeLocked() error {
	var err error
	if p.channel != nil {
		if cerr := p.channel.Close(); cerr != nil && !p.channel.IsClosed() {
			log.Warn().Err(cerr).Msg("error closing RabbitMQ channel")
		}
		p.channel = nil
	}
	if p.conn != nil {
		if !p.conn.IsClosed() {
			err = p.conn.Close()
		}
		p.conn = nil
	}
	return err
}

// Close closes the channel and the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

// maskPassword hides credentials in a broker URL.
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}

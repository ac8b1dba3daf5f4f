package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"snapfeed/internal/middleware"

	amqp "github.com/rabbitmq/amqp091-go"
)

// publisher is the subset of *amqp.Channel the sink needs.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitSink publishes snap events as JSON to a durable queue on the
// default exchange.
type RabbitSink struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  publisher
	queue    string
	provider string
}

// DialRabbit connects to url and declares queue.
func DialRabbit(url, queue, provider string) (*RabbitSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	middleware.Logger.Info("RabbitMQ metrics sink ready", slog.String("queue", queue))
	return &RabbitSink{conn: conn, channel: ch, queue: queue, provider: provider}, nil
}

func newRabbitSink(ch publisher, queue, provider string) *RabbitSink {
	return &RabbitSink{channel: ch, queue: queue, provider: provider}
}

// SnapCreated publishes event wrapped in a Message envelope.
func (s *RabbitSink) SnapCreated(ctx context.Context, event SnapCreated) error {
	if event.Hashtags == nil {
		event.Hashtags = []string{}
	}
	body, err := json.Marshal(Message{ProvidedBy: s.provider, Body: event})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// amqp channels are not safe for concurrent publishing.
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel.PublishWithContext(ctx,
		"",
		s.queue,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// Close releases the channel and connection.
func (s *RabbitSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.channel.Close()
	if s.conn != nil {
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

package mq

import (
	"fmt"

	"github.com/rabbitmq/amqp091-go"
)

const (
	DLQExchangeName = "events.dlq"
)

// DeadLetterer parks non-processable messages for later inspection.
type DeadLetterer interface {
	Publish(routingKey string, payload []byte, originalError string) error
}

// DeadLetterPublisher publishes to the dead letter exchange. Messages land in
// a per-routing-key queue declared by EnsureQueue.
type DeadLetterPublisher struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

func NewDeadLetterPublisher(url string) (*DeadLetterPublisher, error) {
	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareDLQExchange(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare DLQ exchange: %w", err)
	}

	return &DeadLetterPublisher{conn: conn, channel: ch}, nil
}

func declareDLQExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(
		DLQExchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
}

// EnsureQueue declares and binds the dead letter queue for a routing key.
func (p *DeadLetterPublisher) EnsureQueue(routingKey string) error {
	queueName := fmt.Sprintf("%s.dlq", routingKey)

	q, err := p.channel.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare DLQ queue: %w", err)
	}

	if err := p.channel.QueueBind(q.Name, routingKey, DLQExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind DLQ queue: %w", err)
	}

	return nil
}

// Publish parks a message on the dead letter exchange, carrying the original
// failure in the headers.
func (p *DeadLetterPublisher) Publish(routingKey string, payload []byte, originalError string) error {
	headers := amqp091.Table{
		"x-original-error": originalError,
		"x-failed-at":      "notification-dispatcher",
	}

	return p.channel.Publish(
		DLQExchangeName,
		routingKey,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp091.Persistent,
			Headers:      headers,
		},
	)
}

func (p *DeadLetterPublisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// IsConnected reports whether the underlying connection is still alive.
func (p *DeadLetterPublisher) IsConnected() bool {
	return p.conn != nil && p.channel != nil && !p.conn.IsClosed()
}

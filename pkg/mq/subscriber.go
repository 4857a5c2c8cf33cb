package mq

import (
	"context"
	"fmt"
	"time"

	"compositesvc/pkg/metrics"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Disposition is the handler's verdict on a delivery.
type Disposition int

const (
	// Ack removes the message from the queue.
	Ack Disposition = iota
	// Nack requeues the message for redelivery.
	Nack
	// DeadLetter parks the message on the DLQ, then acks the original.
	DeadLetter
)

func (d Disposition) String() string {
	switch d {
	case Ack:
		return "ack"
	case Nack:
		return "nack"
	case DeadLetter:
		return "dead_letter"
	default:
		return "unknown"
	}
}

// Handler processes one raw message body. The returned error is logged and,
// for DeadLetter dispositions, recorded on the parked message.
type Handler func(ctx context.Context, body []byte) (Disposition, error)

// Subscriber consumes one durable queue bound to a routing key on the events
// exchange. Messages are processed sequentially; a delivery is acked or
// nacked strictly after its handler returns.
//
// Delivery is at-least-once: a crash between a successful send and the ack
// redelivers the message and the notification is sent again. That duplicate
// is accepted behavior, not deduplicated.
type Subscriber struct {
	conn       *amqp091.Connection
	channel    *amqp091.Channel
	queue      amqp091.Queue
	routingKey string
	handler    Handler
	dlq        DeadLetterer
	logger     *zap.Logger
}

// NewSubscriber declares the queue, binds it to the routing key and prepares
// the matching dead letter queue.
func NewSubscriber(url, queueName, routingKey string, dlq DeadLetterer, logger *zap.Logger) (*Subscriber, error) {
	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := DeclareExchange(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, routingKey, ExchangeName, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	logger.Info("Subscriber initialized",
		zap.String("routing_key", routingKey),
		zap.String("queue", queueName),
		zap.String("exchange", ExchangeName),
	)

	return &Subscriber{
		conn:       conn,
		channel:    ch,
		queue:      q,
		routingKey: routingKey,
		dlq:        dlq,
		logger:     logger,
	}, nil
}

func (s *Subscriber) SetHandler(h Handler) {
	s.handler = h
}

func (s *Subscriber) Close() {
	if s.channel != nil {
		_ = s.channel.Close()
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

// Start consumes until ctx is cancelled or the delivery channel closes.
// Cancellation stops pulling new messages; the in-flight message, if any,
// finishes and is acked or nacked before Start returns.
func (s *Subscriber) Start(ctx context.Context) error {
	if s.handler == nil {
		return fmt.Errorf("subscriber handler not set")
	}

	deliveries, err := s.channel.Consume(
		s.queue.Name,
		s.queue.Name, // consumer tag
		false,        // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	s.logger.Info("Subscriber started consuming messages",
		zap.String("routing_key", s.routingKey),
		zap.String("queue", s.queue.Name),
	)

	for {
		select {
		case <-ctx.Done():
			// Unacked deliveries left behind are requeued by the broker.
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed for queue %s", s.queue.Name)
			}
			s.process(ctx, d)
		}
	}
}

func (s *Subscriber) process(ctx context.Context, d amqp091.Delivery) {
	start := time.Now()

	// Shutdown cancels the pull loop only; work already in flight must
	// finish and ack within the supervisor's grace period, so the handler
	// runs on a context detached from the consume cancel.
	disp, err := s.invoke(context.WithoutCancel(ctx), d.Body)

	switch disp {
	case Ack:
		if err := d.Ack(false); err != nil {
			s.logger.Error("Failed to ack message",
				zap.String("queue", s.queue.Name),
				zap.Error(err),
			)
		}
	case Nack:
		s.logger.Warn("Message left for redelivery",
			zap.String("queue", s.queue.Name),
			zap.Error(err),
		)
		if err := d.Nack(false, true); err != nil {
			s.logger.Error("Failed to nack message",
				zap.String("queue", s.queue.Name),
				zap.Error(err),
			)
		}
	case DeadLetter:
		reason := "unknown"
		if err != nil {
			reason = err.Error()
		}
		if pubErr := s.dlq.Publish(s.routingKey, d.Body, reason); pubErr != nil {
			// Parking failed; keep the message in the queue instead of losing it.
			s.logger.Error("Failed to publish to DLQ, requeueing",
				zap.String("queue", s.queue.Name),
				zap.Error(pubErr),
			)
			disp = Nack
			if err := d.Nack(false, true); err != nil {
				s.logger.Error("Failed to nack message",
					zap.String("queue", s.queue.Name),
					zap.Error(err),
				)
			}
			break
		}
		s.logger.Warn("Message dead-lettered",
			zap.String("queue", s.queue.Name),
			zap.String("reason", reason),
		)
		if err := d.Ack(false); err != nil {
			s.logger.Error("Failed to ack dead-lettered message",
				zap.String("queue", s.queue.Name),
				zap.Error(err),
			)
		}
	}

	metrics.RecordMessageConsumed(s.queue.Name, disp.String(), time.Since(start))
}

// invoke runs the handler with panic recovery; a panicking handler leaves the
// message eligible for redelivery.
func (s *Subscriber) invoke(ctx context.Context, body []byte) (disp Disposition, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Handler panic recovered",
				zap.String("queue", s.queue.Name),
				zap.Any("panic", r),
			)
			disp = Nack
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return s.handler(ctx, body)
}

package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"compositesvc/pkg/mq"

	"go.uber.org/zap"
)

// Binding statically maps one subscription queue to the topic routing key it
// consumes and the handler that processes its messages. Fixed at startup.
type Binding struct {
	Queue      string
	RoutingKey string
	Handler    mq.Handler
}

// subscription is what the supervisor runs; satisfied by *mq.Subscriber.
type subscription interface {
	SetHandler(mq.Handler)
	Start(ctx context.Context) error
	Close()
}

// DeadLetterQueues is satisfied by *mq.DeadLetterPublisher.
type DeadLetterQueues interface {
	mq.DeadLetterer
	EnsureQueue(routingKey string) error
}

type subscriberFactory func(url, queue, routingKey string, dlq mq.DeadLetterer, logger *zap.Logger) (subscription, error)

// Supervisor runs one subscriber goroutine per binding, independent of the
// serving path and of each other. A worker that fails to start or exits is
// logged but never takes down its siblings or the process.
type Supervisor struct {
	url     string
	dlq     DeadLetterQueues
	logger  *zap.Logger
	factory subscriberFactory

	mu      sync.Mutex
	subs    []subscription
	running int
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewSupervisor(url string, dlq DeadLetterQueues, logger *zap.Logger) *Supervisor {
	return &Supervisor{
		url:    url,
		dlq:    dlq,
		logger: logger,
		factory: func(url, queue, routingKey string, dlq mq.DeadLetterer, logger *zap.Logger) (subscription, error) {
			return mq.NewSubscriber(url, queue, routingKey, dlq, logger)
		},
	}
}

// Start launches one subscriber per binding. It returns an error only when no
// binding could be started at all; partial startup is reported through logs
// so a dead subscriber never goes unnoticed.
func (s *Supervisor) Start(ctx context.Context, bindings []Binding) error {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	for _, b := range bindings {
		if err := s.dlq.EnsureQueue(b.RoutingKey); err != nil {
			s.logger.Error("Failed to prepare DLQ queue, worker not started",
				zap.String("queue", b.Queue),
				zap.String("routing_key", b.RoutingKey),
				zap.Error(err),
			)
			continue
		}

		sub, err := s.factory(s.url, b.Queue, b.RoutingKey, s.dlq, s.logger)
		if err != nil {
			s.logger.Error("Failed to initialize subscriber, worker not started",
				zap.String("queue", b.Queue),
				zap.String("routing_key", b.RoutingKey),
				zap.Error(err),
			)
			continue
		}
		sub.SetHandler(b.Handler)

		s.mu.Lock()
		s.subs = append(s.subs, sub)
		s.running++
		s.mu.Unlock()

		s.wg.Add(1)
		go func(sub subscription, b Binding) {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				s.running--
				s.mu.Unlock()
			}()

			if err := sub.Start(ctx); err != nil {
				// A silently dead subscriber is a failure hazard; make the
				// exit loud even though we do not restart it.
				s.logger.Error("Subscription worker exited",
					zap.String("queue", b.Queue),
					zap.String("routing_key", b.RoutingKey),
					zap.Error(err),
				)
				return
			}
			s.logger.Info("Subscription worker stopped",
				zap.String("queue", b.Queue),
				zap.String("routing_key", b.RoutingKey),
			)
		}(sub, b)
	}

	s.mu.Lock()
	started := s.running
	s.mu.Unlock()

	if started == 0 && len(bindings) > 0 {
		cancel()
		return fmt.Errorf("no subscription worker could be started")
	}
	return nil
}

// Running reports how many workers are currently consuming.
func (s *Supervisor) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop cancels message pulling and waits up to grace for in-flight messages
// to finish. Afterwards the subscriber channels are closed; anything still
// unacked goes back to the broker for redelivery.
func (s *Supervisor) Stop(grace time.Duration) {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("All subscription workers drained")
	case <-time.After(grace):
		s.logger.Warn("Shutdown grace elapsed, abandoning in-flight messages",
			zap.Duration("grace", grace),
		)
	}

	s.mu.Lock()
	subs := s.subs
	s.mu.Unlock()
	for _, sub := range subs {
		sub.Close()
	}
}

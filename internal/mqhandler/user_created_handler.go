package mqhandler

import (
	"context"

	"compositesvc/internal/event"
	"compositesvc/internal/mailer"
	"compositesvc/internal/notify"
	"compositesvc/pkg/metrics"
	"compositesvc/pkg/mq"

	"go.uber.org/zap"
)

// UserCreatedHandler processes user-created messages: decode and send the
// welcome email. No enrichment lookup; the payload already carries the
// recipient address.
type UserCreatedHandler struct {
	sender mailer.Sender
	queue  string
	logger *zap.Logger
}

func NewUserCreatedHandler(sender mailer.Sender, queue string, logger *zap.Logger) *UserCreatedHandler {
	return &UserCreatedHandler{
		sender: sender,
		queue:  queue,
		logger: logger,
	}
}

func (h *UserCreatedHandler) Handle(ctx context.Context, raw []byte) (mq.Disposition, error) {
	ev, err := event.Decode(event.KindUserCreated, raw)
	if err != nil {
		h.logger.Warn("Dropping malformed user-created message",
			zap.String("queue", h.queue),
			zap.Error(err),
		)
		return mq.DeadLetter, err
	}

	h.logger.Info("Handling user-created message",
		zap.Int("user_id", ev.UserID),
		zap.String("email", ev.Email),
	)

	msg, err := notify.BuildUserCreated(ev)
	if err != nil {
		h.logger.Error("Dropping unbuildable user-created message",
			zap.Int("user_id", ev.UserID),
			zap.Error(err),
		)
		return mq.DeadLetter, err
	}

	if err := h.sender.Send(ctx, msg); err != nil {
		metrics.IncrementEmailSent(string(event.KindUserCreated), "failed")
		h.logger.Error("Welcome email send failed",
			zap.Int("user_id", ev.UserID),
			zap.String("to", msg.To),
			zap.Bool("retryable", true),
			zap.Error(err),
		)
		return mq.Nack, err
	}

	metrics.IncrementEmailSent(string(event.KindUserCreated), "success")

	h.logger.Info("Welcome email sent",
		zap.Int("user_id", ev.UserID),
		zap.String("to", msg.To),
	)
	return mq.Ack, nil
}

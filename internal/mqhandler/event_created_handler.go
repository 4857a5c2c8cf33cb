package mqhandler

import (
	"context"
	"errors"

	"compositesvc/internal/enrich"
	"compositesvc/internal/event"
	"compositesvc/internal/mailer"
	"compositesvc/internal/notify"
	"compositesvc/pkg/metrics"
	"compositesvc/pkg/mq"
	"compositesvc/pkg/util"

	"go.uber.org/zap"
)

// UserLookup resolves a user profile by id.
type UserLookup interface {
	Lookup(ctx context.Context, userID int) (*enrich.Profile, error)
}

// RetryCounter bounds redeliveries of messages whose user is still missing.
type RetryCounter interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

// EventCreatedHandler processes event-created messages: decode, look up the
// creator's profile, build the confirmation email, send it.
//
// Classification per failure:
//   - decode failure: dead-letter (poison, never retried)
//   - lookup unavailable or send failure: nack (transient, redelivered)
//   - user not found: nack up to retryMax redeliveries, then dead-letter
//   - build failure: dead-letter (upstream data-quality issue)
type EventCreatedHandler struct {
	users    UserLookup
	sender   mailer.Sender
	retries  RetryCounter
	retryMax int64
	queue    string
	logger   *zap.Logger
}

func NewEventCreatedHandler(
	users UserLookup,
	sender mailer.Sender,
	retries RetryCounter,
	retryMax int64,
	queue string,
	logger *zap.Logger,
) *EventCreatedHandler {
	return &EventCreatedHandler{
		users:    users,
		sender:   sender,
		retries:  retries,
		retryMax: retryMax,
		queue:    queue,
		logger:   logger,
	}
}

func (h *EventCreatedHandler) Handle(ctx context.Context, raw []byte) (mq.Disposition, error) {
	ev, err := event.Decode(event.KindEventCreated, raw)
	if err != nil {
		h.logger.Warn("Dropping malformed event-created message",
			zap.String("queue", h.queue),
			zap.Error(err),
		)
		return mq.DeadLetter, err
	}

	h.logger.Info("Handling event-created message",
		zap.Int("event_id", ev.EventID),
		zap.Int("user_id", ev.UserID),
	)

	retryKey := util.FormatRetryKey(h.queue, ev.Fingerprint())

	profile, err := h.users.Lookup(ctx, ev.UserID)
	if errors.Is(err, enrich.ErrNotFound) {
		// The user record may appear shortly after event creation, so retry
		// a bounded number of redeliveries before giving up.
		attempts, cerr := h.retries.IncrementAndGet(ctx, retryKey)
		if cerr != nil {
			h.logger.Warn("Retry counter unavailable, assuming first attempt",
				zap.String("retry_key", retryKey),
				zap.Error(cerr),
			)
			attempts = 1
		}
		if attempts > h.retryMax {
			h.logger.Error("User still missing after max redeliveries, dropping message",
				zap.Int("user_id", ev.UserID),
				zap.Int64("attempts", attempts),
				zap.Int64("retry_max", h.retryMax),
			)
			_ = h.retries.Reset(ctx, retryKey)
			return mq.DeadLetter, err
		}
		h.logger.Warn("User not found, leaving message for redelivery",
			zap.Int("user_id", ev.UserID),
			zap.Int64("attempts", attempts),
			zap.Int64("retry_max", h.retryMax),
		)
		return mq.Nack, err
	}
	if err != nil {
		h.logger.Error("User lookup failed",
			zap.Int("user_id", ev.UserID),
			zap.Bool("retryable", true),
			zap.Error(err),
		)
		return mq.Nack, err
	}

	msg, err := notify.BuildEventCreated(ev, profile)
	if err != nil {
		h.logger.Error("Dropping unbuildable event-created message",
			zap.Int("event_id", ev.EventID),
			zap.Int("user_id", ev.UserID),
			zap.Error(err),
		)
		return mq.DeadLetter, err
	}

	if err := h.sender.Send(ctx, msg); err != nil {
		metrics.IncrementEmailSent(string(event.KindEventCreated), "failed")
		h.logger.Error("Email send failed",
			zap.Int("event_id", ev.EventID),
			zap.String("to", msg.To),
			zap.Bool("retryable", true),
			zap.Error(err),
		)
		return mq.Nack, err
	}

	metrics.IncrementEmailSent(string(event.KindEventCreated), "success")
	_ = h.retries.Reset(ctx, retryKey)

	h.logger.Info("Event notification sent",
		zap.Int("event_id", ev.EventID),
		zap.String("to", msg.To),
	)
	return mq.Ack, nil
}

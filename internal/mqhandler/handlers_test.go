package mqhandler

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"compositesvc/internal/enrich"
	"compositesvc/internal/mailer"
	"compositesvc/pkg/mq"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLookup struct {
	profile *enrich.Profile
	err     error
	calls   int
}

func (f *fakeLookup) Lookup(ctx context.Context, userID int) (*enrich.Profile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.profile, nil
}

type fakeSender struct {
	sent []mailer.Message
	err  error
}

func (f *fakeSender) Send(ctx context.Context, msg mailer.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeRetryCounter struct {
	counts map[string]int64
	err    error
}

func newFakeRetryCounter() *fakeRetryCounter {
	return &fakeRetryCounter{counts: make(map[string]int64)}
}

func (f *fakeRetryCounter) IncrementAndGet(ctx context.Context, key string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeRetryCounter) Reset(ctx context.Context, key string) error {
	delete(f.counts, key)
	return nil
}

func newEventHandler(users *fakeLookup, sender *fakeSender, retries *fakeRetryCounter) *EventCreatedHandler {
	return NewEventCreatedHandler(users, sender, retries, 5, "event-notification-sub", zap.NewNop())
}

const validEventMsg = `{"kind":"EventCreated","event_id":123,"user_id":42}`

func TestEventCreatedSuccessAcksAndSendsOnce(t *testing.T) {
	users := &fakeLookup{profile: &enrich.Profile{Email: "a@b.com", FirstName: "Ada"}}
	sender := &fakeSender{}
	retries := newFakeRetryCounter()
	h := newEventHandler(users, sender, retries)

	disp, err := h.Handle(context.Background(), []byte(validEventMsg))
	require.NoError(t, err)
	assert.Equal(t, mq.Ack, disp)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "a@b.com", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].Body, "Event ID: 123")
	assert.Equal(t, 1, users.calls)
	assert.Empty(t, retries.counts)
}

func TestEventCreatedMalformedIsDeadLetteredWithoutEmail(t *testing.T) {
	users := &fakeLookup{}
	sender := &fakeSender{}
	h := newEventHandler(users, sender, newFakeRetryCounter())

	for _, raw := range []string{`{"event_id":`, `{"event_id":123}`, `{"user_id":42}`} {
		disp, err := h.Handle(context.Background(), []byte(raw))
		assert.Equal(t, mq.DeadLetter, disp, raw)
		assert.Error(t, err, raw)
	}
	assert.Empty(t, sender.sent)
	assert.Zero(t, users.calls)
}

func TestEventCreatedLookupUnavailableIsNacked(t *testing.T) {
	users := &fakeLookup{err: fmt.Errorf("%w: connect refused", enrich.ErrUnavailable)}
	sender := &fakeSender{}
	h := newEventHandler(users, sender, newFakeRetryCounter())

	disp, err := h.Handle(context.Background(), []byte(validEventMsg))
	assert.Equal(t, mq.Nack, disp)
	assert.ErrorIs(t, err, enrich.ErrUnavailable)
	assert.Empty(t, sender.sent)
}

func TestEventCreatedNotFoundIsNackedUpToBound(t *testing.T) {
	users := &fakeLookup{err: fmt.Errorf("%w: user 42", enrich.ErrNotFound)}
	sender := &fakeSender{}
	retries := newFakeRetryCounter()
	h := newEventHandler(users, sender, retries)

	// Redeliveries within the bound stay retryable.
	for i := 0; i < 5; i++ {
		disp, err := h.Handle(context.Background(), []byte(validEventMsg))
		assert.Equal(t, mq.Nack, disp)
		assert.ErrorIs(t, err, enrich.ErrNotFound)
	}

	// The sixth attempt exceeds the bound and drops the message.
	disp, err := h.Handle(context.Background(), []byte(validEventMsg))
	assert.Equal(t, mq.DeadLetter, disp)
	assert.ErrorIs(t, err, enrich.ErrNotFound)
	assert.Empty(t, sender.sent)
	assert.Empty(t, retries.counts, "counter is reset once the message is dropped")
}

func TestEventCreatedNotFoundCounterOutageFailsOpen(t *testing.T) {
	users := &fakeLookup{err: fmt.Errorf("%w: user 42", enrich.ErrNotFound)}
	retries := newFakeRetryCounter()
	retries.err = errors.New("redis down")
	h := newEventHandler(users, &fakeSender{}, retries)

	// With the counter unreachable the attempt counts as the first one and
	// the message stays retryable.
	disp, err := h.Handle(context.Background(), []byte(validEventMsg))
	assert.Equal(t, mq.Nack, disp)
	assert.ErrorIs(t, err, enrich.ErrNotFound)
}

func TestEventCreatedProfileWithoutEmailIsDeadLettered(t *testing.T) {
	users := &fakeLookup{profile: &enrich.Profile{FirstName: "Ada"}}
	sender := &fakeSender{}
	h := newEventHandler(users, sender, newFakeRetryCounter())

	disp, err := h.Handle(context.Background(), []byte(validEventMsg))
	assert.Equal(t, mq.DeadLetter, disp)
	assert.Error(t, err)
	assert.Empty(t, sender.sent)
}

func TestEventCreatedTransportFailureIsNacked(t *testing.T) {
	users := &fakeLookup{profile: &enrich.Profile{Email: "a@b.com"}}
	sender := &fakeSender{err: errors.New("smtp auth: 535 bad credentials")}
	h := newEventHandler(users, sender, newFakeRetryCounter())

	disp, err := h.Handle(context.Background(), []byte(validEventMsg))
	assert.Equal(t, mq.Nack, disp)
	assert.Error(t, err)
	assert.Empty(t, sender.sent)
}

func TestEventCreatedRedeliveryAfterLostAckSendsAgain(t *testing.T) {
	// At-least-once: redelivering an already-processed message produces a
	// second email. That duplicate is the documented behavior, by design.
	users := &fakeLookup{profile: &enrich.Profile{Email: "a@b.com"}}
	sender := &fakeSender{}
	h := newEventHandler(users, sender, newFakeRetryCounter())

	disp, err := h.Handle(context.Background(), []byte(validEventMsg))
	require.NoError(t, err)
	require.Equal(t, mq.Ack, disp)

	disp, err = h.Handle(context.Background(), []byte(validEventMsg))
	require.NoError(t, err)
	assert.Equal(t, mq.Ack, disp)
	assert.Len(t, sender.sent, 2)
}

func TestUserCreatedSuccessAcksWithoutLookup(t *testing.T) {
	sender := &fakeSender{}
	h := NewUserCreatedHandler(sender, "user-welcome-sub", zap.NewNop())

	raw := []byte(`{"kind":"UserCreated","user_id":42,"email":"a@b.com","first_name":"Ada"}`)
	disp, err := h.Handle(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, mq.Ack, disp)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "a@b.com", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].Subject, "Welcome")
	assert.Contains(t, sender.sent[0].Body, "Ada")
}

func TestUserCreatedMissingEmailIsDeadLettered(t *testing.T) {
	sender := &fakeSender{}
	h := NewUserCreatedHandler(sender, "user-welcome-sub", zap.NewNop())

	disp, err := h.Handle(context.Background(), []byte(`{"user_id":42}`))
	assert.Equal(t, mq.DeadLetter, disp)
	assert.Error(t, err)
	assert.Empty(t, sender.sent)
}

func TestUserCreatedTransportFailureIsNacked(t *testing.T) {
	sender := &fakeSender{err: errors.New("smtp dial: connection refused")}
	h := NewUserCreatedHandler(sender, "user-welcome-sub", zap.NewNop())

	disp, err := h.Handle(context.Background(), []byte(`{"user_id":42,"email":"a@b.com"}`))
	assert.Equal(t, mq.Nack, disp)
	assert.Error(t, err)
}

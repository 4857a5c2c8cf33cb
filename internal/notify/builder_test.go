package notify

import (
	"testing"

	"compositesvc/internal/enrich"
	"compositesvc/internal/event"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEventCreated(t *testing.T) {
	ev := &event.DomainEvent{
		Kind:    event.KindEventCreated,
		EventID: 123,
		UserID:  42,
		EventData: event.EventData{
			Title:     "Team Sync",
			Location:  "Room 4",
			StartTime: "2026-09-01T10:00:00Z",
			EndTime:   "2026-09-01T11:00:00Z",
		},
	}
	profile := &enrich.Profile{Email: "a@b.com", FirstName: "Ada"}

	msg, err := BuildEventCreated(ev, profile)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", msg.To)
	assert.Equal(t, "Event Created: Team Sync", msg.Subject)
	assert.Contains(t, msg.Body, "Hi Ada,")
	assert.Contains(t, msg.Body, "Event ID: 123")
	assert.Contains(t, msg.Body, "Room 4")
	assert.Contains(t, msg.Body, "2026-09-01T10:00:00Z")
}

func TestBuildEventCreatedFallbacks(t *testing.T) {
	ev := &event.DomainEvent{Kind: event.KindEventCreated, EventID: 123, UserID: 42}
	profile := &enrich.Profile{Email: "a@b.com"}

	msg, err := BuildEventCreated(ev, profile)
	require.NoError(t, err)
	assert.Equal(t, "Event Created: New Event", msg.Subject)
	assert.Contains(t, msg.Body, "Hi User,")
	assert.Contains(t, msg.Body, "Location: TBD")
	assert.NotContains(t, msg.Body, "Start:")
}

func TestBuildEventCreatedRequiresProfileEmail(t *testing.T) {
	ev := &event.DomainEvent{Kind: event.KindEventCreated, EventID: 123, UserID: 42}

	for _, profile := range []*enrich.Profile{nil, {Email: "  "}} {
		_, err := BuildEventCreated(ev, profile)
		var buildErr *BuildError
		require.ErrorAs(t, err, &buildErr)
	}
}

func TestBuildUserCreated(t *testing.T) {
	ev := &event.DomainEvent{
		Kind:      event.KindUserCreated,
		UserID:    42,
		Email:     "a@b.com",
		FirstName: "Ada",
	}

	msg, err := BuildUserCreated(ev)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", msg.To)
	assert.Contains(t, msg.Subject, "Welcome")
	assert.Contains(t, msg.Body, "Ada")
	assert.Contains(t, msg.Body, "The Team")
}

func TestBuildUserCreatedDefaultsGreeting(t *testing.T) {
	ev := &event.DomainEvent{Kind: event.KindUserCreated, UserID: 42, Email: "a@b.com"}

	msg, err := BuildUserCreated(ev)
	require.NoError(t, err)
	assert.Contains(t, msg.Body, "Hi User,")
}

func TestBuildUserCreatedRequiresEmail(t *testing.T) {
	ev := &event.DomainEvent{Kind: event.KindUserCreated, UserID: 42}

	_, err := BuildUserCreated(ev)
	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
}

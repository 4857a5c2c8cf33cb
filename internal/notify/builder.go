package notify

import (
	"fmt"
	"strings"

	"compositesvc/internal/enrich"
	"compositesvc/internal/event"
	"compositesvc/internal/mailer"
)

// BuildError marks otherwise-valid inputs from which no deliverable message
// can be produced, e.g. an empty recipient address. Non-retryable; points at
// a data-quality problem upstream.
type BuildError struct {
	Reason string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build notification: %s", e.Reason)
}

// BuildEventCreated turns an event-created event plus its enrichment result
// into a confirmation email for the event creator. Pure; no I/O.
func BuildEventCreated(ev *event.DomainEvent, profile *enrich.Profile) (mailer.Message, error) {
	if profile == nil || strings.TrimSpace(profile.Email) == "" {
		return mailer.Message{}, &BuildError{Reason: fmt.Sprintf("user %d has no email address", ev.UserID)}
	}

	title := ev.EventData.Title
	if title == "" {
		title = "New Event"
	}
	location := ev.EventData.Location
	if location == "" {
		location = "TBD"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", firstNameOrDefault(profile.FirstName))
	fmt.Fprintf(&b, "Your event %q has been successfully created!\n\n", title)
	b.WriteString("Event Details:\n")
	fmt.Fprintf(&b, "- Event ID: %d\n", ev.EventID)
	fmt.Fprintf(&b, "- Title: %s\n", title)
	fmt.Fprintf(&b, "- Location: %s\n", location)
	if ev.EventData.StartTime != "" {
		fmt.Fprintf(&b, "- Start: %s\n", ev.EventData.StartTime)
	}
	if ev.EventData.EndTime != "" {
		fmt.Fprintf(&b, "- End: %s\n", ev.EventData.EndTime)
	}
	b.WriteString("\nThank you for using our platform!")

	return mailer.Message{
		To:      profile.Email,
		Subject: fmt.Sprintf("Event Created: %s", title),
		Body:    b.String(),
	}, nil
}

// BuildUserCreated turns a user-created event into a welcome email. Pure; no
// I/O.
func BuildUserCreated(ev *event.DomainEvent) (mailer.Message, error) {
	if strings.TrimSpace(ev.Email) == "" {
		return mailer.Message{}, &BuildError{Reason: fmt.Sprintf("user %d has no email address", ev.UserID)}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", firstNameOrDefault(ev.FirstName))
	b.WriteString("Welcome to our platform! We're excited to have you join us.\n\n")
	b.WriteString("Get started by:\n")
	b.WriteString("- Creating your first event\n")
	b.WriteString("- Sharing posts with the community\n")
	b.WriteString("- Connecting with friends\n\n")
	b.WriteString("Happy exploring!\n\n")
	b.WriteString("Best regards,\nThe Team")

	return mailer.Message{
		To:      ev.Email,
		Subject: "Welcome to Our Platform!",
		Body:    b.String(),
	}, nil
}

func firstNameOrDefault(name string) string {
	if strings.TrimSpace(name) == "" {
		return "User"
	}
	return name
}

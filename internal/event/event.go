package event

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind tags which processing path a decoded message takes. The values double
// as the default topic routing keys.
type Kind string

const (
	KindEventCreated Kind = "event-created"
	KindUserCreated  Kind = "user-created"
)

// EventData is the optional detail block carried by event-created messages.
type EventData struct {
	Title     string `json:"title"`
	Location  string `json:"location"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// DomainEvent is the validated payload of one inbound message. Which fields
// are populated depends on Kind; Decode guarantees the required ones.
type DomainEvent struct {
	Kind Kind `json:"-"`

	EventID   int       `json:"event_id"`
	UserID    int       `json:"user_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	EventData EventData `json:"event_data"`
}

// DecodeError marks a message that can never decode successfully, no matter
// how often it is redelivered.
type DecodeError struct {
	Kind   Kind
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s message: %s", e.Kind, e.Reason)
}

// Decode parses raw message bytes into a DomainEvent and validates the fields
// required by the kind. Unknown fields are ignored; a missing required field
// is a DecodeError, not a processing failure.
func Decode(kind Kind, raw []byte) (*DomainEvent, error) {
	var ev DomainEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, &DecodeError{Kind: kind, Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}
	ev.Kind = kind

	switch kind {
	case KindEventCreated:
		if ev.EventID <= 0 {
			return nil, &DecodeError{Kind: kind, Reason: "missing event_id"}
		}
		if ev.UserID <= 0 {
			return nil, &DecodeError{Kind: kind, Reason: "missing user_id"}
		}
	case KindUserCreated:
		if ev.UserID <= 0 {
			return nil, &DecodeError{Kind: kind, Reason: "missing user_id"}
		}
		if strings.TrimSpace(ev.Email) == "" {
			return nil, &DecodeError{Kind: kind, Reason: "missing email"}
		}
	default:
		return nil, &DecodeError{Kind: kind, Reason: "unknown message kind"}
	}

	return &ev, nil
}

// Fingerprint is a stable identity for the message content, used to key the
// redelivery counter across retries.
func (ev *DomainEvent) Fingerprint() string {
	return fmt.Sprintf("%s:%d:%d", ev.Kind, ev.UserID, ev.EventID)
}

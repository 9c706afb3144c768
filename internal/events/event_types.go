package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventLoginSucceeded EventType = "login_succeeded"
	EventLoginFailed    EventType = "login_failed"
	EventUserCreated    EventType = "user_created"
)

// Event represents an audit-relevant fact emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Subject   string      `json:"subject"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType EventType, subject string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Subject:   subject,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// LoginPayload accompanies login events.
type LoginPayload struct {
	Role string `json:"role,omitempty"`
}

// UserCreatedPayload accompanies EventUserCreated.
type UserCreatedPayload struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

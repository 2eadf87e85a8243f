package domain

import (
	"context"
	"time"
)

// EventType defines the category of a session event.
type EventType string

const (
	EventSessionStarted    EventType = "session_started"
	EventStepProcessed     EventType = "step_processed"
	EventInvalidSelection  EventType = "invalid_selection"
	EventSessionCompleted  EventType = "session_completed"
	EventSessionExpired    EventType = "session_expired"
	EventSessionTerminated EventType = "session_terminated"
)

// SessionEvent is emitted by the engine for the analytics collaborator.
type SessionEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Type        EventType `json:"type"`
	SessionID   string    `json:"session_id"`
	FlowID      string    `json:"flow_id"`
	PhoneNumber string    `json:"phone_number"`
	ShortCode   string    `json:"short_code"`
	NodeID      string    `json:"node_id,omitempty"`
	Step        int       `json:"step,omitempty"`

	// Duration is the wall-clock time the engine spent on this turn. Set on
	// step events only; zero for lifecycle events.
	Duration time.Duration `json:"duration,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability. Nil fields are
// skipped. Hooks run synchronously on the request path and must be fast.
type LifecycleHooks struct {
	OnSessionStart func(context.Context, *SessionEvent)
	OnStep         func(context.Context, *SessionEvent)
	OnSessionEnd   func(context.Context, *SessionEvent)
}

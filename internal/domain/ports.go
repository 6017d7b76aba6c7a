package domain

import (
	"context"
	"time"
)

// AgentEvent is the capability surface the translator needs from one native
// runtime event. Any runtime adapter implements this; the translator depends
// on nothing beyond it. Accessors return zero values when the underlying
// event lacks the field.
type AgentEvent interface {
	// Author names the agent or component that produced the event.
	Author() string

	// Timestamp is the native event time, or the zero time when absent.
	Timestamp() time.Time

	// Content is the event payload (text, message parts, arbitrary values),
	// or nil when absent. It has not been through JSON-safety conversion.
	Content() any

	// FunctionCalls enumerates tool invocations carried by the event.
	FunctionCalls() []any

	// FunctionResponses enumerates tool results carried by the event.
	FunctionResponses() []any

	// IsFinalResponse reports whether the runtime flagged this event as the
	// turn's final response.
	IsFinalResponse() bool

	// ErrorMessage is the runtime's error text, or empty when the event does
	// not represent a failure.
	ErrorMessage() string

	// Partial reports whether the event is a partial fragment.
	Partial() bool

	// TurnComplete reports whether the runtime considers the turn finished.
	TurnComplete() bool
}

// RuntimeEvent is one item of a native event stream. Exactly one of Event or
// Err is set; an Err item is terminal from the consumer's perspective.
type RuntimeEvent struct {
	Event AgentEvent
	Err   error
}

// AgentSession is the native session handle owned by the runtime. Its
// lifetime is scoped to the registry Session that holds it.
type AgentSession interface {
	ID() string

	// State is the live mutable state bag shared with the runtime. Callers
	// that need an immutable view must copy it themselves.
	State() map[string]any

	// SetState writes one state key.
	SetState(key string, value any)

	// History returns the events recorded for this session so far, oldest
	// first.
	History() []AgentEvent
}

// AgentRuntime is the external reasoning engine. This system only consumes
// its event stream and manages its session handles.
type AgentRuntime interface {
	// CreateSession allocates a native session.
	CreateSession(ctx context.Context, appName, userID, sessionID string) (AgentSession, error)

	// Run submits one user message and returns the turn's event stream. The
	// channel is closed by the runtime when the turn ends; abandoning it by
	// cancelling ctx is sufficient cancellation.
	Run(ctx context.Context, userID, sessionID, message string) (<-chan RuntimeEvent, error)

	// DeleteSession discards the native session and everything it holds.
	// Idempotent; a later CreateSession for the same key starts fresh.
	DeleteSession(sessionID string)
}

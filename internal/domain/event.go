package domain

// EventType categorizes a wire event.
type EventType string

const (
	EventTypeAgentMessage       EventType = "agent_message"
	EventTypeFunctionCall       EventType = "function_call"
	EventTypeFunctionResponse   EventType = "function_response"
	EventTypeStructuredResponse EventType = "structured_response"
	EventTypeFinalResponse      EventType = "final_response"
	EventTypeError              EventType = "error"
)

// DataType identifies the kind of structured payload carried by a wire event.
// Itinerary payloads carry no tag; the runtime does not label them and shape
// inspection cannot distinguish them from other untyped record lists.
type DataType string

const (
	DataTypeFlights DataType = "flights"
	DataTypeHotels  DataType = "hotels"
)

// DefaultAuthor is used when the native event does not name its author.
const DefaultAuthor = "system"

// WireEvent is the engine's uniform, JSON-safe representation of one native
// agent-runtime event. It is a transport-layer value object and is never
// persisted. Every field has already been through the JSON-safety conversion
// by the time a WireEvent leaves the translator.
type WireEvent struct {
	Type              EventType      `json:"type"`
	Author            string         `json:"author"`
	Timestamp         string         `json:"timestamp"`
	Content           any            `json:"content,omitempty"`
	FunctionCalls     []any          `json:"function_calls,omitempty"`
	FunctionResponses []any          `json:"function_responses,omitempty"`
	StructuredData    map[string]any `json:"structured_data,omitempty"`
	DataType          DataType       `json:"data_type,omitempty"`
	Error             bool           `json:"error,omitempty"`
	Message           string         `json:"message,omitempty"`
	Final             bool           `json:"final,omitempty"`
	Partial           bool           `json:"partial,omitempty"`
	TurnComplete      bool           `json:"turn_complete,omitempty"`
}

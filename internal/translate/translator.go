// Package translate converts native agent-runtime events into the engine's
// uniform wire-event shape. Translation is best-effort at the field level: a
// misbehaving adapter accessor loses that field, never the whole event.
package translate

import (
	"log/slog"
	"time"

	"github.com/jurni-app/trip-engine/internal/classify"
	"github.com/jurni-app/trip-engine/internal/codec"
	"github.com/jurni-app/trip-engine/internal/domain"
)

// Translator turns one domain.AgentEvent into one domain.WireEvent.
type Translator struct {
	logger *slog.Logger

	// now is injectable for tests.
	now func() time.Time
}

// New creates a Translator. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Translator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Translator{logger: logger, now: time.Now}
}

// Translate converts one native event. It never fails and the result is
// always JSON-serializable; broken accessor fields are logged and omitted.
//
// Type precedence, applied in order: content classification, function calls,
// function responses (payloads with a "data" key are authoritative and
// re-classify as structured_response), finality, error. The later checks
// override the type string, so an erroring final event reports as an error;
// structured classification survives through the structured_data/data_type
// fields even when the type becomes final_response.
func (t *Translator) Translate(ev domain.AgentEvent) domain.WireEvent {
	out := domain.WireEvent{
		Type:      domain.EventTypeAgentMessage,
		Author:    domain.DefaultAuthor,
		Timestamp: t.now().Format(time.RFC3339),
	}

	t.guard("author", func() {
		if author := ev.Author(); author != "" {
			out.Author = author
		}
	})
	t.guard("timestamp", func() {
		if ts := ev.Timestamp(); !ts.IsZero() {
			out.Timestamp = ts.Format(time.RFC3339)
		}
	})

	t.guard("content", func() {
		raw := ev.Content()
		if raw == nil {
			return
		}
		content := codec.Sanitize(raw)
		out.Content = content
		if d, ok := classify.DetectStructured(content); ok {
			out.Type = domain.EventTypeStructuredResponse
			out.StructuredData = d.StructuredData
			out.DataType = d.DataType
		}
	})

	t.guard("function_calls", func() {
		calls := ev.FunctionCalls()
		if len(calls) == 0 {
			return
		}
		out.Type = domain.EventTypeFunctionCall
		out.FunctionCalls = sanitizeList(calls)
	})

	t.guard("function_responses", func() {
		responses := ev.FunctionResponses()
		if len(responses) == 0 {
			return
		}
		out.Type = domain.EventTypeFunctionResponse
		out.FunctionResponses = sanitizeList(responses)

		// Tool outputs are more authoritative than narrative text: a response
		// payload carrying a "data" key wins over any step-3 classification.
		for _, r := range out.FunctionResponses {
			resp, ok := r.(map[string]any)
			if !ok {
				continue
			}
			payload, ok := resp["response"].(map[string]any)
			if !ok {
				continue
			}
			if d, ok := classify.DetectStructured(payload); ok {
				out.Type = domain.EventTypeStructuredResponse
				out.StructuredData = d.StructuredData
				out.DataType = d.DataType
			}
		}
	})

	t.guard("final", func() {
		if ev.IsFinalResponse() {
			out.Type = domain.EventTypeFinalResponse
			out.Final = true
		}
	})

	t.guard("error", func() {
		if msg := ev.ErrorMessage(); msg != "" {
			out.Type = domain.EventTypeError
			out.Error = true
			out.Message = msg
		}
	})

	t.guard("flags", func() {
		if ev.Partial() {
			out.Partial = true
		}
		if ev.TurnComplete() {
			out.TurnComplete = true
		}
	})

	// Final defensive pass: the emitted event must never fail downstream
	// serialization even if an adapter returned something exotic.
	out.Content = codec.Sanitize(out.Content)
	out.StructuredData = sanitizeMapField(out.StructuredData)
	return out
}

// guard runs one translation step, containing panics from misbehaving runtime
// adapters so the remaining fields still translate.
func (t *Translator) guard(field string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Warn("event field translation failed",
				slog.String("field", field),
				slog.Any("panic", r))
		}
	}()
	fn()
}

func sanitizeList(items []any) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = codec.Sanitize(item)
	}
	return out
}

func sanitizeMapField(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	if s, ok := codec.Sanitize(m).(map[string]any); ok {
		return s
	}
	return m
}

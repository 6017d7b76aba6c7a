package gemini

import (
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/jurni-app/trip-engine/internal/domain"
)

// event implements domain.AgentEvent for one streamed chunk or one completed
// turn.
type event struct {
	author            string
	timestamp         time.Time
	content           any
	text              string
	functionCalls     []any
	functionResponses []any
	final             bool
	errMsg            string
	partial           bool
	turnComplete      bool
}

var _ domain.AgentEvent = (*event)(nil)

func (e *event) Author() string           { return e.author }
func (e *event) Timestamp() time.Time     { return e.timestamp }
func (e *event) Content() any             { return e.content }
func (e *event) FunctionCalls() []any     { return e.functionCalls }
func (e *event) FunctionResponses() []any { return e.functionResponses }
func (e *event) IsFinalResponse() bool    { return e.final }
func (e *event) ErrorMessage() string     { return e.errMsg }
func (e *event) Partial() bool            { return e.partial }
func (e *event) TurnComplete() bool       { return e.turnComplete }

// partsContent shapes text the way agent payloads carry it: a mapping with a
// parts list. Structured detection scans this shape for embedded JSON.
func partsContent(text string) map[string]any {
	return map[string]any{
		"parts": []any{map[string]any{"text": text}},
	}
}

// accumulator folds streamed response chunks into per-chunk events and one
// final turn event.
type accumulator struct {
	author    string
	full      strings.Builder
	calls     []any
	responses []any
}

func newAccumulator(author string) *accumulator {
	return &accumulator{author: author}
}

// consume maps one response chunk to a partial event. Chunks carrying neither
// text nor function traffic (thought-only or finish-reason-only frames) are
// swallowed.
func (a *accumulator) consume(resp *genai.GenerateContentResponse) (*event, bool) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, false
	}

	var chunk strings.Builder
	var calls, responses []any

	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" && !part.Thought {
			chunk.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			calls = append(calls, map[string]any{
				"id":   part.FunctionCall.ID,
				"name": part.FunctionCall.Name,
				"args": part.FunctionCall.Args,
			})
		}
		if part.FunctionResponse != nil {
			responses = append(responses, map[string]any{
				"id":       part.FunctionResponse.ID,
				"name":     part.FunctionResponse.Name,
				"response": part.FunctionResponse.Response,
			})
		}
	}

	if chunk.Len() == 0 && len(calls) == 0 && len(responses) == 0 {
		return nil, false
	}

	a.full.WriteString(chunk.String())
	a.calls = append(a.calls, calls...)
	a.responses = append(a.responses, responses...)

	ev := &event{
		author:            a.author,
		timestamp:         time.Now(),
		functionCalls:     calls,
		functionResponses: responses,
		partial:           true,
	}
	if chunk.Len() > 0 {
		ev.text = chunk.String()
		ev.content = partsContent(chunk.String())
	}
	return ev, true
}

// final returns the completed turn: full text, every function call and
// response seen, marked final.
func (a *accumulator) final() *event {
	ev := &event{
		author:            a.author,
		timestamp:         time.Now(),
		text:              a.full.String(),
		functionCalls:     a.calls,
		functionResponses: a.responses,
		final:             true,
		turnComplete:      true,
	}
	if ev.text != "" {
		ev.content = partsContent(ev.text)
	}
	return ev
}

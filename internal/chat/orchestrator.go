// Package chat drives one conversational turn: it submits a user message to
// the agent runtime, translates the native event stream, and yields the
// result as a sequence of wire events.
package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/jurni-app/trip-engine/internal/codec"
	"github.com/jurni-app/trip-engine/internal/domain"
	"github.com/jurni-app/trip-engine/internal/session"
	"github.com/jurni-app/trip-engine/internal/tokens"
	"github.com/jurni-app/trip-engine/internal/translate"
)

// Orchestrator runs chat turns against the agent runtime.
type Orchestrator struct {
	registry   *session.Registry
	runtime    domain.AgentRuntime
	translator *translate.Translator
	counter    tokens.Counter
	logger     *slog.Logger
}

// New creates an Orchestrator.
func New(registry *session.Registry, runtime domain.AgentRuntime, counter tokens.Counter, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if counter == nil {
		counter = tokens.NewEstimator()
	}
	return &Orchestrator{
		registry:   registry,
		runtime:    runtime,
		translator: translate.New(logger),
		counter:    counter,
		logger:     logger,
	}
}

// Send submits one user message and returns the turn's wire-event channel.
// The only error returned directly is session_not_found, checked before the
// runtime is contacted; every failure after that point is surfaced in-stream
// as a single terminal error event, so from the caller's perspective the
// stream always terminates cleanly.
//
// The channel is single-pass and closed by the producer. Events arrive in
// strict runtime order with no buffering beyond one event in flight. With
// structuredOnly, nothing is emitted per-event; the first structured_response
// (if any) is emitted once the native stream ends. Cancelling ctx abandons
// the turn. Overlapping turns on one session are not serialized here; callers
// must not send a second message before the first turn's stream drains.
func (o *Orchestrator) Send(ctx context.Context, userID, sessionID, message string, structuredOnly bool) (<-chan domain.WireEvent, error) {
	sess, err := o.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.WireEvent)
	go o.run(ctx, sess, userID, message, structuredOnly, out)
	return out, nil
}

func (o *Orchestrator) run(ctx context.Context, sess *session.Session, userID, message string, structuredOnly bool, out chan<- domain.WireEvent) {
	defer close(out)

	start := time.Now()
	emitted := 0
	promptTokens := o.counter.CountText(message)

	events, err := o.runtime.Run(ctx, userID, sess.ID, message)
	if err != nil {
		o.emit(ctx, out, o.errorEvent(err))
		return
	}

	var structured *domain.WireEvent
	total := 0

	for item := range events {
		if item.Err != nil {
			// The stream always ends with data, not a broken transport.
			o.emit(ctx, out, o.errorEvent(item.Err))
			o.logTurn(sess, start, promptTokens, total, emitted, item.Err)
			return
		}

		total++
		ev := o.translator.Translate(item.Event)

		if structuredOnly {
			if structured == nil && ev.Type == domain.EventTypeStructuredResponse {
				structured = &ev
			}
			continue
		}
		if !o.emit(ctx, out, ev) {
			return
		}
		emitted++
	}

	if structuredOnly {
		if structured != nil && o.emit(ctx, out, *structured) {
			emitted++
		}
		o.logTurn(sess, start, promptTokens, total, emitted, nil)
		return
	}

	// A successful turn never leaves the caller with a completely empty
	// stream: fall back to the session's most recent recorded event.
	if total == 0 {
		if ev, ok := o.latestRecordedEvent(sess); ok && o.emit(ctx, out, ev) {
			emitted++
		}
	}

	o.logTurn(sess, start, promptTokens, total, emitted, nil)
}

// latestRecordedEvent synthesizes one agent_message from the session's most
// recent recorded turn, if any history exists.
func (o *Orchestrator) latestRecordedEvent(sess *session.Session) (domain.WireEvent, bool) {
	history := sess.Native.History()
	if len(history) == 0 {
		return domain.WireEvent{}, false
	}

	last := history[len(history)-1]
	content := last.Content()
	if content == nil {
		return domain.WireEvent{}, false
	}

	author := last.Author()
	if author == "" {
		author = "root_agent"
	}

	return domain.WireEvent{
		Type:      domain.EventTypeAgentMessage,
		Author:    author,
		Timestamp: time.Now().Format(time.RFC3339),
		Content:   codec.Sanitize(content),
	}, true
}

func (o *Orchestrator) errorEvent(err error) domain.WireEvent {
	return domain.WireEvent{
		Type:      domain.EventTypeError,
		Author:    domain.DefaultAuthor,
		Timestamp: time.Now().Format(time.RFC3339),
		Error:     true,
		Message:   domain.ErrRuntimeExecution(err).Error(),
	}
}

// emit delivers one event, respecting cancellation. Returns false when the
// consumer abandoned the turn.
func (o *Orchestrator) emit(ctx context.Context, out chan<- domain.WireEvent, ev domain.WireEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (o *Orchestrator) logTurn(sess *session.Session, start time.Time, promptTokens, total, emitted int, err error) {
	attrs := []any{
		slog.String("session_id", sess.ID),
		slog.Int("prompt_tokens", promptTokens),
		slog.Int("native_events", total),
		slog.Int("emitted_events", emitted),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		o.logger.Warn("turn ended with runtime error", attrs...)
		return
	}
	o.logger.Info("turn completed", attrs...)
}

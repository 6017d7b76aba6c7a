// Package gemini implements the agent runtime over the Google Gemini API.
//
// It wraps the google.golang.org/genai SDK, keeping a per-session transcript
// and translating streamed response chunks into agent events. Session state
// is injected into each turn as part of the system instruction, so the model
// always sees the traveler profile and the itinerary built so far.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/jurni-app/trip-engine/internal/codec"
	"github.com/jurni-app/trip-engine/internal/domain"
)

const (
	defaultModel     = "gemini-2.0-flash"
	defaultAgentName = "root_agent"
	defaultMaxTokens = 8192
)

// Config configures a Runtime.
type Config struct {
	APIKey          string
	Model           string
	AgentName       string
	SystemPrompt    string
	MaxOutputTokens int32
}

// Runtime implements domain.AgentRuntime for the Gemini API.
type Runtime struct {
	client *genai.Client
	logger *slog.Logger

	model        string
	agentName    string
	systemPrompt string
	maxTokens    int32

	mu       sync.Mutex
	sessions map[string]*agentSession
}

var _ domain.AgentRuntime = (*Runtime)(nil)

// New creates a Runtime backed by the Gemini API.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	r := &Runtime{
		client:       client,
		logger:       logger,
		model:        cfg.Model,
		agentName:    cfg.AgentName,
		systemPrompt: cfg.SystemPrompt,
		maxTokens:    cfg.MaxOutputTokens,
		sessions:     make(map[string]*agentSession),
	}
	if r.model == "" {
		r.model = defaultModel
	}
	if r.agentName == "" {
		r.agentName = defaultAgentName
	}
	if r.maxTokens == 0 {
		r.maxTokens = defaultMaxTokens
	}
	return r, nil
}

// CreateSession registers a fresh session transcript under sessionID.
// Idempotent: an existing session is returned untouched.
func (r *Runtime) CreateSession(ctx context.Context, appName, userID, sessionID string) (domain.AgentSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[sessionID]; ok {
		return s, nil
	}
	s := newAgentSession(sessionID)
	r.sessions[sessionID] = s
	return s, nil
}

// DeleteSession drops the session transcript and state. A later
// CreateSession for the same key starts a fresh conversation.
func (r *Runtime) DeleteSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// Run submits one user message and streams the model's response as agent
// events. Chunks arrive as partial events; the accumulated turn is emitted
// last as the final event.
func (r *Runtime) Run(ctx context.Context, userID, sessionID, message string) (<-chan domain.RuntimeEvent, error) {
	r.mu.Lock()
	sess, ok := r.sessions[sessionID]
	r.mu.Unlock()
	if !ok {
		return nil, domain.ErrSessionNotFound(sessionID)
	}

	contents := sess.appendUser(message)
	config := r.buildConfig(sess.stateSnapshot())

	stream := r.client.Models.GenerateContentStream(ctx, r.model, contents, config)

	out := make(chan domain.RuntimeEvent)
	go r.pump(ctx, sess, stream, out)
	return out, nil
}

func (r *Runtime) pump(ctx context.Context, sess *agentSession, stream iter.Seq2[*genai.GenerateContentResponse, error], out chan<- domain.RuntimeEvent) {
	defer close(out)

	next, stop := iter.Pull2(stream)
	defer stop()

	acc := newAccumulator(r.agentName)
	for {
		resp, err, ok := next()
		if !ok {
			break
		}
		if err != nil {
			select {
			case out <- domain.RuntimeEvent{Err: fmt.Errorf("gemini: %w", err)}:
			case <-ctx.Done():
			}
			return
		}

		ev, emit := acc.consume(resp)
		if !emit {
			continue
		}
		select {
		case out <- domain.RuntimeEvent{Event: ev}:
		case <-ctx.Done():
			return
		}
	}

	final := acc.final()
	sess.appendModel(final)
	select {
	case out <- domain.RuntimeEvent{Event: final}:
	case <-ctx.Done():
	}
}

// buildConfig assembles the per-turn generation config. The session state is
// serialized into the system instruction so the model sees the profile and
// the itinerary without them being part of the visible transcript.
func (r *Runtime) buildConfig(state map[string]any) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: r.maxTokens,
	}

	instruction := r.systemPrompt
	if len(state) > 0 {
		if raw, err := json.Marshal(codec.SanitizeMap(state)); err == nil {
			instruction = fmt.Sprintf("%s\n\nSession state:\n%s", instruction, raw)
		}
	}
	if instruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: instruction}},
		}
	}

	return config
}

// agentSession holds one conversation transcript plus its mutable state.
type agentSession struct {
	id string

	mu       sync.Mutex
	state    map[string]any
	history  []domain.AgentEvent
	contents []*genai.Content
}

var _ domain.AgentSession = (*agentSession)(nil)

func newAgentSession(id string) *agentSession {
	return &agentSession{id: id, state: make(map[string]any)}
}

func (s *agentSession) ID() string { return s.id }

func (s *agentSession) State() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make(map[string]any, len(s.state))
	for k, v := range s.state {
		copied[k] = v
	}
	return copied
}

func (s *agentSession) SetState(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[key] = value
}

func (s *agentSession) History() []domain.AgentEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AgentEvent(nil), s.history...)
}

func (s *agentSession) stateSnapshot() map[string]any {
	return s.State()
}

// appendUser records the user turn and returns the transcript to send.
func (s *agentSession) appendUser(message string) []*genai.Content {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.contents = append(s.contents, &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{{Text: message}},
	})
	s.history = append(s.history, &event{
		author:    "user",
		timestamp: time.Now(),
		content:   partsContent(message),
	})
	return append([]*genai.Content(nil), s.contents...)
}

// appendModel records the completed model turn.
func (s *agentSession) appendModel(ev *event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if text := ev.text; text != "" {
		s.contents = append(s.contents, &genai.Content{
			Role:  "model",
			Parts: []*genai.Part{{Text: text}},
		})
	}
	s.history = append(s.history, ev)
}

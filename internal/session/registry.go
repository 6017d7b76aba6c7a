// Package session owns the set of live conversation sessions and their
// native runtime handles. Registration is process-local in-memory state: a
// registry owns exactly the sessions it created, and a restart loses them.
// The external runtime is the source of truth for conversation history within
// the process lifetime assumed here.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jurni-app/trip-engine/internal/codec"
	"github.com/jurni-app/trip-engine/internal/domain"
)

// Status of a registered session.
type Status string

const StatusActive Status = "active"

// Session is one registered conversation. The native handle's lifetime is
// scoped to the Session's lifetime; a session key maps to at most one handle.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	Status    Status
	Native    domain.AgentSession
}

// Snapshot is a point-in-time copy of a session's state, safe to hand to
// callers; it never aliases the live state map.
type Snapshot struct {
	SessionID    string         `json:"session_id"`
	UserID       string         `json:"user_id"`
	State        map[string]any `json:"state"`
	Status       Status         `json:"status"`
	MessageCount int            `json:"message_count"`
}

// Registry creates, initializes, and tears down sessions. One mutex guards
// the session map; interleaved turns for different sessions share it safely.
type Registry struct {
	runtime domain.AgentRuntime
	appName string
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates a Registry backed by the given runtime.
func NewRegistry(runtime domain.AgentRuntime, appName string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		runtime:  runtime,
		appName:  appName,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// CreateOrGet returns the session registered under sessionID, creating it
// via the runtime when unknown. An empty sessionID synthesizes one from the
// user id, current time, and a uuid fragment so concurrent requests from the
// same user cannot collide. Idempotent for a known key: the runtime is not
// contacted again.
func (r *Registry) CreateOrGet(ctx context.Context, userID, sessionID string) (*Session, error) {
	if sessionID == "" {
		sessionID = fmt.Sprintf("session_%s_%d_%s", userID, time.Now().Unix(), uuid.NewString()[:8])
	}

	r.mu.Lock()
	if s, ok := r.sessions[sessionID]; ok {
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	// The runtime call happens outside the lock; a racing request for the
	// same fresh key resolves below in favor of the first registration.
	native, err := r.runtime.CreateSession(ctx, r.appName, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("create native session: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		return s, nil
	}
	s := &Session{
		ID:        sessionID,
		UserID:    userID,
		CreatedAt: time.Now(),
		Status:    StatusActive,
		Native:    native,
	}
	r.sessions[sessionID] = s

	r.logger.Info("session registered",
		slog.String("session_id", sessionID),
		slog.String("user_id", userID))
	return s, nil
}

// Get returns the session for a known key, or ErrSessionNotFound.
func (r *Registry) Get(sessionID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound(sessionID)
	}
	return s, nil
}

// Initialize writes the initial session state: the shaped user profile, an
// empty itinerary, and the current system time. This is the single point
// where external profile data is shaped into the form the runtime expects;
// every optional field gets an explicit default so the runtime never observes
// absent keys.
func (r *Registry) Initialize(ctx context.Context, sessionID string, profile map[string]any, existingTrips []map[string]any) error {
	s, err := r.Get(sessionID)
	if err != nil {
		return err
	}

	if existingTrips == nil {
		existingTrips = []map[string]any{}
	}

	s.Native.SetState("user_profile", buildUserProfile(profile, existingTrips))
	s.Native.SetState("itinerary", map[string]any{})
	s.Native.SetState("system_time", time.Now().Format(time.RFC3339))

	r.logger.Info("session initialized",
		slog.String("session_id", sessionID),
		slog.Int("prior_trips", len(existingTrips)))
	return nil
}

// buildUserProfile shapes external profile data, applying defaults for every
// optional field.
func buildUserProfile(profile map[string]any, trips []map[string]any) map[string]any {
	if profile == nil {
		profile = map[string]any{}
	}

	displayName := stringValue(profile, "display_name", "")
	firstName := stringValue(profile, "first_name", "")
	if displayName == "" {
		displayName = firstName
	}

	priorTrips := make([]any, len(trips))
	for i, t := range trips {
		priorTrips[i] = t
	}

	return map[string]any{
		"email":                stringValue(profile, "email", ""),
		"display_name":         displayName,
		"first_name":           firstName,
		"last_name":            stringValue(profile, "last_name", ""),
		"passport_nationality": stringValue(profile, "passport_nationality", "US"),
		"home": map[string]any{
			"address":           stringValue(profile, "address", "Default Address"),
			"local_prefer_mode": stringValue(profile, "preferred_transport", "driving"),
		},
		"preferences": map[string]any{
			"previous_trips": priorTrips,
			"travel_style":   stringValue(profile, "travel_style", "adventure"),
			"budget_range":   stringValue(profile, "budget_range", "moderate"),
		},
	}
}

func stringValue(m map[string]any, key, fallback string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// Snapshot returns a deep-copied view of the session state plus status and
// message count, or ErrSessionNotFound.
func (r *Registry) Snapshot(sessionID string) (*Snapshot, error) {
	s, err := r.Get(sessionID)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		SessionID:    s.ID,
		UserID:       s.UserID,
		State:        codec.SanitizeMap(s.Native.State()),
		Status:       s.Status,
		MessageCount: len(s.Native.History()),
	}, nil
}

// Cleanup removes a session and releases its native handle, so a later
// CreateOrGet for the same key starts a fresh conversation. Idempotent:
// removing an absent key is a no-op.
func (r *Registry) Cleanup(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; ok {
		delete(r.sessions, sessionID)
		r.runtime.DeleteSession(sessionID)
		r.logger.Info("session removed", slog.String("session_id", sessionID))
	}
}

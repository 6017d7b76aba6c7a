package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jurni-app/trip-engine/internal/chat"
	"github.com/jurni-app/trip-engine/internal/domain"
	"github.com/jurni-app/trip-engine/internal/flights"
	"github.com/jurni-app/trip-engine/internal/server"
	"github.com/jurni-app/trip-engine/internal/session"
	"github.com/jurni-app/trip-engine/internal/storage/memory"
)

type fakeEvent struct {
	author  string
	content any
	final   bool
}

func (e *fakeEvent) Author() string           { return e.author }
func (e *fakeEvent) Timestamp() time.Time     { return time.Time{} }
func (e *fakeEvent) Content() any             { return e.content }
func (e *fakeEvent) FunctionCalls() []any     { return nil }
func (e *fakeEvent) FunctionResponses() []any { return nil }
func (e *fakeEvent) IsFinalResponse() bool    { return e.final }
func (e *fakeEvent) ErrorMessage() string     { return "" }
func (e *fakeEvent) Partial() bool            { return false }
func (e *fakeEvent) TurnComplete() bool       { return false }

type fakeSession struct {
	id      string
	state   map[string]any
	history []domain.AgentEvent
}

func (s *fakeSession) ID() string                   { return s.id }
func (s *fakeSession) State() map[string]any        { return s.state }
func (s *fakeSession) SetState(key string, v any)   { s.state[key] = v }
func (s *fakeSession) History() []domain.AgentEvent { return s.history }

type fakeRuntime struct {
	sessions          map[string]*fakeSession
	items             []domain.RuntimeEvent
	createHadDeadline bool
	runHadDeadline    bool
}

func newFakeRuntime(items ...domain.RuntimeEvent) *fakeRuntime {
	return &fakeRuntime{sessions: make(map[string]*fakeSession), items: items}
}

func (r *fakeRuntime) CreateSession(ctx context.Context, appName, userID, sessionID string) (domain.AgentSession, error) {
	_, r.createHadDeadline = ctx.Deadline()
	s := &fakeSession{id: sessionID, state: make(map[string]any)}
	r.sessions[sessionID] = s
	return s, nil
}

func (r *fakeRuntime) DeleteSession(sessionID string) {
	delete(r.sessions, sessionID)
}

func (r *fakeRuntime) Run(ctx context.Context, userID, sessionID, message string) (<-chan domain.RuntimeEvent, error) {
	_, r.runHadDeadline = ctx.Deadline()
	ch := make(chan domain.RuntimeEvent, len(r.items))
	for _, item := range r.items {
		ch <- item
	}
	close(ch)
	return ch, nil
}

type env struct {
	router   chi.Router
	registry *session.Registry
	runtime  *fakeRuntime
	store    *memory.Store
}

func newEnv(t *testing.T, items ...domain.RuntimeEvent) *env {
	t.Helper()

	rt := newFakeRuntime(items...)
	reg := session.NewRegistry(rt, "travel_planner", nil)
	store := memory.New()
	orch := chat.New(reg, rt, nil, nil)
	h := NewHandler(reg, orch, store, flights.NewCatalog(nil), nil)

	r := chi.NewRouter()
	r.Use(server.IdentityMiddleware)
	h.Mount(r)

	return &env{router: r, registry: reg, runtime: rt, store: store}
}

func (e *env) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(server.UserIDHeader, "user-1")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v\n%s", err, rec.Body.String())
	}
	return resp
}

func (e *env) createSession(t *testing.T) string {
	t.Helper()
	rec := e.request(t, "POST", "/travel-planner/session", map[string]any{"session_id": "sess-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("create session status = %d: %s", rec.Code, rec.Body.String())
	}
	return decodeResponse(t, rec).SessionID
}

func TestCreateSession(t *testing.T) {
	e := newEnv(t)

	rec := e.request(t, "POST", "/travel-planner/session", map[string]any{
		"user_data": map[string]any{"first_name": "Asha", "travel_style": "luxury"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeResponse(t, rec)
	if !resp.Success || resp.SessionID == "" {
		t.Fatalf("response = %+v", resp)
	}

	// Initialization wrote the shaped profile into session state.
	snap, err := e.registry.Snapshot(resp.SessionID)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	profile, ok := snap.State["user_profile"].(map[string]any)
	if !ok {
		t.Fatalf("user_profile = %v", snap.State["user_profile"])
	}
	if profile["first_name"] != "Asha" {
		t.Errorf("first_name = %v", profile["first_name"])
	}
	prefs := profile["preferences"].(map[string]any)
	if prefs["travel_style"] != "luxury" {
		t.Errorf("travel_style = %v", prefs["travel_style"])
	}
	if profile["passport_nationality"] != "US" {
		t.Errorf("passport_nationality default = %v", profile["passport_nationality"])
	}

	// Provided fields were persisted for the next session.
	stored, err := e.store.GetProfile(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if stored.TravelStyle != "luxury" {
		t.Errorf("stored TravelStyle = %q", stored.TravelStyle)
	}
}

func TestCreateSession_IdempotentForKnownID(t *testing.T) {
	e := newEnv(t)

	first := e.createSession(t)
	rec := e.request(t, "POST", "/travel-planner/session", map[string]any{"session_id": first})
	if got := decodeResponse(t, rec).SessionID; got != first {
		t.Errorf("session id = %q, want %q", got, first)
	}
}

func sseFrames(t *testing.T, body string) []map[string]any {
	t.Helper()
	var frames []map[string]any
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		if !strings.HasPrefix(block, "data: ") {
			t.Fatalf("malformed frame: %q", block)
		}
		var frame map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(block, "data: ")), &frame); err != nil {
			t.Fatalf("frame decode: %v", err)
		}
		frames = append(frames, frame)
	}
	return frames
}

func TestChatStream(t *testing.T) {
	e := newEnv(t,
		domain.RuntimeEvent{Event: &fakeEvent{author: "root_agent", content: "working on it"}},
		domain.RuntimeEvent{Event: &fakeEvent{author: "root_agent", content: "done", final: true}},
	)
	sessionID := e.createSession(t)

	rec := e.request(t, "POST", "/travel-planner/chat", chatRequest{SessionID: sessionID, Message: "plan a trip"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	frames := sseFrames(t, rec.Body.String())
	if len(frames) != 4 {
		t.Fatalf("got %d frames, want connection + 2 events + completion", len(frames))
	}
	if frames[0]["type"] != "connection_established" {
		t.Errorf("first frame = %v", frames[0])
	}
	if frames[1]["type"] != string(domain.EventTypeAgentMessage) {
		t.Errorf("second frame = %v", frames[1])
	}
	if frames[2]["type"] != string(domain.EventTypeFinalResponse) {
		t.Errorf("third frame = %v", frames[2])
	}
	if frames[3]["type"] != "stream_complete" {
		t.Errorf("last frame = %v", frames[3])
	}
}

func TestChatStream_RequiresSessionID(t *testing.T) {
	e := newEnv(t)

	rec := e.request(t, "POST", "/travel-planner/chat", chatRequest{Message: "hi"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestChatStream_UnknownSession(t *testing.T) {
	e := newEnv(t)

	rec := e.request(t, "POST", "/travel-planner/chat", chatRequest{SessionID: "missing", Message: "hi"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestChatStructured(t *testing.T) {
	payload := map[string]any{"data": []any{map[string]any{"flightNumber": "BW-5432"}}}
	e := newEnv(t, domain.RuntimeEvent{Event: &fakeEvent{content: payload}})
	sessionID := e.createSession(t)

	rec := e.request(t, "POST", "/travel-planner/chat-structured", chatRequest{SessionID: sessionID, Message: "show me options"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	resp := decodeResponse(t, rec)
	if !resp.Success || resp.DataType != string(domain.DataTypeFlights) {
		t.Errorf("response = %+v", resp)
	}
	if resp.Data == nil {
		t.Error("missing structured data")
	}
}

func TestChatStructured_FlightFallback(t *testing.T) {
	e := newEnv(t, domain.RuntimeEvent{Event: &fakeEvent{content: "I recommend a morning departure."}})
	sessionID := e.createSession(t)

	rec := e.request(t, "POST", "/travel-planner/chat-structured",
		chatRequest{SessionID: sessionID, Message: "find me flights from delhi to goa"})

	resp := decodeResponse(t, rec)
	if !resp.Success || resp.DataType != string(domain.DataTypeFlights) {
		t.Fatalf("response = %+v", resp)
	}
	data, ok := resp.Data["data"].([]any)
	if !ok || len(data) == 0 {
		t.Fatalf("catalog data = %v", resp.Data["data"])
	}
	criteria, ok := resp.Data["search_criteria"].(map[string]any)
	if !ok || criteria["origin"] != "Delhi" {
		t.Errorf("search_criteria = %v", resp.Data["search_criteria"])
	}
}

func TestChatStructured_NothingFound(t *testing.T) {
	e := newEnv(t, domain.RuntimeEvent{Event: &fakeEvent{content: "just prose"}})
	sessionID := e.createSession(t)

	rec := e.request(t, "POST", "/travel-planner/chat-structured",
		chatRequest{SessionID: sessionID, Message: "tell me about goa"})

	resp := decodeResponse(t, rec)
	if resp.Success {
		t.Errorf("response = %+v, want success=false", resp)
	}
}

func TestSaveItinerary(t *testing.T) {
	e := newEnv(t)
	sessionID := e.createSession(t)

	native := e.runtime.sessions[sessionID]
	native.SetState("itinerary", map[string]any{
		"destination": "Goa",
		"days": []any{
			map[string]any{"events": []any{
				map[string]any{"event_type": "hotel", "room_selection": "Suite"},
			}},
		},
	})

	rec := e.request(t, "POST", "/travel-planner/save-itinerary", saveItineraryRequest{SessionID: sessionID})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeResponse(t, rec)
	tripID, _ := resp.Data["trip_id"].(string)
	if tripID == "" {
		t.Fatalf("response = %+v", resp)
	}

	saved, err := e.store.GetTrip(context.Background(), tripID)
	if err != nil {
		t.Fatalf("GetTrip() error = %v", err)
	}
	if saved.Trip.Destination != "Goa" || saved.SessionID != sessionID {
		t.Errorf("saved = %+v", saved)
	}
}

func TestSaveItinerary_NoCompletedPlan(t *testing.T) {
	e := newEnv(t)
	sessionID := e.createSession(t)

	rec := e.request(t, "POST", "/travel-planner/save-itinerary", saveItineraryRequest{SessionID: sessionID})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSessionState(t *testing.T) {
	e := newEnv(t)
	sessionID := e.createSession(t)

	rec := e.request(t, "GET", "/travel-planner/session/"+sessionID+"/state", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	resp := decodeResponse(t, rec)
	state, ok := resp.Data["state"].(map[string]any)
	if !ok {
		t.Fatalf("data = %v", resp.Data)
	}
	if _, ok := state["user_profile"]; !ok {
		t.Error("state missing user_profile")
	}

	if rec := e.request(t, "GET", "/travel-planner/session/nope/state", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown session status = %d, want 404", rec.Code)
	}
}

func TestDeleteSession(t *testing.T) {
	e := newEnv(t)
	sessionID := e.createSession(t)

	rec := e.request(t, "DELETE", "/travel-planner/session/"+sessionID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	if rec := e.request(t, "GET", "/travel-planner/session/"+sessionID+"/state", nil); rec.Code != http.StatusNotFound {
		t.Errorf("state after delete status = %d, want 404", rec.Code)
	}

	// Deleting again is a no-op, not an error.
	if rec := e.request(t, "DELETE", "/travel-planner/session/"+sessionID, nil); rec.Code != http.StatusOK {
		t.Errorf("repeat delete status = %d, want 200", rec.Code)
	}
}

func TestDeleteTrip(t *testing.T) {
	e := newEnv(t)
	sessionID := e.createSession(t)

	native := e.runtime.sessions[sessionID]
	native.SetState("itinerary", map[string]any{
		"days": []any{map[string]any{"events": []any{}}},
	})
	rec := e.request(t, "POST", "/travel-planner/save-itinerary", saveItineraryRequest{SessionID: sessionID})
	tripID, _ := decodeResponse(t, rec).Data["trip_id"].(string)
	if tripID == "" {
		t.Fatalf("save response = %s", rec.Body.String())
	}

	if rec := e.request(t, "DELETE", "/travel-planner/trips/"+tripID, nil); rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d: %s", rec.Code, rec.Body.String())
	}
	if _, err := e.store.GetTrip(context.Background(), tripID); err == nil {
		t.Error("trip still present after delete")
	}

	if rec := e.request(t, "DELETE", "/travel-planner/trips/"+tripID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing trip status = %d, want 404", rec.Code)
	}
}

func TestDeleteTrip_OtherUser(t *testing.T) {
	e := newEnv(t)
	sessionID := e.createSession(t)

	native := e.runtime.sessions[sessionID]
	native.SetState("itinerary", map[string]any{
		"days": []any{map[string]any{"events": []any{}}},
	})
	rec := e.request(t, "POST", "/travel-planner/save-itinerary", saveItineraryRequest{SessionID: sessionID})
	tripID, _ := decodeResponse(t, rec).Data["trip_id"].(string)

	req := httptest.NewRequest("DELETE", "/travel-planner/trips/"+tripID, nil)
	req.Header.Set(server.UserIDHeader, "someone-else")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for another user's trip", w.Code)
	}
	if _, err := e.store.GetTrip(context.Background(), tripID); err != nil {
		t.Errorf("trip should survive: %v", err)
	}
}

func TestRouteDeadlines(t *testing.T) {
	e := newEnv(t)
	sessionID := e.createSession(t)

	if !e.runtime.createHadDeadline {
		t.Error("session route ran without a request deadline")
	}

	if rec := e.request(t, "POST", "/travel-planner/chat", chatRequest{SessionID: sessionID, Message: "hi"}); rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d", rec.Code)
	}
	if e.runtime.runHadDeadline {
		t.Error("chat stream must not carry a request deadline")
	}
}

func TestFlightRoutes(t *testing.T) {
	e := newEnv(t)

	rec := e.request(t, "GET", "/travel-planner/flights/routes", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	resp := decodeResponse(t, rec)
	routes, ok := resp.Data["routes"].([]any)
	if !ok || len(routes) == 0 {
		t.Fatalf("routes = %v", resp.Data["routes"])
	}
	first := routes[0].(map[string]any)
	if first["origin"] != "DEL" || first["destination"] != "GOI" {
		t.Errorf("first route = %v", first)
	}
}

func TestFlightByID(t *testing.T) {
	e := newEnv(t)

	rec := e.request(t, "GET", "/travel-planner/flights/economy1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeResponse(t, rec)
	flight, ok := resp.Data["flight"].(map[string]any)
	if !ok || flight["flightNumber"] != "BW-5432" {
		t.Errorf("flight = %v", resp.Data["flight"])
	}

	if rec := e.request(t, "GET", "/travel-planner/flights/nope", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown flight status = %d, want 404", rec.Code)
	}
}

func TestListTrips(t *testing.T) {
	e := newEnv(t)
	sessionID := e.createSession(t)

	native := e.runtime.sessions[sessionID]
	native.SetState("itinerary", map[string]any{
		"days": []any{map[string]any{"events": []any{}}},
	})
	if rec := e.request(t, "POST", "/travel-planner/save-itinerary", saveItineraryRequest{SessionID: sessionID}); rec.Code != http.StatusOK {
		t.Fatalf("save status = %d", rec.Code)
	}

	rec := e.request(t, "GET", "/travel-planner/trips", nil)
	resp := decodeResponse(t, rec)
	if count, _ := resp.Data["count"].(float64); count != 1 {
		t.Errorf("count = %v", resp.Data["count"])
	}
}

// Package api exposes the trip-planning engine over HTTP: session lifecycle,
// streamed and structured chat, itinerary persistence, and state inspection.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jurni-app/trip-engine/internal/chat"
	"github.com/jurni-app/trip-engine/internal/classify"
	"github.com/jurni-app/trip-engine/internal/domain"
	"github.com/jurni-app/trip-engine/internal/extract"
	"github.com/jurni-app/trip-engine/internal/flights"
	"github.com/jurni-app/trip-engine/internal/server"
	"github.com/jurni-app/trip-engine/internal/session"
	"github.com/jurni-app/trip-engine/internal/storage"
)

const (
	priorTripLimit = 10
	requestTimeout = 30 * time.Second
)

// Handler serves the travel-planner routes.
type Handler struct {
	registry     *session.Registry
	orchestrator *chat.Orchestrator
	store        storage.Store
	catalog      *flights.Catalog
	logger       *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(registry *session.Registry, orchestrator *chat.Orchestrator, store storage.Store, catalog *flights.Catalog, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		registry:     registry,
		orchestrator: orchestrator,
		store:        store,
		catalog:      catalog,
		logger:       logger,
	}
}

// Mount attaches the travel-planner routes to the router. The chat routes
// stream or wait on the model and carry no deadline; everything else gets one.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/travel-planner", func(r chi.Router) {
		r.Post("/chat", h.chatStream)
		r.Post("/chat-structured", h.chatStructured)

		r.Group(func(r chi.Router) {
			r.Use(server.TimeoutMiddleware(requestTimeout))
			r.Post("/session", h.createSession)
			r.Post("/save-itinerary", h.saveItinerary)
			r.Get("/session/{sessionID}/state", h.sessionState)
			r.Delete("/session/{sessionID}", h.deleteSession)
			r.Get("/trips", h.listTrips)
			r.Delete("/trips/{tripID}", h.deleteTrip)
			r.Get("/flights/routes", h.flightRoutes)
			r.Get("/flights/{flightID}", h.flightByID)
		})
	})
}

// response is the common envelope for non-streaming replies.
type response struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	DataType  string         `json:"data_type,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

type sessionRequest struct {
	SessionID string         `json:"session_id"`
	UserData  map[string]any `json:"user_data"`
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	userID := server.GetUserID(r.Context())

	sess, err := h.registry.CreateOrGet(r.Context(), userID, req.SessionID)
	if err != nil {
		h.writeError(w, r, domain.ErrStorage("create session", err))
		return
	}
	server.AddLogField(r.Context(), "session_id", sess.ID)

	profile := h.resolveProfile(r, userID, req.UserData)
	trips := h.priorTrips(r, userID)

	if err := h.registry.Initialize(r.Context(), sess.ID, profile, trips); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, response{
		Success:   true,
		Message:   "Travel planner session created and initialized",
		SessionID: sess.ID,
		Data:      map[string]any{"user_trips_count": len(trips)},
	})
}

// resolveProfile merges the stored traveler profile with per-request user
// data; request fields win. Provided fields are persisted back so the next
// session starts from them.
func (h *Handler) resolveProfile(r *http.Request, userID string, userData map[string]any) map[string]any {
	profile := map[string]any{}

	stored, err := h.store.GetProfile(r.Context(), userID)
	if err == nil {
		profile = profileFields(stored)
	} else if !errors.Is(err, storage.ErrNotFound) {
		h.logger.Warn("profile lookup failed",
			slog.String("user_id", userID), slog.String("error", err.Error()))
	}

	if len(userData) > 0 {
		for k, v := range userData {
			profile[k] = v
		}
		if err := h.store.PutProfile(r.Context(), profileFromMap(userID, profile)); err != nil {
			h.logger.Warn("profile save failed",
				slog.String("user_id", userID), slog.String("error", err.Error()))
		}
	}

	return profile
}

func (h *Handler) priorTrips(r *http.Request, userID string) []map[string]any {
	records, err := h.store.ListTrips(r.Context(), storage.ListOptions{UserID: userID, Limit: priorTripLimit})
	if err != nil {
		h.logger.Warn("trip history lookup failed",
			slog.String("user_id", userID), slog.String("error", err.Error()))
		return nil
	}

	trips := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		if m := tripFields(rec); m != nil {
			trips = append(trips, m)
		}
	}
	return trips
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func (h *Handler) chatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.SessionID == "" {
		h.writeError(w, r, domain.ErrInvalidRequest("Session ID is required. Create a session first."))
		return
	}
	server.AddLogField(r.Context(), "session_id", req.SessionID)

	userID := server.GetUserID(r.Context())
	events, err := h.orchestrator.Send(r.Context(), userID, req.SessionID, req.Message, false)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, r, domain.ErrInvalidRequest("streaming unsupported by connection"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	writeFrame(w, flusher, map[string]any{
		"type":       "connection_established",
		"message":    "Connected to travel planner",
		"session_id": req.SessionID,
	})

	for ev := range events {
		writeFrame(w, flusher, ev)
	}

	writeFrame(w, flusher, map[string]any{
		"type":    "stream_complete",
		"message": "Response completed",
	})
}

// writeFrame emits one SSE data frame. Marshal failures degrade to an error
// frame rather than breaking the stream.
func writeFrame(w http.ResponseWriter, flusher http.Flusher, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		raw = []byte(`{"error": true, "type": "error", "message": "event serialization failed", "author": "system"}`)
	}
	fmt.Fprintf(w, "data: %s\n\n", raw)
	flusher.Flush()
}

func (h *Handler) chatStructured(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.SessionID == "" {
		h.writeError(w, r, domain.ErrInvalidRequest("Session ID is required. Create a session first."))
		return
	}
	server.AddLogField(r.Context(), "session_id", req.SessionID)

	userID := server.GetUserID(r.Context())
	events, err := h.orchestrator.Send(r.Context(), userID, req.SessionID, req.Message, true)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	for ev := range events {
		if ev.Type != domain.EventTypeStructuredResponse || ev.StructuredData == nil {
			continue
		}
		h.writeJSON(w, http.StatusOK, response{
			Success:   true,
			SessionID: req.SessionID,
			DataType:  string(ev.DataType),
			Data:      ev.StructuredData,
		})
		return
	}

	// The agent answered in prose. For flight requests the catalog can still
	// produce a structured result from the message itself.
	if classify.ClassifyIntent(req.Message, "") == classify.IntentFlight {
		results := h.catalog.Search(flights.ExtractCriteria(req.Message))
		h.writeJSON(w, http.StatusOK, response{
			Success:   true,
			SessionID: req.SessionID,
			DataType:  string(domain.DataTypeFlights),
			Data:      results.StructuredData(),
		})
		return
	}

	h.writeJSON(w, http.StatusOK, response{
		Success:   false,
		Message:   "No structured data found",
		SessionID: req.SessionID,
	})
}

type saveItineraryRequest struct {
	SessionID string `json:"session_id"`
}

func (h *Handler) saveItinerary(w http.ResponseWriter, r *http.Request) {
	var req saveItineraryRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.SessionID == "" {
		req.SessionID = r.URL.Query().Get("session_id")
	}
	if req.SessionID == "" {
		h.writeError(w, r, domain.ErrInvalidRequest("Session ID is required. Create a session first."))
		return
	}
	server.AddLogField(r.Context(), "session_id", req.SessionID)

	snapshot, err := h.registry.Snapshot(req.SessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	trip, ok := extract.FromState(snapshot.State)
	if !ok {
		h.writeError(w, r, domain.ErrInvalidRequest("No completed itinerary found in session"))
		return
	}

	rec := &storage.TripRecord{
		ID:        uuid.NewString(),
		UserID:    server.GetUserID(r.Context()),
		SessionID: req.SessionID,
		Trip:      trip,
	}
	if err := h.store.SaveTrip(r.Context(), rec); err != nil {
		h.writeError(w, r, domain.ErrStorage("save trip", err))
		return
	}

	h.writeJSON(w, http.StatusOK, response{
		Success:   true,
		Message:   "Itinerary saved as trip successfully",
		SessionID: req.SessionID,
		Data:      map[string]any{"trip_id": rec.ID},
	})
}

func (h *Handler) sessionState(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	snapshot, err := h.registry.Snapshot(sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, response{
		Success:   true,
		Message:   "Session state retrieved",
		SessionID: sessionID,
		Data: map[string]any{
			"state":         snapshot.State,
			"status":        snapshot.Status,
			"message_count": snapshot.MessageCount,
		},
	})
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	server.AddLogField(r.Context(), "session_id", sessionID)

	h.registry.Cleanup(sessionID)

	h.writeJSON(w, http.StatusOK, response{
		Success:   true,
		Message:   "Session ended",
		SessionID: sessionID,
	})
}

func (h *Handler) listTrips(w http.ResponseWriter, r *http.Request) {
	userID := server.GetUserID(r.Context())

	records, err := h.store.ListTrips(r.Context(), storage.ListOptions{UserID: userID})
	if err != nil {
		h.writeError(w, r, domain.ErrStorage("list trips", err))
		return
	}

	trips := make([]any, 0, len(records))
	for _, rec := range records {
		trips = append(trips, tripFields(rec))
	}

	h.writeJSON(w, http.StatusOK, response{
		Success: true,
		Data:    map[string]any{"trips": trips, "count": len(trips)},
	})
}

func (h *Handler) flightRoutes(w http.ResponseWriter, r *http.Request) {
	routes := h.catalog.Routes()
	h.writeJSON(w, http.StatusOK, response{
		Success: true,
		Data:    map[string]any{"routes": routes, "count": len(routes)},
	})
}

func (h *Handler) flightByID(w http.ResponseWriter, r *http.Request) {
	flightID := chi.URLParam(r, "flightID")

	flight, ok := h.catalog.ByID(flightID)
	if !ok {
		h.writeError(w, r, domain.ErrNotFound("flight", flightID))
		return
	}

	h.writeJSON(w, http.StatusOK, response{
		Success:  true,
		DataType: string(domain.DataTypeFlights),
		Data:     map[string]any{"flight": flight},
	})
}

func (h *Handler) deleteTrip(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripID")
	userID := server.GetUserID(r.Context())

	rec, err := h.store.GetTrip(r.Context(), tripID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeError(w, r, domain.ErrNotFound("trip", tripID))
			return
		}
		h.writeError(w, r, domain.ErrStorage("load trip", err))
		return
	}
	// A trip belongs to the user who saved it; other identities see a miss.
	if rec.UserID != userID {
		h.writeError(w, r, domain.ErrNotFound("trip", tripID))
		return
	}

	if err := h.store.DeleteTrip(r.Context(), tripID); err != nil {
		h.writeError(w, r, domain.ErrStorage("delete trip", err))
		return
	}

	h.writeJSON(w, http.StatusOK, response{
		Success: true,
		Message: "Trip deleted",
		Data:    map[string]any{"trip_id": tripID},
	})
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrInvalidRequest(fmt.Sprintf("malformed request body: %v", err))
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("response encoding failed", slog.String("error", err.Error()))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	server.AddError(r.Context(), err)

	status := http.StatusInternalServerError
	message := "internal error"

	var engineErr *domain.EngineError
	if errors.As(err, &engineErr) {
		status = engineErr.HTTPStatusCode()
		message = engineErr.Message
	}

	h.writeJSON(w, status, response{Success: false, Message: message})
}

// profileFields flattens a stored profile into the state-initialization map.
func profileFields(p *storage.UserProfile) map[string]any {
	m := map[string]any{}
	set := func(key, value string) {
		if value != "" {
			m[key] = value
		}
	}
	set("email", p.Email)
	set("display_name", p.DisplayName)
	set("first_name", p.FirstName)
	set("last_name", p.LastName)
	set("passport_nationality", p.Nationality)
	set("address", p.Address)
	set("preferred_transport", p.PreferredTransport)
	set("travel_style", p.TravelStyle)
	set("budget_range", p.BudgetRange)
	return m
}

// profileFromMap shapes a merged field map back into a storable profile.
func profileFromMap(userID string, m map[string]any) *storage.UserProfile {
	field := func(key string) string {
		s, _ := m[key].(string)
		return s
	}
	return &storage.UserProfile{
		UserID:             userID,
		Email:              field("email"),
		DisplayName:        field("display_name"),
		FirstName:          field("first_name"),
		LastName:           field("last_name"),
		Nationality:        field("passport_nationality"),
		Address:            field("address"),
		PreferredTransport: field("preferred_transport"),
		TravelStyle:        field("travel_style"),
		BudgetRange:        field("budget_range"),
	}
}

// tripFields renders a trip record as the generic mapping injected into
// session state as trip history.
func tripFields(rec *storage.TripRecord) map[string]any {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	delete(m, "created_at")
	delete(m, "updated_at")
	return m
}

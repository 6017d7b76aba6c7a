// Package classify decides whether agent content represents structured
// flight/hotel/itinerary data, and which kind of structured data a user
// message is asking for. Everything here is a pure function over data shape
// and keyword heuristics; the runtime attaches no explicit type tags, so
// classification is best-effort, not a guaranteed contract.
package classify

import (
	"encoding/json"
	"strings"

	"github.com/jurni-app/trip-engine/internal/domain"
)

// Record-key fields used for shape-based type inference. Flight records carry
// a flight number, hotel records a nightly price.
const (
	flightNumberKey  = "flightNumber"
	pricePerNightKey = "pricePerNight"
)

// Detection is the result of shape-based structured-data detection.
type Detection struct {
	// StructuredData is the payload mapping, always containing a "data" key.
	StructuredData map[string]any

	// DataType is flights/hotels when inferable, empty otherwise.
	DataType domain.DataType
}

// DetectStructured inspects a converted content value and reports whether it
// carries a structured payload: a mapping with a "data" key whose value is a
// non-empty sequence of mappings. When the content is a message-parts
// mapping, each part's text is additionally parsed as JSON and inspected with
// the same rule. Returns the first detection found, or ok=false.
func DetectStructured(content any) (Detection, bool) {
	m, ok := content.(map[string]any)
	if !ok {
		return Detection{}, false
	}

	if d, ok := detectPayload(m); ok {
		return d, true
	}

	parts, ok := m["parts"].([]any)
	if !ok {
		return Detection{}, false
	}
	for _, p := range parts {
		part, ok := p.(map[string]any)
		if !ok {
			continue
		}
		text, ok := part["text"].(string)
		if !ok {
			continue
		}
		var parsed map[string]any
		if err := json.Unmarshal([]byte(text), &parsed); err != nil {
			continue
		}
		if d, ok := detectPayload(parsed); ok {
			return d, true
		}
	}

	return Detection{}, false
}

// detectPayload applies the core shape rule to one candidate mapping.
func detectPayload(m map[string]any) (Detection, bool) {
	items, ok := m["data"].([]any)
	if !ok || len(items) == 0 {
		return Detection{}, false
	}
	first, ok := items[0].(map[string]any)
	if !ok {
		return Detection{}, false
	}

	d := Detection{StructuredData: m}
	if _, ok := first[flightNumberKey]; ok {
		d.DataType = domain.DataTypeFlights
	} else if _, ok := first[pricePerNightKey]; ok {
		d.DataType = domain.DataTypeHotels
	}
	return d, true
}

// Intent is the kind of structured data a message is asking for.
type Intent string

const (
	IntentFlight    Intent = "flight"
	IntentHotel     Intent = "hotel"
	IntentItinerary Intent = "itinerary"
	IntentNone      Intent = ""
)

var (
	flightKeywords = []string{
		"flight", "flights", "fly", "flying", "airline", "airplane", "book flight",
		"flight search", "flight deals", "airfare", "plane ticket",
	}
	hotelKeywords = []string{
		"hotel", "hotels", "accommodation", "stay", "room", "booking", "lodge", "resort",
	}
	itineraryKeywords = []string{
		"itinerary", "plan", "schedule", "trip plan", "travel plan", "day by day",
	}
)

// ClassifyIntent matches message text against fixed keyword sets, checked in
// order: flight, then hotel, then itinerary. First match wins, so a message
// mentioning both flights and hotels classifies as flight. The agent name is
// a secondary hint consulted only when no keyword matched.
func ClassifyIntent(message, agentName string) Intent {
	lower := strings.ToLower(message)

	if containsAny(lower, flightKeywords) {
		return IntentFlight
	}
	if containsAny(lower, hotelKeywords) {
		return IntentHotel
	}
	if containsAny(lower, itineraryKeywords) {
		return IntentItinerary
	}

	if agentName != "" {
		agent := strings.ToLower(agentName)
		switch {
		case strings.Contains(agent, "flight"):
			return IntentFlight
		case strings.Contains(agent, "hotel"):
			return IntentHotel
		case strings.Contains(agent, "itinerary"):
			return IntentItinerary
		}
	}

	return IntentNone
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

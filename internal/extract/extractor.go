// Package extract converts a completed itinerary held in session state into
// the trip-record schema consumed by persistence.
package extract

import (
	"fmt"

	"github.com/jurni-app/trip-engine/internal/domain"
)

// Itinerary day-event types recognized by the preference scan.
const (
	eventTypeHotel          = "hotel"
	eventTypeVisit          = "visit"
	eventTypeTransportation = "transportation"
)

// FromState reads a session-state mapping and converts its itinerary, if
// complete, into a TripDraft. An absent itinerary or an empty day list
// returns ok=false: "no completed plan yet" is a normal outcome, not an
// error. Missing optional fields never fail; each gets an explicit default.
func FromState(state map[string]any) (domain.TripDraft, bool) {
	itinerary, ok := state["itinerary"].(map[string]any)
	if !ok {
		return domain.TripDraft{}, false
	}
	days, ok := itinerary["days"].([]any)
	if !ok || len(days) == 0 {
		return domain.TripDraft{}, false
	}

	travelers, _ := itinerary["travelers"].(map[string]any)

	draft := domain.TripDraft{
		Destination:              stringField(itinerary, "destination"),
		DepartureCity:            stringField(itinerary, "origin"),
		StartDate:                stringField(itinerary, "start_date"),
		EndDate:                  stringField(itinerary, "end_date"),
		TotalBudget:              budgetField(itinerary, "estimated_budget"),
		Currency:                 domain.DefaultCurrency,
		TotalAdultTravellers:     countField(travelers, "adults", 1),
		TotalChildTravellers:     intField(travelers, "children"),
		TravellingWithPets:       boolField(travelers, "pets"),
		StayPreference:           []string{},
		TransportationPreference: []string{},
		ExtraActivities:          []string{},
		SpecialRequirements:      stringField(itinerary, "notes"),
	}

	scanDays(days, &draft)
	return draft, true
}

// scanDays walks every day's event list and accumulates distinct preferences:
// each value is added at most once per list, in first-seen order.
func scanDays(days []any, draft *domain.TripDraft) {
	for _, d := range days {
		day, ok := d.(map[string]any)
		if !ok {
			continue
		}
		events, ok := day["events"].([]any)
		if !ok {
			continue
		}
		for _, e := range events {
			event, ok := e.(map[string]any)
			if !ok {
				continue
			}
			switch stringField(event, "event_type") {
			case eventTypeHotel:
				draft.StayPreference = appendDistinct(draft.StayPreference, stringField(event, "room_selection"))
			case eventTypeVisit:
				draft.ExtraActivities = appendDistinct(draft.ExtraActivities, stringField(event, "description"))
			case eventTypeTransportation:
				draft.TransportationPreference = appendDistinct(draft.TransportationPreference, stringField(event, "type"))
			}
		}
	}
}

func appendDistinct(list []string, value string) []string {
	if value == "" {
		return list
	}
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// budgetField renders a numeric or string budget as a string, defaulting to
// "0" when absent.
func budgetField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return "0"
	}
	switch b := v.(type) {
	case string:
		if b == "" {
			return "0"
		}
		return b
	case float64:
		if b == float64(int64(b)) {
			return fmt.Sprintf("%d", int64(b))
		}
		return fmt.Sprintf("%g", b)
	case int:
		return fmt.Sprintf("%d", b)
	default:
		return fmt.Sprint(b)
	}
}

// countField renders a traveler count as a string with a default.
func countField(m map[string]any, key string, fallback int) string {
	n := intField(m, key)
	if n == 0 {
		if _, present := m[key]; !present {
			n = fallback
		}
	}
	return fmt.Sprintf("%d", n)
}

func intField(m map[string]any, key string) int {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func boolField(m map[string]any, key string) bool {
	if m == nil {
		return false
	}
	b, _ := m[key].(bool)
	return b
}

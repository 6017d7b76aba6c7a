// Package flights serves the mock flight catalog used when the agent returns
// prose for a request that the caller expects structured flight data for.
package flights

import (
	"encoding/json"
	"log/slog"
	"os"
	"time"
)

// ResultsType tags a flight search payload on the wire.
const ResultsType = "flight_search_results"

// Layover is one intermediate stop on a flight.
type Layover struct {
	City     string `json:"city"`
	Duration string `json:"duration"`
}

// Flight is one catalog entry, shaped for direct frontend consumption.
type Flight struct {
	ID               string    `json:"id"`
	Airline          string    `json:"airline"`
	FlightNumber     string    `json:"flightNumber"`
	Price            int       `json:"price"`
	Duration         string    `json:"duration"`
	Departure        string    `json:"departure"`
	Arrival          string    `json:"arrival"`
	DepartureDate    string    `json:"departureDate"`
	ArrivalDate      string    `json:"arrivalDate"`
	Stops            int       `json:"stops"`
	Aircraft         string    `json:"aircraft"`
	Class            string    `json:"class"`
	Amenities        []string  `json:"amenities"`
	Baggage          string    `json:"baggage"`
	DepartureAirport string    `json:"departureAirport"`
	ArrivalAirport   string    `json:"arrivalAirport"`
	Layovers         []Layover `json:"layovers"`
}

// Criteria narrows a catalog search. Zero values mean "unspecified".
type Criteria struct {
	Origin         string `json:"origin,omitempty"`
	Destination    string `json:"destination,omitempty"`
	DepartureDate  string `json:"departure_date,omitempty"`
	PassengerCount int    `json:"passenger_count,omitempty"`
	Class          string `json:"class,omitempty"`
}

// Results is a structured flight search response.
type Results struct {
	Type           string   `json:"type"`
	Data           []Flight `json:"data"`
	SearchCriteria Criteria `json:"search_criteria"`
	Timestamp      string   `json:"timestamp"`
}

// Catalog holds the flight inventory. Reads are lock-free; the catalog is
// immutable after construction.
type Catalog struct {
	flights []Flight
	logger  *slog.Logger
	now     func() time.Time
}

// NewCatalog builds a catalog from the built-in inventory.
func NewCatalog(logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{flights: defaultInventory(), logger: logger, now: time.Now}
}

// LoadCatalog builds a catalog from a JSON file of the form
// {"data": [...flights...]}. A missing or malformed file falls back to the
// built-in inventory.
func LoadCatalog(path string, logger *slog.Logger) *Catalog {
	c := NewCatalog(logger)
	if path == "" {
		return c
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		c.logger.Warn("flight catalog unreadable, using built-in inventory",
			slog.String("path", path), slog.String("error", err.Error()))
		return c
	}

	var file struct {
		Data []Flight `json:"data"`
	}
	if err := json.Unmarshal(raw, &file); err != nil {
		c.logger.Warn("flight catalog malformed, using built-in inventory",
			slog.String("path", path), slog.String("error", err.Error()))
		return c
	}
	if len(file.Data) > 0 {
		c.flights = file.Data
	}
	return c
}

// Search returns the catalog customized to the given criteria. Origin,
// destination, date, and class overwrite the corresponding fields on every
// returned flight; the inventory itself is never mutated.
func (c *Catalog) Search(criteria Criteria) Results {
	if criteria.PassengerCount == 0 {
		criteria.PassengerCount = 1
	}
	if criteria.Class == "" {
		criteria.Class = "economy"
	}

	data := make([]Flight, 0, len(c.flights))
	for _, f := range c.flights {
		if criteria.Origin != "" {
			f.DepartureAirport = criteria.Origin
		}
		if criteria.Destination != "" {
			f.ArrivalAirport = criteria.Destination
		}
		if criteria.DepartureDate != "" {
			f.DepartureDate = criteria.DepartureDate
			f.ArrivalDate = criteria.DepartureDate
		}
		f.Class = criteria.Class
		f.Amenities = append([]string(nil), f.Amenities...)
		f.Layovers = append([]Layover(nil), f.Layovers...)
		data = append(data, f)
	}

	return Results{
		Type:           ResultsType,
		Data:           data,
		SearchCriteria: criteria,
		Timestamp:      c.now().Format(time.RFC3339),
	}
}

// ByID returns the catalog entry with the given id.
func (c *Catalog) ByID(id string) (Flight, bool) {
	for _, f := range c.flights {
		if f.ID == id {
			return f, true
		}
	}
	return Flight{}, false
}

// Route is one distinct origin/destination/airline triple in the catalog.
type Route struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Airline     string `json:"airline"`
}

// Routes lists every distinct route served by the catalog.
func (c *Catalog) Routes() []Route {
	var routes []Route
	for _, f := range c.flights {
		r := Route{Origin: f.DepartureAirport, Destination: f.ArrivalAirport, Airline: f.Airline}
		seen := false
		for _, existing := range routes {
			if existing == r {
				seen = true
				break
			}
		}
		if !seen {
			routes = append(routes, r)
		}
	}
	return routes
}

// StructuredData renders the results as the generic mapping carried by a
// structured_response wire event.
func (r Results) StructuredData() map[string]any {
	raw, err := json.Marshal(r)
	if err != nil {
		return map[string]any{"type": r.Type, "data": []any{}}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{"type": r.Type, "data": []any{}}
	}
	return m
}

func defaultInventory() []Flight {
	return []Flight{
		{
			ID:               "economy1",
			Airline:          "Budget Wings",
			FlightNumber:     "BW-5432",
			Price:            8500,
			Duration:         "4h 30m",
			Departure:        "08:15",
			Arrival:          "13:45",
			DepartureDate:    "2024-01-15",
			ArrivalDate:      "2024-01-15",
			Stops:            1,
			Aircraft:         "Boeing 737",
			Class:            "economy",
			Amenities:        []string{"Snacks"},
			Baggage:          "15kg checked + 7kg cabin",
			DepartureAirport: "DEL",
			ArrivalAirport:   "GOI",
			Layovers:         []Layover{{City: "Mumbai", Duration: "1h 20m"}},
		},
	}
}

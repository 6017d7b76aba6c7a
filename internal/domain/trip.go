package domain

// DefaultCurrency is applied to every extracted trip draft; the agent
// runtime does not report a currency.
const DefaultCurrency = "USD"

// TripDraft is the itinerary-derived record ready for persistence. Every
// field has an explicit default so a partially populated itinerary still
// yields a well-formed draft. Ownership transfers to the trip store on save.
type TripDraft struct {
	Destination              string   `json:"destination"`
	DepartureCity            string   `json:"departure_city"`
	StartDate                string   `json:"start_date"`
	EndDate                  string   `json:"end_date"`
	TotalBudget              string   `json:"total_budget"`
	Currency                 string   `json:"currency"`
	TotalAdultTravellers     string   `json:"total_adult_travellers"`
	TotalChildTravellers     int      `json:"total_child_travellers"`
	TravellingWithPets       bool     `json:"travelling_with_pets"`
	StayPreference           []string `json:"stay_preference"`
	TransportationPreference []string `json:"transportation_preference"`
	ExtraActivities          []string `json:"extra_activities"`
	SpecialRequirements      string   `json:"special_requirements"`
}

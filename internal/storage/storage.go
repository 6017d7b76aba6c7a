// Package storage defines the persistence ports for saved trips and user
// profiles. Backends live in the memory and sqlite subpackages.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jurni-app/trip-engine/internal/domain"
)

// ErrNotFound reports a lookup miss. Backends wrap it with the record id.
var ErrNotFound = errors.New("not found")

// TripRecord is one saved trip plan.
type TripRecord struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	SessionID string           `json:"session_id"`
	Trip      domain.TripDraft `json:"trip"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// UserProfile is the persisted traveler profile consulted when a session is
// initialized. Zero-valued fields fall back to engine defaults at read time.
type UserProfile struct {
	UserID             string    `json:"user_id"`
	Email              string    `json:"email"`
	DisplayName        string    `json:"display_name"`
	FirstName          string    `json:"first_name"`
	LastName           string    `json:"last_name"`
	Nationality        string    `json:"passport_nationality"`
	Address            string    `json:"address"`
	PreferredTransport string    `json:"preferred_transport"`
	TravelStyle        string    `json:"travel_style"`
	BudgetRange        string    `json:"budget_range"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ListOptions narrows and pages a trip listing.
type ListOptions struct {
	UserID string
	Limit  int
	Offset int
}

// TripStore persists saved trips.
type TripStore interface {
	SaveTrip(ctx context.Context, rec *TripRecord) error
	GetTrip(ctx context.Context, id string) (*TripRecord, error)
	ListTrips(ctx context.Context, opts ListOptions) ([]*TripRecord, error)
	DeleteTrip(ctx context.Context, id string) error
}

// ProfileStore persists traveler profiles.
type ProfileStore interface {
	PutProfile(ctx context.Context, profile *UserProfile) error
	GetProfile(ctx context.Context, userID string) (*UserProfile, error)
}

// Store is the full persistence surface the engine wires at startup.
type Store interface {
	TripStore
	ProfileStore
	Close() error
}

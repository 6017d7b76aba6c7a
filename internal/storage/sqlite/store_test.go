package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jurni-app/trip-engine/internal/domain"
	"github.com/jurni-app/trip-engine/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "trips.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTripRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &storage.TripRecord{
		ID:        "t1",
		UserID:    "user-1",
		SessionID: "sess-1",
		Trip: domain.TripDraft{
			Destination:          "Goa",
			Currency:             domain.DefaultCurrency,
			TotalAdultTravellers: "2",
			StayPreference:       []string{"Suite"},
		},
	}
	if err := s.SaveTrip(ctx, rec); err != nil {
		t.Fatalf("SaveTrip() error = %v", err)
	}

	got, err := s.GetTrip(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTrip() error = %v", err)
	}
	if got.UserID != "user-1" || got.SessionID != "sess-1" {
		t.Errorf("record = %+v", got)
	}
	if got.Trip.Destination != "Goa" || len(got.Trip.StayPreference) != 1 {
		t.Errorf("trip = %+v", got.Trip)
	}
}

func TestGetTrip_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetTrip(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetTrip() error = %v, want ErrNotFound", err)
	}
}

func TestListTrips_ScopedToUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"t1", "t2"} {
		rec := &storage.TripRecord{ID: id, UserID: "user-1", SessionID: "sess-1", Trip: domain.TripDraft{}}
		if err := s.SaveTrip(ctx, rec); err != nil {
			t.Fatalf("SaveTrip(%s) error = %v", id, err)
		}
	}
	other := &storage.TripRecord{ID: "t3", UserID: "user-2", SessionID: "sess-2", Trip: domain.TripDraft{}}
	if err := s.SaveTrip(ctx, other); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListTrips(ctx, storage.ListOptions{UserID: "user-1"})
	if err != nil {
		t.Fatalf("ListTrips() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d trips, want 2", len(got))
	}
}

func TestDeleteTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &storage.TripRecord{ID: "t1", UserID: "user-1", SessionID: "sess-1", Trip: domain.TripDraft{}}
	if err := s.SaveTrip(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteTrip(ctx, "t1"); err != nil {
		t.Fatalf("DeleteTrip() error = %v", err)
	}
	if err := s.DeleteTrip(ctx, "t1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second DeleteTrip() error = %v, want ErrNotFound", err)
	}
}

func TestProfileUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &storage.UserProfile{UserID: "user-1", FirstName: "Asha", TravelStyle: "adventure"}
	if err := s.PutProfile(ctx, p); err != nil {
		t.Fatalf("PutProfile() error = %v", err)
	}

	p.TravelStyle = "relaxed"
	if err := s.PutProfile(ctx, p); err != nil {
		t.Fatalf("PutProfile() update error = %v", err)
	}

	got, err := s.GetProfile(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if got.TravelStyle != "relaxed" {
		t.Errorf("TravelStyle = %q, want updated value", got.TravelStyle)
	}

	if _, err := s.GetProfile(ctx, "stranger"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetProfile(missing) error = %v, want ErrNotFound", err)
	}
}

package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/jurni-app/trip-engine/internal/domain"
	"github.com/jurni-app/trip-engine/internal/storage"
)

func record(id, userID string) *storage.TripRecord {
	return &storage.TripRecord{
		ID:     id,
		UserID: userID,
		Trip:   domain.TripDraft{Destination: "Goa", Currency: domain.DefaultCurrency},
	}
}

func TestTripRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.SaveTrip(ctx, record("t1", "user-1")); err != nil {
		t.Fatalf("SaveTrip() error = %v", err)
	}

	got, err := s.GetTrip(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTrip() error = %v", err)
	}
	if got.Trip.Destination != "Goa" {
		t.Errorf("Destination = %q", got.Trip.Destination)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not stamped")
	}

	if err := s.SaveTrip(ctx, record("t1", "user-1")); err == nil {
		t.Error("duplicate SaveTrip should fail")
	}
}

func TestGetTrip_NotFound(t *testing.T) {
	_, err := New().GetTrip(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetTrip() error = %v, want ErrNotFound", err)
	}
}

func TestListTrips_FilterAndPaginate(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, rec := range []*storage.TripRecord{
		record("t1", "user-1"),
		record("t2", "user-1"),
		record("t3", "user-2"),
	} {
		if err := s.SaveTrip(ctx, rec); err != nil {
			t.Fatalf("SaveTrip(%s) error = %v", rec.ID, err)
		}
	}

	got, err := s.ListTrips(ctx, storage.ListOptions{UserID: "user-1"})
	if err != nil {
		t.Fatalf("ListTrips() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d trips, want 2", len(got))
	}

	page, err := s.ListTrips(ctx, storage.ListOptions{UserID: "user-1", Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("ListTrips() error = %v", err)
	}
	if len(page) != 1 {
		t.Errorf("got %d trips, want 1", len(page))
	}

	empty, err := s.ListTrips(ctx, storage.ListOptions{UserID: "user-1", Offset: 10})
	if err != nil || len(empty) != 0 {
		t.Errorf("out-of-range page = %v, %v", empty, err)
	}
}

func TestDeleteTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.SaveTrip(ctx, record("t1", "user-1")); err != nil {
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
	s := New()
	ctx := context.Background()

	first := &storage.UserProfile{UserID: "user-1", FirstName: "Asha", TravelStyle: "adventure"}
	if err := s.PutProfile(ctx, first); err != nil {
		t.Fatalf("PutProfile() error = %v", err)
	}

	update := &storage.UserProfile{UserID: "user-1", FirstName: "Asha", TravelStyle: "relaxed"}
	if err := s.PutProfile(ctx, update); err != nil {
		t.Fatalf("PutProfile() update error = %v", err)
	}

	got, err := s.GetProfile(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if got.TravelStyle != "relaxed" {
		t.Errorf("TravelStyle = %q, want updated value", got.TravelStyle)
	}
	if !got.CreatedAt.Equal(first.CreatedAt) {
		t.Error("CreatedAt changed on update")
	}

	if _, err := s.GetProfile(ctx, "stranger"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetProfile(missing) error = %v, want ErrNotFound", err)
	}
}

func TestGetTrip_CopiesRecord(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.SaveTrip(ctx, record("t1", "user-1")); err != nil {
		t.Fatal(err)
	}

	first, _ := s.GetTrip(ctx, "t1")
	first.Trip.Destination = "Mutated"

	second, _ := s.GetTrip(ctx, "t1")
	if second.Trip.Destination != "Goa" {
		t.Error("stored record aliased by caller mutation")
	}
}

// Package memory is the in-memory storage backend, used when no database is
// configured and throughout the test suite.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jurni-app/trip-engine/internal/storage"
)

// Store is an in-memory implementation of storage.Store.
type Store struct {
	mu       sync.RWMutex
	trips    map[string]*storage.TripRecord
	profiles map[string]*storage.UserProfile
}

var _ storage.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		trips:    make(map[string]*storage.TripRecord),
		profiles: make(map[string]*storage.UserProfile),
	}
}

func (s *Store) SaveTrip(ctx context.Context, rec *storage.TripRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trips[rec.ID]; exists {
		return fmt.Errorf("trip %s already exists", rec.ID)
	}

	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt

	copied := *rec
	s.trips[rec.ID] = &copied
	return nil
}

func (s *Store) GetTrip(ctx context.Context, id string) (*storage.TripRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.trips[id]
	if !exists {
		return nil, fmt.Errorf("trip %s: %w", id, storage.ErrNotFound)
	}

	copied := *rec
	return &copied, nil
}

func (s *Store) ListTrips(ctx context.Context, opts storage.ListOptions) ([]*storage.TripRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.TripRecord
	for _, rec := range s.trips {
		if opts.UserID != "" && rec.UserID != opts.UserID {
			continue
		}
		copied := *rec
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	start := opts.Offset
	if start >= len(result) {
		return []*storage.TripRecord{}, nil
	}

	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) DeleteTrip(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trips[id]; !exists {
		return fmt.Errorf("trip %s: %w", id, storage.ErrNotFound)
	}

	delete(s.trips, id)
	return nil
}

func (s *Store) PutProfile(ctx context.Context, profile *storage.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.profiles[profile.UserID]; ok {
		profile.CreatedAt = existing.CreatedAt
	} else {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	copied := *profile
	s.profiles[profile.UserID] = &copied
	return nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*storage.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, exists := s.profiles[userID]
	if !exists {
		return nil, fmt.Errorf("profile %s: %w", userID, storage.ErrNotFound)
	}

	copied := *profile
	return &copied, nil
}

func (s *Store) Close() error {
	return nil
}

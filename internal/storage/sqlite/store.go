// Package sqlite is the SQLite storage backend.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jurni-app/trip-engine/internal/domain"
	"github.com/jurni-app/trip-engine/internal/storage"
)

// Store is a SQLite implementation of storage.Store.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// New opens (or creates) the database at dbPath and initializes the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS trips (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			trip TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS profiles (
			user_id TEXT PRIMARY KEY,
			email TEXT,
			display_name TEXT,
			first_name TEXT,
			last_name TEXT,
			passport_nationality TEXT,
			address TEXT,
			preferred_transport TEXT,
			travel_style TEXT,
			budget_range TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trips_user ON trips(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_trips_created ON trips(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *Store) SaveTrip(ctx context.Context, rec *storage.TripRecord) error {
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt

	trip, err := json.Marshal(rec.Trip)
	if err != nil {
		return fmt.Errorf("failed to marshal trip: %w", err)
	}

	query := `INSERT INTO trips (id, user_id, session_id, trip, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.SessionID, string(trip), rec.CreatedAt, rec.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to save trip: %w", err)
	}

	return nil
}

func (s *Store) GetTrip(ctx context.Context, id string) (*storage.TripRecord, error) {
	query := `SELECT id, user_id, session_id, trip, created_at, updated_at
	          FROM trips WHERE id = ?`

	rec, err := scanTrip(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("trip %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}

	return rec, nil
}

func (s *Store) ListTrips(ctx context.Context, opts storage.ListOptions) ([]*storage.TripRecord, error) {
	query := `SELECT id, user_id, session_id, trip, created_at, updated_at
	          FROM trips WHERE user_id = ?
	          ORDER BY created_at DESC
	          LIMIT ? OFFSET ?`

	limit := opts.Limit
	if limit == 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, query, opts.UserID, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query trips: %w", err)
	}
	defer rows.Close()

	var trips []*storage.TripRecord
	for rows.Next() {
		rec, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		trips = append(trips, rec)
	}

	return trips, rows.Err()
}

func (s *Store) DeleteTrip(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM trips WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete trip: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("trip %s: %w", id, storage.ErrNotFound)
	}

	return nil
}

func (s *Store) PutProfile(ctx context.Context, profile *storage.UserProfile) error {
	now := time.Now()
	profile.UpdatedAt = now
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}

	query := `INSERT INTO profiles (user_id, email, display_name, first_name, last_name,
	            passport_nationality, address, preferred_transport, travel_style, budget_range,
	            created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	          ON CONFLICT(user_id) DO UPDATE SET
	            email=excluded.email,
	            display_name=excluded.display_name,
	            first_name=excluded.first_name,
	            last_name=excluded.last_name,
	            passport_nationality=excluded.passport_nationality,
	            address=excluded.address,
	            preferred_transport=excluded.preferred_transport,
	            travel_style=excluded.travel_style,
	            budget_range=excluded.budget_range,
	            updated_at=excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		profile.UserID, profile.Email, profile.DisplayName, profile.FirstName, profile.LastName,
		profile.Nationality, profile.Address, profile.PreferredTransport, profile.TravelStyle,
		profile.BudgetRange, profile.CreatedAt, profile.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	return nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*storage.UserProfile, error) {
	query := `SELECT user_id, email, display_name, first_name, last_name,
	            passport_nationality, address, preferred_transport, travel_style, budget_range,
	            created_at, updated_at
	          FROM profiles WHERE user_id = ?`

	var p storage.UserProfile
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID, &p.Email, &p.DisplayName, &p.FirstName, &p.LastName,
		&p.Nationality, &p.Address, &p.PreferredTransport, &p.TravelStyle, &p.BudgetRange,
		&p.CreatedAt, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("profile %s: %w", userID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return &p, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (*storage.TripRecord, error) {
	var rec storage.TripRecord
	var tripJSON string

	if err := row.Scan(&rec.ID, &rec.UserID, &rec.SessionID, &tripJSON,
		&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}

	var trip domain.TripDraft
	if err := json.Unmarshal([]byte(tripJSON), &trip); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trip: %w", err)
	}
	rec.Trip = trip

	return &rec, nil
}

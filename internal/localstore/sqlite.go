package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // Registers the "sqlite" driver (pure Go, no cgo)

	"visits/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS visits (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	venue_id         TEXT NOT NULL,
	arrival_time     TIMESTAMP NOT NULL,
	departure_time   TIMESTAMP,
	is_active        INTEGER NOT NULL DEFAULT 0,
	duration_minutes INTEGER NOT NULL DEFAULT 0,
	detection_method TEXT NOT NULL,
	synced           INTEGER NOT NULL DEFAULT 0,
	sync_attempts    INTEGER NOT NULL DEFAULT 0,
	rejected         INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_visits_user_id      ON visits(user_id);
CREATE INDEX IF NOT EXISTS idx_visits_arrival_time ON visits(arrival_time);
CREATE INDEX IF NOT EXISTS idx_visits_synced       ON visits(synced);
CREATE INDEX IF NOT EXISTS idx_visits_venue_id     ON visits(venue_id);
`

const visitColumns = `id, user_id, venue_id, arrival_time, departure_time, is_active, duration_minutes, detection_method, synced, sync_attempts, rejected`

// SQLiteStore is a file-backed Store implementation.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) the visit database at path and applies the schema.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open visit store: %w", err)
	}

	// A single writer keeps sqlite transactions serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply visit store schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save upserts a visit by id.
func (s *SQLiteStore) Save(ctx context.Context, visit *domain.Visit) error {
	return s.save(ctx, s.db, visit)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) save(ctx context.Context, q execer, visit *domain.Visit) error {
	query := `
		INSERT INTO visits (` + visitColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			user_id          = excluded.user_id,
			venue_id         = excluded.venue_id,
			arrival_time     = excluded.arrival_time,
			departure_time   = excluded.departure_time,
			is_active        = excluded.is_active,
			duration_minutes = excluded.duration_minutes,
			detection_method = excluded.detection_method,
			synced           = excluded.synced,
			sync_attempts    = excluded.sync_attempts,
			rejected         = excluded.rejected
	`

	var departure sql.NullTime
	if !visit.DepartureTime.IsZero() {
		departure = sql.NullTime{Time: visit.DepartureTime, Valid: true}
	}

	_, err := q.ExecContext(ctx, query,
		visit.ID,
		visit.UserID,
		visit.VenueID,
		visit.ArrivalTime,
		departure,
		visit.IsActive,
		visit.DurationMinutes,
		visit.DetectionMethod,
		visit.Synced,
		visit.SyncAttempts,
		visit.Rejected,
	)

	return err
}

// BatchSave upserts multiple visits in a single transaction.
func (s *SQLiteStore) BatchSave(ctx context.Context, visits []*domain.Visit) error {
	if len(visits) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	for _, visit := range visits {
		if err := s.save(ctx, tx, visit); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// FindByID retrieves a visit by id.
func (s *SQLiteStore) FindByID(ctx context.Context, id string) (*domain.Visit, error) {
	query := `SELECT ` + visitColumns + ` FROM visits WHERE id = ?`

	visit, err := scanVisit(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return visit, nil
}

// FindByUserID retrieves a user's visits, most recent arrival first.
func (s *SQLiteStore) FindByUserID(ctx context.Context, userID string) ([]*domain.Visit, error) {
	query := `SELECT ` + visitColumns + ` FROM visits WHERE user_id = ? ORDER BY arrival_time DESC`
	return s.queryVisits(ctx, query, userID)
}

// FindUnsynced returns all visits pending sync, oldest arrival first so the
// server receives them in order.
func (s *SQLiteStore) FindUnsynced(ctx context.Context) ([]*domain.Visit, error) {
	query := `SELECT ` + visitColumns + ` FROM visits WHERE synced = 0 AND rejected = 0 ORDER BY arrival_time ASC`
	return s.queryVisits(ctx, query)
}

// MarkSynced marks a visit synced under the server-confirmed id.
func (s *SQLiteStore) MarkSynced(ctx context.Context, localID, serverID string) error {
	query := `UPDATE visits SET id = ?, synced = 1 WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, serverID, localID)
	if err != nil {
		return err
	}

	return requireRow(result)
}

// IncrementSyncAttempts bumps the rejection counter and returns the new count.
func (s *SQLiteStore) IncrementSyncAttempts(ctx context.Context, id string) (int, error) {
	query := `UPDATE visits SET sync_attempts = sync_attempts + 1 WHERE id = ? RETURNING sync_attempts`

	var attempts int
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&attempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}

	return attempts, nil
}

// MarkRejected flags a visit as permanently rejected.
func (s *SQLiteStore) MarkRejected(ctx context.Context, id string) error {
	query := `UPDATE visits SET rejected = 1 WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	return requireRow(result)
}

// Delete removes a visit.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM visits WHERE id = ?`, id)
	if err != nil {
		return err
	}

	return requireRow(result)
}

func (s *SQLiteStore) queryVisits(ctx context.Context, query string, args ...any) ([]*domain.Visit, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visits []*domain.Visit
	for rows.Next() {
		visit, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		visits = append(visits, visit)
	}

	return visits, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVisit(row rowScanner) (*domain.Visit, error) {
	var visit domain.Visit
	var departure sql.NullTime

	err := row.Scan(
		&visit.ID,
		&visit.UserID,
		&visit.VenueID,
		&visit.ArrivalTime,
		&departure,
		&visit.IsActive,
		&visit.DurationMinutes,
		&visit.DetectionMethod,
		&visit.Synced,
		&visit.SyncAttempts,
		&visit.Rejected,
	)
	if err != nil {
		return nil, err
	}

	if departure.Valid {
		visit.DepartureTime = departure.Time
	}

	return &visit, nil
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

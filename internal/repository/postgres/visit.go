package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"visits/internal/domain"
	"visits/internal/repository"
)

// VisitRepository is a PostgreSQL implementation of repository.VisitRepository.
type VisitRepository struct {
	q Querier
}

// NewVisitRepository creates a new PostgreSQL visit repository.
func NewVisitRepository(db *sql.DB) *VisitRepository {
	return &VisitRepository{q: db}
}

// NewVisitRepositoryWithTx creates a visit repository using a transaction.
func NewVisitRepositoryWithTx(tx *sql.Tx) *VisitRepository {
	return &VisitRepository{q: tx}
}

// Upsert inserts or replaces a visit by id. ON CONFLICT makes retried sync
// batches idempotent.
func (r *VisitRepository) Upsert(ctx context.Context, visit *domain.Visit) error {
	query := `
		INSERT INTO visits (id, user_id, venue_id, arrival_time, departure_time, is_active, duration_minutes, detection_method)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			departure_time   = EXCLUDED.departure_time,
			is_active        = EXCLUDED.is_active,
			duration_minutes = EXCLUDED.duration_minutes
	`

	var departure sql.NullTime
	if !visit.DepartureTime.IsZero() {
		departure = sql.NullTime{Time: visit.DepartureTime, Valid: true}
	}

	_, err := r.q.ExecContext(ctx, query,
		visit.ID,
		visit.UserID,
		visit.VenueID,
		visit.ArrivalTime,
		departure,
		visit.IsActive,
		visit.DurationMinutes,
		visit.DetectionMethod,
	)

	return err
}

// GetByID retrieves a visit by ID.
func (r *VisitRepository) GetByID(ctx context.Context, id string) (*domain.Visit, error) {
	query := `
		SELECT id, user_id, venue_id, arrival_time, departure_time, is_active, duration_minutes, detection_method
		FROM visits WHERE id = $1
	`

	visit, err := scanVisit(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return visit, nil
}

// GetByUserID retrieves a user's visits, most recent arrival first.
func (r *VisitRepository) GetByUserID(ctx context.Context, userID string) ([]*domain.Visit, error) {
	query := `
		SELECT id, user_id, venue_id, arrival_time, departure_time, is_active, duration_minutes, detection_method
		FROM visits WHERE user_id = $1 ORDER BY arrival_time DESC LIMIT 200
	`

	rows, err := r.q.QueryContext(ctx, query, userID)
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

// GetActiveByUserID retrieves the user's active visit.
// Returns nil if no active visit exists.
func (r *VisitRepository) GetActiveByUserID(ctx context.Context, userID string) (*domain.Visit, error) {
	query := `
		SELECT id, user_id, venue_id, arrival_time, departure_time, is_active, duration_minutes, detection_method
		FROM visits
		WHERE user_id = $1 AND is_active = TRUE
		LIMIT 1
	`

	visit, err := scanVisit(r.q.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return visit, nil
}

// UpdateDeparture closes a visit with the given departure time.
func (r *VisitRepository) UpdateDeparture(ctx context.Context, id string, departedAt time.Time, durationMinutes int) error {
	query := `
		UPDATE visits
		SET departure_time = $1, is_active = FALSE, duration_minutes = $2
		WHERE id = $3
	`

	result, err := r.q.ExecContext(ctx, query, departedAt, durationMinutes, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
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
	)
	if err != nil {
		return nil, err
	}

	if departure.Valid {
		visit.DepartureTime = departure.Time
	}

	// Server-side records are by definition the synced copy.
	visit.Synced = true

	return &visit, nil
}

// Ensure VisitRepository implements repository.VisitRepository.
var _ repository.VisitRepository = (*VisitRepository)(nil)

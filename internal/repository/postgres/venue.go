package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"visits/internal/domain"
	"visits/internal/repository"
)

// VenueRepository is a PostgreSQL implementation of repository.VenueRepository.
type VenueRepository struct {
	q Querier
}

// NewVenueRepository creates a new PostgreSQL venue repository.
func NewVenueRepository(db *sql.DB) *VenueRepository {
	return &VenueRepository{q: db}
}

// NewVenueRepositoryWithTx creates a venue repository using a transaction.
func NewVenueRepositoryWithTx(tx *sql.Tx) *VenueRepository {
	return &VenueRepository{q: tx}
}

// Create adds a new venue.
func (r *VenueRepository) Create(ctx context.Context, venue *domain.Venue) error {
	query := `
		INSERT INTO venues (id, name, type, latitude, longitude, city, state, radius_km)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.q.ExecContext(ctx, query,
		venue.ID,
		venue.Name,
		venue.Type,
		venue.Location.Latitude,
		venue.Location.Longitude,
		nullString(venue.City),
		nullString(venue.State),
		venue.RadiusKm,
	)

	return err
}

// GetByID retrieves a venue by ID.
func (r *VenueRepository) GetByID(ctx context.Context, id string) (*domain.Venue, error) {
	query := `
		SELECT id, name, type, latitude, longitude, city, state, radius_km
		FROM venues WHERE id = $1
	`

	venue, err := scanVenue(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return venue, nil
}

// GetByIDs retrieves multiple venues in one query.
func (r *VenueRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Venue, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, name, type, latitude, longitude, city, state, radius_km
		FROM venues WHERE id = ANY($1)
	`

	rows, err := r.q.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectVenues(rows)
}

// GetAll retrieves all venues.
func (r *VenueRepository) GetAll(ctx context.Context) ([]*domain.Venue, error) {
	query := `
		SELECT id, name, type, latitude, longitude, city, state, radius_km
		FROM venues ORDER BY name
	`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectVenues(rows)
}

func collectVenues(rows *sql.Rows) ([]*domain.Venue, error) {
	var venues []*domain.Venue
	for rows.Next() {
		venue, err := scanVenue(rows)
		if err != nil {
			return nil, err
		}
		venues = append(venues, venue)
	}

	return venues, rows.Err()
}

func scanVenue(row rowScanner) (*domain.Venue, error) {
	var venue domain.Venue
	var city, state sql.NullString

	err := row.Scan(
		&venue.ID,
		&venue.Name,
		&venue.Type,
		&venue.Location.Latitude,
		&venue.Location.Longitude,
		&city,
		&state,
		&venue.RadiusKm,
	)
	if err != nil {
		return nil, err
	}

	venue.City = city.String
	venue.State = state.String

	return &venue, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Ensure VenueRepository implements repository.VenueRepository.
var _ repository.VenueRepository = (*VenueRepository)(nil)

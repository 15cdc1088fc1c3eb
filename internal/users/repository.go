package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yemeli/swiftride/pkg/models"
)

// ErrUserNotFound is returned when no user matches the given ID
var ErrUserNotFound = errors.New("user not found")

// Repository handles database operations for users
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new users repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetByID retrieves a user by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT id, email, first_name, last_name, phone_number, role, is_active, rating, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	user := &models.User{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PhoneNumber,
		&user.Role,
		&user.IsActive,
		&user.Rating,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// RefreshRating recomputes the aggregate rating from completed rides.
// Drivers are rated via rider_rating_score, riders via
// driver_rating_score.
func (r *Repository) RefreshRating(ctx context.Context, userID uuid.UUID, role models.UserRole) error {
	var query string
	switch role {
	case models.RoleDriver:
		query = `
			UPDATE users
			SET rating = COALESCE((
				SELECT AVG(rider_rating_score)::float8 FROM rides
				WHERE driver_id = $1 AND rider_rating_score IS NOT NULL
			), rating), updated_at = NOW()
			WHERE id = $1
		`
	case models.RoleRider:
		query = `
			UPDATE users
			SET rating = COALESCE((
				SELECT AVG(driver_rating_score)::float8 FROM rides
				WHERE rider_id = $1 AND driver_rating_score IS NOT NULL
			), rating), updated_at = NOW()
			WHERE id = $1
		`
	default:
		return fmt.Errorf("role %q has no rating aggregate", role)
	}

	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to refresh rating: %w", err)
	}
	return nil
}

package rides

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yemeli/swiftride/pkg/models"
)

// Sentinel errors the service layer maps onto the API error taxonomy
var (
	ErrRideNotFound  = errors.New("ride not found")
	ErrStatusChanged = errors.New("ride status changed")
	ErrNotAssigned   = errors.New("ride assigned to another driver")
	ErrAlreadyRated  = errors.New("ride already rated by this role")
)

const rideColumns = `
	id, rider_id, driver_id, status, vehicle_type,
	pickup_address, pickup_lon, pickup_lat,
	dropoff_address, dropoff_lon, dropoff_lat,
	distance_km, duration_min,
	fare_base, fare_distance, fare_time, fare_total, currency,
	payment_method, payment_status, payment_transaction_id,
	requested_at, accepted_at, started_at, completed_at, cancelled_at, cancelled_by,
	rider_rating_score, rider_rating_comment, rider_rated_at,
	driver_rating_score, driver_rating_comment, driver_rated_at
`

// Repository handles database operations for rides
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new rides repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a new pending ride
func (r *Repository) Create(ctx context.Context, ride *models.Ride) error {
	query := `
		INSERT INTO rides (
			id, rider_id, status, vehicle_type,
			pickup_address, pickup_lon, pickup_lat,
			dropoff_address, dropoff_lon, dropoff_lat,
			distance_km, duration_min,
			fare_base, fare_distance, fare_time, fare_total, currency,
			payment_method, payment_status, requested_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err := r.db.Exec(ctx, query,
		ride.ID,
		ride.RiderID,
		ride.Status,
		ride.VehicleType,
		ride.Pickup.Address,
		ride.Pickup.Point.Lon(),
		ride.Pickup.Point.Lat(),
		ride.Destination.Address,
		ride.Destination.Point.Lon(),
		ride.Destination.Point.Lat(),
		ride.DistanceKm,
		ride.DurationMin,
		ride.Fare.Base,
		ride.Fare.DistanceFare,
		ride.Fare.TimeFare,
		ride.Fare.Total,
		ride.Fare.Currency,
		ride.Payment.Method,
		ride.Payment.Status,
		ride.RequestedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create ride: %w", err)
	}
	return nil
}

// GetByID retrieves a ride by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`

	ride, err := scanRide(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRideNotFound
		}
		return nil, fmt.Errorf("failed to get ride: %w", err)
	}
	return ride, nil
}

// HasActiveRideForRider reports whether the rider has a non-terminal ride
func (r *Repository) HasActiveRideForRider(ctx context.Context, riderID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM rides
			WHERE rider_id = $1 AND status IN ('pending', 'accepted', 'in_progress')
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, riderID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check active rides: %w", err)
	}
	return exists, nil
}

// HasActiveRideForDriver reports whether the driver has a non-terminal ride
func (r *Repository) HasActiveRideForDriver(ctx context.Context, driverID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM rides
			WHERE driver_id = $1 AND status IN ('accepted', 'in_progress')
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, driverID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check active rides: %w", err)
	}
	return exists, nil
}

// AcceptPending assigns the driver iff the ride is still pending. The
// status predicate makes concurrent accepts race safely: the first
// update wins, everyone else matches zero rows.
func (r *Repository) AcceptPending(ctx context.Context, rideID, driverID uuid.UUID) (*models.Ride, error) {
	query := `
		UPDATE rides
		SET status = 'accepted', driver_id = $2, accepted_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + rideColumns

	ride, err := scanRide(r.db.QueryRow(ctx, query, rideID, driverID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.classifyMiss(ctx, rideID)
		}
		return nil, fmt.Errorf("failed to accept ride: %w", err)
	}
	return ride, nil
}

// Start moves accepted -> in_progress for the assigned driver
func (r *Repository) Start(ctx context.Context, rideID, driverID uuid.UUID) (*models.Ride, error) {
	query := `
		UPDATE rides
		SET status = 'in_progress', started_at = NOW()
		WHERE id = $1 AND driver_id = $2 AND status = 'accepted'
		RETURNING ` + rideColumns

	ride, err := scanRide(r.db.QueryRow(ctx, query, rideID, driverID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.classifyDriverMiss(ctx, rideID, driverID)
		}
		return nil, fmt.Errorf("failed to start ride: %w", err)
	}
	return ride, nil
}

// Complete moves in_progress -> completed with the final figures
func (r *Repository) Complete(ctx context.Context, rideID, driverID uuid.UUID, distanceKm float64, durationMin int, fare models.Fare) (*models.Ride, error) {
	query := `
		UPDATE rides
		SET status = 'completed', completed_at = NOW(),
			distance_km = $3, duration_min = $4,
			fare_base = $5, fare_distance = $6, fare_time = $7, fare_total = $8
		WHERE id = $1 AND driver_id = $2 AND status = 'in_progress'
		RETURNING ` + rideColumns

	ride, err := scanRide(r.db.QueryRow(ctx, query,
		rideID, driverID, distanceKm, durationMin,
		fare.Base, fare.DistanceFare, fare.TimeFare, fare.Total,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.classifyDriverMiss(ctx, rideID, driverID)
		}
		return nil, fmt.Errorf("failed to complete ride: %w", err)
	}
	return ride, nil
}

// Cancel moves the ride from the observed status to cancelled
func (r *Repository) Cancel(ctx context.Context, rideID uuid.UUID, observed models.RideStatus, actor models.CancelActor) (*models.Ride, error) {
	query := `
		UPDATE rides
		SET status = 'cancelled', cancelled_at = NOW(), cancelled_by = $3
		WHERE id = $1 AND status = $2
		RETURNING ` + rideColumns

	ride, err := scanRide(r.db.QueryRow(ctx, query, rideID, observed, actor))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.classifyMiss(ctx, rideID)
		}
		return nil, fmt.Errorf("failed to cancel ride: %w", err)
	}
	return ride, nil
}

// SetRating records a rating once per role, only on completed rides
func (r *Repository) SetRating(ctx context.Context, rideID uuid.UUID, byRole models.UserRole, rating *models.Rating) error {
	var query string
	switch byRole {
	case models.RoleRider:
		query = `
			UPDATE rides
			SET rider_rating_score = $2, rider_rating_comment = $3, rider_rated_at = $4
			WHERE id = $1 AND status = 'completed' AND rider_rating_score IS NULL
		`
	case models.RoleDriver:
		query = `
			UPDATE rides
			SET driver_rating_score = $2, driver_rating_comment = $3, driver_rated_at = $4
			WHERE id = $1 AND status = 'completed' AND driver_rating_score IS NULL
		`
	default:
		return fmt.Errorf("role %q cannot rate rides", byRole)
	}

	tag, err := r.db.Exec(ctx, query, rideID, rating.Score, rating.Comment, rating.RatedAt)
	if err != nil {
		return fmt.Errorf("failed to set rating: %w", err)
	}
	if tag.RowsAffected() == 0 {
		ride, err := r.GetByID(ctx, rideID)
		if err != nil {
			return err
		}
		if ride.Status != models.RideStatusCompleted {
			return ErrStatusChanged
		}
		return ErrAlreadyRated
	}
	return nil
}

// SetPaymentResult records the settlement outcome for a ride
func (r *Repository) SetPaymentResult(ctx context.Context, rideID uuid.UUID, status models.PaymentStatus, transactionID *string) error {
	query := `
		UPDATE rides
		SET payment_status = $2, payment_transaction_id = $3
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, rideID, status, transactionID)
	if err != nil {
		return fmt.Errorf("failed to set payment result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRideNotFound
	}
	return nil
}

// ListByRider returns the rider's rides, newest first
func (r *Repository) ListByRider(ctx context.Context, riderID uuid.UUID, limit, offset int) ([]*models.Ride, error) {
	query := `SELECT ` + rideColumns + `
		FROM rides WHERE rider_id = $1
		ORDER BY requested_at DESC
		LIMIT $2 OFFSET $3`
	return r.queryRides(ctx, query, riderID, limit, offset)
}

// ListByDriver returns the driver's rides, newest first
func (r *Repository) ListByDriver(ctx context.Context, driverID uuid.UUID, limit, offset int) ([]*models.Ride, error) {
	query := `SELECT ` + rideColumns + `
		FROM rides WHERE driver_id = $1
		ORDER BY requested_at DESC
		LIMIT $2 OFFSET $3`
	return r.queryRides(ctx, query, driverID, limit, offset)
}

// ListPending returns all unassigned ride requests, oldest first
func (r *Repository) ListPending(ctx context.Context) ([]*models.Ride, error) {
	query := `SELECT ` + rideColumns + `
		FROM rides WHERE status = 'pending'
		ORDER BY requested_at ASC`
	return r.queryRides(ctx, query)
}

// ExpireStalePending system-cancels pending rides requested before the
// cutoff and returns them
func (r *Repository) ExpireStalePending(ctx context.Context, cutoff time.Time) ([]*models.Ride, error) {
	query := `
		UPDATE rides
		SET status = 'cancelled', cancelled_at = NOW(), cancelled_by = 'system'
		WHERE status = 'pending' AND requested_at < $1
		RETURNING ` + rideColumns
	return r.queryRides(ctx, query, cutoff)
}

// GetDriverStats aggregates rating, acceptance rate and last completion
// time for the given drivers
func (r *Repository) GetDriverStats(ctx context.Context, driverIDs []uuid.UUID) (map[uuid.UUID]DriverStats, error) {
	if len(driverIDs) == 0 {
		return map[uuid.UUID]DriverStats{}, nil
	}

	query := `
		SELECT u.id, u.rating,
			COUNT(*) FILTER (WHERE r.status = 'completed') AS completed,
			COUNT(*) FILTER (WHERE r.status = 'cancelled' AND r.cancelled_by = 'driver') AS driver_cancelled,
			MAX(r.completed_at) AS last_completed_at
		FROM users u
		LEFT JOIN rides r ON r.driver_id = u.id
		WHERE u.id = ANY($1)
		GROUP BY u.id, u.rating
	`

	rows, err := r.db.Query(ctx, query, driverIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get driver stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[uuid.UUID]DriverStats, len(driverIDs))
	for rows.Next() {
		var (
			id              uuid.UUID
			rating          float64
			completed       int64
			driverCancelled int64
			lastCompletedAt *time.Time
		)
		if err := rows.Scan(&id, &rating, &completed, &driverCancelled, &lastCompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan driver stats: %w", err)
		}

		acceptance := 1.0
		if total := completed + driverCancelled; total > 0 {
			acceptance = float64(completed) / float64(total)
		}
		stats[id] = DriverStats{
			Rating:          rating,
			AcceptanceRate:  acceptance,
			LastCompletedAt: lastCompletedAt,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read driver stats: %w", err)
	}
	return stats, nil
}

// classifyMiss turns a zero-row conditional update into the right error
func (r *Repository) classifyMiss(ctx context.Context, rideID uuid.UUID) error {
	if _, err := r.GetByID(ctx, rideID); err != nil {
		return err
	}
	return ErrStatusChanged
}

func (r *Repository) classifyDriverMiss(ctx context.Context, rideID, driverID uuid.UUID) error {
	ride, err := r.GetByID(ctx, rideID)
	if err != nil {
		return err
	}
	if ride.DriverID == nil || *ride.DriverID != driverID {
		return ErrNotAssigned
	}
	return ErrStatusChanged
}

func (r *Repository) queryRides(ctx context.Context, query string, args ...interface{}) ([]*models.Ride, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rides: %w", err)
	}
	defer rows.Close()

	var rides []*models.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ride: %w", err)
		}
		rides = append(rides, ride)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rides: %w", err)
	}
	return rides, nil
}

func scanRide(row pgx.Row) (*models.Ride, error) {
	var (
		ride               models.Ride
		pickupLon          float64
		pickupLat          float64
		dropoffLon         float64
		dropoffLat         float64
		riderScore         *int
		riderComment       *string
		riderRatedAt       *time.Time
		driverScore        *int
		driverComment      *string
		driverRatedAt      *time.Time
	)

	err := row.Scan(
		&ride.ID,
		&ride.RiderID,
		&ride.DriverID,
		&ride.Status,
		&ride.VehicleType,
		&ride.Pickup.Address,
		&pickupLon,
		&pickupLat,
		&ride.Destination.Address,
		&dropoffLon,
		&dropoffLat,
		&ride.DistanceKm,
		&ride.DurationMin,
		&ride.Fare.Base,
		&ride.Fare.DistanceFare,
		&ride.Fare.TimeFare,
		&ride.Fare.Total,
		&ride.Fare.Currency,
		&ride.Payment.Method,
		&ride.Payment.Status,
		&ride.Payment.TransactionID,
		&ride.RequestedAt,
		&ride.AcceptedAt,
		&ride.StartedAt,
		&ride.CompletedAt,
		&ride.CancelledAt,
		&ride.CancelledBy,
		&riderScore,
		&riderComment,
		&riderRatedAt,
		&driverScore,
		&driverComment,
		&driverRatedAt,
	)
	if err != nil {
		return nil, err
	}

	ride.Pickup.Point = models.GeoPoint{pickupLon, pickupLat}
	ride.Destination.Point = models.GeoPoint{dropoffLon, dropoffLat}

	if riderScore != nil {
		ride.RiderRating = &models.Rating{Score: *riderScore, RatedAt: *riderRatedAt}
		if riderComment != nil {
			ride.RiderRating.Comment = *riderComment
		}
	}
	if driverScore != nil {
		ride.DriverRating = &models.Rating{Score: *driverScore, RatedAt: *driverRatedAt}
		if driverComment != nil {
			ride.DriverRating.Comment = *driverComment
		}
	}
	return &ride, nil
}

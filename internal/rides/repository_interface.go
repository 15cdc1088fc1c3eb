package rides

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yemeli/swiftride/pkg/models"
)

// DriverStats aggregates the matching signals for one driver
type DriverStats struct {
	Rating          float64
	AcceptanceRate  float64
	LastCompletedAt *time.Time
}

// RepositoryInterface defines the interface for ride repository
// operations. Every lifecycle mutation is a conditional update keyed on
// the status the caller observed; a zero-row update means the ride
// moved underneath the caller and the returned error says which way.
type RepositoryInterface interface {
	Create(ctx context.Context, ride *models.Ride) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Ride, error)
	HasActiveRideForRider(ctx context.Context, riderID uuid.UUID) (bool, error)
	HasActiveRideForDriver(ctx context.Context, driverID uuid.UUID) (bool, error)

	// AcceptPending assigns driverID to the ride iff it is still
	// pending. Exactly one concurrent caller can win.
	AcceptPending(ctx context.Context, rideID, driverID uuid.UUID) (*models.Ride, error)

	// Start moves accepted -> in_progress, only for the assigned driver
	Start(ctx context.Context, rideID, driverID uuid.UUID) (*models.Ride, error)

	// Complete moves in_progress -> completed with the final distance,
	// duration and fare, only for the assigned driver
	Complete(ctx context.Context, rideID, driverID uuid.UUID, distanceKm float64, durationMin int, fare models.Fare) (*models.Ride, error)

	// Cancel moves the ride from the observed status to cancelled
	Cancel(ctx context.Context, rideID uuid.UUID, observed models.RideStatus, actor models.CancelActor) (*models.Ride, error)

	// SetRating records the rating left by one role, once, on a
	// completed ride
	SetRating(ctx context.Context, rideID uuid.UUID, byRole models.UserRole, rating *models.Rating) error

	SetPaymentResult(ctx context.Context, rideID uuid.UUID, status models.PaymentStatus, transactionID *string) error

	ListByRider(ctx context.Context, riderID uuid.UUID, limit, offset int) ([]*models.Ride, error)
	ListByDriver(ctx context.Context, driverID uuid.UUID, limit, offset int) ([]*models.Ride, error)
	ListPending(ctx context.Context) ([]*models.Ride, error)

	// ExpireStalePending system-cancels pending rides requested before
	// the cutoff and returns them
	ExpireStalePending(ctx context.Context, cutoff time.Time) ([]*models.Ride, error)

	GetDriverStats(ctx context.Context, driverIDs []uuid.UUID) (map[uuid.UUID]DriverStats, error)
}

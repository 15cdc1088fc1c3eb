package geo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yemeli/swiftride/pkg/models"
)

// Candidate is a driver returned by a proximity query, ordered by
// distance from the query point.
type Candidate struct {
	DriverID   uuid.UUID `json:"driver_id"`
	DistanceKm float64   `json:"distance_km"`
}

// DriverPosition is the last known location of a driver
type DriverPosition struct {
	DriverID  uuid.UUID       `json:"driver_id"`
	Point     models.GeoPoint `json:"point"`
	SpeedKmh  float64         `json:"speed_kmh"`
	Available bool            `json:"available"`
	Active    bool            `json:"active"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Index is the driver location store queried by dispatch. Only drivers
// that are both available and active are visible to Nearby; inactive
// drivers stay hidden even when marked available.
type Index interface {
	// UpsertPosition records the driver's current position, creating the
	// entry on first report
	UpsertPosition(ctx context.Context, driverID uuid.UUID, point models.GeoPoint, speedKmh float64) error

	// SetAvailability flips whether the driver is open to new offers
	SetAvailability(ctx context.Context, driverID uuid.UUID, available bool) error

	// SetActive flips the account-level gate. Deactivated drivers are
	// excluded from matching regardless of availability.
	SetActive(ctx context.Context, driverID uuid.UUID, active bool) error

	// Position returns the driver's last known position
	Position(ctx context.Context, driverID uuid.UUID) (*DriverPosition, error)

	// Nearby returns up to limit available active drivers within
	// radiusMeters of point, nearest first. Distances in the result are
	// kilometers. An empty result is a normal outcome, not an error.
	Nearby(ctx context.Context, point models.GeoPoint, radiusMeters float64, limit int) ([]Candidate, error)

	// Remove drops the driver from the index entirely
	Remove(ctx context.Context, driverID uuid.UUID) error
}

package geo

import (
	"context"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yemeli/swiftride/pkg/logger"
	"github.com/yemeli/swiftride/pkg/models"
)

// NearbyDriver is a proximity match enriched with an arrival estimate
type NearbyDriver struct {
	DriverID   uuid.UUID `json:"driver_id"`
	DistanceKm float64   `json:"distance_km"`
	EtaMinutes int       `json:"eta_minutes"`
}

// LocationUpdate is a driver position report
type LocationUpdate struct {
	Point    models.GeoPoint `json:"point" binding:"required,lonlat"`
	SpeedKmh float64         `json:"speed_kmh" binding:"gte=0"`
}

// Service handles driver location tracking and proximity queries
type Service struct {
	index Index
}

// NewService creates a geo service on the given index
func NewService(index Index) *Service {
	return &Service{index: index}
}

// UpdateDriverLocation records a driver position report
func (s *Service) UpdateDriverLocation(ctx context.Context, driverID uuid.UUID, update *LocationUpdate) error {
	if err := s.index.UpsertPosition(ctx, driverID, update.Point, update.SpeedKmh); err != nil {
		return err
	}
	logger.Debug("driver location updated",
		zap.String("driver_id", driverID.String()),
		zap.Float64("lon", update.Point.Lon()),
		zap.Float64("lat", update.Point.Lat()),
	)
	return nil
}

// SetAvailability flips whether the driver receives new offers
func (s *Service) SetAvailability(ctx context.Context, driverID uuid.UUID, available bool) error {
	if err := s.index.SetAvailability(ctx, driverID, available); err != nil {
		return err
	}
	logger.Info("driver availability changed",
		zap.String("driver_id", driverID.String()),
		zap.Bool("available", available),
	)
	return nil
}

// SetActive flips the account-level matching gate
func (s *Service) SetActive(ctx context.Context, driverID uuid.UUID, active bool) error {
	return s.index.SetActive(ctx, driverID, active)
}

// GetDriverLocation returns the driver's last known position
func (s *Service) GetDriverLocation(ctx context.Context, driverID uuid.UUID) (*DriverPosition, error) {
	return s.index.Position(ctx, driverID)
}

// FindNearbyDrivers returns up to limit available drivers within
// radiusKm of point, nearest first, with arrival estimates
func (s *Service) FindNearbyDrivers(ctx context.Context, point models.GeoPoint, radiusKm float64, limit int) ([]NearbyDriver, error) {
	candidates, err := s.index.Nearby(ctx, point, radiusKm*1000, limit)
	if err != nil {
		return nil, err
	}

	drivers := make([]NearbyDriver, len(candidates))
	for i, c := range candidates {
		drivers[i] = NearbyDriver{
			DriverID:   c.DriverID,
			DistanceKm: math.Round(c.DistanceKm*100) / 100,
			EtaMinutes: int(math.Ceil(estimateETAMinutes(c.DistanceKm, 0))),
		}
	}
	return drivers, nil
}

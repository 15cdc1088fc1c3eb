package rides

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yemeli/swiftride/internal/geo"
	"github.com/yemeli/swiftride/pkg/eventbus"
	"github.com/yemeli/swiftride/pkg/logger"
	"github.com/yemeli/swiftride/pkg/models"
)

// Defaults for candidates missing history, e.g. drivers with no
// completed rides yet
const (
	defaultCandidateRating = 4.5
	defaultAcceptanceRate  = 1.0
)

// indexCandidateProvider sources matcher candidates from the geo index
// and enriches them with driver stats
type indexCandidateProvider struct {
	index geo.Index
	repo  RepositoryInterface
}

func (p *indexCandidateProvider) GetNearbyDriverCandidates(ctx context.Context, lat, lng float64, radiusKm float64, limit int) ([]*DriverCandidate, error) {
	nearby, err := p.index.Nearby(ctx, models.GeoPoint{lng, lat}, radiusKm*1000, limit)
	if err != nil {
		return nil, err
	}
	if len(nearby) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(nearby))
	for i, c := range nearby {
		ids[i] = c.DriverID
	}

	stats, err := p.repo.GetDriverStats(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	candidates := make([]*DriverCandidate, len(nearby))
	for i, c := range nearby {
		candidate := &DriverCandidate{
			DriverID:       c.DriverID,
			DistanceKm:     c.DistanceKm,
			Rating:         defaultCandidateRating,
			AcceptanceRate: defaultAcceptanceRate,
		}
		if s, ok := stats[c.DriverID]; ok {
			if s.Rating > 0 {
				candidate.Rating = s.Rating
			}
			candidate.AcceptanceRate = s.AcceptanceRate
			if s.LastCompletedAt != nil {
				candidate.IdleMinutes = now.Sub(*s.LastCompletedAt).Minutes()
			}
		}
		candidates[i] = candidate
	}
	return candidates, nil
}

// Dispatcher finds candidate drivers for a pending ride and broadcasts
// the offer. Offers are invitations: acceptance is resolved by the
// conditional repository update, never by event delivery.
type Dispatcher struct {
	matcher *Matcher
	bus     eventbus.Bus
}

// NewDispatcher creates a dispatcher over the geo index and event bus
func NewDispatcher(cfg MatchingConfig, index geo.Index, repo RepositoryInterface, bus eventbus.Bus) *Dispatcher {
	provider := &indexCandidateProvider{index: index, repo: repo}
	return &Dispatcher{
		matcher: NewMatcher(cfg, provider),
		bus:     bus,
	}
}

// BroadcastOffer ranks nearby drivers and publishes the offer to all of
// them. Returns the number of drivers notified; zero candidates is a
// normal outcome and leaves the ride pending.
func (d *Dispatcher) BroadcastOffer(ctx context.Context, ride *models.Ride) (int, error) {
	best, err := d.matcher.FindBestDrivers(ctx, ride.Pickup.Point.Lat(), ride.Pickup.Point.Lon())
	if err != nil {
		return 0, fmt.Errorf("find candidate drivers: %w", err)
	}
	if len(best) == 0 {
		logger.Info("no drivers available for ride",
			zap.String("ride_id", ride.ID.String()),
		)
		return 0, nil
	}

	driverIDs := make([]uuid.UUID, len(best))
	for i, c := range best {
		driverIDs[i] = c.DriverID
	}

	data := eventbus.RideOfferedData{
		RideID:         ride.ID,
		RiderID:        ride.RiderID,
		DriverIDs:      driverIDs,
		PickupAddress:  ride.Pickup.Address,
		PickupLon:      ride.Pickup.Point.Lon(),
		PickupLat:      ride.Pickup.Point.Lat(),
		DropoffAddress: ride.Destination.Address,
		FareTotal:      ride.Fare.Total,
		Currency:       ride.Fare.Currency,
	}
	if err := d.bus.Publish(ctx, eventbus.TopicRideOffers, eventbus.EventRideOffered, data); err != nil {
		// The offer broadcast is advisory; drivers can still pull the
		// ride from the available list.
		logger.Warn("failed to broadcast ride offer",
			zap.String("ride_id", ride.ID.String()),
			zap.Error(err),
		)
	}

	if err := d.bus.Publish(ctx, eventbus.TopicMonitoring, eventbus.EventRideOffered, eventbus.DispatchMonitorData{
		RideID:     ride.ID,
		Candidates: len(driverIDs),
		RadiusKm:   d.matcher.cfg.RadiusKm,
	}); err != nil {
		logger.Debug("failed to publish dispatch monitoring event", zap.Error(err))
	}

	return len(driverIDs), nil
}

// WithdrawOffer tells losing candidates the ride is gone
func (d *Dispatcher) WithdrawOffer(ctx context.Context, rideID, winnerID uuid.UUID) {
	data := eventbus.OfferWithdrawnData{RideID: rideID, WinnerID: winnerID}
	if err := d.bus.Publish(ctx, eventbus.TopicRideOffers, eventbus.EventOfferWithdrawn, data); err != nil {
		logger.Warn("failed to withdraw ride offer",
			zap.String("ride_id", rideID.String()),
			zap.Error(err),
		)
	}
}

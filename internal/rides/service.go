package rides

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yemeli/swiftride/internal/geo"
	"github.com/yemeli/swiftride/internal/users"
	"github.com/yemeli/swiftride/pkg/common"
	"github.com/yemeli/swiftride/pkg/config"
	"github.com/yemeli/swiftride/pkg/eventbus"
	"github.com/yemeli/swiftride/pkg/logger"
	"github.com/yemeli/swiftride/pkg/metrics"
	"github.com/yemeli/swiftride/pkg/models"
)

// WalletSettler moves ride money between rider and driver wallets. The
// wallet service implements it; rides only sees the capability.
type WalletSettler interface {
	PayRideFare(ctx context.Context, riderID, driverID, rideID uuid.UUID, amount float64) (string, error)
	ChargeCancellationFee(ctx context.Context, riderID, driverID, rideID uuid.UUID, amount float64) (string, error)
}

// RideDispatch is the result of a ride request: the created ride plus
// how many drivers were offered it
type RideDispatch struct {
	Ride              *models.Ride `json:"ride"`
	CandidatesNotified int         `json:"candidates_notified"`
}

// Service handles ride lifecycle and dispatch business logic
type Service struct {
	repo       RepositoryInterface
	users      users.RepositoryInterface
	index      geo.Index
	dispatcher *Dispatcher
	settler    WalletSettler
	bus        eventbus.Bus
	cfg        config.BusinessConfig
}

// NewService creates a new rides service
func NewService(
	repo RepositoryInterface,
	usersRepo users.RepositoryInterface,
	index geo.Index,
	dispatcher *Dispatcher,
	settler WalletSettler,
	bus eventbus.Bus,
	cfg config.BusinessConfig,
) *Service {
	return &Service{
		repo:       repo,
		users:      usersRepo,
		index:      index,
		dispatcher: dispatcher,
		settler:    settler,
		bus:        bus,
		cfg:        cfg,
	}
}

// RequestRide creates a pending ride and broadcasts it to nearby
// drivers. It returns as soon as the offer is out; acceptance is
// asynchronous.
func (s *Service) RequestRide(ctx context.Context, riderID uuid.UUID, req *models.RideRequest) (*RideDispatch, error) {
	rider, err := s.users.GetByID(ctx, riderID)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return nil, common.NewNotFoundError("rider not found").WithCode("USER_NOT_FOUND")
		}
		return nil, common.NewInternalError("failed to load rider", err)
	}
	if !rider.IsActive {
		return nil, common.NewForbiddenError("account is deactivated")
	}

	if !req.Pickup.Point.Valid() || !req.Destination.Point.Valid() {
		return nil, common.NewBadRequestError("pickup and destination must be [lon, lat] pairs in range", nil).
			WithCode("INVALID_LOCATION")
	}

	active, err := s.repo.HasActiveRideForRider(ctx, riderID)
	if err != nil {
		return nil, common.NewInternalError("failed to check active rides", err)
	}
	if active {
		return nil, common.NewConflictError("rider already has an active ride", nil).
			WithCode("ACTIVE_RIDE_EXISTS")
	}

	distance := geo.Distance(req.Pickup.Point, req.Destination.Point)
	fare, duration := EstimateFare(distance)

	ride := &models.Ride{
		ID:          uuid.New(),
		RiderID:     riderID,
		Status:      models.RideStatusPending,
		VehicleType: req.VehicleType,
		Pickup:      req.Pickup,
		Destination: req.Destination,
		DistanceKm:  distance,
		DurationMin: duration,
		Fare:        fare,
		Payment: models.RidePayment{
			Method: req.PaymentMethod,
			Status: models.PaymentStatusPending,
		},
		RequestedAt: time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, ride); err != nil {
		return nil, common.NewInternalError("failed to create ride", err)
	}
	metrics.RidesRequested.Inc()

	candidates, err := s.dispatcher.BroadcastOffer(ctx, ride)
	if err != nil {
		// The ride stays pending and remains visible in the available
		// list; dispatch will be retried by drivers pulling it.
		logger.Warn("dispatch broadcast failed",
			zap.String("ride_id", ride.ID.String()),
			zap.Error(err),
		)
		candidates = 0
	} else {
		metrics.OffersBroadcast.Inc()
	}

	logger.Info("ride requested",
		zap.String("ride_id", ride.ID.String()),
		zap.String("rider_id", riderID.String()),
		zap.Float64("distance_km", distance),
		zap.Float64("fare_total", fare.Total),
		zap.Int("candidates", candidates),
	)

	return &RideDispatch{Ride: ride, CandidatesNotified: candidates}, nil
}

// GetRide retrieves a ride by ID
func (s *Service) GetRide(ctx context.Context, rideID uuid.UUID) (*models.Ride, error) {
	ride, err := s.repo.GetByID(ctx, rideID)
	if err != nil {
		return nil, s.mapRepoError(err, "failed to get ride")
	}
	return ride, nil
}

// AcceptRide assigns the ride to the driver. Concurrent accepts on the
// same pending ride are resolved by the conditional update: exactly one
// driver wins, the rest get RideNoLongerAvailable.
func (s *Service) AcceptRide(ctx context.Context, rideID, driverID uuid.UUID) (*models.Ride, error) {
	pos, err := s.index.Position(ctx, driverID)
	if err != nil || !pos.Available || !pos.Active {
		return nil, common.NewConflictError("driver is not available for offers", nil).
			WithCode("DRIVER_UNAVAILABLE")
	}

	busy, err := s.repo.HasActiveRideForDriver(ctx, driverID)
	if err != nil {
		return nil, common.NewInternalError("failed to check driver rides", err)
	}
	if busy {
		return nil, common.NewConflictError("driver already has an active ride", nil).
			WithCode("DRIVER_UNAVAILABLE")
	}

	ride, err := s.repo.AcceptPending(ctx, rideID, driverID)
	if err != nil {
		if errors.Is(err, ErrStatusChanged) {
			return nil, common.NewConflictError("ride is no longer available", nil).
				WithCode("RIDE_NO_LONGER_AVAILABLE")
		}
		return nil, s.mapRepoError(err, "failed to accept ride")
	}
	metrics.RidesMatched.Inc()

	if err := s.index.SetAvailability(ctx, driverID, false); err != nil {
		logger.Warn("failed to flip driver availability after accept",
			zap.String("driver_id", driverID.String()),
			zap.Error(err),
		)
	}

	s.dispatcher.WithdrawOffer(ctx, rideID, driverID)
	s.publish(ctx, eventbus.TopicRideAccepted, eventbus.EventRideAccepted, eventbus.RideAcceptedData{
		RideID:   ride.ID,
		RiderID:  ride.RiderID,
		DriverID: driverID,
	})

	logger.Info("ride accepted",
		zap.String("ride_id", rideID.String()),
		zap.String("driver_id", driverID.String()),
	)
	return ride, nil
}

// StartRide moves the ride to in_progress; only the assigned driver may
// start it
func (s *Service) StartRide(ctx context.Context, rideID, driverID uuid.UUID) (*models.Ride, error) {
	ride, err := s.repo.Start(ctx, rideID, driverID)
	if err != nil {
		return nil, s.mapRepoError(err, "failed to start ride")
	}

	s.publish(ctx, eventbus.TopicRideStarted, eventbus.EventRideStarted, eventbus.RideStartedData{
		RideID:   ride.ID,
		RiderID:  ride.RiderID,
		DriverID: driverID,
	})
	return ride, nil
}

// CompleteRide finishes the trip, reprices it on the measured distance,
// restores driver availability and settles the fare. Wallet settlement
// failure does not undo the completion: the trip happened; the payment
// outcome is recorded on the ride.
func (s *Service) CompleteRide(ctx context.Context, rideID, driverID uuid.UUID, actualDistanceKm float64) (*models.Ride, error) {
	if actualDistanceKm <= 0 {
		return nil, common.NewBadRequestError("actual distance must be positive", nil)
	}

	fare, duration := EstimateFare(actualDistanceKm)
	ride, err := s.repo.Complete(ctx, rideID, driverID, actualDistanceKm, duration, fare)
	if err != nil {
		return nil, s.mapRepoError(err, "failed to complete ride")
	}
	metrics.RidesCompleted.Inc()

	if err := s.index.SetAvailability(ctx, driverID, true); err != nil {
		logger.Warn("failed to restore driver availability",
			zap.String("driver_id", driverID.String()),
			zap.Error(err),
		)
	}

	s.settleFare(ctx, ride)

	s.publish(ctx, eventbus.TopicRideCompleted, eventbus.EventRideCompleted, eventbus.RideCompletedData{
		RideID:        ride.ID,
		RiderID:       ride.RiderID,
		DriverID:      driverID,
		FareAmount:    ride.Fare.Total,
		PaymentMethod: string(ride.Payment.Method),
	})

	logger.Info("ride completed",
		zap.String("ride_id", rideID.String()),
		zap.Float64("distance_km", actualDistanceKm),
		zap.Float64("fare_total", ride.Fare.Total),
	)
	return ride, nil
}

// settleFare resolves payment at completion. Wallet fares settle
// synchronously; cash settles on the spot; gateway methods stay pending
// for the payments collector.
func (s *Service) settleFare(ctx context.Context, ride *models.Ride) {
	switch ride.Payment.Method {
	case models.PaymentMethodWallet:
		ref, err := s.settler.PayRideFare(ctx, ride.RiderID, *ride.DriverID, ride.ID, ride.Fare.Total)
		if err != nil {
			logger.Warn("wallet settlement failed",
				zap.String("ride_id", ride.ID.String()),
				zap.Error(err),
			)
			s.recordPayment(ctx, ride, models.PaymentStatusFailed, nil)
			return
		}
		s.recordPayment(ctx, ride, models.PaymentStatusCompleted, &ref)
	case models.PaymentMethodCash:
		s.recordPayment(ctx, ride, models.PaymentStatusCompleted, nil)
	default:
		// momo / orange_money / card: the payments collector picks the
		// ride up from the completed event and drives the gateway flow
	}
}

func (s *Service) recordPayment(ctx context.Context, ride *models.Ride, status models.PaymentStatus, txID *string) {
	if err := s.repo.SetPaymentResult(ctx, ride.ID, status, txID); err != nil {
		logger.Error("failed to record payment result",
			zap.String("ride_id", ride.ID.String()),
			zap.Error(err),
		)
		return
	}
	ride.Payment.Status = status
	ride.Payment.TransactionID = txID
}

// CancelRide cancels a non-terminal ride on behalf of its rider or
// assigned driver
func (s *Service) CancelRide(ctx context.Context, rideID, userID uuid.UUID, reason string) (*models.Ride, error) {
	ride, err := s.repo.GetByID(ctx, rideID)
	if err != nil {
		return nil, s.mapRepoError(err, "failed to get ride")
	}

	var actor models.CancelActor
	switch {
	case ride.RiderID == userID:
		actor = models.CancelledByRider
	case ride.DriverID != nil && *ride.DriverID == userID:
		actor = models.CancelledByDriver
	default:
		return nil, common.NewForbiddenError("only the rider or assigned driver can cancel")
	}

	if !CanTransition(ride.Status, models.RideStatusCancelled) {
		return nil, common.NewConflictError("ride cannot be cancelled in its current state", nil).
			WithCode("INVALID_TRANSITION")
	}

	cancelled, err := s.repo.Cancel(ctx, rideID, ride.Status, actor)
	if err != nil {
		if errors.Is(err, ErrStatusChanged) {
			return nil, common.NewConflictError("ride state changed, retry with fresh state", nil).
				WithCode("INVALID_TRANSITION")
		}
		return nil, s.mapRepoError(err, "failed to cancel ride")
	}
	metrics.RidesCancelled.WithLabelValues(string(actor)).Inc()

	if cancelled.DriverID != nil {
		if err := s.index.SetAvailability(ctx, *cancelled.DriverID, true); err != nil {
			logger.Warn("failed to restore driver availability after cancel",
				zap.String("driver_id", cancelled.DriverID.String()),
				zap.Error(err),
			)
		}
	}

	s.chargeCancellationFee(ctx, cancelled, actor)

	s.publish(ctx, eventbus.TopicRideCancelled, eventbus.EventRideCancelled, eventbus.RideCancelledData{
		RideID:      cancelled.ID,
		RiderID:     cancelled.RiderID,
		DriverID:    cancelled.DriverID,
		CancelledBy: string(actor),
		Reason:      reason,
	})

	logger.Info("ride cancelled",
		zap.String("ride_id", rideID.String()),
		zap.String("cancelled_by", string(actor)),
	)
	return cancelled, nil
}

// chargeCancellationFee compensates the driver when a rider abandons an
// already-accepted wallet ride. Fee failure is logged, never fatal.
func (s *Service) chargeCancellationFee(ctx context.Context, ride *models.Ride, actor models.CancelActor) {
	if actor != models.CancelledByRider ||
		ride.DriverID == nil ||
		ride.Payment.Method != models.PaymentMethodWallet ||
		s.cfg.CancellationFeeRate <= 0 {
		return
	}

	fee := ride.Fare.Total * s.cfg.CancellationFeeRate
	if _, err := s.settler.ChargeCancellationFee(ctx, ride.RiderID, *ride.DriverID, ride.ID, fee); err != nil {
		logger.Warn("failed to charge cancellation fee",
			zap.String("ride_id", ride.ID.String()),
			zap.Float64("fee", fee),
			zap.Error(err),
		)
	}
}

// RateRide records a rating once per role on a completed ride and
// refreshes the rated party's aggregate
func (s *Service) RateRide(ctx context.Context, rideID, raterID uuid.UUID, req *models.RideRatingRequest) error {
	ride, err := s.repo.GetByID(ctx, rideID)
	if err != nil {
		return s.mapRepoError(err, "failed to get ride")
	}

	var byRole models.UserRole
	var ratedID uuid.UUID
	var ratedRole models.UserRole
	switch {
	case ride.RiderID == raterID:
		if ride.DriverID == nil {
			return common.NewConflictError("ride has no driver to rate", nil).WithCode("INVALID_TRANSITION")
		}
		byRole, ratedID, ratedRole = models.RoleRider, *ride.DriverID, models.RoleDriver
	case ride.DriverID != nil && *ride.DriverID == raterID:
		byRole, ratedID, ratedRole = models.RoleDriver, ride.RiderID, models.RoleRider
	default:
		return common.NewForbiddenError("only ride participants can rate")
	}

	rating := &models.Rating{
		Score:   req.Score,
		Comment: req.Comment,
		RatedAt: time.Now().UTC(),
	}
	if err := s.repo.SetRating(ctx, rideID, byRole, rating); err != nil {
		switch {
		case errors.Is(err, ErrStatusChanged):
			return common.NewConflictError("only completed rides can be rated", nil).
				WithCode("INVALID_TRANSITION")
		case errors.Is(err, ErrAlreadyRated):
			return common.NewConflictError("ride already rated", nil).WithCode("ALREADY_RATED")
		default:
			return s.mapRepoError(err, "failed to rate ride")
		}
	}

	if err := s.users.RefreshRating(ctx, ratedID, ratedRole); err != nil {
		logger.Warn("failed to refresh aggregate rating",
			zap.String("user_id", ratedID.String()),
			zap.Error(err),
		)
	}
	return nil
}

// GetRiderRides returns the rider's ride history, newest first
func (s *Service) GetRiderRides(ctx context.Context, riderID uuid.UUID, page, perPage int) ([]*models.Ride, error) {
	rides, err := s.repo.ListByRider(ctx, riderID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, common.NewInternalError("failed to list rides", err)
	}
	return rides, nil
}

// GetDriverRides returns the driver's ride history, newest first
func (s *Service) GetDriverRides(ctx context.Context, driverID uuid.UUID, page, perPage int) ([]*models.Ride, error) {
	rides, err := s.repo.ListByDriver(ctx, driverID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, common.NewInternalError("failed to list rides", err)
	}
	return rides, nil
}

// GetAvailableRides returns pending ride requests drivers can pull
func (s *Service) GetAvailableRides(ctx context.Context) ([]*models.Ride, error) {
	rides, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, common.NewInternalError("failed to list pending rides", err)
	}
	return rides, nil
}

// ExpireStalePending system-cancels pending rides older than the
// configured TTL and returns how many were expired
func (s *Service) ExpireStalePending(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-time.Duration(s.cfg.PendingRideTTLMin) * time.Minute)
	expired, err := s.repo.ExpireStalePending(ctx, cutoff)
	if err != nil {
		return 0, common.NewInternalError("failed to expire pending rides", err)
	}

	for _, ride := range expired {
		metrics.RidesCancelled.WithLabelValues(string(models.CancelledBySystem)).Inc()
		s.publish(ctx, eventbus.TopicRideCancelled, eventbus.EventRideCancelled, eventbus.RideCancelledData{
			RideID:      ride.ID,
			RiderID:     ride.RiderID,
			CancelledBy: string(models.CancelledBySystem),
			Reason:      "no driver accepted in time",
		})
	}

	if len(expired) > 0 {
		logger.Info("expired stale pending rides", zap.Int("count", len(expired)))
	}
	return len(expired), nil
}

// RunExpiryLoop runs ExpireStalePending on the given interval until ctx
// is cancelled
func (s *Service) RunExpiryLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ExpireStalePending(ctx); err != nil {
				logger.Error("pending ride expiry failed", zap.Error(err))
			}
		}
	}
}

func (s *Service) publish(ctx context.Context, topic, eventType string, data interface{}) {
	if err := s.bus.Publish(ctx, topic, eventType, data); err != nil {
		logger.Warn("failed to publish event",
			zap.String("topic", topic),
			zap.String("type", eventType),
			zap.Error(err),
		)
	}
}

// mapRepoError converts repository sentinels to API errors
func (s *Service) mapRepoError(err error, internalMsg string) error {
	switch {
	case errors.Is(err, ErrRideNotFound):
		return common.NewNotFoundError("ride not found").WithCode("RIDE_NOT_FOUND")
	case errors.Is(err, ErrNotAssigned):
		return common.NewForbiddenError("ride is assigned to another driver").WithCode("INVALID_TRANSITION")
	case errors.Is(err, ErrStatusChanged):
		return common.NewConflictError("ride state does not allow this transition", nil).
			WithCode("INVALID_TRANSITION")
	default:
		return common.NewInternalError(internalMsg, err)
	}
}

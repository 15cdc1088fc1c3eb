package rides

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yemeli/swiftride/internal/geo"
	"github.com/yemeli/swiftride/internal/users"
	"github.com/yemeli/swiftride/pkg/common"
	"github.com/yemeli/swiftride/pkg/config"
	"github.com/yemeli/swiftride/pkg/eventbus"
	"github.com/yemeli/swiftride/pkg/models"
	"github.com/yemeli/swiftride/test/helpers"
	"github.com/yemeli/swiftride/test/mocks"
)

// memRideRepo is an in-memory RepositoryInterface with the same
// conditional-update semantics as the SQL implementation, so race
// behavior can be exercised without a database.
type memRideRepo struct {
	mu    sync.Mutex
	rides map[uuid.UUID]*models.Ride
	stats map[uuid.UUID]DriverStats
}

func newMemRideRepo() *memRideRepo {
	return &memRideRepo{
		rides: make(map[uuid.UUID]*models.Ride),
		stats: make(map[uuid.UUID]DriverStats),
	}
}

func (m *memRideRepo) clone(r *models.Ride) *models.Ride {
	cp := *r
	return &cp
}

func (m *memRideRepo) Create(_ context.Context, ride *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[ride.ID] = m.clone(ride)
	return nil
}

func (m *memRideRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil, ErrRideNotFound
	}
	return m.clone(ride), nil
}

func (m *memRideRepo) HasActiveRideForRider(_ context.Context, riderID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rides {
		if r.RiderID == riderID && r.Status.IsActive() {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRideRepo) HasActiveRideForDriver(_ context.Context, driverID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rides {
		if r.DriverID != nil && *r.DriverID == driverID &&
			(r.Status == models.RideStatusAccepted || r.Status == models.RideStatusInProgress) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRideRepo) AcceptPending(_ context.Context, rideID, driverID uuid.UUID) (*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[rideID]
	if !ok {
		return nil, ErrRideNotFound
	}
	if ride.Status != models.RideStatusPending {
		return nil, ErrStatusChanged
	}
	now := time.Now().UTC()
	ride.Status = models.RideStatusAccepted
	ride.DriverID = &driverID
	ride.AcceptedAt = &now
	return m.clone(ride), nil
}

func (m *memRideRepo) Start(_ context.Context, rideID, driverID uuid.UUID) (*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[rideID]
	if !ok {
		return nil, ErrRideNotFound
	}
	if ride.DriverID == nil || *ride.DriverID != driverID {
		return nil, ErrNotAssigned
	}
	if ride.Status != models.RideStatusAccepted {
		return nil, ErrStatusChanged
	}
	now := time.Now().UTC()
	ride.Status = models.RideStatusInProgress
	ride.StartedAt = &now
	return m.clone(ride), nil
}

func (m *memRideRepo) Complete(_ context.Context, rideID, driverID uuid.UUID, distanceKm float64, durationMin int, fare models.Fare) (*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[rideID]
	if !ok {
		return nil, ErrRideNotFound
	}
	if ride.DriverID == nil || *ride.DriverID != driverID {
		return nil, ErrNotAssigned
	}
	if ride.Status != models.RideStatusInProgress {
		return nil, ErrStatusChanged
	}
	now := time.Now().UTC()
	ride.Status = models.RideStatusCompleted
	ride.CompletedAt = &now
	ride.DistanceKm = distanceKm
	ride.DurationMin = durationMin
	ride.Fare = fare
	return m.clone(ride), nil
}

func (m *memRideRepo) Cancel(_ context.Context, rideID uuid.UUID, observed models.RideStatus, actor models.CancelActor) (*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[rideID]
	if !ok {
		return nil, ErrRideNotFound
	}
	if ride.Status != observed {
		return nil, ErrStatusChanged
	}
	now := time.Now().UTC()
	ride.Status = models.RideStatusCancelled
	ride.CancelledAt = &now
	ride.CancelledBy = &actor
	return m.clone(ride), nil
}

func (m *memRideRepo) SetRating(_ context.Context, rideID uuid.UUID, byRole models.UserRole, rating *models.Rating) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[rideID]
	if !ok {
		return ErrRideNotFound
	}
	if ride.Status != models.RideStatusCompleted {
		return ErrStatusChanged
	}
	switch byRole {
	case models.RoleRider:
		if ride.RiderRating != nil {
			return ErrAlreadyRated
		}
		ride.RiderRating = rating
	case models.RoleDriver:
		if ride.DriverRating != nil {
			return ErrAlreadyRated
		}
		ride.DriverRating = rating
	}
	return nil
}

func (m *memRideRepo) SetPaymentResult(_ context.Context, rideID uuid.UUID, status models.PaymentStatus, transactionID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[rideID]
	if !ok {
		return ErrRideNotFound
	}
	ride.Payment.Status = status
	ride.Payment.TransactionID = transactionID
	return nil
}

func (m *memRideRepo) ListByRider(_ context.Context, riderID uuid.UUID, _, _ int) ([]*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Ride
	for _, r := range m.rides {
		if r.RiderID == riderID {
			out = append(out, m.clone(r))
		}
	}
	return out, nil
}

func (m *memRideRepo) ListByDriver(_ context.Context, driverID uuid.UUID, _, _ int) ([]*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Ride
	for _, r := range m.rides {
		if r.DriverID != nil && *r.DriverID == driverID {
			out = append(out, m.clone(r))
		}
	}
	return out, nil
}

func (m *memRideRepo) ListPending(_ context.Context) ([]*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Ride
	for _, r := range m.rides {
		if r.Status == models.RideStatusPending {
			out = append(out, m.clone(r))
		}
	}
	return out, nil
}

func (m *memRideRepo) ExpireStalePending(_ context.Context, cutoff time.Time) ([]*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Ride
	now := time.Now().UTC()
	actor := models.CancelledBySystem
	for _, r := range m.rides {
		if r.Status == models.RideStatusPending && r.RequestedAt.Before(cutoff) {
			r.Status = models.RideStatusCancelled
			r.CancelledAt = &now
			r.CancelledBy = &actor
			out = append(out, m.clone(r))
		}
	}
	return out, nil
}

func (m *memRideRepo) GetDriverStats(_ context.Context, driverIDs []uuid.UUID) (map[uuid.UUID]DriverStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID]DriverStats)
	for _, id := range driverIDs {
		if s, ok := m.stats[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------

// The shared mocks package must not import this one, so the interface
// check lives on this side.
var _ WalletSettler = (*mocks.MockWalletSettler)(nil)

type serviceFixture struct {
	service *Service
	repo    *memRideRepo
	users   *mocks.MockUsersRepository
	index   *geo.MemoryIndex
	settler *mocks.MockWalletSettler
	bus     *eventbus.MemoryBus
}

func newServiceFixture() *serviceFixture {
	repo := newMemRideRepo()
	usersRepo := &mocks.MockUsersRepository{}
	index := geo.NewMemoryIndex()
	settler := &mocks.MockWalletSettler{}
	bus := eventbus.NewMemoryBus()

	cfg := config.BusinessConfig{
		DispatchRadiusKm:    10,
		DispatchMaxDrivers:  10,
		PendingRideTTLMin:   30,
		CancellationFeeRate: 0.10,
	}
	dispatcher := NewDispatcher(DefaultMatchingConfig(), index, repo, bus)

	return &serviceFixture{
		service: NewService(repo, usersRepo, index, dispatcher, settler, bus, cfg),
		repo:    repo,
		users:   usersRepo,
		index:   index,
		settler: settler,
		bus:     bus,
	}
}

func (f *serviceFixture) addAvailableDriver(t *testing.T, point models.GeoPoint) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, f.index.UpsertPosition(context.Background(), id, point, 30))
	require.NoError(t, f.index.SetAvailability(context.Background(), id, true))
	return id
}

func appErrCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	appErr, ok := err.(*common.AppError)
	require.True(t, ok, "expected *common.AppError, got %T: %v", err, err)
	return appErr.Code
}

func TestRequestRideCreatesPendingRide(t *testing.T) {
	f := newServiceFixture()
	rider := helpers.CreateTestRider()
	f.users.On("GetByID", mock.Anything, rider.ID).Return(rider, nil)

	driverA := f.addAvailableDriver(t, models.GeoPoint{11.5180, 3.8485})
	driverB := f.addAvailableDriver(t, models.GeoPoint{11.5190, 3.8490})

	var offered []uuid.UUID
	require.NoError(t, f.bus.Subscribe(context.Background(), eventbus.TopicRideOffers, "test", func(_ context.Context, e *eventbus.Event) error {
		if e.Type == eventbus.EventRideOffered {
			var data eventbus.RideOfferedData
			require.NoError(t, json.Unmarshal(e.Data, &data))
			offered = data.DriverIDs
		}
		return nil
	}))

	dispatch, err := f.service.RequestRide(context.Background(), rider.ID, helpers.CreateTestRideRequest())
	require.NoError(t, err)

	assert.Equal(t, models.RideStatusPending, dispatch.Ride.Status)
	assert.Equal(t, 2, dispatch.CandidatesNotified)
	assert.InDelta(t, 1.57, dispatch.Ride.DistanceKm, 0.02)
	assert.Equal(t, 5, dispatch.Ride.DurationMin)
	assert.InDelta(t, 500+dispatch.Ride.DistanceKm*200+5*10, dispatch.Ride.Fare.Total, 1e-9)
	assert.ElementsMatch(t, []uuid.UUID{driverA, driverB}, offered)

	stored, err := f.repo.GetByID(context.Background(), dispatch.Ride.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusPending, stored.Status)
}

func TestRequestRideNoDriversStillCreatesRide(t *testing.T) {
	f := newServiceFixture()
	rider := helpers.CreateTestRider()
	f.users.On("GetByID", mock.Anything, rider.ID).Return(rider, nil)

	dispatch, err := f.service.RequestRide(context.Background(), rider.ID, helpers.CreateTestRideRequest())
	require.NoError(t, err)

	assert.Equal(t, 0, dispatch.CandidatesNotified)
	assert.Equal(t, models.RideStatusPending, dispatch.Ride.Status)
}

func TestRequestRideRejectsSecondActiveRide(t *testing.T) {
	f := newServiceFixture()
	rider := helpers.CreateTestRider()
	f.users.On("GetByID", mock.Anything, rider.ID).Return(rider, nil)

	_, err := f.service.RequestRide(context.Background(), rider.ID, helpers.CreateTestRideRequest())
	require.NoError(t, err)

	_, err = f.service.RequestRide(context.Background(), rider.ID, helpers.CreateTestRideRequest())
	assert.Equal(t, "ACTIVE_RIDE_EXISTS", appErrCode(t, err))
}

func TestRequestRideRejectsInvalidLocation(t *testing.T) {
	f := newServiceFixture()
	rider := helpers.CreateTestRider()
	f.users.On("GetByID", mock.Anything, rider.ID).Return(rider, nil)

	req := helpers.CreateTestRideRequest()
	req.Pickup.Point = models.GeoPoint{200, 95}

	_, err := f.service.RequestRide(context.Background(), rider.ID, req)
	assert.Equal(t, "INVALID_LOCATION", appErrCode(t, err))

	// No state change on validation failure
	pending, err := f.repo.ListPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRequestRideUnknownRider(t *testing.T) {
	f := newServiceFixture()
	riderID := uuid.New()
	f.users.On("GetByID", mock.Anything, riderID).Return(nil, users.ErrUserNotFound)

	_, err := f.service.RequestRide(context.Background(), riderID, helpers.CreateTestRideRequest())
	assert.Equal(t, "USER_NOT_FOUND", appErrCode(t, err))
}

func TestAcceptRideExactlyOneWinner(t *testing.T) {
	f := newServiceFixture()
	rider := helpers.CreateTestRider()
	f.users.On("GetByID", mock.Anything, rider.ID).Return(rider, nil)

	const numDrivers = 20
	driverIDs := make([]uuid.UUID, numDrivers)
	for i := range driverIDs {
		driverIDs[i] = f.addAvailableDriver(t, models.GeoPoint{11.5180, 3.8485})
	}

	dispatch, err := f.service.RequestRide(context.Background(), rider.ID, helpers.CreateTestRideRequest())
	require.NoError(t, err)
	rideID := dispatch.Ride.ID

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  []uuid.UUID
		rejected int
	)
	wg.Add(numDrivers)
	for _, driverID := range driverIDs {
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := f.service.AcceptRide(context.Background(), rideID, id)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, id)
				return
			}
			if appErr, ok := err.(*common.AppError); ok && appErr.Code == "RIDE_NO_LONGER_AVAILABLE" {
				rejected++
			}
		}(driverID)
	}
	wg.Wait()

	require.Len(t, winners, 1, "exactly one driver must win")
	assert.Equal(t, numDrivers-1, rejected)

	ride, err := f.repo.GetByID(context.Background(), rideID)
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusAccepted, ride.Status)
	require.NotNil(t, ride.DriverID)
	assert.Equal(t, winners[0], *ride.DriverID)
	require.NotNil(t, ride.AcceptedAt)

	// Winner is no longer matchable
	pos, err := f.index.Position(context.Background(), winners[0])
	require.NoError(t, err)
	assert.False(t, pos.Available)
}

func TestAcceptRideUnavailableDriverRejected(t *testing.T) {
	f := newServiceFixture()
	rider := helpers.CreateTestRider()
	f.users.On("GetByID", mock.Anything, rider.ID).Return(rider, nil)

	dispatch, err := f.service.RequestRide(context.Background(), rider.ID, helpers.CreateTestRideRequest())
	require.NoError(t, err)

	// Driver went off shift between offer and acceptance
	driverID := f.addAvailableDriver(t, models.GeoPoint{11.5180, 3.8485})
	require.NoError(t, f.index.SetAvailability(context.Background(), driverID, false))

	_, err = f.service.AcceptRide(context.Background(), dispatch.Ride.ID, driverID)
	assert.Equal(t, "DRIVER_UNAVAILABLE", appErrCode(t, err))

	// Driver the index has never seen is rejected the same way
	_, err = f.service.AcceptRide(context.Background(), dispatch.Ride.ID, uuid.New())
	assert.Equal(t, "DRIVER_UNAVAILABLE", appErrCode(t, err))
}

func TestAcceptRideAfterCancellation(t *testing.T) {
	f := newServiceFixture()
	rider := helpers.CreateTestRider()
	f.users.On("GetByID", mock.Anything, rider.ID).Return(rider, nil)

	dispatch, err := f.service.RequestRide(context.Background(), rider.ID, helpers.CreateTestRideRequest())
	require.NoError(t, err)

	_, err = f.service.CancelRide(context.Background(), dispatch.Ride.ID, rider.ID, "changed my mind")
	require.NoError(t, err)

	driverID := f.addAvailableDriver(t, models.GeoPoint{11.5180, 3.8485})
	_, err = f.service.AcceptRide(context.Background(), dispatch.Ride.ID, driverID)
	assert.Equal(t, "RIDE_NO_LONGER_AVAILABLE", appErrCode(t, err))
}

// acceptedRide drives a fixture through request + accept and returns
// the ride and winning driver
func acceptedRide(t *testing.T, f *serviceFixture, rider *models.User) (*models.Ride, uuid.UUID) {
	t.Helper()
	f.users.On("GetByID", mock.Anything, rider.ID).Return(rider, nil)

	dispatch, err := f.service.RequestRide(context.Background(), rider.ID, helpers.CreateTestRideRequest())
	require.NoError(t, err)

	driverID := f.addAvailableDriver(t, models.GeoPoint{11.5180, 3.8485})
	ride, err := f.service.AcceptRide(context.Background(), dispatch.Ride.ID, driverID)
	require.NoError(t, err)
	return ride, driverID
}

func TestStartRideOnlyAssignedDriver(t *testing.T) {
	f := newServiceFixture()
	ride, driverID := acceptedRide(t, f, helpers.CreateTestRider())

	// A stranger cannot start it
	_, err := f.service.StartRide(context.Background(), ride.ID, uuid.New())
	assert.Equal(t, "INVALID_TRANSITION", appErrCode(t, err))

	stored, err := f.repo.GetByID(context.Background(), ride.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusAccepted, stored.Status)
	assert.Nil(t, stored.StartedAt)

	started, err := f.service.StartRide(context.Background(), ride.ID, driverID)
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusInProgress, started.Status)
	assert.NotNil(t, started.StartedAt)
}

func TestCompleteRideSettlesWalletFare(t *testing.T) {
	f := newServiceFixture()
	ride, driverID := acceptedRide(t, f, helpers.CreateTestRider())

	_, err := f.service.StartRide(context.Background(), ride.ID, driverID)
	require.NoError(t, err)

	actualKm := 2.5
	fare, duration := EstimateFare(actualKm)
	// Completion reprices on the measured distance with the derived
	// duration: 500 + 2.5*200 + ceil(2.5*3)*10
	require.Equal(t, 1080.0, fare.Total)
	require.Equal(t, 8, duration)
	f.settler.On("PayRideFare", mock.Anything, ride.RiderID, driverID, ride.ID, fare.Total).
		Return("txn-ref-1", nil).Once()

	completed, err := f.service.CompleteRide(context.Background(), ride.ID, driverID, actualKm)
	require.NoError(t, err)

	assert.Equal(t, models.RideStatusCompleted, completed.Status)
	assert.NotNil(t, completed.CompletedAt)
	assert.Equal(t, fare.Total, completed.Fare.Total)
	assert.Equal(t, models.PaymentStatusCompleted, completed.Payment.Status)
	require.NotNil(t, completed.Payment.TransactionID)
	assert.Equal(t, "txn-ref-1", *completed.Payment.TransactionID)

	// Driver is matchable again
	pos, err := f.index.Position(context.Background(), driverID)
	require.NoError(t, err)
	assert.True(t, pos.Available)

	f.settler.AssertExpectations(t)
}

func TestCompleteRideInsufficientBalanceKeepsCompletion(t *testing.T) {
	f := newServiceFixture()
	ride, driverID := acceptedRide(t, f, helpers.CreateTestRider())

	_, err := f.service.StartRide(context.Background(), ride.ID, driverID)
	require.NoError(t, err)

	f.settler.On("PayRideFare", mock.Anything, ride.RiderID, driverID, ride.ID, mock.Anything).
		Return("", common.NewUnprocessableError("insufficient balance", nil).WithCode("INSUFFICIENT_BALANCE")).Once()

	completed, err := f.service.CompleteRide(context.Background(), ride.ID, driverID, 2.5)
	require.NoError(t, err)

	assert.Equal(t, models.RideStatusCompleted, completed.Status)
	assert.Equal(t, models.PaymentStatusFailed, completed.Payment.Status)
	assert.Nil(t, completed.Payment.TransactionID)
}

func TestCompleteRideTwiceFails(t *testing.T) {
	f := newServiceFixture()
	ride, driverID := acceptedRide(t, f, helpers.CreateTestRider())

	_, err := f.service.StartRide(context.Background(), ride.ID, driverID)
	require.NoError(t, err)

	f.settler.On("PayRideFare", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("txn-ref-1", nil).Once()

	_, err = f.service.CompleteRide(context.Background(), ride.ID, driverID, 2.5)
	require.NoError(t, err)

	_, err = f.service.CompleteRide(context.Background(), ride.ID, driverID, 2.5)
	assert.Equal(t, "INVALID_TRANSITION", appErrCode(t, err))
	f.settler.AssertNumberOfCalls(t, "PayRideFare", 1)
}

func TestCancelRideByRiderChargesFeeAndFreesDriver(t *testing.T) {
	f := newServiceFixture()
	rider := helpers.CreateTestRider()
	ride, driverID := acceptedRide(t, f, rider)

	expectedFee := ride.Fare.Total * 0.10
	f.settler.On("ChargeCancellationFee", mock.Anything, rider.ID, driverID, ride.ID, expectedFee).
		Return("fee-ref-1", nil).Once()

	cancelled, err := f.service.CancelRide(context.Background(), ride.ID, rider.ID, "waited too long")
	require.NoError(t, err)

	assert.Equal(t, models.RideStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledBy)
	assert.Equal(t, models.CancelledByRider, *cancelled.CancelledBy)
	assert.NotNil(t, cancelled.CancelledAt)

	pos, err := f.index.Position(context.Background(), driverID)
	require.NoError(t, err)
	assert.True(t, pos.Available)

	f.settler.AssertExpectations(t)
}

func TestCancelRideByStrangerForbidden(t *testing.T) {
	f := newServiceFixture()
	ride, _ := acceptedRide(t, f, helpers.CreateTestRider())

	_, err := f.service.CancelRide(context.Background(), ride.ID, uuid.New(), "")
	appErr, ok := err.(*common.AppError)
	require.True(t, ok)
	assert.Equal(t, 403, appErr.StatusCode)
}

func TestCancelCompletedRideRejected(t *testing.T) {
	f := newServiceFixture()
	ride, driverID := acceptedRide(t, f, helpers.CreateTestRider())

	_, err := f.service.StartRide(context.Background(), ride.ID, driverID)
	require.NoError(t, err)
	f.settler.On("PayRideFare", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("txn-ref-1", nil)
	_, err = f.service.CompleteRide(context.Background(), ride.ID, driverID, 2.5)
	require.NoError(t, err)

	_, err = f.service.CancelRide(context.Background(), ride.ID, ride.RiderID, "")
	assert.Equal(t, "INVALID_TRANSITION", appErrCode(t, err))
}

func TestRateRideOncePerRole(t *testing.T) {
	f := newServiceFixture()
	rider := helpers.CreateTestRider()
	ride, driverID := acceptedRide(t, f, rider)

	_, err := f.service.StartRide(context.Background(), ride.ID, driverID)
	require.NoError(t, err)
	f.settler.On("PayRideFare", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("txn-ref-1", nil)
	_, err = f.service.CompleteRide(context.Background(), ride.ID, driverID, 2.5)
	require.NoError(t, err)

	f.users.On("RefreshRating", mock.Anything, driverID, models.RoleDriver).Return(nil)
	f.users.On("RefreshRating", mock.Anything, rider.ID, models.RoleRider).Return(nil)

	req := &models.RideRatingRequest{Score: 5, Comment: "smooth ride"}
	require.NoError(t, f.service.RateRide(context.Background(), ride.ID, rider.ID, req))

	// Second rider rating is rejected; the driver can still rate
	err = f.service.RateRide(context.Background(), ride.ID, rider.ID, req)
	assert.Equal(t, "ALREADY_RATED", appErrCode(t, err))

	require.NoError(t, f.service.RateRide(context.Background(), ride.ID, driverID, &models.RideRatingRequest{Score: 4}))
}

func TestRateRideRequiresCompletion(t *testing.T) {
	f := newServiceFixture()
	rider := helpers.CreateTestRider()
	ride, _ := acceptedRide(t, f, rider)

	err := f.service.RateRide(context.Background(), ride.ID, rider.ID, &models.RideRatingRequest{Score: 5})
	assert.Equal(t, "INVALID_TRANSITION", appErrCode(t, err))
}

func TestExpireStalePending(t *testing.T) {
	f := newServiceFixture()
	rider := helpers.CreateTestRider()
	f.users.On("GetByID", mock.Anything, rider.ID).Return(rider, nil)

	dispatch, err := f.service.RequestRide(context.Background(), rider.ID, helpers.CreateTestRideRequest())
	require.NoError(t, err)

	// Age the ride past the TTL
	f.repo.mu.Lock()
	f.repo.rides[dispatch.Ride.ID].RequestedAt = time.Now().Add(-time.Hour)
	f.repo.mu.Unlock()

	count, err := f.service.ExpireStalePending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	ride, err := f.repo.GetByID(context.Background(), dispatch.Ride.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusCancelled, ride.Status)
	require.NotNil(t, ride.CancelledBy)
	assert.Equal(t, models.CancelledBySystem, *ride.CancelledBy)
}

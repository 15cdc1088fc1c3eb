package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockWalletSettler is a mock implementation of the ride fare settler
type MockWalletSettler struct {
	mock.Mock
}

func (m *MockWalletSettler) PayRideFare(ctx context.Context, riderID, driverID, rideID uuid.UUID, amount float64) (string, error) {
	args := m.Called(ctx, riderID, driverID, rideID, amount)
	return args.String(0), args.Error(1)
}

func (m *MockWalletSettler) ChargeCancellationFee(ctx context.Context, riderID, driverID, rideID uuid.UUID, amount float64) (string, error) {
	args := m.Called(ctx, riderID, driverID, rideID, amount)
	return args.String(0), args.Error(1)
}

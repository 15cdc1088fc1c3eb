package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/yemeli/swiftride/internal/users"
	"github.com/yemeli/swiftride/pkg/models"
)

// MockUsersRepository is a mock implementation of the users repository
type MockUsersRepository struct {
	mock.Mock
}

var _ users.RepositoryInterface = (*MockUsersRepository)(nil)

func (m *MockUsersRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUsersRepository) RefreshRating(ctx context.Context, userID uuid.UUID, role models.UserRole) error {
	args := m.Called(ctx, userID, role)
	return args.Error(0)
}

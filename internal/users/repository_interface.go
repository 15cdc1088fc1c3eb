package users

import (
	"context"

	"github.com/google/uuid"

	"github.com/yemeli/swiftride/pkg/models"
)

// RepositoryInterface defines the interface for user repository operations
type RepositoryInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// RefreshRating recomputes the user's aggregate rating from the
	// ratings left on their completed rides
	RefreshRating(ctx context.Context, userID uuid.UUID, role models.UserRole) error
}

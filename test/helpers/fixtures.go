package helpers

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/yemeli/swiftride/pkg/models"
)

// CreateTestRider creates a rider user with default values
func CreateTestRider() *models.User {
	return &models.User{
		ID:          uuid.New(),
		Email:       "rider@example.com",
		PhoneNumber: "+237670000001",
		FirstName:   "Ama",
		LastName:    "Ndongo",
		Role:        models.RoleRider,
		IsActive:    true,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

// CreateTestDriver creates a driver user with default values
func CreateTestDriver() *models.User {
	return &models.User{
		ID:          uuid.New(),
		Email:       "driver@example.com",
		PhoneNumber: "+237670000002",
		FirstName:   "Boris",
		LastName:    "Etoga",
		Role:        models.RoleDriver,
		IsActive:    true,
		Rating:      4.7,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

// CreateTestRideRequest creates a ride request around central Yaoundé
func CreateTestRideRequest() *models.RideRequest {
	return &models.RideRequest{
		Pickup: models.Location{
			Address: "Avenue Kennedy, Yaoundé",
			Point:   models.GeoPoint{11.5174, 3.8480},
		},
		Destination: models.Location{
			Address: "Marché Mokolo, Yaoundé",
			Point:   models.GeoPoint{11.5274, 3.8580},
		},
		VehicleType:   "standard",
		PaymentMethod: models.PaymentMethodWallet,
	}
}

// CreateTestPendingRide creates a pending ride for the given rider
func CreateTestPendingRide(riderID uuid.UUID) *models.Ride {
	req := CreateTestRideRequest()
	distance := 1.57
	duration := int(math.Ceil(distance * 3))
	return &models.Ride{
		ID:          uuid.New(),
		RiderID:     riderID,
		Status:      models.RideStatusPending,
		VehicleType: req.VehicleType,
		Pickup:      req.Pickup,
		Destination: req.Destination,
		DistanceKm:  distance,
		DurationMin: duration,
		Fare: models.Fare{
			Base:         500,
			DistanceFare: distance * 200,
			TimeFare:     float64(duration) * 10,
			Total:        500 + distance*200 + float64(duration)*10,
			Currency:     models.DefaultCurrency,
		},
		Payment: models.RidePayment{
			Method: req.PaymentMethod,
			Status: models.PaymentStatusPending,
		},
		RequestedAt: time.Now(),
	}
}

// CreateTestWallet creates an active wallet for the given user
func CreateTestWallet(userID uuid.UUID, balance float64) *models.Wallet {
	return &models.Wallet{
		ID:        uuid.New(),
		UserID:    userID,
		Balance:   balance,
		Currency:  models.DefaultCurrency,
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

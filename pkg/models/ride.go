package models

import (
	"time"

	"github.com/google/uuid"
)

// RideStatus represents ride lifecycle status
type RideStatus string

const (
	RideStatusPending    RideStatus = "pending"
	RideStatusAccepted   RideStatus = "accepted"
	RideStatusInProgress RideStatus = "in_progress"
	RideStatusCompleted  RideStatus = "completed"
	RideStatusCancelled  RideStatus = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions
func (s RideStatus) IsTerminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

// IsActive reports whether the ride occupies its rider and driver
func (s RideStatus) IsActive() bool {
	return s == RideStatusPending || s == RideStatusAccepted || s == RideStatusInProgress
}

// CancelActor identifies which party cancelled a ride
type CancelActor string

const (
	CancelledByRider  CancelActor = "rider"
	CancelledByDriver CancelActor = "driver"
	CancelledBySystem CancelActor = "system"
)

// GeoPoint is a geographic coordinate pair, longitude first.
type GeoPoint [2]float64

// Lon returns the longitude component
func (p GeoPoint) Lon() float64 { return p[0] }

// Lat returns the latitude component
func (p GeoPoint) Lat() float64 { return p[1] }

// Valid reports whether the point is a well-formed [lon, lat] pair
func (p GeoPoint) Valid() bool {
	return p[0] >= -180 && p[0] <= 180 && p[1] >= -90 && p[1] <= 90
}

// Location pairs a human-readable address with its coordinates
type Location struct {
	Address string   `json:"address" db:"address"`
	Point   GeoPoint `json:"point" db:"point"`
}

// Fare is the computed fare breakdown for a ride
type Fare struct {
	Base         float64 `json:"base" db:"base"`
	DistanceFare float64 `json:"distance_fare" db:"distance_fare"`
	TimeFare     float64 `json:"time_fare" db:"time_fare"`
	Total        float64 `json:"total" db:"total"`
	Currency     string  `json:"currency" db:"currency"`
}

// RidePayment tracks how a ride is paid
type RidePayment struct {
	Method        PaymentMethod `json:"method" db:"method"`
	Status        PaymentStatus `json:"status" db:"status"`
	TransactionID *string       `json:"transaction_id,omitempty" db:"transaction_id"`
}

// Rating is a post-ride rating left by one party about the other
type Rating struct {
	Score   int       `json:"score" db:"score"`
	Comment string    `json:"comment,omitempty" db:"comment"`
	RatedAt time.Time `json:"rated_at" db:"rated_at"`
}

// Ride represents one trip request from creation through terminal state
type Ride struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	RiderID     uuid.UUID  `json:"rider_id" db:"rider_id"`
	DriverID    *uuid.UUID `json:"driver_id,omitempty" db:"driver_id"`
	Status      RideStatus `json:"status" db:"status"`
	VehicleType string     `json:"vehicle_type" db:"vehicle_type"`
	Pickup      Location   `json:"pickup" db:"pickup"`
	Destination Location   `json:"destination" db:"destination"`

	DistanceKm  float64     `json:"distance_km" db:"distance_km"`
	DurationMin int         `json:"duration_min" db:"duration_min"`
	Fare        Fare        `json:"fare" db:"fare"`
	Payment     RidePayment `json:"payment" db:"payment"`

	RequestedAt time.Time    `json:"requested_at" db:"requested_at"`
	AcceptedAt  *time.Time   `json:"accepted_at,omitempty" db:"accepted_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty" db:"completed_at"`
	CancelledAt *time.Time   `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancelledBy *CancelActor `json:"cancelled_by,omitempty" db:"cancelled_by"`

	RiderRating  *Rating `json:"rider_rating,omitempty" db:"rider_rating"`
	DriverRating *Rating `json:"driver_rating,omitempty" db:"driver_rating"`
}

// RideRequest is the payload for requesting a ride
type RideRequest struct {
	Pickup        Location      `json:"pickup" binding:"required"`
	Destination   Location      `json:"destination" binding:"required"`
	VehicleType   string        `json:"vehicle_type" binding:"required,oneof=standard comfort moto"`
	PaymentMethod PaymentMethod `json:"payment_method" binding:"required,oneof=momo orange_money card cash wallet"`
}

// RideRatingRequest is the payload for rating a completed ride
type RideRatingRequest struct {
	Score   int    `json:"score" binding:"required,gte=1,lte=5"`
	Comment string `json:"comment" binding:"max=500"`
}

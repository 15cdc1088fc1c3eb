package eventbus

import (
	"github.com/google/uuid"
)

// Topic names. Ride topics carry lifecycle notifications; the offers
// topic is the dispatch broadcast channel watched by driver clients.
const (
	TopicRideOffers    = "rides.offers"
	TopicRideAccepted  = "rides.accepted"
	TopicRideStarted   = "rides.started"
	TopicRideCompleted = "rides.completed"
	TopicRideCancelled = "rides.cancelled"
	TopicWalletEvents  = "wallet.transactions"
	TopicMonitoring    = "monitoring.dispatch"
)

// Event type names
const (
	EventRideOffered    = "ride.offered"
	EventOfferWithdrawn = "ride.offer_withdrawn"
	EventRideAccepted   = "ride.accepted"
	EventRideStarted    = "ride.started"
	EventRideCompleted  = "ride.completed"
	EventRideCancelled  = "ride.cancelled"
	EventWalletDebited  = "wallet.debited"
	EventWalletCredited = "wallet.credited"
)

// RideOfferedData is broadcast to every candidate driver for a pending
// ride. It is an invitation, not a reservation: any number of drivers
// may hold the offer concurrently.
type RideOfferedData struct {
	RideID         uuid.UUID   `json:"ride_id"`
	RiderID        uuid.UUID   `json:"rider_id"`
	DriverIDs      []uuid.UUID `json:"driver_ids"`
	PickupAddress  string      `json:"pickup_address"`
	PickupLon      float64     `json:"pickup_lon"`
	PickupLat      float64     `json:"pickup_lat"`
	DropoffAddress string      `json:"dropoff_address"`
	FareTotal      float64     `json:"fare_total"`
	Currency       string      `json:"currency"`
}

// OfferWithdrawnData tells candidate drivers to drop a stale offer.
// Advisory only: the conditional status update is what actually rejects
// late acceptances.
type OfferWithdrawnData struct {
	RideID   uuid.UUID `json:"ride_id"`
	WinnerID uuid.UUID `json:"winner_id"`
}

// DispatchMonitorData is published to the monitoring topic for every
// offer broadcast
type DispatchMonitorData struct {
	RideID     uuid.UUID `json:"ride_id"`
	Candidates int       `json:"candidates"`
	RadiusKm   float64   `json:"radius_km"`
}

// RideAcceptedData notifies the rider that a driver accepted
type RideAcceptedData struct {
	RideID   uuid.UUID `json:"ride_id"`
	RiderID  uuid.UUID `json:"rider_id"`
	DriverID uuid.UUID `json:"driver_id"`
}

// RideStartedData notifies the rider that the trip began
type RideStartedData struct {
	RideID   uuid.UUID `json:"ride_id"`
	RiderID  uuid.UUID `json:"rider_id"`
	DriverID uuid.UUID `json:"driver_id"`
}

// RideCompletedData announces completion and the settled fare
type RideCompletedData struct {
	RideID        uuid.UUID `json:"ride_id"`
	RiderID       uuid.UUID `json:"rider_id"`
	DriverID      uuid.UUID `json:"driver_id"`
	FareAmount    float64   `json:"fare_amount"`
	PaymentMethod string    `json:"payment_method"`
}

// RideCancelledData announces cancellation and who triggered it
type RideCancelledData struct {
	RideID      uuid.UUID  `json:"ride_id"`
	RiderID     uuid.UUID  `json:"rider_id"`
	DriverID    *uuid.UUID `json:"driver_id,omitempty"`
	CancelledBy string     `json:"cancelled_by"`
	Reason      string     `json:"reason,omitempty"`
}

// WalletTransactionData announces a completed ledger entry
type WalletTransactionData struct {
	WalletID  uuid.UUID `json:"wallet_id"`
	UserID    uuid.UUID `json:"user_id"`
	Reference string    `json:"reference"`
	Type      string    `json:"type"`
	Direction string    `json:"direction"`
	Amount    float64   `json:"amount"`
}

package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yemeli/swiftride/pkg/eventbus"
	"github.com/yemeli/swiftride/pkg/logger"
)

// EventHandler turns bus events into websocket pushes. It remembers
// which drivers hold each open offer so a withdrawal can reach exactly
// the drivers who saw it.
type EventHandler struct {
	service *Service

	mu      sync.Mutex
	offered map[uuid.UUID][]uuid.UUID // ride ID -> drivers holding the offer
}

// NewEventHandler creates an event handler backed by the notification service
func NewEventHandler(service *Service) *EventHandler {
	return &EventHandler{
		service: service,
		offered: make(map[uuid.UUID][]uuid.UUID),
	}
}

// RegisterSubscriptions subscribes to ride and wallet events on the bus
func (h *EventHandler) RegisterSubscriptions(ctx context.Context, bus eventbus.Bus) error {
	subs := map[string]eventbus.Handler{
		eventbus.TopicRideOffers:    h.handleOfferEvent,
		eventbus.TopicRideAccepted:  h.handleRideAccepted,
		eventbus.TopicRideStarted:   h.handleRideStarted,
		eventbus.TopicRideCompleted: h.handleRideCompleted,
		eventbus.TopicRideCancelled: h.handleRideCancelled,
		eventbus.TopicWalletEvents:  h.handleWalletEvent,
	}
	for topic, handler := range subs {
		if err := bus.Subscribe(ctx, topic, "notifications", handler); err != nil {
			return fmt.Errorf("subscribe to %s: %w", topic, err)
		}
	}
	logger.Info("notifications: subscribed to ride and wallet events")
	return nil
}

func (h *EventHandler) handleOfferEvent(_ context.Context, event *eventbus.Event) error {
	switch event.Type {
	case eventbus.EventRideOffered:
		return h.onRideOffered(event)
	case eventbus.EventOfferWithdrawn:
		return h.onOfferWithdrawn(event)
	default:
		return nil
	}
}

func (h *EventHandler) onRideOffered(event *eventbus.Event) error {
	var data eventbus.RideOfferedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal ride offered: %w", err)
	}

	h.mu.Lock()
	h.offered[data.RideID] = data.DriverIDs
	h.mu.Unlock()

	h.service.NotifyUsers(data.DriverIDs, "ride_offer", data.RideID.String(), map[string]interface{}{
		"pickup_address":  data.PickupAddress,
		"pickup_lon":      data.PickupLon,
		"pickup_lat":      data.PickupLat,
		"dropoff_address": data.DropoffAddress,
		"fare_total":      data.FareTotal,
		"currency":        data.Currency,
	})
	return nil
}

func (h *EventHandler) onOfferWithdrawn(event *eventbus.Event) error {
	var data eventbus.OfferWithdrawnData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal offer withdrawn: %w", err)
	}

	h.mu.Lock()
	holders := h.offered[data.RideID]
	delete(h.offered, data.RideID)
	h.mu.Unlock()

	for _, driverID := range holders {
		if driverID == data.WinnerID {
			continue
		}
		h.service.NotifyUser(driverID, "offer_withdrawn", data.RideID.String(), nil)
	}
	return nil
}

func (h *EventHandler) handleRideAccepted(_ context.Context, event *eventbus.Event) error {
	var data eventbus.RideAcceptedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal ride accepted: %w", err)
	}

	h.service.NotifyUser(data.RiderID, "ride_accepted", data.RideID.String(), map[string]interface{}{
		"driver_id": data.DriverID.String(),
	})
	return nil
}

func (h *EventHandler) handleRideStarted(_ context.Context, event *eventbus.Event) error {
	var data eventbus.RideStartedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal ride started: %w", err)
	}

	h.service.NotifyUser(data.RiderID, "ride_started", data.RideID.String(), nil)
	return nil
}

func (h *EventHandler) handleRideCompleted(_ context.Context, event *eventbus.Event) error {
	var data eventbus.RideCompletedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal ride completed: %w", err)
	}

	payload := map[string]interface{}{
		"fare_amount":    data.FareAmount,
		"payment_method": data.PaymentMethod,
	}
	h.service.NotifyUser(data.RiderID, "ride_completed", data.RideID.String(), payload)
	h.service.NotifyUser(data.DriverID, "ride_completed", data.RideID.String(), payload)
	return nil
}

func (h *EventHandler) handleRideCancelled(_ context.Context, event *eventbus.Event) error {
	var data eventbus.RideCancelledData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal ride cancelled: %w", err)
	}

	// A pending ride with no driver can vanish silently; otherwise the
	// party who did not cancel gets told
	payload := map[string]interface{}{
		"cancelled_by": data.CancelledBy,
		"reason":       data.Reason,
	}
	switch data.CancelledBy {
	case "rider":
		if data.DriverID != nil {
			h.service.NotifyUser(*data.DriverID, "ride_cancelled", data.RideID.String(), payload)
		}
	case "driver":
		h.service.NotifyUser(data.RiderID, "ride_cancelled", data.RideID.String(), payload)
	default:
		h.service.NotifyUser(data.RiderID, "ride_cancelled", data.RideID.String(), payload)
		if data.DriverID != nil {
			h.service.NotifyUser(*data.DriverID, "ride_cancelled", data.RideID.String(), payload)
		}
	}

	// A cancelled ride also clears any outstanding offer
	h.mu.Lock()
	holders := h.offered[data.RideID]
	delete(h.offered, data.RideID)
	h.mu.Unlock()
	for _, driverID := range holders {
		h.service.NotifyUser(driverID, "offer_withdrawn", data.RideID.String(), nil)
	}
	return nil
}

func (h *EventHandler) handleWalletEvent(_ context.Context, event *eventbus.Event) error {
	var data eventbus.WalletTransactionData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal wallet event: %w", err)
	}

	h.service.NotifyUser(data.UserID, event.Type, "", map[string]interface{}{
		"reference": data.Reference,
		"type":      data.Type,
		"direction": data.Direction,
		"amount":    data.Amount,
	})
	logger.Debug("notifications: wallet event pushed",
		zap.String("user_id", data.UserID.String()),
		zap.String("reference", data.Reference),
	)
	return nil
}

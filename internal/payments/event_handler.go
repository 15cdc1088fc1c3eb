package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/yemeli/swiftride/internal/wallet"
	"github.com/yemeli/swiftride/pkg/eventbus"
	"github.com/yemeli/swiftride/pkg/logger"
	"github.com/yemeli/swiftride/pkg/models"
)

// gatewayMethods are the payment methods settled through an external
// provider after completion. Wallet and cash settle inside the ride flow.
var gatewayMethods = map[string]bool{
	string(models.PaymentMethodMomo):        true,
	string(models.PaymentMethodOrangeMoney): true,
	string(models.PaymentMethodCard):        true,
}

// EventHandler watches ride completions and starts fare collection for
// gateway-paid rides
type EventHandler struct {
	wallets *wallet.Service
}

// NewEventHandler creates an event handler backed by the wallet service
func NewEventHandler(wallets *wallet.Service) *EventHandler {
	return &EventHandler{wallets: wallets}
}

// RegisterSubscriptions subscribes to ride completion events on the bus
func (h *EventHandler) RegisterSubscriptions(ctx context.Context, bus eventbus.Bus) error {
	if err := bus.Subscribe(ctx, eventbus.TopicRideCompleted, "payments-ride-completed", h.handleRideCompleted); err != nil {
		return fmt.Errorf("subscribe to %s: %w", eventbus.TopicRideCompleted, err)
	}
	logger.Info("payments: subscribed to ride completion events")
	return nil
}

func (h *EventHandler) handleRideCompleted(ctx context.Context, event *eventbus.Event) error {
	var data eventbus.RideCompletedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal ride completed: %w", err)
	}

	if !gatewayMethods[data.PaymentMethod] {
		return nil
	}

	// CollectRideFare is keyed by ride ID, so redelivered events are
	// absorbed instead of billing the rider twice
	txn, err := h.wallets.CollectRideFare(ctx, data.RiderID, data.DriverID, data.RideID, data.FareAmount)
	if err != nil {
		return fmt.Errorf("collect ride fare: %w", err)
	}

	logger.Info("payments: fare collection started",
		zap.String("ride_id", data.RideID.String()),
		zap.String("method", data.PaymentMethod),
		zap.Float64("amount", data.FareAmount),
		zap.String("status", string(txn.Status)),
	)
	return nil
}

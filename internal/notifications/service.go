package notifications

import (
	"github.com/google/uuid"

	"github.com/yemeli/swiftride/pkg/websocket"
)

// Service pushes realtime notifications to connected clients. Delivery
// is best effort: a user without an open socket simply misses the push
// and catches up from the API.
type Service struct {
	hub *websocket.Hub
}

// NewService creates a new notifications service
func NewService(hub *websocket.Hub) *Service {
	return &Service{hub: hub}
}

// NotifyUser sends one message to a single connected user
func (s *Service) NotifyUser(userID uuid.UUID, msgType, rideID string, data map[string]interface{}) {
	s.hub.SendToUser(userID.String(), &websocket.Message{
		Type:   msgType,
		RideID: rideID,
		Data:   data,
	})
}

// NotifyUsers sends the same message to several users
func (s *Service) NotifyUsers(userIDs []uuid.UUID, msgType, rideID string, data map[string]interface{}) {
	for _, id := range userIDs {
		s.NotifyUser(id, msgType, rideID, data)
	}
}

// NotifyRide sends a message to everyone watching a ride room
func (s *Service) NotifyRide(rideID, msgType string, data map[string]interface{}) {
	s.hub.SendToRide(rideID, &websocket.Message{
		Type:   msgType,
		RideID: rideID,
		Data:   data,
	})
}

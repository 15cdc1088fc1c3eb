package websocket

import (
	"sync"

	"go.uber.org/zap"

	"github.com/yemeli/swiftride/pkg/logger"
)

// Message is the envelope exchanged with connected clients. RideID is
// set on messages scoped to a ride room.
type Message struct {
	Type   string                 `json:"type"`
	RideID string                 `json:"ride_id,omitempty"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

// MessageHandler processes an inbound message from a client
type MessageHandler func(client *Client, msg *Message)

// Hub tracks connected clients and the ride rooms they participate in.
// One client per user ID; registering again replaces the old connection.
type Hub struct {
	clients map[string]*Client
	rides   map[string]map[string]*Client

	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan *Message

	handlers map[string]MessageHandler

	mu sync.RWMutex
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rides:      make(map[string]map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan *Message, 256),
		handlers:   make(map[string]MessageHandler),
	}
}

// Run processes register, unregister and broadcast requests. Call it in
// its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)
		case client := <-h.Unregister:
			h.unregisterClient(client)
		case msg := <-h.Broadcast:
			h.SendToAll(msg)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.clients[client.ID]; ok && existing != client {
		h.removeFromRideLocked(existing)
		existing.close()
		logger.Debug("ws: replaced existing connection", zap.String("client_id", client.ID))
	}
	h.clients[client.ID] = client
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, ok := h.clients[client.ID]
	if !ok || current != client {
		// Already replaced by a newer connection for the same user
		client.close()
		return
	}

	h.removeFromRideLocked(client)
	delete(h.clients, client.ID)
	client.close()
}

func (h *Hub) removeFromRideLocked(client *Client) {
	rideID := client.GetRide()
	if rideID == "" {
		return
	}
	if room, ok := h.rides[rideID]; ok {
		delete(room, client.ID)
		if len(room) == 0 {
			delete(h.rides, rideID)
		}
	}
	client.setRide("")
}

// GetClient returns the client registered under id
func (h *Hub) GetClient(id string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[id]
	return client, ok
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetRideCount returns the number of ride rooms with at least one client
func (h *Hub) GetRideCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rides)
}

// GetClientsInRide returns the clients currently in the ride room
func (h *Hub) GetClientsInRide(rideID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room := h.rides[rideID]
	clients := make([]*Client, 0, len(room))
	for _, client := range room {
		clients = append(clients, client)
	}
	return clients
}

// AddClientToRide places a registered client into a ride room. A client
// is in at most one room; joining a new ride leaves the previous one.
func (h *Hub) AddClientToRide(clientID, rideID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[clientID]
	if !ok {
		return
	}

	h.removeFromRideLocked(client)

	room, ok := h.rides[rideID]
	if !ok {
		room = make(map[string]*Client)
		h.rides[rideID] = room
	}
	room[clientID] = client
	client.setRide(rideID)
}

// RemoveClientFromRide takes a client out of a ride room, dropping the
// room once it is empty
func (h *Hub) RemoveClientFromRide(clientID, rideID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rides[rideID]
	if !ok {
		return
	}
	client, ok := room[clientID]
	if !ok {
		return
	}

	delete(room, clientID)
	if len(room) == 0 {
		delete(h.rides, rideID)
	}
	client.setRide("")
}

// SendToUser delivers msg to a single client. Unknown IDs are ignored.
func (h *Hub) SendToUser(id string, msg *Message) {
	client, ok := h.GetClient(id)
	if !ok {
		return
	}
	client.SendMessage(msg)
}

// SendToRide delivers msg to every client in the ride room
func (h *Hub) SendToRide(rideID string, msg *Message) {
	for _, client := range h.GetClientsInRide(rideID) {
		client.SendMessage(msg)
	}
}

// SendToAll delivers msg to every connected client
func (h *Hub) SendToAll(msg *Message) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.SendMessage(msg)
	}
}

// RegisterHandler installs the handler invoked for inbound messages of
// the given type
func (h *Hub) RegisterHandler(msgType string, handler MessageHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[msgType] = handler
}

// HandleMessage dispatches an inbound message to its registered
// handler. Messages with no handler are dropped.
func (h *Hub) HandleMessage(client *Client, msg *Message) {
	h.mu.RLock()
	handler, ok := h.handlers[msg.Type]
	h.mu.RUnlock()

	if !ok {
		logger.Debug("ws: no handler for message type",
			zap.String("type", msg.Type),
			zap.String("client_id", client.ID),
		)
		return
	}
	handler(client, msg)
}

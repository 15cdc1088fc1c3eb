package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Client is one websocket connection identified by user ID
type Client struct {
	ID   string
	Role string
	Send chan *Message

	conn   *websocket.Conn
	hub    *Hub
	logger *zap.Logger

	mu     sync.Mutex
	ride   string
	closed bool
}

// NewClient wraps a websocket connection for the hub
func NewClient(id string, conn *websocket.Conn, hub *Hub, role string, logger *zap.Logger) *Client {
	return &Client{
		ID:     id,
		Role:   role,
		Send:   make(chan *Message, sendBufferSize),
		conn:   conn,
		hub:    hub,
		logger: logger,
	}
}

// GetRide returns the ride room the client is in, or ""
func (c *Client) GetRide() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ride
}

func (c *Client) setRide(rideID string) {
	c.mu.Lock()
	c.ride = rideID
	c.mu.Unlock()
}

// SendMessage queues msg for delivery. A client whose buffer is full is
// considered stuck and its channel is closed; the write pump tears the
// connection down from there.
func (c *Client) SendMessage(msg *Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.Send <- msg:
	default:
		c.logger.Warn("ws: send buffer full, dropping client",
			zap.String("client_id", c.ID),
		)
		c.closed = true
		close(c.Send)
	}
}

// close marks the client dead and closes its send channel once
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// ReadPump reads inbound messages and dispatches them through the hub.
// It unregisters the client when the connection drops.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("ws: read error",
					zap.String("client_id", c.ID),
					zap.Error(err),
				)
			}
			return
		}
		c.hub.HandleMessage(c, &msg)
	}
}

// WritePump flushes the send channel to the connection and keeps the
// connection alive with pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

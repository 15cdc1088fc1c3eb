package realtime

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yemeli/swiftride/internal/geo"
	"github.com/yemeli/swiftride/pkg/common"
	"github.com/yemeli/swiftride/pkg/logger"
	"github.com/yemeli/swiftride/pkg/middleware"
	"github.com/yemeli/swiftride/pkg/models"
	ws "github.com/yemeli/swiftride/pkg/websocket"
)

var upgrader = gws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients carry the token, not a same-origin cookie
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler upgrades authenticated connections and bridges inbound socket
// messages to the hub and the geo index
type Handler struct {
	hub *ws.Hub
	geo *geo.Service
}

// NewHandler creates a realtime handler and installs the inbound
// message handlers on the hub
func NewHandler(hub *ws.Hub, geoService *geo.Service) *Handler {
	h := &Handler{hub: hub, geo: geoService}
	hub.RegisterHandler("join_ride", h.onJoinRide)
	hub.RegisterHandler("leave_ride", h.onLeaveRide)
	hub.RegisterHandler("location", h.onLocation)
	return h
}

// HandleWebSocket upgrades the request and registers the client
func (h *Handler) HandleWebSocket(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	role, err := middleware.GetUserRole(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("ws: upgrade failed", zap.Error(err))
		return
	}

	client := ws.NewClient(userID.String(), conn, h.hub, string(role), logger.Get())
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

// GetStats reports hub occupancy
func (h *Handler) GetStats(c *gin.Context) {
	common.SuccessResponse(c, gin.H{
		"connected_clients": h.hub.GetClientCount(),
		"active_rides":      h.hub.GetRideCount(),
	})
}

func (h *Handler) onJoinRide(client *ws.Client, msg *ws.Message) {
	if msg.RideID == "" {
		return
	}
	h.hub.AddClientToRide(client.ID, msg.RideID)
}

func (h *Handler) onLeaveRide(client *ws.Client, msg *ws.Message) {
	if msg.RideID == "" {
		return
	}
	h.hub.RemoveClientFromRide(client.ID, msg.RideID)
}

// onLocation handles driver position reports over the socket. The same
// update also fans out to the ride room so the rider sees the car move.
func (h *Handler) onLocation(client *ws.Client, msg *ws.Message) {
	if client.Role != string(models.RoleDriver) {
		return
	}
	driverID, err := uuid.Parse(client.ID)
	if err != nil {
		return
	}

	lon, lonOK := msg.Data["lon"].(float64)
	lat, latOK := msg.Data["lat"].(float64)
	if !lonOK || !latOK {
		return
	}
	speed, _ := msg.Data["speed_kmh"].(float64)

	update := &geo.LocationUpdate{Point: models.GeoPoint{lon, lat}, SpeedKmh: speed}
	if err := h.geo.UpdateDriverLocation(context.Background(), driverID, update); err != nil {
		logger.Warn("ws: location update rejected",
			zap.String("driver_id", client.ID),
			zap.Error(err),
		)
		return
	}

	if rideID := client.GetRide(); rideID != "" {
		h.hub.SendToRide(rideID, &ws.Message{
			Type:   "driver_location",
			RideID: rideID,
			Data:   map[string]interface{}{"lon": lon, "lat": lat, "speed_kmh": speed},
		})
	}
}

// RegisterRoutes registers the websocket endpoint
func (h *Handler) RegisterRoutes(r *gin.Engine, jwtSecret string) {
	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(jwtSecret))
	{
		api.GET("/ws", h.HandleWebSocket)
		api.GET("/ws/stats", h.GetStats)
	}
}

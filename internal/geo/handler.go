package geo

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yemeli/swiftride/pkg/common"
	"github.com/yemeli/swiftride/pkg/middleware"
	"github.com/yemeli/swiftride/pkg/models"
)

// Handler handles HTTP requests for driver locations
type Handler struct {
	service *Service
	cfg     HandlerConfig
}

// HandlerConfig carries the query defaults enforced at the edge
type HandlerConfig struct {
	DefaultRadiusKm float64
	MaxDrivers      int
}

// NewHandler creates a geo handler
func NewHandler(service *Service, cfg HandlerConfig) *Handler {
	return &Handler{service: service, cfg: cfg}
}

// UpdateLocation handles a driver position report
func (h *Handler) UpdateLocation(c *gin.Context) {
	driverID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var update LocationUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.UpdateDriverLocation(c.Request.Context(), driverID, &update); err != nil {
		if appErr, ok := err.(*common.AppError); ok {
			common.AppErrorResponse(c, appErr)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to update location")
		return
	}

	common.SuccessResponse(c, gin.H{"message": "location updated"})
}

// SetAvailability handles a driver going on or off shift
func (h *Handler) SetAvailability(c *gin.Context) {
	driverID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Available *bool `json:"available" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.SetAvailability(c.Request.Context(), driverID, *req.Available); err != nil {
		if appErr, ok := err.(*common.AppError); ok {
			common.AppErrorResponse(c, appErr)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to update availability")
		return
	}

	common.SuccessResponse(c, gin.H{"available": *req.Available})
}

// NearbyDrivers returns available drivers around a point
func (h *Handler) NearbyDrivers(c *gin.Context) {
	lon, err := strconv.ParseFloat(c.Query("lon"), 64)
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid lon")
		return
	}
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid lat")
		return
	}

	radiusKm := h.cfg.DefaultRadiusKm
	if raw := c.Query("radius_km"); raw != "" {
		if r, err := strconv.ParseFloat(raw, 64); err == nil && r > 0 && r <= h.cfg.DefaultRadiusKm {
			radiusKm = r
		}
	}

	limit := h.cfg.MaxDrivers
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n < limit {
			limit = n
		}
	}

	drivers, err := h.service.FindNearbyDrivers(c.Request.Context(), models.GeoPoint{lon, lat}, radiusKm, limit)
	if err != nil {
		if appErr, ok := err.(*common.AppError); ok {
			common.AppErrorResponse(c, appErr)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to find drivers")
		return
	}

	common.SuccessResponse(c, drivers)
}

// RegisterRoutes registers geo routes
func (h *Handler) RegisterRoutes(r *gin.Engine, jwtSecret string) {
	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(jwtSecret))

	drivers := api.Group("/driver")
	drivers.Use(middleware.RequireRole(models.RoleDriver))
	{
		drivers.POST("/location", h.UpdateLocation)
		drivers.POST("/availability", h.SetAvailability)
	}

	api.GET("/drivers/nearby", h.NearbyDrivers)
}

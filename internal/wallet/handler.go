package wallet

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yemeli/swiftride/pkg/common"
	"github.com/yemeli/swiftride/pkg/middleware"
)

// Handler handles HTTP requests for wallets
type Handler struct {
	service *Service
}

// NewHandler creates a new wallet handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetWallet returns the current user's wallet
func (h *Handler) GetWallet(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	wallet, err := h.service.GetWallet(c.Request.Context(), userID)
	if err != nil {
		if appErr, ok := err.(*common.AppError); ok {
			common.AppErrorResponse(c, appErr)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to get wallet")
		return
	}

	common.SuccessResponse(c, wallet)
}

// Deposit starts a gateway deposit into the current user's wallet
func (h *Handler) Deposit(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Amount  float64 `json:"amount" binding:"required,gt=0"`
		Gateway string  `json:"gateway" binding:"required,oneof=momo orange_money card"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	txn, err := h.service.Deposit(c.Request.Context(), userID, req.Amount, req.Gateway)
	if err != nil {
		if appErr, ok := err.(*common.AppError); ok {
			common.AppErrorResponse(c, appErr)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to start deposit")
		return
	}

	common.CreatedResponse(c, txn)
}

// Withdraw starts a gateway withdrawal from the current user's wallet
func (h *Handler) Withdraw(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Amount  float64 `json:"amount" binding:"required,gt=0"`
		Gateway string  `json:"gateway" binding:"required,oneof=momo orange_money card"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	txn, err := h.service.Withdraw(c.Request.Context(), userID, req.Amount, req.Gateway)
	if err != nil {
		if appErr, ok := err.(*common.AppError); ok {
			common.AppErrorResponse(c, appErr)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to start withdrawal")
		return
	}

	common.CreatedResponse(c, txn)
}

// Transfer moves funds from the current user's wallet to another user's
func (h *Handler) Transfer(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		ToUserID uuid.UUID `json:"to_user_id" binding:"required"`
		Amount   float64   `json:"amount" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.Transfer(c.Request.Context(), userID, req.ToUserID, req.Amount)
	if err != nil {
		if appErr, ok := err.(*common.AppError); ok {
			common.AppErrorResponse(c, appErr)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to transfer")
		return
	}

	common.SuccessResponse(c, gin.H{
		"reference": result.Reference,
		"debit":     result.Debit,
		"credit":    result.Credit,
	})
}

// GetTransactions returns the current user's ledger, newest first
func (h *Handler) GetTransactions(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	txns, err := h.service.ListTransactions(c.Request.Context(), userID, perPage, (page-1)*perPage)
	if err != nil {
		if appErr, ok := err.(*common.AppError); ok {
			common.AppErrorResponse(c, appErr)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to get transactions")
		return
	}

	common.SuccessResponse(c, txns)
}

// RegisterRoutes registers wallet routes
func (h *Handler) RegisterRoutes(r *gin.Engine, jwtSecret string) {
	api := r.Group("/api/v1/wallet")
	api.Use(middleware.AuthMiddleware(jwtSecret))
	{
		api.GET("", h.GetWallet)
		api.POST("/deposit", h.Deposit)
		api.POST("/withdraw", h.Withdraw)
		api.POST("/transfer", h.Transfer)
		api.GET("/transactions", h.GetTransactions)
	}
}

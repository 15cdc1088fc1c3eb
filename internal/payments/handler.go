package payments

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yemeli/swiftride/internal/wallet"
	"github.com/yemeli/swiftride/pkg/common"
	"github.com/yemeli/swiftride/pkg/logger"
	"github.com/yemeli/swiftride/pkg/middleware"
	"github.com/yemeli/swiftride/pkg/models"
)

// RidePaymentRecorder marks the settlement outcome on the ride record.
// The rides repository implements it.
type RidePaymentRecorder interface {
	SetPaymentResult(ctx context.Context, rideID uuid.UUID, status models.PaymentStatus, transactionID *string) error
}

// WebhookRequest is the provider-agnostic confirmation callback body.
// Individual gateways are adapted to this shape at the edge.
type WebhookRequest struct {
	ExternalRef string `json:"external_ref" binding:"required"`
	Status      string `json:"status" binding:"required,oneof=success failed refunded"`
	Reason      string `json:"reason"`
}

// Handler receives gateway webhooks and applies them to the ledger
type Handler struct {
	wallets *wallet.Service
	rides   RidePaymentRecorder
}

// NewHandler creates a new payments webhook handler
func NewHandler(wallets *wallet.Service, rides RidePaymentRecorder) *Handler {
	return &Handler{wallets: wallets, rides: rides}
}

// HandleWebhook processes a gateway confirmation callback
func (h *Handler) HandleWebhook(c *gin.Context) {
	var req WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()

	if req.Status == "refunded" {
		refund, err := h.wallets.Refund(ctx, req.ExternalRef, req.Reason)
		if err != nil {
			h.respondError(c, err)
			return
		}
		common.SuccessResponse(c, refund)
		return
	}

	txn, err := h.wallets.HandleConfirmation(ctx, req.ExternalRef, req.Status == "success")
	if err != nil {
		h.respondError(c, err)
		return
	}

	// Ride fare collections also stamp the outcome on the ride itself
	if txn.Metadata.RidePayment != nil {
		status := models.PaymentStatusFailed
		if txn.Status == models.TransactionStatusCompleted {
			status = models.PaymentStatusCompleted
		}
		if err := h.rides.SetPaymentResult(ctx, txn.Metadata.RidePayment.RideID, status, &txn.Reference); err != nil {
			logger.Warn("failed to record ride payment result",
				zap.String("ride_id", txn.Metadata.RidePayment.RideID.String()),
				zap.Error(err),
			)
		}
	}

	common.SuccessResponse(c, txn)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	if appErr, ok := err.(*common.AppError); ok {
		common.AppErrorResponse(c, appErr)
		return
	}
	common.ErrorResponse(c, http.StatusInternalServerError, "failed to process webhook")
}

// RegisterRoutes registers the webhook route. Gateways authenticate with
// signatures, not user tokens, so the route sits outside the auth group.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/webhooks/payments", middleware.ValidateJSONContentType(), h.HandleWebhook)
}

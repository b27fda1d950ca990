package handlers

import (
	"errors"
	"net/http"

	"recon-svc/accounting"
	"recon-svc/database"
	"recon-svc/models"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type OrderHandler struct {
	orders *database.OrderTransactionStore
	logger *zap.Logger
}

func NewOrderHandler(orders *database.OrderTransactionStore, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

// CreateOrder registers a host order for reconciliation. The checkout calls
// this after initiating the gateway transaction, before any push can need
// the row; pushes that still race it are deferred and caught up later.
// Capability flags come from the method registry so the caller cannot grant
// itself refund or capture rights.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	ctx, span := otel.Tracer("recon-service").Start(c.Request.Context(), "CreateOrder")
	defer span.End()

	var req models.CreateOrderTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Amount.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must not be negative"})
		return
	}
	span.SetAttributes(attribute.String("order_transaction_id", req.ID))

	capability, _ := accounting.Lookup(req.ServiceName)
	tx := &models.OrderTransaction{
		ID:                     req.ID,
		OrderID:                req.OrderID,
		Amount:                 req.Amount,
		Currency:               req.Currency,
		Status:                 models.OrderStateInProgress,
		OriginalTransactionKey: req.OriginalTransactionKey,
		ServiceName:            req.ServiceName,
		ReservationNumber:      req.ReservationNumber,
		CanRefund:              capability.CanRefund,
		CanCapture:             capability.CanCapture,
		Authorized:             req.Authorized,
	}

	if err := h.orders.Create(ctx, tx); err != nil {
		if errors.Is(err, database.ErrOrderTransactionExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "order transaction already registered"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to register order transaction", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, tx)
}

package handlers

import (
	"errors"
	"net/http"

	"recon-svc/accounting"
	"recon-svc/database"
	"recon-svc/derive"
	"recon-svc/gateway"
	"recon-svc/middleware"
	"recon-svc/models"
	"recon-svc/push"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type RefundHandler struct {
	log       *database.EventLog
	orders    *database.OrderTransactionStore
	client    *gateway.Client
	processor *push.Processor
	logger    *zap.Logger
}

func NewRefundHandler(
	log *database.EventLog,
	orders *database.OrderTransactionStore,
	client *gateway.Client,
	processor *push.Processor,
	logger *zap.Logger,
) *RefundHandler {
	return &RefundHandler{
		log:       log,
		orders:    orders,
		client:    client,
		processor: processor,
		logger:    logger,
	}
}

// Refund computes and executes a merchant-initiated refund. Multi-payment
// orders are refunded record by record until the requested amount is
// satisfied; the response is then one result per refunded record.
func (h *RefundHandler) Refund(c *gin.Context) {
	ctx, span := otel.Tracer("recon-service").Start(c.Request.Context(), "Refund")
	defer span.End()

	orderTxID := c.Param("id")
	span.SetAttributes(attribute.String("order_transaction_id", orderTxID))

	var req models.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.orders.Get(ctx, orderTxID)
	if err != nil {
		if errors.Is(err, database.ErrOrderTransactionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order transaction not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to load order transaction", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if verr := accounting.ValidateRefund(order); verr != nil {
		middleware.RecordRefundProcessed("refused")
		c.JSON(http.StatusBadRequest, models.APIResult{Status: false, Message: verr.Message, Code: verr.Code})
		return
	}

	history, err := h.log.FindByOrderTransaction(ctx, orderTxID, false)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to load event history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	records := derive.PaymentRecords(history)
	requested := accounting.DetermineAmount(
		req.OrderItems, req.CustomAmount, accounting.MaxRefundable(records), order.ServiceName)

	allocations := accounting.SpreadRefund(records, requested)
	if len(allocations) == 0 {
		middleware.RecordRefundProcessed("refused")
		c.JSON(http.StatusBadRequest, models.APIResult{
			Status:  false,
			Message: "no refundable payment records on this order",
			Code:    accounting.CodeNothingToRefund,
		})
		return
	}

	// Gateway business constraints hold before any remote call is made.
	for _, allocation := range allocations {
		verr := accounting.ValidateGiftcardRefund(
			order.ServiceName, allocation.Record.PaymentMethod,
			allocation.Amount, allocation.Record.Amount)
		if verr != nil {
			middleware.RecordRefundProcessed("refused")
			c.JSON(http.StatusBadRequest, models.APIResult{Status: false, Message: verr.Message, Code: verr.Code})
			return
		}
	}

	results := make([]models.APIResult, 0, len(allocations))
	for _, allocation := range allocations {
		results = append(results, h.executeRefund(c, order, allocation))
	}

	if len(results) == 1 {
		c.JSON(http.StatusOK, results[0])
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *RefundHandler) executeRefund(c *gin.Context, order *models.OrderTransaction, allocation accounting.RefundAllocation) models.APIResult {
	ctx := c.Request.Context()

	resp, err := h.client.Execute(ctx, gateway.TransactionRequest{
		ServiceName:            order.ServiceName,
		Action:                 accounting.ActionRefund,
		Amount:                 allocation.Amount,
		Currency:               order.Currency,
		Invoice:                order.OrderID,
		OriginalTransactionKey: allocation.Record.TransactionKey,
	})

	// Every engine response feeds back through the shared ingestion pipeline,
	// refused attempts included: the audit trail shows them, and non-success
	// legs contribute nothing to the derived state.
	if resp != nil {
		if resp.OrderTransactionID == "" {
			resp.OrderTransactionID = order.ID
		}
		if _, aerr := h.processor.Apply(ctx, *resp); aerr != nil {
			h.logger.Error("Failed to apply refund response", zap.Error(aerr))
		}
	}

	if err != nil {
		middleware.RecordRefundProcessed("failed")
		var gerr *models.GatewayError
		if errors.As(err, &gerr) {
			h.logger.Warn("Refund not accepted by gateway",
				zap.String("transaction_key", allocation.Record.TransactionKey),
				zap.Bool("rejected", gerr.Rejected),
				zap.Error(err),
			)
			return models.APIResult{Status: false, Message: gerr.Message, Code: gerr.Code}
		}
		h.logger.Error("Refund call failed", zap.Error(err))
		return models.APIResult{Status: false, Message: "refund request failed"}
	}

	middleware.RecordRefundProcessed("success")
	return models.APIResult{
		Status:  true,
		Message: "refund processed",
		Amount:  allocation.Amount.StringFixed(2),
	}
}

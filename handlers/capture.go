package handlers

import (
	"errors"
	"net/http"

	"recon-svc/accounting"
	"recon-svc/cache"
	"recon-svc/database"
	"recon-svc/gateway"
	"recon-svc/middleware"
	"recon-svc/models"
	"recon-svc/push"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type CaptureHandler struct {
	orders    *database.OrderTransactionStore
	client    *gateway.Client
	processor *push.Processor
	locker    cache.Locker
	logger    *zap.Logger
}

func NewCaptureHandler(
	orders *database.OrderTransactionStore,
	client *gateway.Client,
	processor *push.Processor,
	locker cache.Locker,
	logger *zap.Logger,
) *CaptureHandler {
	return &CaptureHandler{
		orders:    orders,
		client:    client,
		processor: processor,
		locker:    locker,
		logger:    logger,
	}
}

// Capture settles a previously authorized transaction. Deferred-invoice
// methods pay against their reservation; zero-amount orders (full discount)
// transition straight to paid without a gateway call.
func (h *CaptureHandler) Capture(c *gin.Context) {
	ctx, span := otel.Tracer("recon-service").Start(c.Request.Context(), "Capture")
	defer span.End()

	orderTxID := c.Param("id")
	span.SetAttributes(attribute.String("order_transaction_id", orderTxID))

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

	if verr := accounting.ValidateCapture(order); verr != nil {
		middleware.RecordCaptureProcessed("refused")
		c.JSON(http.StatusBadRequest, models.APIResult{Status: false, Message: verr.Message, Code: verr.Code})
		return
	}

	captureReq, verr := accounting.BuildCaptureRequest(order)
	if verr != nil {
		middleware.RecordCaptureProcessed("refused")
		c.JSON(http.StatusBadRequest, models.APIResult{Status: false, Message: verr.Message, Code: verr.Code})
		return
	}

	if captureReq.Amount.IsZero() {
		h.captureZeroAmount(c, order)
		return
	}

	resp, err := h.client.Execute(ctx, gateway.TransactionRequest{
		ServiceName:            order.ServiceName,
		Action:                 captureReq.Action,
		Amount:                 captureReq.Amount,
		Currency:               order.Currency,
		Invoice:                order.OrderID,
		OriginalTransactionKey: captureReq.OriginalTransactionKey,
		ReservationNumber:      captureReq.ReservationNumber,
	})
	// Refused attempts stay in the audit trail too; non-success legs do not
	// change the derived state.
	if resp != nil {
		if resp.OrderTransactionID == "" {
			resp.OrderTransactionID = order.ID
		}
		if _, aerr := h.processor.Apply(ctx, *resp); aerr != nil {
			h.logger.Error("Failed to apply capture response", zap.Error(aerr))
		}
	}

	if err != nil {
		middleware.RecordCaptureProcessed("failed")
		var gerr *models.GatewayError
		if errors.As(err, &gerr) {
			c.JSON(http.StatusBadGateway, models.APIResult{Status: false, Message: gerr.Message, Code: gerr.Code})
			return
		}
		h.logger.Error("Capture call failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.APIResult{Status: false, Message: "capture request failed"})
		return
	}

	if err := h.orders.MarkCaptured(ctx, order.ID); err != nil {
		h.logger.Error("Failed to mark order captured", zap.Error(err))
	}

	middleware.RecordCaptureProcessed("success")
	c.JSON(http.StatusOK, models.APIResult{
		Status:  true,
		Message: "capture processed",
		Amount:  captureReq.Amount.StringFixed(2),
	})
}

// captureZeroAmount writes the paid state directly. The state column is
// single-writer-per-lock, so even this short-circuit acquires the order lock.
func (h *CaptureHandler) captureZeroAmount(c *gin.Context, order *models.OrderTransaction) {
	ctx := c.Request.Context()

	lock, err := h.locker.Acquire(ctx, order.ID, cache.DefaultLockTTL)
	if err != nil {
		h.logger.Error("Failed to acquire lock", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.APIResult{Status: false, Message: "capture request failed"})
		return
	}
	if lock == nil {
		middleware.RecordCaptureProcessed("refused")
		c.JSON(http.StatusConflict, models.APIResult{Status: false, Message: "order transaction is busy, try again"})
		return
	}
	defer func() {
		if err := h.locker.Release(ctx, lock); err != nil {
			h.logger.Error("Failed to release lock", zap.Error(err))
		}
	}()

	if err := h.orders.UpdateState(ctx, order.ID, models.OrderStatePaid); err != nil {
		h.logger.Error("Failed to update state", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.APIResult{Status: false, Message: "capture request failed"})
		return
	}
	if err := h.orders.MarkCaptured(ctx, order.ID); err != nil {
		h.logger.Error("Failed to mark order captured", zap.Error(err))
	}

	middleware.RecordCaptureProcessed("success")
	c.JSON(http.StatusOK, models.APIResult{
		Status:  true,
		Message: "nothing to capture, order marked as paid",
		Amount:  "0.00",
	})
}

package handlers

import (
	"net/http"

	"recon-svc/database"
	"recon-svc/derive"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type TransactionHandler struct {
	log    *database.EventLog
	logger *zap.Logger
}

func NewTransactionHandler(log *database.EventLog, logger *zap.Logger) *TransactionHandler {
	return &TransactionHandler{log: log, logger: logger}
}

// ListTransactions returns the raw event history for one order transaction,
// newest first for display.
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	responses, err := h.log.FindByOrderTransaction(c.Request.Context(), c.Param("id"), true)
	if err != nil {
		h.logger.Error("Failed to list transactions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, responses)
}

// ListPaymentRecords returns the derived payment-leg view, including the
// remaining refundable amount per leg.
func (h *TransactionHandler) ListPaymentRecords(c *gin.Context) {
	responses, err := h.log.FindByOrderTransaction(c.Request.Context(), c.Param("id"), false)
	if err != nil {
		h.logger.Error("Failed to load event history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, derive.PaymentRecords(responses))
}

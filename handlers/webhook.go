package handlers

import (
	"errors"
	"net/http"

	"recon-svc/middleware"
	"recon-svc/models"
	"recon-svc/push"
	"recon-svc/signature"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PushHandler receives the gateway's webhook notifications. The caller is a
// machine that retries on non-200: accepted, skipped and duplicate pushes
// answer 200, a signature failure answers 400, and an infrastructure failure
// before the raw event was persisted answers 500 so the gateway redelivers.
type PushHandler struct {
	processor *push.Processor
	logger    *zap.Logger
}

func NewPushHandler(processor *push.Processor, logger *zap.Logger) *PushHandler {
	return &PushHandler{processor: processor, logger: logger}
}

func (h *PushHandler) HandlePush(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form body"})
		return
	}

	fields := signature.FromValues(c.Request.PostForm)
	result, err := h.processor.Process(c.Request.Context(), fields)
	middleware.RecordPushProcessed(string(result))

	if errors.Is(err, models.ErrSignatureInvalid) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}
	if err != nil {
		if result != push.ResultAccepted {
			// Nothing was persisted; a non-200 makes the gateway redeliver.
			h.logger.Error("Push processing failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "push processing failed"})
			return
		}
		// The raw event is durably recorded; the derivation failure is
		// recovered by a later push or redelivery.
		h.logger.Error("Push state derivation error", zap.Error(err))
	}

	c.Status(http.StatusOK)
}

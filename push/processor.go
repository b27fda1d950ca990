// Package push ingests gateway status notifications: verify the signature,
// classify, de-duplicate against the event log, persist, and re-derive the
// canonical order-transaction state under a per-order lock. State is never
// transitioned directly from a push; it is always recomputed from the full
// event history, which tolerates out-of-order and duplicate delivery.
package push

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recon-svc/cache"
	"recon-svc/database"
	"recon-svc/derive"
	"recon-svc/models"
	"recon-svc/signature"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Result is the terminal outcome for one notification.
type Result string

const (
	ResultRejected  Result = "rejected"  // signature mismatch, nothing persisted
	ResultSkipped   Result = "skipped"   // unclassifiable, intentionally ignored
	ResultDuplicate Result = "duplicate" // retransmission, idempotent no-op
	ResultAccepted  Result = "accepted"  // persisted and state derived
	ResultDeferred  Result = "deferred"  // persisted, derivation deferred (lock held elsewhere)
	ResultFailed    Result = "failed"    // infrastructure failure before the event was persisted
)

// StatePublisher emits a state-change event after derivation. Failures are
// logged by callers and never fail the push.
type StatePublisher interface {
	PublishStateChanged(ctx context.Context, event models.TransactionEvent) error
}

type Processor struct {
	secret    string
	log       *database.EventLog
	orders    *database.OrderTransactionStore
	locker    cache.Locker
	publisher StatePublisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewProcessor(
	secret string,
	log *database.EventLog,
	orders *database.OrderTransactionStore,
	locker cache.Locker,
	publisher StatePublisher,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		secret:    secret,
		log:       log,
		orders:    orders,
		locker:    locker,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Process runs the full pipeline for one inbound notification.
func (p *Processor) Process(ctx context.Context, fields signature.Fields) (Result, error) {
	ctx, span := otel.Tracer("recon-service").Start(ctx, "ProcessPush")
	defer span.End()

	// Verify
	claimed := fields.Get(models.FieldSignature)
	if !signature.Verify(fields, claimed, p.secret) {
		p.logger.Warn("Push rejected: invalid signature")
		return ResultRejected, models.ErrSignatureInvalid
	}

	// Classify
	response := models.ResponseFromFields(fields.Map())
	response.PushHash = signature.ComputePushHash(fields, p.now())
	pushType := response.Type()
	span.SetAttributes(
		attribute.String("push.type", string(pushType)),
		attribute.String("transaction_key", response.TransactionKey),
	)
	if pushType == models.PushUnknown {
		p.logger.Info("Push skipped: unclassifiable notification",
			zap.Int("status_code", int(response.StatusCode)),
			zap.String("transaction_key", response.TransactionKey),
		)
		return ResultSkipped, nil
	}

	return p.Apply(ctx, response)
}

// Apply runs correlation, idempotency, persistence and derivation for an
// already-verified EngineResponse. Merchant-side refund/capture flows feed
// gateway responses through here so both paths share one pipeline.
func (p *Processor) Apply(ctx context.Context, response models.EngineResponse) (Result, error) {
	// Correlate
	orderTxID, err := p.correlate(ctx, response)
	if err != nil {
		return ResultFailed, err
	}
	response.OrderTransactionID = orderTxID

	// Idempotency check
	if response.Signature != "" {
		exists, err := p.log.Exists(ctx, response.TransactionKey, response.Signature)
		if err != nil {
			return ResultFailed, err
		}
		if exists {
			p.logger.Info("Push skipped: retransmission",
				zap.String("transaction_key", response.TransactionKey))
			return ResultDuplicate, nil
		}
	}

	// Persist, then derive under lock. The upsert happens before derivation
	// so the raw event is durably recorded even if state propagation fails;
	// a later redelivery re-triggers derivation and catches up.
	lock, err := p.locker.Acquire(ctx, orderTxID, cache.DefaultLockTTL)
	if err != nil {
		return ResultFailed, err
	}
	if lock == nil {
		if err := p.log.Upsert(ctx, &response); err != nil {
			return ResultFailed, err
		}
		p.logger.Info("Push persisted, derivation deferred: lock held elsewhere",
			zap.String("order_transaction_id", orderTxID))
		return ResultDeferred, nil
	}
	defer func() {
		if err := p.locker.Release(ctx, lock); err != nil {
			p.logger.Error("Failed to release lock", zap.Error(err))
		}
	}()

	if err := p.log.Upsert(ctx, &response); err != nil {
		return ResultFailed, err
	}
	if err := p.log.BackfillOrderTransactionID(ctx, response.TransactionKey, orderTxID); err != nil {
		p.logger.Error("Failed to backfill order transaction id", zap.Error(err))
	}

	if err := p.deriveAndStore(ctx, orderTxID, response); err != nil {
		// The raw event is already written; surface the failure but the
		// notification itself was accepted.
		p.logger.Error("Failed to derive state after push",
			zap.String("order_transaction_id", orderTxID), zap.Error(err))
		return ResultAccepted, err
	}
	return ResultAccepted, nil
}

// correlate resolves the local order-transaction id from the payload or from
// previously logged rows sharing a transaction key. With nothing resolvable
// the transaction key itself becomes the correlation id, backward compatible
// with integrations that stored associations outside the event log.
func (p *Processor) correlate(ctx context.Context, response models.EngineResponse) (string, error) {
	if response.OrderTransactionID != "" {
		return response.OrderTransactionID, nil
	}

	related, err := p.log.FindByCorrelation(ctx,
		"", response.TransactionKey, response.RelatedTransactionKey)
	if err != nil {
		return "", fmt.Errorf("failed to correlate push: %w", err)
	}
	for _, row := range related {
		if row.OrderTransactionID != "" {
			return row.OrderTransactionID, nil
		}
	}
	return response.TransactionKey, nil
}

func (p *Processor) deriveAndStore(ctx context.Context, orderTxID string, response models.EngineResponse) error {
	ctx, span := otel.Tracer("recon-service").Start(ctx, "DeriveState")
	defer span.End()

	order, err := p.orders.Get(ctx, orderTxID)
	if err != nil {
		if errors.Is(err, database.ErrOrderTransactionNotFound) {
			// Webhook raced the redirect flow; the event is logged and a
			// later push will derive once the order transaction exists.
			p.logger.Info("No order transaction yet, derivation deferred",
				zap.String("order_transaction_id", orderTxID))
			return nil
		}
		return err
	}

	history, err := p.log.FindByCorrelation(ctx,
		orderTxID, response.TransactionKey, response.RelatedTransactionKey)
	if err != nil {
		return err
	}

	state := derive.State(history, order.Amount)
	span.SetAttributes(attribute.String("derived.state", string(state)))
	if state == order.Status {
		return nil
	}

	if err := p.orders.UpdateState(ctx, orderTxID, state); err != nil {
		return err
	}
	if state == models.OrderStateRefunded {
		if err := p.orders.MarkRefunded(ctx, orderTxID); err != nil {
			p.logger.Error("Failed to mark order refunded", zap.Error(err))
		}
	}

	if p.publisher != nil {
		event := models.TransactionEvent{
			OrderTransactionID: orderTxID,
			OrderID:            order.OrderID,
			State:              state,
			EventType:          "transaction_state_changed",
		}
		if err := p.publisher.PublishStateChanged(ctx, event); err != nil {
			p.logger.Error("Failed to publish state change event", zap.Error(err))
		}
	}
	return nil
}

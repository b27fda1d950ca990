package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"recon-svc/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// ErrOrderTransactionNotFound is returned when no order-transaction row
// exists for the given id. Pushes can legitimately arrive before the row
// does; callers treat this as "defer derivation", not as a failure.
var ErrOrderTransactionNotFound = errors.New("order transaction not found")

// ErrOrderTransactionExists is returned when a registration collides with an
// existing id. Registration retries treat this as success.
var ErrOrderTransactionExists = errors.New("order transaction already exists")

// OrderTransactionStore owns the host order-transaction record. The status
// column is single-writer-per-lock: only the holder of the distributed lock
// for an id may call UpdateState for it.
type OrderTransactionStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewOrderTransactionStore(db *sql.DB, logger *zap.Logger) *OrderTransactionStore {
	return &OrderTransactionStore{db: db, logger: logger}
}

const orderTransactionColumns = `id, order_id, amount, currency, status, original_transaction_key,
	service_name, reservation_number, can_refund, can_capture, authorized, captured, refunded,
	created_at, updated_at`

func (s *OrderTransactionStore) Get(ctx context.Context, id string) (*models.OrderTransaction, error) {
	query := fmt.Sprintf("SELECT %s FROM order_transactions WHERE id = $1", orderTransactionColumns)

	var tx models.OrderTransaction
	var amount, status string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&tx.ID, &tx.OrderID, &amount, &tx.Currency, &status, &tx.OriginalTransactionKey,
		&tx.ServiceName, &tx.ReservationNumber, &tx.CanRefund, &tx.CanCapture,
		&tx.Authorized, &tx.Captured, &tx.Refunded, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order transaction: %w", err)
	}

	tx.Status = models.OrderState(status)
	if tx.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *OrderTransactionStore) Create(ctx context.Context, tx *models.OrderTransaction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO order_transactions (id, order_id, amount, currency, status,
			original_transaction_key, service_name, reservation_number,
			can_refund, can_capture, authorized)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		tx.ID, tx.OrderID, tx.Amount.String(), tx.Currency, string(models.OrderStateInProgress),
		tx.OriginalTransactionKey, tx.ServiceName, tx.ReservationNumber,
		tx.CanRefund, tx.CanCapture, tx.Authorized,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrOrderTransactionExists
		}
		return fmt.Errorf("failed to create order transaction: %w", err)
	}
	s.logger.Info("Order transaction registered",
		zap.String("order_transaction_id", tx.ID),
		zap.String("service_name", tx.ServiceName),
	)
	return nil
}

// UpdateState writes the canonical derived state.
func (s *OrderTransactionStore) UpdateState(ctx context.Context, id string, state models.OrderState) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE order_transactions SET status = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1",
		id, string(state),
	)
	if err != nil {
		return fmt.Errorf("failed to update order transaction state: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return ErrOrderTransactionNotFound
	}
	s.logger.Info("Order transaction state updated",
		zap.String("order_transaction_id", id),
		zap.String("state", string(state)),
	)
	return nil
}

func (s *OrderTransactionStore) MarkCaptured(ctx context.Context, id string) error {
	return s.setFlag(ctx, id, "captured")
}

func (s *OrderTransactionStore) MarkRefunded(ctx context.Context, id string) error {
	return s.setFlag(ctx, id, "refunded")
}

func (s *OrderTransactionStore) setFlag(ctx context.Context, id, column string) error {
	query := fmt.Sprintf(
		"UPDATE order_transactions SET %s = true, updated_at = CURRENT_TIMESTAMP WHERE id = $1",
		column,
	)
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark order transaction %s: %w", column, err)
	}
	return nil
}

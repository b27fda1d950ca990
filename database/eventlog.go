package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"recon-svc/models"

	"go.uber.org/zap"
)

// EventLog is the append-only store of verified gateway notifications. Rows
// are never updated (except backfilling a missing order-transaction id) and
// never deleted; de-duplication is enforced by the unique index on
// (transaction_key, signature), not by an in-process lock.
type EventLog struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewEventLog(db *sql.DB, logger *zap.Logger) *EventLog {
	return &EventLog{db: db, logger: logger}
}

const engineResponseColumns = `id, COALESCE(order_transaction_id, ''), transaction_key, related_transaction_key,
	status_code, amount, amount_credit, currency, service_name, transaction_method,
	transaction_type, signature, push_hash, raw, created_at`

// Upsert inserts the response unless a row with the same natural key already
// exists, in which case it is a no-op. Safe under concurrent callers for the
// same key.
func (l *EventLog) Upsert(ctx context.Context, r *models.EngineResponse) error {
	raw, err := json.Marshal(r.Raw)
	if err != nil {
		return fmt.Errorf("failed to marshal raw fields: %w", err)
	}

	var orderTxID sql.NullString
	if r.OrderTransactionID != "" {
		orderTxID = sql.NullString{String: r.OrderTransactionID, Valid: true}
	}

	result, err := l.db.ExecContext(ctx,
		`INSERT INTO engine_responses (order_transaction_id, transaction_key, related_transaction_key,
			status_code, amount, amount_credit, currency, service_name, transaction_method,
			transaction_type, signature, push_hash, raw)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (transaction_key, signature) DO NOTHING`,
		orderTxID, r.TransactionKey, r.RelatedTransactionKey,
		int(r.StatusCode), r.Amount.String(), r.AmountCredit.String(), r.Currency,
		r.ServiceName, r.TransactionMethod, r.TransactionType, r.Signature, r.PushHash, raw,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert engine response: %w", err)
	}

	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		l.logger.Debug("Duplicate engine response ignored",
			zap.String("transaction_key", r.TransactionKey))
	}
	return nil
}

// Exists reports whether an event with this natural key was already recorded.
func (l *EventLog) Exists(ctx context.Context, transactionKey, signature string) (bool, error) {
	var count int
	err := l.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM engine_responses WHERE transaction_key = $1 AND signature = $2",
		transactionKey, signature,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check for duplicate event: %w", err)
	}
	return count > 0, nil
}

// FindByCorrelation returns all rows matching any of the supplied, non-empty
// correlation keys, ordered by created_at ascending so the deriver sees
// history in delivery order.
func (l *EventLog) FindByCorrelation(ctx context.Context, orderTransactionID, transactionKey, relatedTransactionKey string) ([]models.EngineResponse, error) {
	conditions := ""
	args := []interface{}{}
	add := func(clause string, value string) {
		if value == "" {
			return
		}
		if conditions != "" {
			conditions += " OR "
		}
		args = append(args, value)
		conditions += fmt.Sprintf(clause, len(args))
	}
	add("order_transaction_id = $%d", orderTransactionID)
	add("transaction_key = $%d", transactionKey)
	add("related_transaction_key = $%d", relatedTransactionKey)
	// A refund's original leg correlates both ways.
	add("transaction_key = $%d", relatedTransactionKey)
	add("related_transaction_key = $%d", transactionKey)

	if conditions == "" {
		return nil, nil
	}

	query := fmt.Sprintf(
		"SELECT %s FROM engine_responses WHERE %s ORDER BY created_at ASC",
		engineResponseColumns, conditions,
	)
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query engine responses: %w", err)
	}
	defer rows.Close()

	return scanEngineResponses(rows)
}

// FindByOrderTransaction returns all rows for one order transaction.
// Ascending order is for derivation, descending for display.
func (l *EventLog) FindByOrderTransaction(ctx context.Context, orderTransactionID string, newestFirst bool) ([]models.EngineResponse, error) {
	ordering := "ASC"
	if newestFirst {
		ordering = "DESC"
	}
	query := fmt.Sprintf(
		"SELECT %s FROM engine_responses WHERE order_transaction_id = $1 ORDER BY created_at %s",
		engineResponseColumns, ordering,
	)
	rows, err := l.db.QueryContext(ctx, query, orderTransactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query engine responses: %w", err)
	}
	defer rows.Close()

	return scanEngineResponses(rows)
}

// BackfillOrderTransactionID sets the order-transaction id on rows that
// arrived before it was known (webhook racing the redirect flow).
func (l *EventLog) BackfillOrderTransactionID(ctx context.Context, transactionKey, orderTransactionID string) error {
	if transactionKey == "" || orderTransactionID == "" {
		return nil
	}
	_, err := l.db.ExecContext(ctx,
		`UPDATE engine_responses SET order_transaction_id = $2
		WHERE (transaction_key = $1 OR related_transaction_key = $1)
		AND (order_transaction_id IS NULL OR order_transaction_id = '')`,
		transactionKey, orderTransactionID,
	)
	if err != nil {
		return fmt.Errorf("failed to backfill order transaction id: %w", err)
	}
	return nil
}

func scanEngineResponses(rows *sql.Rows) ([]models.EngineResponse, error) {
	var responses []models.EngineResponse
	for rows.Next() {
		var r models.EngineResponse
		var statusCode int
		var amount, amountCredit string
		var raw []byte

		err := rows.Scan(&r.ID, &r.OrderTransactionID, &r.TransactionKey, &r.RelatedTransactionKey,
			&statusCode, &amount, &amountCredit, &r.Currency, &r.ServiceName, &r.TransactionMethod,
			&r.TransactionType, &r.Signature, &r.PushHash, &raw, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan engine response: %w", err)
		}

		r.StatusCode = models.StatusCode(statusCode)
		if r.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		if r.AmountCredit, err = parseAmount(amountCredit); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &r.Raw); err != nil {
				return nil, fmt.Errorf("failed to unmarshal raw fields: %w", err)
			}
		}
		responses = append(responses, r)
	}
	return responses, rows.Err()
}

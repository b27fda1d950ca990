package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatusCode is the numeric status the gateway reports on a transaction leg.
type StatusCode int

const (
	StatusSuccess           StatusCode = 190
	StatusFailed            StatusCode = 490
	StatusValidationFailure StatusCode = 491
	StatusRejected          StatusCode = 690
	StatusPendingInput      StatusCode = 790
	StatusPendingProcessing StatusCode = 791
	StatusAwaitingConsumer  StatusCode = 792
	StatusCancelledByUser   StatusCode = 890
	StatusCancelledByShop   StatusCode = 891
)

func (s StatusCode) IsCancelled() bool {
	return s == StatusCancelledByUser || s == StatusCancelledByShop
}

func (s StatusCode) IsPending() bool {
	return s == StatusPendingInput || s == StatusPendingProcessing || s == StatusAwaitingConsumer
}

// OrderState is the canonical status derived from the full event history.
type OrderState string

const (
	OrderStateInProgress        OrderState = "in_progress"
	OrderStateAuthorized        OrderState = "authorized"
	OrderStatePaid              OrderState = "paid"
	OrderStatePartiallyPaid     OrderState = "partially_paid"
	OrderStateRefunded          OrderState = "refunded"
	OrderStatePartiallyRefunded OrderState = "partially_refunded"
	OrderStateCancelled         OrderState = "cancelled"
	OrderStateFailed            OrderState = "failed"
)

// PushType classifies one gateway notification.
type PushType string

const (
	PushUnknown       PushType = "unknown"
	PushPayment       PushType = "payment"
	PushRefund        PushType = "refund"
	PushAuthorization PushType = "authorization"
	PushCancellation  PushType = "cancellation"
	PushValidation    PushType = "validation_failure"
)

// Transaction types the gateway uses for authorize legs. New methods that
// authorize instead of paying directly get an entry here.
var authorizationTransactionTypes = map[string]bool{
	"authorize":        true,
	"I872":             true,
	"V054":             true,
	"klarnakp_reserve": true,
}

// EngineResponse is one verified, persisted gateway notification. Rows are
// append-only; the (transaction_key, signature) pair is unique in storage.
type EngineResponse struct {
	ID                    int               `json:"id"`
	OrderTransactionID    string            `json:"order_transaction_id"`
	TransactionKey        string            `json:"transaction_key"`
	RelatedTransactionKey string            `json:"related_transaction_key"`
	StatusCode            StatusCode        `json:"status_code"`
	Amount                decimal.Decimal   `json:"amount"`
	AmountCredit          decimal.Decimal   `json:"amount_credit"`
	Currency              string            `json:"currency"`
	ServiceName           string            `json:"service_name"`
	TransactionMethod     string            `json:"transaction_method"`
	TransactionType       string            `json:"transaction_type"`
	Signature             string            `json:"signature"`
	PushHash              string            `json:"push_hash"`
	Raw                   map[string]string `json:"raw"`
	CreatedAt             time.Time         `json:"created_at"`
}

// Type classifies the notification from its status code and transaction-type
// fields. Unclassifiable notifications are skipped by the processor.
func (r EngineResponse) Type() PushType {
	switch {
	case r.TransactionKey == "":
		return PushUnknown
	case r.StatusCode == StatusValidationFailure:
		return PushValidation
	case r.StatusCode.IsCancelled():
		return PushCancellation
	case r.StatusCode == StatusSuccess && r.AmountCredit.IsPositive():
		return PushRefund
	case r.StatusCode == StatusSuccess && authorizationTransactionTypes[r.TransactionType]:
		return PushAuthorization
	case r.StatusCode == StatusSuccess,
		r.StatusCode == StatusFailed,
		r.StatusCode == StatusRejected,
		r.StatusCode == StatusPendingProcessing,
		r.StatusCode == StatusAwaitingConsumer:
		return PushPayment
	default:
		return PushUnknown
	}
}

// PaymentRecord is a derived, read-only view of one payment leg net of the
// refunds applied against it.
type PaymentRecord struct {
	ID             int             `json:"id"`
	TransactionKey string          `json:"transaction_key"`
	Amount         decimal.Decimal `json:"amount"`
	AmountCredit   decimal.Decimal `json:"amount_credit"`
	StatusCode     StatusCode      `json:"status_code"`
	PaymentMethod  string          `json:"payment_method"`
}

func (p PaymentRecord) NetAmount() decimal.Decimal {
	return p.Amount.Sub(p.AmountCredit)
}

// Refundable reports whether this leg can still be a refund target.
func (p PaymentRecord) Refundable() bool {
	return p.StatusCode == StatusSuccess && p.NetAmount().IsPositive()
}

// OrderTransaction is the host order-transaction record the canonical state
// is attached to. Only the holder of the distributed lock for its ID may
// write the Status column.
type OrderTransaction struct {
	ID                     string          `json:"id"`
	OrderID                string          `json:"order_id"`
	Amount                 decimal.Decimal `json:"amount"`
	Currency               string          `json:"currency"`
	Status                 OrderState      `json:"status"`
	OriginalTransactionKey string          `json:"original_transaction_key"`
	ServiceName            string          `json:"service_name"`
	ReservationNumber      string          `json:"reservation_number"`
	CanRefund              bool            `json:"can_refund"`
	CanCapture             bool            `json:"can_capture"`
	Authorized             bool            `json:"authorized"`
	Captured               bool            `json:"captured"`
	Refunded               bool            `json:"refunded"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// TransactionEvent is published to Kafka after a derivation changes the
// canonical state.
type TransactionEvent struct {
	OrderTransactionID string     `json:"order_transaction_id"`
	OrderID            string     `json:"order_id"`
	State              OrderState `json:"state"`
	EventType          string     `json:"event_type"` // transaction_state_changed
}

package models

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// RefundOrderItem is one order line selected for a line-level refund.
type RefundOrderItem struct {
	ID          string          `json:"id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// RefundRequest is the merchant-side refund input. CustomAmount overrides the
// item sum for methods that allow free-amount refunds.
type RefundRequest struct {
	OrderItems   []RefundOrderItem `json:"order_items"`
	CustomAmount decimal.Decimal   `json:"custom_refund_amount"`
}

// CreateOrderTransactionRequest registers a host order for reconciliation.
// The checkout deposits the order total, the transaction key of the redirect
// leg and, for deferred-invoice methods, the reservation number. Refund and
// capture capabilities are resolved from the payment method, not supplied.
type CreateOrderTransactionRequest struct {
	ID                     string          `json:"id" binding:"required"`
	OrderID                string          `json:"order_id" binding:"required"`
	Amount                 decimal.Decimal `json:"amount"`
	Currency               string          `json:"currency" binding:"required"`
	ServiceName            string          `json:"service_name" binding:"required"`
	OriginalTransactionKey string          `json:"original_transaction_key"`
	ReservationNumber      string          `json:"reservation_number"`
	Authorized             bool            `json:"authorized"`
}

// APIResult is the response shape for merchant-facing refund/capture calls.
// Multi-payment refunds return one result per payment record.
type APIResult struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
	Amount  string `json:"amount,omitempty"`
}

// Gateway field names on the flat push body.
const (
	FieldSignature             = "brq_signature"
	FieldStatusCode            = "brq_statuscode"
	FieldTransactionKey        = "brq_transactions"
	FieldRelatedTransactionKey = "brq_relatedtransaction_refund"
	FieldOrderTransactionID    = "add_order_transaction_id"
	FieldAmount                = "brq_amount"
	FieldAmountCredit          = "brq_amount_credit"
	FieldCurrency              = "brq_currency"
	FieldServiceName           = "brq_payment_method"
	FieldTransactionType       = "brq_transaction_type"
	FieldTransactionMethod     = "brq_transaction_method"
	FieldTimestamp             = "brq_timestamp"
	FieldCustomerName          = "brq_customer_name"
	FieldInvoiceNumber         = "brq_invoicenumber"
	FieldReservationNumber     = "brq_service_klarnakp_reservationnumber"
)

// ResponseFromFields maps a flat gateway field bag (push body or transaction
// response) to an EngineResponse. Unknown fields stay available in Raw.
func ResponseFromFields(fields map[string]string) EngineResponse {
	r := EngineResponse{Raw: fields}
	for key, value := range fields {
		switch strings.ToLower(key) {
		case FieldStatusCode:
			if code, err := strconv.Atoi(value); err == nil {
				r.StatusCode = StatusCode(code)
			}
		case FieldTransactionKey:
			r.TransactionKey = value
		case FieldRelatedTransactionKey:
			r.RelatedTransactionKey = value
		case FieldOrderTransactionID:
			r.OrderTransactionID = value
		case FieldAmount:
			if amount, err := decimal.NewFromString(value); err == nil {
				r.Amount = amount
			}
		case FieldAmountCredit:
			if credit, err := decimal.NewFromString(value); err == nil {
				r.AmountCredit = credit
			}
		case FieldCurrency:
			r.Currency = value
		case FieldServiceName:
			r.ServiceName = value
		case FieldTransactionType:
			r.TransactionType = value
		case FieldTransactionMethod:
			r.TransactionMethod = value
		case FieldSignature:
			r.Signature = value
		}
	}
	return r
}

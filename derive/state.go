// Package derive computes the canonical order-transaction state from the
// accumulated event history. Everything here is pure: no I/O, no hidden
// counters, so recomputing from the same inputs always yields the same state
// and re-running after a crashed lock holder is safe.
package derive

import (
	"recon-svc/models"

	"github.com/shopspring/decimal"
)

// State maps the ordered event history plus the order total to one canonical
// state. Refunds dominate payments, which dominate authorization, which
// dominates cancellation. Both sides of the full-vs-partial comparison are
// rounded to 2 decimals first to absorb currency-math drift: events summing
// to 99.995 against a 100.00 total count as fully paid.
func State(responses []models.EngineResponse, orderTotal decimal.Decimal) models.OrderState {
	if len(responses) == 0 {
		return models.OrderStateInProgress
	}

	total := orderTotal.Round(2)

	refunded := decimal.Zero
	hasRefund := false
	paid := decimal.Zero
	hasPayment := false
	hasAuthorization := false
	hasCancellation := false

	for _, r := range responses {
		switch r.Type() {
		case models.PushRefund:
			hasRefund = true
			refunded = refunded.Add(r.AmountCredit)
		case models.PushPayment:
			if r.StatusCode == models.StatusSuccess {
				hasPayment = true
				paid = paid.Add(r.Amount)
			}
		case models.PushAuthorization:
			hasAuthorization = true
		case models.PushCancellation:
			hasCancellation = true
		}
	}

	switch {
	case hasRefund:
		if refunded.Round(2).GreaterThanOrEqual(total) {
			return models.OrderStateRefunded
		}
		return models.OrderStatePartiallyRefunded
	case hasPayment:
		if paid.Round(2).GreaterThanOrEqual(total) {
			return models.OrderStatePaid
		}
		return models.OrderStatePartiallyPaid
	case hasAuthorization:
		return models.OrderStateAuthorized
	case hasCancellation:
		return models.OrderStateCancelled
	default:
		return models.OrderStateFailed
	}
}

// PaymentRecords builds the read-only payment-leg view: one record per
// successful payment event, with the refunds correlated to it (by its own
// key or the related-transaction key) accumulated into AmountCredit.
func PaymentRecords(responses []models.EngineResponse) []models.PaymentRecord {
	var records []models.PaymentRecord
	index := make(map[string]int)

	for _, r := range responses {
		if r.Type() != models.PushPayment || r.StatusCode != models.StatusSuccess {
			continue
		}
		if _, seen := index[r.TransactionKey]; seen {
			continue
		}
		index[r.TransactionKey] = len(records)
		// The sub-method is the one actually charged (e.g. which giftcard
		// network); fall back to the service name when absent.
		method := r.TransactionMethod
		if method == "" {
			method = r.ServiceName
		}
		records = append(records, models.PaymentRecord{
			ID:             r.ID,
			TransactionKey: r.TransactionKey,
			Amount:         r.Amount,
			AmountCredit:   r.AmountCredit,
			StatusCode:     r.StatusCode,
			PaymentMethod:  method,
		})
	}

	for _, r := range responses {
		if r.Type() != models.PushRefund {
			continue
		}
		key := r.RelatedTransactionKey
		if key == "" {
			key = r.TransactionKey
		}
		if i, ok := index[key]; ok {
			records[i].AmountCredit = records[i].AmountCredit.Add(r.AmountCredit)
		}
	}

	return records
}

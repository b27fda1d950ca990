package accounting

import (
	"recon-svc/models"

	"github.com/shopspring/decimal"
)

// ValidateCapture checks the order-level capture preconditions. The explicit
// Authorized flag bypasses the method-level CanCapture capability; it covers
// authorizations that happened out-of-band.
func ValidateCapture(order *models.OrderTransaction) *models.ValidationError {
	// Zero is allowed here: full-discount orders capture as a direct paid
	// transition without a gateway call.
	if order.Amount.IsNegative() {
		return &models.ValidationError{Message: "order has a negative amount", Code: CodeOrderTotalInvalid}
	}
	if !order.CanCapture && !order.Authorized {
		return &models.ValidationError{Message: "payment method does not support capture", Code: CodeCaptureNotSupported}
	}
	if order.Captured {
		return &models.ValidationError{Message: "order is already captured", Code: CodeAlreadyCaptured}
	}
	if order.OriginalTransactionKey == "" {
		return &models.ValidationError{Message: "no original transaction key on order", Code: CodeMissingTransaction}
	}
	return nil
}

// AmountToCapture is the amount debited for the order. Callers short-circuit
// a zero result (full-discount order) straight to paid without a gateway
// call.
func AmountToCapture(order *models.OrderTransaction) decimal.Decimal {
	return order.Amount.Round(2)
}

// CaptureRequest describes the outbound gateway call for a capture flow.
// Deferred-invoice methods pay against a reservation instead of capturing.
type CaptureRequest struct {
	Action                 string
	Amount                 decimal.Decimal
	OriginalTransactionKey string
	ReservationNumber      string
}

// BuildCaptureRequest resolves the action from the method registry. A
// deferred-invoice method without a reservation number is a validation
// failure, not a gateway error.
func BuildCaptureRequest(order *models.OrderTransaction) (*CaptureRequest, *models.ValidationError) {
	action, needsReservation := CaptureAction(order.ServiceName)
	if needsReservation && order.ReservationNumber == "" {
		return nil, &models.ValidationError{
			Message: "no reservation number on order for deferred invoice capture",
			Code:    CodeMissingTransaction,
		}
	}
	return &CaptureRequest{
		Action:                 action,
		Amount:                 AmountToCapture(order),
		OriginalTransactionKey: order.OriginalTransactionKey,
		ReservationNumber:      order.ReservationNumber,
	}, nil
}

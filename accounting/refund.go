package accounting

import (
	"recon-svc/models"

	"github.com/shopspring/decimal"
)

// Validation codes returned to the merchant UI.
const (
	CodeOrderTotalInvalid   = 1001
	CodeRefundNotSupported  = 1002
	CodeAlreadyRefunded     = 1003
	CodeMissingTransaction  = 1004
	CodeGiftcardPartial     = 1005
	CodeNothingToRefund     = 1006
	CodeCaptureNotSupported = 1101
	CodeAlreadyCaptured     = 1102
)

// MaxRefundable sums the remaining refundable amount across all eligible
// payment records of an order.
func MaxRefundable(records []models.PaymentRecord) decimal.Decimal {
	total := decimal.Zero
	for _, record := range records {
		if record.Refundable() {
			total = total.Add(record.NetAmount())
		}
	}
	return total
}

// DetermineAmount computes the amount to refund against one payment record.
// A positive custom amount wins unless the method demands line-item-exact
// refunds; otherwise the selected order items are summed. The result is
// clamped to the remaining transaction amount. A non-positive result falls
// back to the full remaining amount — deliberate legacy behavior for callers
// that pass no item breakdown — provided the remaining amount itself is
// positive.
func DetermineAmount(items []models.RefundOrderItem, customAmount, remaining decimal.Decimal, methodCode string) decimal.Decimal {
	amount := decimal.Zero
	if customAmount.IsPositive() && !RequiresLineItemAmounts(methodCode) {
		amount = customAmount
	} else {
		for _, item := range items {
			amount = amount.Add(item.TotalAmount)
		}
	}

	if amount.GreaterThan(remaining) {
		amount = remaining
	}

	if !amount.IsPositive() {
		if remaining.IsPositive() {
			return remaining
		}
		return decimal.Zero
	}
	return amount
}

// ValidateRefund checks the order-level preconditions. A nil return means
// the refund may proceed to amount computation.
func ValidateRefund(order *models.OrderTransaction) *models.ValidationError {
	if !order.Amount.IsPositive() {
		return &models.ValidationError{Message: "order has no amount to refund", Code: CodeOrderTotalInvalid}
	}
	if !order.CanRefund {
		return &models.ValidationError{Message: "payment method does not support refunds", Code: CodeRefundNotSupported}
	}
	if order.Refunded {
		return &models.ValidationError{Message: "order is already fully refunded", Code: CodeAlreadyRefunded}
	}
	if order.OriginalTransactionKey == "" {
		return &models.ValidationError{Message: "no original transaction key on order", Code: CodeMissingTransaction}
	}
	return nil
}

// ValidateGiftcardRefund rejects partial refunds on giftcard services whose
// sub-method is not allow-listed. This is a gateway business constraint and
// must hold before any remote call is made.
func ValidateGiftcardRefund(serviceName, transactionMethod string, amount, transactionAmount decimal.Decimal) *models.ValidationError {
	if !IsGiftcardService(serviceName) {
		return nil
	}
	if amount.Round(2).GreaterThanOrEqual(transactionAmount.Round(2)) {
		return nil
	}
	if AllowsPartialGiftcardRefund(transactionMethod) {
		return nil
	}
	return &models.ValidationError{
		Message: "partial refunds are not supported for this giftcard",
		Code:    CodeGiftcardPartial,
	}
}

// RefundAllocation is the amount to request against one payment record.
type RefundAllocation struct {
	Record models.PaymentRecord
	Amount decimal.Decimal
}

// SpreadRefund applies a requested amount against each eligible payment
// record in turn, stopping as soon as the cumulative refunded amount
// satisfies the request. The sum of allocations never exceeds the request
// nor any record's remaining amount.
func SpreadRefund(records []models.PaymentRecord, requested decimal.Decimal) []RefundAllocation {
	var allocations []RefundAllocation
	outstanding := requested

	for _, record := range records {
		if !outstanding.IsPositive() {
			break
		}
		if !record.Refundable() {
			continue
		}
		amount := record.NetAmount()
		if amount.GreaterThan(outstanding) {
			amount = outstanding
		}
		allocations = append(allocations, RefundAllocation{Record: record, Amount: amount})
		outstanding = outstanding.Sub(amount)
	}
	return allocations
}

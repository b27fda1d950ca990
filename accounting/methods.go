// Package accounting validates and computes refund and capture amounts from
// the historical payment records of one order. All functions are pure; the
// gateway call and event-log write belong to the callers.
package accounting

import "strings"

// Capability describes what a payment method supports. The registry replaces
// per-method handler classes: adding a method is a table entry, not a code
// change in the orchestration.
type Capability struct {
	CanRefund         bool
	CanCapture        bool
	CaptureAction     string // gateway action for capture flows
	IsDeferredInvoice bool   // uses "pay" + reservation number instead of capture
	IsGiftcard        bool
}

const (
	ActionCapture = "capture"
	ActionPay     = "pay"
	ActionRefund  = "refund"
)

var methodRegistry = map[string]Capability{
	"ideal":            {CanRefund: true},
	"bancontactmrcash": {CanRefund: true},
	"creditcard":       {CanRefund: true, CanCapture: true, CaptureAction: ActionCapture},
	"mastercard":       {CanRefund: true, CanCapture: true, CaptureAction: ActionCapture},
	"visa":             {CanRefund: true, CanCapture: true, CaptureAction: ActionCapture},
	"paypal":           {CanRefund: true},
	"sepadirectdebit":  {CanRefund: true},
	"afterpay":         {CanRefund: true, CanCapture: true, CaptureAction: ActionCapture},
	"billink":          {CanRefund: true, CanCapture: true, CaptureAction: ActionCapture},
	"klarnakp":         {CanRefund: true, CanCapture: true, CaptureAction: ActionPay, IsDeferredInvoice: true},
	"giftcards":        {CanRefund: true, IsGiftcard: true},
	"knaken":           {CanRefund: false},
}

// Methods whose gateway enforces line-item-exact refunds: a caller-supplied
// custom amount is ignored for these.
var lineItemExactMethods = map[string]bool{
	"afterpay": true,
	"billink":  true,
	"klarnakp": true,
}

// Giftcard sub-methods allowed to refund partially. Everything else on a
// giftcard service must refund the full transaction amount in one go.
var giftcardPartialAllowed = map[string]bool{
	"fashioncheque": true,
}

// Lookup resolves a payment-method code to its capability descriptor.
// Codes match case-insensitively ("Billink" and "billink" are one method).
func Lookup(code string) (Capability, bool) {
	capability, ok := methodRegistry[strings.ToLower(code)]
	return capability, ok
}

// RequiresLineItemAmounts reports whether the method refuses free-amount
// refunds.
func RequiresLineItemAmounts(code string) bool {
	return lineItemExactMethods[strings.ToLower(code)]
}

// AllowsPartialGiftcardRefund reports whether the giftcard sub-method may
// refund less than the transaction amount.
func AllowsPartialGiftcardRefund(transactionMethod string) bool {
	return giftcardPartialAllowed[strings.ToLower(transactionMethod)]
}

// IsGiftcardService reports whether the service is a giftcard product.
func IsGiftcardService(serviceName string) bool {
	capability, ok := Lookup(serviceName)
	return ok && capability.IsGiftcard
}

// CaptureAction returns the gateway action to use when capturing with this
// method, and whether a reservation number from the authorization leg is
// required.
func CaptureAction(code string) (action string, needsReservation bool) {
	capability, ok := Lookup(code)
	if !ok || capability.CaptureAction == "" {
		return ActionCapture, false
	}
	return capability.CaptureAction, capability.IsDeferredInvoice
}

package accounting

import (
	"testing"

	"recon-svc/models"

	"github.com/shopspring/decimal"
)

func amount(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return d
}

func record(key, gross, credit string) models.PaymentRecord {
	return models.PaymentRecord{
		TransactionKey: key,
		Amount:         amount(gross),
		AmountCredit:   amount(credit),
		StatusCode:     models.StatusSuccess,
		PaymentMethod:  "ideal",
	}
}

func TestMaxRefundable(t *testing.T) {
	records := []models.PaymentRecord{
		record("T1", "100.00", "40.00"),
		record("T2", "50.00", "0"),
		record("T3", "20.00", "20.00"), // fully refunded, ineligible
	}
	if got := MaxRefundable(records); !got.Equal(amount("110.00")) {
		t.Errorf("Expected max refundable 110.00, got %s", got)
	}
}

func TestDetermineAmount_CustomAmountClamped(t *testing.T) {
	// Record with amount=100, credit=40: remaining is 60. A custom 80 is
	// clamped to 60.
	got := DetermineAmount(nil, amount("80.00"), amount("60.00"), "ideal")
	if !got.Equal(amount("60.00")) {
		t.Errorf("Expected clamp to 60.00, got %s", got)
	}
}

func TestDetermineAmount_CustomAmountUsedWhenAllowed(t *testing.T) {
	got := DetermineAmount(nil, amount("25.00"), amount("60.00"), "ideal")
	if !got.Equal(amount("25.00")) {
		t.Errorf("Expected custom amount 25.00, got %s", got)
	}
}

func TestDetermineAmount_LineItemExactMethodsIgnoreCustomAmount(t *testing.T) {
	items := []models.RefundOrderItem{
		{ID: "item-1", TotalAmount: amount("10.00")},
		{ID: "item-2", TotalAmount: amount("15.00")},
	}
	for _, method := range []string{"afterpay", "Billink", "klarnakp"} {
		got := DetermineAmount(items, amount("50.00"), amount("60.00"), method)
		if !got.Equal(amount("25.00")) {
			t.Errorf("%s: expected item sum 25.00, got %s", method, got)
		}
	}
}

func TestDetermineAmount_SumsOrderItems(t *testing.T) {
	items := []models.RefundOrderItem{
		{ID: "item-1", TotalAmount: amount("12.50")},
		{ID: "item-2", TotalAmount: amount("7.50")},
	}
	got := DetermineAmount(items, decimal.Zero, amount("60.00"), "ideal")
	if !got.Equal(amount("20.00")) {
		t.Errorf("Expected item sum 20.00, got %s", got)
	}
}

func TestDetermineAmount_LegacyFallbackToFullRemaining(t *testing.T) {
	// No items, no custom amount: legacy callers get the full remaining
	// transaction amount.
	got := DetermineAmount(nil, decimal.Zero, amount("60.00"), "ideal")
	if !got.Equal(amount("60.00")) {
		t.Errorf("Expected fallback to 60.00, got %s", got)
	}
}

func TestDetermineAmount_NoFallbackWhenNothingRemains(t *testing.T) {
	got := DetermineAmount(nil, decimal.Zero, decimal.Zero, "ideal")
	if !got.IsZero() {
		t.Errorf("Expected zero when remaining is zero, got %s", got)
	}
}

func TestValidateRefund(t *testing.T) {
	valid := &models.OrderTransaction{
		Amount:                 amount("100.00"),
		CanRefund:              true,
		OriginalTransactionKey: "T1",
	}
	if err := ValidateRefund(valid); err != nil {
		t.Errorf("Expected valid order to pass, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*models.OrderTransaction)
		code   int
	}{
		{"zero total", func(o *models.OrderTransaction) { o.Amount = decimal.Zero }, CodeOrderTotalInvalid},
		{"refund unsupported", func(o *models.OrderTransaction) { o.CanRefund = false }, CodeRefundNotSupported},
		{"already refunded", func(o *models.OrderTransaction) { o.Refunded = true }, CodeAlreadyRefunded},
		{"missing key", func(o *models.OrderTransaction) { o.OriginalTransactionKey = "" }, CodeMissingTransaction},
	}
	for _, tt := range tests {
		order := *valid
		tt.mutate(&order)
		err := ValidateRefund(&order)
		if err == nil {
			t.Errorf("%s: expected validation error", tt.name)
			continue
		}
		if err.Code != tt.code {
			t.Errorf("%s: expected code %d, got %d", tt.name, tt.code, err.Code)
		}
	}
}

func TestValidateGiftcardRefund(t *testing.T) {
	// Partial refund on a non-allow-listed giftcard sub-method is refused.
	if err := ValidateGiftcardRefund("giftcards", "ideal", amount("10.00"), amount("50.00")); err == nil {
		t.Errorf("Expected partial giftcard refund via ideal to be rejected")
	}
	// fashioncheque is allow-listed for partial refunds.
	if err := ValidateGiftcardRefund("giftcards", "fashioncheque", amount("10.00"), amount("50.00")); err != nil {
		t.Errorf("Expected fashioncheque partial refund to be accepted, got %v", err)
	}
	// A full refund is fine on any sub-method.
	if err := ValidateGiftcardRefund("giftcards", "ideal", amount("50.00"), amount("50.00")); err != nil {
		t.Errorf("Expected full giftcard refund to be accepted, got %v", err)
	}
	// Non-giftcard services are unaffected.
	if err := ValidateGiftcardRefund("ideal", "ideal", amount("10.00"), amount("50.00")); err != nil {
		t.Errorf("Expected non-giftcard service to be unaffected, got %v", err)
	}
}

func TestSpreadRefund(t *testing.T) {
	records := []models.PaymentRecord{
		record("T1", "60.00", "0"),
		record("T2", "40.00", "0"),
		record("T3", "30.00", "0"),
	}

	allocations := SpreadRefund(records, amount("80.00"))
	if len(allocations) != 2 {
		t.Fatalf("Expected 2 allocations, got %d", len(allocations))
	}
	if !allocations[0].Amount.Equal(amount("60.00")) {
		t.Errorf("Expected first allocation 60.00, got %s", allocations[0].Amount)
	}
	if !allocations[1].Amount.Equal(amount("20.00")) {
		t.Errorf("Expected second allocation 20.00, got %s", allocations[1].Amount)
	}

	total := decimal.Zero
	for _, a := range allocations {
		total = total.Add(a.Amount)
	}
	if !total.Equal(amount("80.00")) {
		t.Errorf("Expected allocations to sum to the request, got %s", total)
	}
}

func TestSpreadRefund_SkipsIneligibleRecords(t *testing.T) {
	records := []models.PaymentRecord{
		record("T1", "60.00", "60.00"), // nothing left
		record("T2", "40.00", "0"),
	}
	allocations := SpreadRefund(records, amount("30.00"))
	if len(allocations) != 1 {
		t.Fatalf("Expected 1 allocation, got %d", len(allocations))
	}
	if allocations[0].Record.TransactionKey != "T2" {
		t.Errorf("Expected allocation against T2, got %s", allocations[0].Record.TransactionKey)
	}
}

func TestSpreadRefund_NeverOverRefunds(t *testing.T) {
	records := []models.PaymentRecord{record("T1", "60.00", "0")}
	allocations := SpreadRefund(records, amount("100.00"))
	if len(allocations) != 1 {
		t.Fatalf("Expected 1 allocation, got %d", len(allocations))
	}
	if !allocations[0].Amount.Equal(amount("60.00")) {
		t.Errorf("Expected allocation capped at 60.00, got %s", allocations[0].Amount)
	}
}

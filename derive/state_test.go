package derive

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

func payment(key, value string) models.EngineResponse {
	return models.EngineResponse{
		TransactionKey: key,
		StatusCode:     models.StatusSuccess,
		Amount:         amount(value),
	}
}

func refund(key, related, credit string) models.EngineResponse {
	return models.EngineResponse{
		TransactionKey:        key,
		RelatedTransactionKey: related,
		StatusCode:            models.StatusSuccess,
		AmountCredit:          amount(credit),
	}
}

func TestState_Empty(t *testing.T) {
	if got := State(nil, amount("100.00")); got != models.OrderStateInProgress {
		t.Errorf("Expected in_progress for empty history, got %s", got)
	}
}

func TestState_Deterministic(t *testing.T) {
	responses := []models.EngineResponse{
		payment("T1", "50.00"),
		payment("T2", "30.00"),
	}
	first := State(responses, amount("100.00"))
	second := State(responses, amount("100.00"))
	if first != second {
		t.Errorf("Expected deterministic result, got %s then %s", first, second)
	}
}

func TestState_IndependentEventOrderIrrelevant(t *testing.T) {
	forward := []models.EngineResponse{payment("T1", "50.00"), payment("T2", "50.00")}
	backward := []models.EngineResponse{payment("T2", "50.00"), payment("T1", "50.00")}

	if State(forward, amount("100.00")) != State(backward, amount("100.00")) {
		t.Errorf("Reordering independent payment events changed the derived state")
	}
}

func TestState_PaidBoundary(t *testing.T) {
	tests := []struct {
		paid string
		want models.OrderState
	}{
		{"100.00", models.OrderStatePaid},
		{"99.995", models.OrderStatePaid}, // rounds to 100.00
		{"99.98", models.OrderStatePartiallyPaid},
		{"120.00", models.OrderStatePaid},
	}
	for _, tt := range tests {
		got := State([]models.EngineResponse{payment("T1", tt.paid)}, amount("100.00"))
		if got != tt.want {
			t.Errorf("paid=%s: expected %s, got %s", tt.paid, tt.want, got)
		}
	}
}

func TestState_RefundsDominatePayments(t *testing.T) {
	responses := []models.EngineResponse{
		payment("T1", "100.00"),
		refund("T2", "T1", "30.00"),
	}
	if got := State(responses, amount("100.00")); got != models.OrderStatePartiallyRefunded {
		t.Errorf("Expected partially_refunded, got %s", got)
	}

	responses = append(responses, refund("T3", "T1", "70.00"))
	if got := State(responses, amount("100.00")); got != models.OrderStateRefunded {
		t.Errorf("Expected refunded after full credit, got %s", got)
	}
}

func TestState_Authorization(t *testing.T) {
	responses := []models.EngineResponse{{
		TransactionKey:  "T1",
		StatusCode:      models.StatusSuccess,
		TransactionType: "authorize",
	}}
	if got := State(responses, amount("100.00")); got != models.OrderStateAuthorized {
		t.Errorf("Expected authorized, got %s", got)
	}
}

func TestState_Cancellation(t *testing.T) {
	responses := []models.EngineResponse{{
		TransactionKey: "T1",
		StatusCode:     models.StatusCancelledByUser,
	}}
	if got := State(responses, amount("100.00")); got != models.OrderStateCancelled {
		t.Errorf("Expected cancelled, got %s", got)
	}
}

func TestState_FailedFallback(t *testing.T) {
	responses := []models.EngineResponse{{
		TransactionKey: "T1",
		StatusCode:     models.StatusFailed,
	}}
	if got := State(responses, amount("100.00")); got != models.OrderStateFailed {
		t.Errorf("Expected failed, got %s", got)
	}
}

func TestState_PendingPaymentDoesNotCountAsPaid(t *testing.T) {
	responses := []models.EngineResponse{{
		TransactionKey: "T1",
		StatusCode:     models.StatusPendingProcessing,
		Amount:         amount("100.00"),
	}}
	if got := State(responses, amount("100.00")); got != models.OrderStateFailed {
		t.Errorf("Expected pending-only history to fall through, got %s", got)
	}
}

func TestState_EndToEndScenario(t *testing.T) {
	total := amount("100.00")
	history := []models.EngineResponse{payment("T1", "50.00")}
	if got := State(history, total); got != models.OrderStatePartiallyPaid {
		t.Errorf("Step 1: expected partially_paid, got %s", got)
	}

	history = append(history, models.EngineResponse{
		TransactionKey:        "T2",
		RelatedTransactionKey: "T1",
		StatusCode:            models.StatusSuccess,
		Amount:                amount("50.00"),
	})
	if got := State(history, total); got != models.OrderStatePaid {
		t.Errorf("Step 2: expected paid, got %s", got)
	}

	history = append(history, refund("T3", "T1", "30.00"))
	if got := State(history, total); got != models.OrderStatePartiallyRefunded {
		t.Errorf("Step 3: expected partially_refunded, got %s", got)
	}

	history = append(history, refund("T4", "T2", "70.00"))
	if got := State(history, total); got != models.OrderStateRefunded {
		t.Errorf("Step 4: expected refunded, got %s", got)
	}
}

func TestPaymentRecords(t *testing.T) {
	responses := []models.EngineResponse{
		payment("T1", "60.00"),
		payment("T2", "40.00"),
		refund("T3", "T1", "25.00"),
		refund("T4", "T1", "10.00"),
	}

	records := PaymentRecords(responses)
	if len(records) != 2 {
		t.Fatalf("Expected 2 payment records, got %d", len(records))
	}

	if !records[0].AmountCredit.Equal(amount("35.00")) {
		t.Errorf("Expected T1 credit 35.00, got %s", records[0].AmountCredit)
	}
	if !records[0].NetAmount().Equal(amount("25.00")) {
		t.Errorf("Expected T1 net 25.00, got %s", records[0].NetAmount())
	}
	if !records[1].NetAmount().Equal(amount("40.00")) {
		t.Errorf("Expected T2 net 40.00, got %s", records[1].NetAmount())
	}
	if !records[0].Refundable() || !records[1].Refundable() {
		t.Errorf("Expected both records refundable")
	}
}

func TestPaymentRecords_DuplicateKeysCollapse(t *testing.T) {
	responses := []models.EngineResponse{
		payment("T1", "60.00"),
		payment("T1", "60.00"),
	}
	if records := PaymentRecords(responses); len(records) != 1 {
		t.Errorf("Expected redelivered payment to collapse into one record, got %d", len(records))
	}
}

func TestPaymentRecords_FullyRefundedNotRefundable(t *testing.T) {
	responses := []models.EngineResponse{
		payment("T1", "60.00"),
		refund("T2", "T1", "60.00"),
	}
	records := PaymentRecords(responses)
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if records[0].Refundable() {
		t.Errorf("Expected fully refunded record to be ineligible")
	}
}

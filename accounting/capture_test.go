package accounting

import (
	"testing"

	"recon-svc/models"

	"github.com/shopspring/decimal"
)

func captureOrder() *models.OrderTransaction {
	return &models.OrderTransaction{
		Amount:                 amount("100.00"),
		ServiceName:            "creditcard",
		CanCapture:             true,
		OriginalTransactionKey: "T1",
	}
}

func TestValidateCapture(t *testing.T) {
	if err := ValidateCapture(captureOrder()); err != nil {
		t.Errorf("Expected valid order to pass, got %v", err)
	}

	order := captureOrder()
	order.Amount = decimal.Zero
	if err := ValidateCapture(order); err != nil {
		t.Errorf("Expected zero-total order to pass for direct paid transition, got %v", err)
	}

	order = captureOrder()
	order.Amount = decimal.RequireFromString("-1")
	if err := ValidateCapture(order); err == nil || err.Code != CodeOrderTotalInvalid {
		t.Errorf("Expected negative-total order to fail with %d, got %v", CodeOrderTotalInvalid, err)
	}

	order = captureOrder()
	order.CanCapture = false
	if err := ValidateCapture(order); err == nil || err.Code != CodeCaptureNotSupported {
		t.Errorf("Expected capture-unsupported failure, got %v", err)
	}

	order = captureOrder()
	order.Captured = true
	if err := ValidateCapture(order); err == nil || err.Code != CodeAlreadyCaptured {
		t.Errorf("Expected already-captured failure, got %v", err)
	}

	order = captureOrder()
	order.OriginalTransactionKey = ""
	if err := ValidateCapture(order); err == nil || err.Code != CodeMissingTransaction {
		t.Errorf("Expected missing-transaction failure, got %v", err)
	}
}

func TestValidateCapture_AuthorizedOverride(t *testing.T) {
	// Out-of-band authorization bypasses the method capability flag.
	order := captureOrder()
	order.CanCapture = false
	order.Authorized = true
	if err := ValidateCapture(order); err != nil {
		t.Errorf("Expected authorized override to pass, got %v", err)
	}
}

func TestCaptureAction(t *testing.T) {
	action, needsReservation := CaptureAction("creditcard")
	if action != ActionCapture || needsReservation {
		t.Errorf("Expected creditcard to use plain capture, got %s/%v", action, needsReservation)
	}

	action, needsReservation = CaptureAction("klarnakp")
	if action != ActionPay || !needsReservation {
		t.Errorf("Expected klarnakp to use pay with reservation, got %s/%v", action, needsReservation)
	}

	// Unregistered methods default to capture.
	action, needsReservation = CaptureAction("somethingnew")
	if action != ActionCapture || needsReservation {
		t.Errorf("Expected default capture action, got %s/%v", action, needsReservation)
	}
}

func TestBuildCaptureRequest(t *testing.T) {
	req, verr := BuildCaptureRequest(captureOrder())
	if verr != nil {
		t.Fatalf("Expected request, got validation error %v", verr)
	}
	if req.Action != ActionCapture {
		t.Errorf("Expected capture action, got %s", req.Action)
	}
	if !req.Amount.Equal(amount("100.00")) {
		t.Errorf("Expected amount 100.00, got %s", req.Amount)
	}
}

func TestBuildCaptureRequest_DeferredInvoiceNeedsReservation(t *testing.T) {
	order := captureOrder()
	order.ServiceName = "klarnakp"

	if _, verr := BuildCaptureRequest(order); verr == nil {
		t.Errorf("Expected missing reservation number to be a validation error")
	}

	order.ReservationNumber = "RES-42"
	req, verr := BuildCaptureRequest(order)
	if verr != nil {
		t.Fatalf("Expected request, got validation error %v", verr)
	}
	if req.Action != ActionPay || req.ReservationNumber != "RES-42" {
		t.Errorf("Expected pay action with reservation, got %s/%s", req.Action, req.ReservationNumber)
	}
}

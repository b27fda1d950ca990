package models

import (
	"errors"
	"fmt"
)

// ErrSignatureInvalid rejects a push whose signature does not match. Nothing
// is appended to the event log for such a notification.
var ErrSignatureInvalid = errors.New("push signature invalid")

// ValidationError is a refused refund/capture precondition. It is returned to
// the caller as {status:false, message, code}, never raised past the API
// boundary.
type ValidationError struct {
	Message string
	Code    int
}

func (e *ValidationError) Error() string {
	return e.Message
}

// GatewayError is a failed or rejected remote transaction request. Rejected
// distinguishes an explicit gateway rejection (e.g. insufficient funds) from
// a hard transport failure so callers can render a different message.
type GatewayError struct {
	Message  string
	Code     int
	Rejected bool
}

func (e *GatewayError) Error() string {
	if e.Rejected {
		return fmt.Sprintf("rejected by gateway (%d): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("gateway call failed (%d): %s", e.Code, e.Message)
}

package tron

import "fmt"

// Reason classifies why a chain transaction failed verification.
type Reason string

const (
	ReasonNotFound        Reason = "not_found"
	ReasonExecutionFailed Reason = "execution_failed"
	ReasonWrongRecipient  Reason = "wrong_recipient"
	ReasonAmountMismatch  Reason = "amount_mismatch"
	ReasonExpired         Reason = "expired"
	ReasonMalformed       Reason = "malformed"
	ReasonUnavailable     Reason = "unavailable"
)

// VerifyError is the typed failure the oracle hands back to payment flows.
// Only node unavailability is worth retrying; every other reason is a final
// verdict about the transaction itself.
type VerifyError struct {
	Reason Reason
	Detail string
}

func (e *VerifyError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("chain verification failed: %s", e.Reason)
	}
	return fmt.Sprintf("chain verification failed: %s: %s", e.Reason, e.Detail)
}

// Retriable reports whether the caller may retry the same transaction later.
func (e *VerifyError) Retriable() bool {
	return e.Reason == ReasonUnavailable
}

func newVerifyError(reason Reason, format string, args ...any) *VerifyError {
	return &VerifyError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

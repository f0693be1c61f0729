package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrProviderFailure    = errors.New("provider failure")
	ErrDuplicateOperation = errors.New("duplicate operation")
)

// BalanceErrorType classifies balance failures for the API surface.
type BalanceErrorType string

const (
	BalanceErrorInsufficient    BalanceErrorType = "insufficient_balance"
	BalanceErrorPaymentRequired BalanceErrorType = "payment_required"
	BalanceErrorQuotaExceeded   BalanceErrorType = "quota_exceeded"
)

// InsufficientBalanceError is the one error category surfaced end-to-end with
// a formatted, user-facing message.
type InsufficientBalanceError struct {
	Type             BalanceErrorType
	Message          string
	Cost             int
	AvailableCredits int
}

func (e *InsufficientBalanceError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("insufficient balance: need %d credits, have %d", e.Cost, e.AvailableCredits)
}

// AsInsufficientBalance unwraps err into an InsufficientBalanceError if it is one.
func AsInsufficientBalance(err error) (*InsufficientBalanceError, bool) {
	var be *InsufficientBalanceError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount      = errors.New("ledger: amount must be positive")
	ErrNothingToCharge    = errors.New("ledger: nothing to charge")
	ErrInsufficientCredit = errors.New("ledger: insufficient credit")
	ErrInsufficientFunds  = errors.New("ledger: register balance too low")
	ErrNoChange           = errors.New("ledger: new balance equals current balance")
	ErrReasonRequired     = errors.New("ledger: a reason is required")
	ErrNotFound           = errors.New("ledger: not found")
	ErrNotCancellable     = errors.New("ledger: transaction cannot be cancelled")
	ErrRegisterProtected  = errors.New("ledger: the cash register account cannot be modified this way")
	ErrDuplicateCode      = errors.New("ledger: account code already in use")
	ErrCodeRequired       = errors.New("ledger: account code is required")

	// ErrIntegrityMismatch is logged and healed, never returned from Lookup.
	ErrIntegrityMismatch = errors.New("ledger: integrity fingerprint mismatch")
)

// InsufficientCreditError carries the figures a caller needs to explain a
// refused debit.
type InsufficientCreditError struct {
	Balance        decimal.Decimal
	EffectiveLimit decimal.Decimal
}

func (e *InsufficientCreditError) Error() string {
	return fmt.Sprintf("%s: balance %s, limit %s",
		ErrInsufficientCredit, e.Balance.StringFixed(2), e.EffectiveLimit.StringFixed(2))
}

func (e *InsufficientCreditError) Unwrap() error { return ErrInsufficientCredit }

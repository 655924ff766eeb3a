package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidRequest is returned when request data is invalid or incomplete
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidAmount is returned for negative, non-finite or otherwise unusable amounts
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidGame is returned when an outcome names an unknown game
	ErrInvalidGame = errors.New("invalid game")

	// ErrInsufficientFunds is returned when a bet exceeds the current balance
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccountNotFound is returned when an account cannot be found
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists is returned when registering a username that is taken
	ErrAccountExists = errors.New("account already exists")

	// ErrCouponNotFound is returned when a coupon cannot be found
	ErrCouponNotFound = errors.New("coupon not found")

	// ErrCouponInactive is returned when a coupon has been deactivated
	ErrCouponInactive = errors.New("coupon is no longer active")

	// ErrCouponExpired is returned when a coupon's expiry date has passed
	ErrCouponExpired = errors.New("coupon has expired")

	// ErrCouponExhausted is returned when a coupon reached its usage limit
	ErrCouponExhausted = errors.New("coupon usage limit reached")

	// ErrCouponAlreadyUsed is returned when an account redeems the same coupon twice
	ErrCouponAlreadyUsed = errors.New("coupon already used")

	// ErrCouponExists is returned when attempting to create a coupon that already exists
	ErrCouponExists = errors.New("coupon already exists")

	// ErrConcurrencyConflict is returned when a write lost a race and retries were exhausted
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrStorageUnavailable wraps infrastructure failures and timeouts
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// InsufficientFundsError reports the balance a bet was rejected against.
// It matches ErrInsufficientFunds with errors.Is.
type InsufficientFundsError struct {
	Balance decimal.Decimal
	Bet     decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance %s, bet %s", e.Balance.StringFixed(2), e.Bet.StringFixed(2))
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// IsRetryable reports whether the caller may retry the operation unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict) || errors.Is(err, ErrStorageUnavailable)
}

// knownErrors already carry their meaning and pass through classify unchanged.
var knownErrors = []error{
	ErrInvalidRequest,
	ErrInvalidAmount,
	ErrInvalidGame,
	ErrInsufficientFunds,
	ErrAccountNotFound,
	ErrAccountExists,
	ErrCouponNotFound,
	ErrCouponInactive,
	ErrCouponExpired,
	ErrCouponExhausted,
	ErrCouponAlreadyUsed,
	ErrCouponExists,
	ErrConcurrencyConflict,
	ErrStorageUnavailable,
}

// classify passes known errors through and wraps everything else as
// ErrStorageUnavailable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range knownErrors {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}

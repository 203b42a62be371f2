/*
errors.go - Centralized error types for the point engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The HTTP layer maps these to status codes; callers use errors.Is/As.

ERROR CATEGORIES:
  1. Validation errors - InvalidAmount, CeilingExceeded, InsufficientBalance
  2. Contention errors - Busy (try-lock policy only)
  3. Lookup errors - NotFound

All validation and contention errors are terminal for the request. The
engine never retries; the caller decides.

SEE ALSO:
  - engine.go: Produces these errors
  - api/handlers.go: Maps them to HTTP status codes
*/
package point

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a user has no account and the caller
	// requires one.
	ErrNotFound = errors.New("user not found")

	// ErrInvalidAmount is returned for a negative amount.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrCeilingExceeded is returned when a charge would push the balance
	// above the configured maximum.
	ErrCeilingExceeded = errors.New("balance ceiling exceeded")

	// ErrInsufficientBalance is returned when a use exceeds the balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrBusy is returned by the try-lock policy when another mutation for
	// the same user is in flight.
	ErrBusy = errors.New("request already in progress, please retry later")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidAmountError reports a rejected amount.
type InvalidAmountError struct {
	Operation TxType
	Amount    int64
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount: %s amount must not be negative (got %d)",
		e.Operation, e.Amount)
}

func (e *InvalidAmountError) Unwrap() error {
	return ErrInvalidAmount
}

// CeilingExceededError provides details about a charge over the maximum.
type CeilingExceededError struct {
	UserID  UserID
	Balance int64
	Amount  int64
	Ceiling int64
}

func (e *CeilingExceededError) Error() string {
	return fmt.Sprintf("balance ceiling exceeded: balance %d + charge %d > max %d",
		e.Balance, e.Amount, e.Ceiling)
}

func (e *CeilingExceededError) Unwrap() error {
	return ErrCeilingExceeded
}

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	UserID    UserID
	Available int64
	Requested int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %d, requested %d, shortfall %d",
		e.Available, e.Requested, e.Shortfall())
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

func (e *InsufficientBalanceError) Shortfall() int64 {
	return e.Requested - e.Available
}

// BusyError names the user whose lock was held.
type BusyError struct {
	UserID UserID
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("user %d: %s", e.UserID, ErrBusy.Error())
}

func (e *BusyError) Unwrap() error {
	return ErrBusy
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the same request might succeed later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBusy)
}

// IsClientError returns true if the error is due to the request itself.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrCeilingExceeded) ||
		errors.Is(err, ErrInsufficientBalance)
}

// IsNotFound returns true if the error indicates a missing account.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

package domain

import "errors"

// Error is a domain failure with a stable code that the transport layer maps onto a status.
type Error struct {
	Code string
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Business reports whether the error rejects a request rather than signalling a fault.
func (e *Error) Business() bool { return e != ErrStoreUnavailable }

func newError(code, msg string) *Error { return &Error{Code: code, msg: msg} }

var (
	ErrInvalidAmount        = newError("invalid_amount", "invalid amount")
	ErrInsufficientBalance  = newError("insufficient_balance", "insufficient balance")
	ErrBelowMinimum         = newError("below_minimum", "amount below minimum withdrawal")
	ErrAccountNotFound      = newError("account_not_found", "account not found")
	ErrAccountExists        = newError("account_exists", "account already exists")
	ErrTransactionNotFound  = newError("transaction_not_found", "transaction not found")
	ErrAlreadyProcessed     = newError("already_processed", "already processed")
	ErrUnauthorized         = newError("unauthorized", "unauthorized")
	ErrAccountBlocked       = newError("account_blocked", "account is blocked")
	ErrNotDriver            = newError("not_driver", "account is not a driver")
	ErrInvalidRequest       = newError("invalid_request", "invalid request")
	ErrNotificationNotFound = newError("notification_not_found", "notification not found")

	// ErrStoreUnavailable is the only transient error; callers may retry it with backoff.
	ErrStoreUnavailable = newError("store_unavailable", "record store unavailable")
)

// IsTransient reports whether err may succeed when retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// CodeOf returns the domain code carried by err, or "internal".
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return "internal"
}

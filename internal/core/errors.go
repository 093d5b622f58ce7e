package core

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every layer. Callers classify with errors.Is.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrNotFound            = errors.New("not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAuthFailure         = errors.New("invalid username or password")
	ErrUsernameTaken       = errors.New("username already taken")
	ErrCurrencyUnavailable = errors.New("currency conversion unavailable")
	ErrStorage             = errors.New("storage failure")

	ErrEmptyCategory = fmt.Errorf("%w: category is required", ErrInvalidInput)
)

// InvalidInput wraps ErrInvalidInput with a human readable reason.
func InvalidInput(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, reason)
}

// NotFound wraps ErrNotFound naming the missing entity.
func NotFound(entity string) error {
	return fmt.Errorf("%s %w", entity, ErrNotFound)
}

// StorageError marks err as a persistence failure while keeping the driver error inspectable.
func StorageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// ErrorCode returns a stable machine-readable code for err.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrAuthFailure):
		return "auth_failure"
	case errors.Is(err, ErrUsernameTaken):
		return "username_taken"
	case errors.Is(err, ErrCurrencyUnavailable):
		return "currency_unavailable"
	case errors.Is(err, ErrStorage):
		return "storage_failure"
	default:
		return "internal_error"
	}
}

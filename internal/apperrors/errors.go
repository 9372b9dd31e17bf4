package apperrors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrConflict indicates a concurrent modification or an operation not allowed in the current state.
var ErrConflict = errors.New("conflict")

// ErrInternal is returned when an unexpected failure is hidden from the caller.
var ErrInternal = errors.New("internal error")

// Ledger and reconciliation taxonomy.
var (
	ErrInvalidEntry          = errors.New("invalid ledger entry")
	ErrUnbalancedTransaction = errors.New("transaction debits and credits do not balance")
	ErrUnmatchedItemsRemain  = errors.New("unmatched reconciliation items remain")
	ErrParse                 = errors.New("statement could not be parsed")
	ErrAlreadyReversed       = fmt.Errorf("%w: transaction already reversed", ErrConflict)
	ErrSessionClosed         = fmt.Errorf("%w: reconciliation session is closed", ErrConflict)

	ErrAccountNotFound     = fmt.Errorf("account %w", ErrNotFound)
	ErrSessionNotFound     = fmt.Errorf("reconciliation session %w", ErrNotFound)
	ErrItemNotFound        = fmt.Errorf("reconciliation item %w", ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("ledger transaction %w", ErrNotFound)
)

// AppError wraps a lower level failure with a status-like code and a readable message.
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates an AppError.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// NewNotFoundError creates an AppError that matches ErrNotFound.
func NewNotFoundError(message string) *AppError {
	return &AppError{Code: 404, Message: message, Err: ErrNotFound}
}

// UnbalancedTransactionError reports the totals of a rejected transaction.
type UnbalancedTransactionError struct {
	Debits     decimal.Decimal
	Credits    decimal.Decimal
	Difference decimal.Decimal
}

func (e *UnbalancedTransactionError) Error() string {
	return fmt.Sprintf("%s: debits %s, credits %s, difference %s",
		ErrUnbalancedTransaction.Error(), e.Debits.StringFixed(2), e.Credits.StringFixed(2), e.Difference.StringFixed(2))
}

func (e *UnbalancedTransactionError) Unwrap() error {
	return ErrUnbalancedTransaction
}

// UnmatchedItemsRemainError reports how many items still block completion.
type UnmatchedItemsRemainError struct {
	Count int
}

func (e *UnmatchedItemsRemainError) Error() string {
	return fmt.Sprintf("%s: %d item(s)", ErrUnmatchedItemsRemain.Error(), e.Count)
}

func (e *UnmatchedItemsRemainError) Unwrap() error {
	return ErrUnmatchedItemsRemain
}

/*
errors.go - Centralized error types for the ledger workflows

PURPOSE:
  All error kinds a workflow can surface, in one place. Callers branch with
  errors.Is on the sentinels; structured errors carry the details.

ERROR CATEGORIES:
  1. Validation - rejected before any mutation (InvalidInput, InvalidDuration, InvalidAction)
  2. Resource state - transition impossible (ProductNotFound, NotFound, AlreadyProcessed, NotActive)
  3. Capacity - business rule violated (InsufficientStock)
  4. Store - the whole transaction rolled back (TransactionFailed, ConcurrentModification)

USAGE:
    if errors.Is(err, ledger.ErrAlreadyProcessed) {
        // someone else decided first
    }

SEE ALSO:
  - api/handlers.go: maps Code(err) to HTTP status
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidDuration = errors.New("invalid loan duration")
	ErrInvalidAction   = errors.New("invalid action")

	ErrProductNotFound = errors.New("product not found")

	// ErrNotFound is the parent of every missing-record error.
	ErrNotFound     = errors.New("not found")
	ErrSaleNotFound = fmt.Errorf("sale %w", ErrNotFound)
	ErrLoanNotFound = fmt.Errorf("loan %w", ErrNotFound)

	ErrAlreadyProcessed = errors.New("already processed")
	ErrNotActive        = errors.New("loan not active")

	ErrInsufficientStock = errors.New("insufficient stock")

	ErrUnknownFundType = errors.New("unknown fund type")

	// ErrProductInUse is returned when deleting a product that has sales.
	ErrProductInUse = errors.New("product has existing sales")

	// ErrConcurrentModification is returned when a compare-and-update lost a race.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrTransactionFailed wraps any store failure; nothing was committed.
	ErrTransactionFailed = errors.New("transaction failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
	kind   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s %s", e.kind, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.kind }

func invalidInput(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason, kind: ErrInvalidInput}
}

// InsufficientStockError reports a failed reservation.
type InsufficientStockError struct {
	ProductID ProductID
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// AlreadyProcessedError reports a decision on a record that is no longer pending.
type AlreadyProcessedError struct {
	Record string // "sale" or "loan"
	ID     string
	Status string
}

func (e *AlreadyProcessedError) Error() string {
	return fmt.Sprintf("%s %s already processed (status %s)", e.Record, e.ID, e.Status)
}

func (e *AlreadyProcessedError) Unwrap() error { return ErrAlreadyProcessed }

// NotActiveError reports a payment against a loan that is not active.
type NotActiveError struct {
	LoanID LoanID
	Status LoanStatus
}

func (e *NotActiveError) Error() string {
	return fmt.Sprintf("loan %s is %s, not active", e.LoanID, e.Status)
}

func (e *NotActiveError) Unwrap() error { return ErrNotActive }

// StoreError wraps a storage failure. It matches both ErrTransactionFailed
// and the underlying driver error.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error { return []error{ErrTransactionFailed, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

var domainErrors = []error{
	ErrInvalidInput, ErrInvalidDuration, ErrInvalidAction,
	ErrProductNotFound, ErrNotFound, ErrAlreadyProcessed, ErrNotActive,
	ErrInsufficientStock, ErrUnknownFundType, ErrProductInUse,
	ErrConcurrentModification, ErrTransactionFailed,
}

func isDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// storeFailure wraps err as a StoreError unless it already carries a domain kind.
func storeFailure(op string, err error) error {
	if err == nil || isDomainError(err) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// IsRetryable returns true if the whole operation may succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) || errors.Is(err, ErrTransactionFailed)
}

// IsClientError returns true if the error is due to invalid input or record state.
func IsClientError(err error) bool {
	switch Code(err) {
	case "", "TRANSACTION_FAILED", "CONCURRENT_MODIFICATION":
		return false
	}
	return true
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrProductNotFound)
}

// Code returns a stable machine-readable code for err, or "" if unknown.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidDuration):
		return "INVALID_DURATION"
	case errors.Is(err, ErrInvalidAction):
		return "INVALID_ACTION"
	case errors.Is(err, ErrInvalidInput):
		return "INVALID_INPUT"
	case errors.Is(err, ErrProductNotFound):
		return "PRODUCT_NOT_FOUND"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrAlreadyProcessed):
		return "ALREADY_PROCESSED"
	case errors.Is(err, ErrNotActive):
		return "NOT_ACTIVE"
	case errors.Is(err, ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, ErrUnknownFundType):
		return "UNKNOWN_FUND_TYPE"
	case errors.Is(err, ErrProductInUse):
		return "PRODUCT_IN_USE"
	case errors.Is(err, ErrConcurrentModification):
		return "CONCURRENT_MODIFICATION"
	case errors.Is(err, ErrTransactionFailed):
		return "TRANSACTION_FAILED"
	}
	return ""
}

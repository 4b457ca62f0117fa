/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All engine error types in one place for consistency and discoverability.
  Callers classify errors with the helper predicates instead of matching
  strings.

ERROR CATEGORIES:
  1. Validation errors  - bad quantity/rate/commission, rejected before
     any computation runs
  2. Not-found errors   - unknown profile/transaction/settlement id
  3. Transition errors  - settlement state machine misuse
  4. Concurrency errors - lock/CAS contention on settlement transitions
  5. Persistence errors - store failures, wrapped by implementations

USAGE:
  if errors.Is(err, ledger.ErrAlreadySettled) { ... }
  if ledger.IsRetryable(err) { retry() }

SEE ALSO:
  - calculator.go, settlement.go: Produce these errors
  - api/handlers.go: Maps them to HTTP status codes
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
	// ErrInvalidQuantity is returned when a point quantity is not a
	// positive integer.
	ErrInvalidQuantity = errors.New("invalid quantity: points must be positive")

	// ErrInvalidRate is returned when a rate-per-point is not a positive
	// decimal with at most two fractional digits.
	ErrInvalidRate = errors.New("invalid rate: must be positive with at most 2 decimal places")

	// ErrInvalidCommission is returned when a commission percentage falls
	// outside [0, 100].
	ErrInvalidCommission = errors.New("invalid commission: must be in [0, 100]")

	// ErrInvalidPeriod is returned when a period key cannot be parsed or
	// a range ends before it starts.
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrProfileNotFound is returned when a profile id does not resolve.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrTransactionNotFound is returned when a transaction id does not resolve.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrSettlementNotFound is returned when a settlement id does not resolve.
	ErrSettlementNotFound = errors.New("settlement not found")

	// ErrAlreadySettled is returned when a transition or create targets a
	// (profile, period) whose settlement is already sent.
	ErrAlreadySettled = errors.New("settlement already sent")

	// ErrInvalidTransition is returned on illegal settlement state changes.
	ErrInvalidTransition = errors.New("invalid settlement transition")

	// ErrDuplicateSettlement is returned when a non-terminal settlement
	// already exists for the (profile, period).
	ErrDuplicateSettlement = errors.New("active settlement already exists for period")

	// ErrConcurrencyConflict is returned when a per-profile lock cannot be
	// acquired in time or a CAS transition loses its race. Retryable.
	ErrConcurrencyConflict = errors.New("concurrent recomputation in progress")

	// ErrAuditWriteFailed marks a mutation aborted because its audit entry
	// could not be persisted. The financial write is rolled back with it.
	ErrAuditWriteFailed = errors.New("audit write failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FieldError reports which input field failed validation, so callers can
// correct the input.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// TransitionError describes an illegal settlement state change.
type TransitionError struct {
	SettlementID SettlementID
	From         SettlementStatus
	To           SettlementStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("settlement %s: cannot transition %s -> %s", e.SettlementID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	if e.From == SettlementSent {
		return ErrAlreadySettled
	}
	return ErrInvalidTransition
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidRate) ||
		errors.Is(err, ErrInvalidCommission) ||
		errors.Is(err, ErrInvalidPeriod) ||
		isFieldError(err)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProfileNotFound) ||
		errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrSettlementNotFound)
}

// IsConflict returns true for state-machine and uniqueness violations.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadySettled) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrDuplicateSettlement) ||
		errors.Is(err, ErrConcurrencyConflict)
}

// IsRetryable returns true if the operation might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

func isFieldError(err error) bool {
	var fe *FieldError
	return errors.As(err, &fe)
}

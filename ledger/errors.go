/*
errors.go - Centralized error types for the piecework engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Validation errors - Business rule violations (no partial mutation)
  2. Not-found errors  - Missing workers, lots, stages, records
  3. Store errors      - Persistence-level failures

USAGE:
  Callers classify with errors.Is():

    if errors.Is(err, ledger.ErrNothingToSettle) {
        // 400 to the client, nothing was written
    }

SEE ALSO:
  - settlement/engine.go: Produces the settlement validation errors
  - production/: Produces the issuance validation errors
  - api/: Maps these classes onto HTTP status codes
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
	// ErrNothingToSettle is returned when a settlement is attempted with
	// every entered quantity at zero. The settlement is rejected entirely.
	ErrNothingToSettle = errors.New("nothing to settle: no nonzero quantity entered")

	// ErrQtyExceedsIssued is returned when an entered quantity is greater
	// than the issued quantity of its job. Rejected at input time.
	ErrQtyExceedsIssued = errors.New("quantity exceeds issued quantity")

	// ErrInvalidQuantity is returned for zero or negative issued quantities.
	ErrInvalidQuantity = errors.New("quantity must be positive")

	// ErrAlreadySettled is returned when a closed JobWork is handed to a
	// settlement again. Closed records are immutable.
	ErrAlreadySettled = errors.New("job work already settled")

	// ErrWorkerInactive is returned when issuing work to a deactivated worker.
	ErrWorkerInactive = errors.New("worker is not active")

	// ErrLotNotRunning is returned when issuing work against a completed lot.
	ErrLotNotRunning = errors.New("lot is not running")

	// ErrStageNotInLot is returned when the requested stage has no rate
	// snapshot in the lot.
	ErrStageNotInLot = errors.New("stage not present in lot")

	// ErrInvalidAmount is returned for zero or negative advance amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrMissingField is returned when a required field is empty.
	ErrMissingField = errors.New("required field missing")

	// ErrWorkerNotFound / ErrLotNotFound / ErrStageNotFound /
	// ErrJobWorkNotFound / ErrPaymentNotFound mark missing records.
	ErrWorkerNotFound  = errors.New("worker not found")
	ErrLotNotFound     = errors.New("lot not found")
	ErrStageNotFound   = errors.New("stage not found")
	ErrJobWorkNotFound = errors.New("job work not found")
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrDuplicateID is returned when inserting a record whose id exists.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrStoreRequired is returned when an operation needs a transactional
	// store but was given a plain one.
	ErrStoreRequired = errors.New("operation requires transactional store")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// QtyExceedsIssuedError reports which job and quantities were involved.
type QtyExceedsIssuedError struct {
	JobWorkID JobWorkID
	Issued    int64
	Entered   int64
}

func (e *QtyExceedsIssuedError) Error() string {
	return fmt.Sprintf("quantity exceeds issued quantity: job %s issued %d, entered %d",
		e.JobWorkID, e.Issued, e.Entered)
}

func (e *QtyExceedsIssuedError) Unwrap() error { return ErrQtyExceedsIssued }

// BalanceMismatchError reports a divergence between a worker's stored
// advance balance and the balance derived from the transaction log.
type BalanceMismatchError struct {
	WorkerID WorkerID
	Stored   Money
	Derived  Money
}

func (e *BalanceMismatchError) Error() string {
	return fmt.Sprintf("advance balance mismatch for worker %s: stored %s, derived %s",
		e.WorkerID, e.Stored.Display(), e.Derived.Display())
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true if the error is a rejected-input condition for
// which no mutation occurred.
func IsValidation(err error) bool {
	return errors.Is(err, ErrNothingToSettle) ||
		errors.Is(err, ErrQtyExceedsIssued) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrAlreadySettled) ||
		errors.Is(err, ErrWorkerInactive) ||
		errors.Is(err, ErrLotNotRunning) ||
		errors.Is(err, ErrStageNotInLot) ||
		errors.Is(err, ErrDuplicateID)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkerNotFound) ||
		errors.Is(err, ErrLotNotFound) ||
		errors.Is(err, ErrStageNotFound) ||
		errors.Is(err, ErrJobWorkNotFound) ||
		errors.Is(err, ErrPaymentNotFound)
}

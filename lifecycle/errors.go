/*
errors.go - Centralized error types for the report lifecycle

PURPOSE:
  All lifecycle error types in one place. Callers classify with the
  helpers at the bottom (IsClientError, IsConflict, IsNotFound) rather
  than matching individual sentinels.

ERROR CATEGORIES:
  1. Validation errors   - future/weekend date, hours out of range,
                           duplicate report for a date
  2. Lifecycle errors    - state-machine violations (locked, exhausted,
                           window expired, already finalized)
  3. Concurrency errors  - lost optimistic-lock race, review-number race

  Authorization errors (Forbidden) live in the identity package with the
  capability gate that raises them.

All lifecycle errors are recoverable at the caller boundary - they surface
as user-facing messages, never crash the process. Store connectivity
failures propagate as plain wrapped errors and match none of the helpers.

SEE ALSO:
  - policy.go, engine.go: raise these errors
  - identity/identity.go: ErrForbidden
*/
package lifecycle

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrReportLocked is returned when editing an APPROVED report.
	// APPROVED is terminal.
	ErrReportLocked = errors.New("report is approved and can no longer be edited")

	// ErrAttemptsExhausted is returned when a rejected report has already
	// been resubmitted MaxResubmissions times.
	ErrAttemptsExhausted = errors.New("resubmission attempts exhausted")

	// ErrEditWindowExpired is returned when the 7-day window after the
	// latest review has lapsed.
	ErrEditWindowExpired = errors.New("edit window expired")

	// ErrAlreadyFinalized is returned when reviewing a non-PENDING report.
	// Review decisions are never edited or retracted.
	ErrAlreadyFinalized = errors.New("report already reviewed")

	// ErrReviewMissing is returned for the inconsistent state of a
	// REJECTED report with no review on record. Such a report is not
	// editable.
	ErrReviewMissing = errors.New("rejected report has no review on record")

	// ErrConcurrentModification is returned when an optimistic version
	// check fails. Callers retry once by re-fetching state.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrDuplicateReport is returned by the store's unique index on
	// (employee, report date). This closes the race between the
	// existence check and the insert.
	ErrDuplicateReport = errors.New("report already exists for this date")

	// ErrDuplicateReviewNumber is returned when a racing review claimed
	// the same review number first.
	ErrDuplicateReviewNumber = errors.New("duplicate review number")

	// ErrNotFound is returned for an unknown report id.
	ErrNotFound = errors.New("report not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports invalid input: a future or weekend report date,
// hours outside [0, 24], or a missing required field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DuplicateReportError wraps ErrDuplicateReport with the colliding key.
type DuplicateReportError struct {
	EmployeeID UserID
	ReportDate Date
}

func (e *DuplicateReportError) Error() string {
	return fmt.Sprintf("a report for %s already exists for %s; edit the existing report instead",
		e.ReportDate, e.EmployeeID)
}

func (e *DuplicateReportError) Unwrap() error { return ErrDuplicateReport }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is due to invalid input or a
// lifecycle-state violation, i.e. the caller's request was wrong, not the
// system.
func IsClientError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrDuplicateReport) ||
		errors.Is(err, ErrReportLocked) ||
		errors.Is(err, ErrAttemptsExhausted) ||
		errors.Is(err, ErrEditWindowExpired) ||
		errors.Is(err, ErrAlreadyFinalized) ||
		errors.Is(err, ErrReviewMissing)
}

// IsConflict reports whether the error is a lost race that might succeed
// on a single retry against fresh state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrDuplicateReviewNumber)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

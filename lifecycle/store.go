/*
store.go - Persistence contract for reports and reviews

PURPOSE:
  Defines the interface between the lifecycle engine and the database.
  The engine is stateless; everything durable lives behind Store.

CONTRACT:
  - InsertReport fails with ErrDuplicateReport when a report for the same
    (employee, date) exists. The implementation MUST back this with a
    unique index, not a check-then-insert, to close the race with
    CanCreate's existence check.
  - UpdateReport is an optimistic write: it succeeds only if the stored
    version still equals expectedVersion, otherwise
    ErrConcurrentModification. A racing submit or review never silently
    overwrites the other's decision.
  - Reviews are APPEND-ONLY. There is no update or delete for reviews,
    ever. AppendReview fails with ErrDuplicateReviewNumber when a racing
    reviewer claimed the number first (unique index on
    (report_id, review_number)).

ATOMICITY:
  Submit and Review each execute inside a single WithTx transaction that
  re-reads the report, re-validates the precondition against the fresh
  state, and writes. Either everything in fn commits or nothing does.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite
  - lifecycle/store: in-memory, for tests
*/
package lifecycle

import "context"

// Store handles persistence of reports and their review ledger.
type Store interface {
	// GetReport returns the report with the given id, or nil if none.
	GetReport(ctx context.Context, id ReportID) (*Report, error)

	// GetReportByDate returns the employee's report for the date, or nil.
	GetReportByDate(ctx context.Context, employeeID UserID, date Date) (*Report, error)

	// InsertReport persists a new report.
	// Fails with ErrDuplicateReport (via unique index) on a duplicate
	// (employee, date).
	InsertReport(ctx context.Context, r *Report) error

	// UpdateReport persists r only if the stored version equals
	// expectedVersion; otherwise ErrConcurrentModification.
	UpdateReport(ctx context.Context, r *Report, expectedVersion int) error

	// AppendReview appends to the review ledger.
	// Fails with ErrDuplicateReviewNumber if the number is taken.
	AppendReview(ctx context.Context, rev *Review) error

	// ListReviews returns all reviews for a report ordered by ReviewNumber.
	ListReviews(ctx context.Context, reportID ReportID) ([]Review, error)

	// LatestReview returns the highest-numbered review, or nil if none.
	LatestReview(ctx context.Context, reportID ReportID) (*Review, error)
}

// TxStore wraps Store with transaction support.
// WithTx executes fn atomically: if fn returns an error the transaction
// rolls back, otherwise it commits.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}

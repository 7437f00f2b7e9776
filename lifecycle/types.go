/*
Package lifecycle is the core engine for end-of-day (EOD) work reports.

PURPOSE:
  This package contains the state machine and policy functions that govern
  when a report may be created, edited, resubmitted after rejection, and
  how review history accumulates across review cycles. It holds no durable
  state of its own - it is a pure policy layer over a Store.

KEY CONCEPTS IN THIS FILE (types.go):
  - Report: one employee's report for one calendar day
  - Review: a manager/admin decision, permanently recorded
  - ReportPayload: the free-form content fields (only hours are validated)
  - Date: calendar day without a time component (date.go)

STATE MACHINE (per report):

  states: PENDING, APPROVED (terminal), REJECTED
  initial: PENDING (on creation)

    PENDING  --review(APPROVED)--> APPROVED
    PENDING  --review(REJECTED)--> REJECTED
    REJECTED --submit() [editable]--> PENDING   (ResubmissionCount += 1)

  A REJECTED report with ResubmissionCount == 3, or whose 7-day edit
  window has lapsed, is permanently rejected: status stays REJECTED and
  no transition remains.

DESIGN PRINCIPLES:
  1. Reviews are append-only; numbering is gapless 1..N per report
  2. Policy functions are pure: report + time in, decision out
  3. Precision: hours worked is decimal.Decimal, never float
  4. Concurrency is the store's job: optimistic versions, unique indexes

SEE ALSO:
  - policy.go: CanCreate / EditableCheck / RemainingResubmissions
  - engine.go: Submit and Review orchestration
  - store.go: persistence contract
*/
package lifecycle

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ReportID string
type ReviewID string
type UserID string

func NewReportID() ReportID { return ReportID("rep-" + uuid.NewString()) }
func NewReviewID() ReviewID { return ReviewID("rev-" + uuid.NewString()) }

// =============================================================================
// REPORT
// =============================================================================

type ReportStatus string

const (
	StatusPending  ReportStatus = "PENDING"
	StatusApproved ReportStatus = "APPROVED"
	StatusRejected ReportStatus = "REJECTED"
)

// ReportPayload holds the content fields. Free-form except HoursWorked,
// which must lie in [0, 24].
type ReportPayload struct {
	ProjectName    string
	TasksCompleted string
	HoursWorked    decimal.Decimal
	BlockersIssues string
	NextDayPlan    string
}

// Report is one employee's EOD report for a single calendar date.
// At most one report exists per (EmployeeID, ReportDate) for the lifetime
// of the system; the store enforces this with a unique index.
type Report struct {
	ID         ReportID
	EmployeeID UserID
	ReportDate Date

	ReportPayload

	Status ReportStatus

	// ResubmissionCount increments exactly once per resubmission of a
	// rejected report, never on the original submission. Capped at
	// MaxResubmissions.
	ResubmissionCount int

	// Version backs optimistic locking in the store. Incremented on
	// every write.
	Version int

	SubmittedAt time.Time // set on first creation, never overwritten
	UpdatedAt   time.Time
}

func (r *Report) IsPending() bool  { return r.Status == StatusPending }
func (r *Report) IsApproved() bool { return r.Status == StatusApproved }
func (r *Report) IsRejected() bool { return r.Status == StatusRejected }

// =============================================================================
// REVIEW
// =============================================================================

type ReviewDecision string

const (
	DecisionApproved ReviewDecision = "APPROVED"
	DecisionRejected ReviewDecision = "REJECTED"
)

func (d ReviewDecision) Valid() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// Review is a single recorded decision on a report. Reviews are never
// edited or retracted; the set of reviews for a report grows only through
// the resubmission cycle.
type Review struct {
	ID         ReviewID
	ReportID   ReportID
	ReviewerID UserID

	// ReviewNumber is a 1-based, gapless, strictly increasing sequence
	// per report, assigned by the engine - never supplied by callers.
	ReviewNumber int

	Decision ReviewDecision
	Comments string

	ReviewedAt time.Time
}

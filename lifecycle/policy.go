/*
policy.go - Pure policy functions for the report lifecycle

PURPOSE:
  Every rule about when a report may be created or edited lives here as a
  pure function of report state and time. The engine calls these inside
  store transactions; the API calls them again to project can_edit and
  remaining_resubmissions for display. Neither side computes the rules
  itself.

THE RULES:
  Create:  weekday only, not in the future, at most one per
           (employee, date) - duplicates route to the edit path.
  Edit:    PENDING  -> always editable
           APPROVED -> never (terminal)
           REJECTED -> editable iff fewer than 3 resubmissions AND the
                       latest review is within the last 7 days
  Window:  measured from the LATEST review's timestamp, so each rejection
           opens a fresh 7-day window.

SEE ALSO:
  - engine.go: applies these checks transactionally
  - errors.go: the errors raised here
*/
package lifecycle

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// MaxResubmissions bounds how many times a rejected report may be
	// resubmitted. Inclusive: a report at the cap is permanently rejected.
	MaxResubmissions = 3

	// EditWindow is how long after the latest review a rejected report
	// remains resubmittable.
	EditWindow = 7 * 24 * time.Hour
)

var (
	minHours = decimal.Zero
	maxHours = decimal.NewFromInt(24)
)

// =============================================================================
// CREATION POLICY
// =============================================================================

// CanCreate decides whether a new report may be created for reportDate.
// alreadyExists is the result of the store's existence check; the unique
// index re-verifies it at insert time.
func CanCreate(alreadyExists bool, reportDate Date, now time.Time) error {
	if reportDate.After(DateOf(now)) {
		return &ValidationError{Field: "report_date", Reason: "cannot submit reports for future dates"}
	}
	if reportDate.IsWeekend() {
		return &ValidationError{Field: "report_date", Reason: "reports can only be submitted for weekdays (Monday to Friday)"}
	}
	if alreadyExists {
		return &ValidationError{Field: "report_date", Reason: "a report for this date already exists; edit it instead"}
	}
	return nil
}

// =============================================================================
// EDIT POLICY
// =============================================================================

// EditableCheck decides whether the report may be edited at `now`,
// returning the specific lifecycle error when it may not. latest is the
// most recent review for the report, nil if none exists.
func EditableCheck(r *Report, latest *Review, now time.Time) error {
	switch r.Status {
	case StatusPending:
		return nil
	case StatusApproved:
		return ErrReportLocked
	case StatusRejected:
		if r.ResubmissionCount >= MaxResubmissions {
			return ErrAttemptsExhausted
		}
		if latest == nil {
			return ErrReviewMissing
		}
		if now.Sub(latest.ReviewedAt) > EditWindow {
			return ErrEditWindowExpired
		}
		return nil
	default:
		return &ValidationError{Field: "status", Reason: "unknown report status " + string(r.Status)}
	}
}

// CanEdit is the boolean projection of EditableCheck, used to gate edit
// requests and to filter "editable" lists.
func CanEdit(r *Report, latest *Review, now time.Time) bool {
	return EditableCheck(r, latest, now) == nil
}

// RemainingResubmissions returns how many resubmission attempts remain.
// Meaningful only while the report is REJECTED.
func RemainingResubmissions(r *Report) int {
	remaining := MaxResubmissions - r.ResubmissionCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// =============================================================================
// PAYLOAD VALIDATION
// =============================================================================

// DefaultProjectName is applied when a submission leaves the project blank.
const DefaultProjectName = "Trainee"

// ValidatePayload checks the content fields. Only hours carry a hard
// constraint; tasks and next-day plan are required text.
func ValidatePayload(p ReportPayload) error {
	if p.HoursWorked.LessThan(minHours) || p.HoursWorked.GreaterThan(maxHours) {
		return &ValidationError{Field: "hours_worked", Reason: "must be between 0 and 24"}
	}
	if p.TasksCompleted == "" {
		return &ValidationError{Field: "tasks_completed", Reason: "required"}
	}
	if p.NextDayPlan == "" {
		return &ValidationError{Field: "next_day_plan", Reason: "required"}
	}
	return nil
}

/*
engine.go - Submit and Review orchestration

PURPOSE:
  The engine ties the pure policy functions to the store. Each public
  operation runs inside a single store transaction that re-reads the
  report's current state and re-validates its precondition before
  writing, so a request racing another browser tab loses cleanly with
  ErrConcurrentModification instead of silently clobbering a decision.

SUBMIT FLOW:
  no report yet          -> create PENDING, count 0, SubmittedAt set once
  existing PENDING       -> plain content edit, no status/count change
  existing REJECTED      -> resubmission: EditableCheck, count += 1,
                            back to PENDING
  existing APPROVED      -> ErrReportLocked

REVIEW FLOW:
  precondition  status == PENDING            else ErrAlreadyFinalized
  authorization owner's direct manager/admin else identity.ErrForbidden
  effect        review appended with number max+1, status flips to the
                decision - atomically, both or neither

CLOCK:
  Operations take `now` explicitly. There is no hidden clock; tests and
  the API pass their own.

SEE ALSO:
  - policy.go: the rules applied here
  - store.go: the transactional contract relied on here
*/
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/eod-reports/identity"
)

// Engine applies lifecycle policy against a transactional store. It holds
// no persistent state of its own.
type Engine struct {
	Store     TxStore
	Directory identity.Directory
}

func NewEngine(store TxStore, dir identity.Directory) *Engine {
	return &Engine{Store: store, Directory: dir}
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit creates, edits, or resubmits the employee's report for date.
// Which of the three happens is decided from the freshly read state, not
// from anything the caller claims.
func (e *Engine) Submit(ctx context.Context, employeeID UserID, date Date, payload ReportPayload, now time.Time) (*Report, error) {
	if payload.ProjectName == "" {
		payload.ProjectName = DefaultProjectName
	}
	if err := ValidatePayload(payload); err != nil {
		return nil, err
	}

	var out *Report
	err := e.Store.WithTx(ctx, func(s Store) error {
		existing, err := s.GetReportByDate(ctx, employeeID, date)
		if err != nil {
			return fmt.Errorf("failed to load report: %w", err)
		}

		if existing == nil {
			if err := CanCreate(false, date, now); err != nil {
				return err
			}
			r := &Report{
				ID:            NewReportID(),
				EmployeeID:    employeeID,
				ReportDate:    date,
				ReportPayload: payload,
				Status:        StatusPending,
				Version:       1,
				SubmittedAt:   now,
				UpdatedAt:     now,
			}
			if err := s.InsertReport(ctx, r); err != nil {
				return err
			}
			out = r
			return nil
		}

		switch existing.Status {
		case StatusApproved:
			return ErrReportLocked
		case StatusRejected:
			latest, err := s.LatestReview(ctx, existing.ID)
			if err != nil {
				return fmt.Errorf("failed to load latest review: %w", err)
			}
			if err := EditableCheck(existing, latest, now); err != nil {
				return err
			}
			existing.Status = StatusPending
			existing.ResubmissionCount++
		case StatusPending:
			// Plain edit; always allowed while pending.
		default:
			return &ValidationError{Field: "status", Reason: "unknown report status " + string(existing.Status)}
		}

		expected := existing.Version
		existing.ReportPayload = payload
		existing.UpdatedAt = now
		existing.Version++
		if err := s.UpdateReport(ctx, existing, expected); err != nil {
			return err
		}
		out = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// REVIEW
// =============================================================================

// Review records a decision on a pending report. The review append and
// the status flip commit together or not at all.
func (e *Engine) Review(ctx context.Context, reportID ReportID, reviewer identity.Identity, decision ReviewDecision, comments string, now time.Time) (*Review, error) {
	if !decision.Valid() {
		return nil, &ValidationError{Field: "decision", Reason: "must be APPROVED or REJECTED"}
	}

	var out *Review
	err := e.Store.WithTx(ctx, func(s Store) error {
		r, err := s.GetReport(ctx, reportID)
		if err != nil {
			return fmt.Errorf("failed to load report: %w", err)
		}
		if r == nil {
			return ErrNotFound
		}

		owner, err := e.ownerOf(ctx, r)
		if err != nil {
			return err
		}
		if err := identity.CanReviewReport(reviewer, owner); err != nil {
			return err
		}

		if r.Status != StatusPending {
			return ErrAlreadyFinalized
		}

		latest, err := s.LatestReview(ctx, r.ID)
		if err != nil {
			return fmt.Errorf("failed to load latest review: %w", err)
		}
		next := 1
		if latest != nil {
			next = latest.ReviewNumber + 1
		}

		rev := &Review{
			ID:           NewReviewID(),
			ReportID:     r.ID,
			ReviewerID:   UserID(reviewer.UserID()),
			ReviewNumber: next,
			Decision:     decision,
			Comments:     comments,
			ReviewedAt:   now,
		}
		if err := s.AppendReview(ctx, rev); err != nil {
			return err
		}

		expected := r.Version
		r.Status = ReportStatus(decision)
		r.UpdatedAt = now
		r.Version++
		if err := s.UpdateReport(ctx, r, expected); err != nil {
			return err
		}
		out = rev
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// PROJECTIONS
// =============================================================================

// Editable computes the can_edit projection for display. The presentation
// layer must not compute or cache this itself.
func (e *Engine) Editable(ctx context.Context, r *Report, now time.Time) (bool, error) {
	latest, err := e.Store.LatestReview(ctx, r.ID)
	if err != nil {
		return false, fmt.Errorf("failed to load latest review: %w", err)
	}
	return CanEdit(r, latest, now), nil
}

// History returns the report's review ledger ordered by review number.
func (e *Engine) History(ctx context.Context, reportID ReportID) ([]Review, error) {
	return e.Store.ListReviews(ctx, reportID)
}

// ownerOf resolves the report owner's Employee variant.
func (e *Engine) ownerOf(ctx context.Context, r *Report) (identity.Employee, error) {
	id, err := e.Directory.Lookup(ctx, string(r.EmployeeID))
	if err != nil {
		return identity.Employee{}, fmt.Errorf("failed to resolve report owner %s: %w", r.EmployeeID, err)
	}
	owner, ok := id.(identity.Employee)
	if !ok {
		return identity.Employee{}, fmt.Errorf("report owner %s is not an employee", r.EmployeeID)
	}
	return owner, nil
}

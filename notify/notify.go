/*
Package notify implements the reminder and digest mail batches.

PURPOSE:
  Two scheduled batches run against the report store, read-only:

    SubmissionReminders - mails every active employee who has not
                          submitted a report for the given date
    ReviewDigests       - mails every active manager a list of their
                          team's PENDING reports

  Neither batch mutates lifecycle state.

BATCH CONTRACT:
  - Per-recipient failure isolation: one failed send never aborts the
    batch; it is recorded and the batch continues.
  - Dry-run mode performs the exact same recipient selection with zero
    mail I/O, so operators can preview a run.
  - Recipients without an email address are skipped and counted.
  - Every run returns a structured SendReport; callers decide what to do
    with the counts. The batch itself never exits the process.

  Both batches take their inputs (date, sources, mailer) explicitly.
  There is no package-level clock or counter.

SEE ALSO:
  - api/scheduler.go: periodic in-process caller
  - cmd/remind: one-shot CLI caller
*/
package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/warp/eod-reports/identity"
	"github.com/warp/eod-reports/lifecycle"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Mailer delivers a single message. Implementations must be safe for
// sequential reuse within a batch.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// PendingItem is one row of a manager's digest.
type PendingItem struct {
	EmployeeName string
	ReportDate   lifecycle.Date
}

// Sources is the read-only view of the store the batches need.
type Sources interface {
	// EmployeesMissingReport returns active employees with no report for date.
	EmployeesMissingReport(ctx context.Context, date lifecycle.Date) ([]identity.Employee, error)

	// ActiveManagers returns all active managers.
	ActiveManagers(ctx context.Context) ([]identity.Manager, error)

	// PendingReportsForManager returns the manager's team's PENDING reports.
	PendingReportsForManager(ctx context.Context, managerID string) ([]PendingItem, error)
}

// =============================================================================
// SEND REPORT
// =============================================================================

type ResultStatus string

const (
	ResultSent    ResultStatus = "sent"
	ResultFailed  ResultStatus = "failed"
	ResultSkipped ResultStatus = "skipped"
)

// RecipientResult records the outcome for one recipient.
type RecipientResult struct {
	UserID string
	Email  string
	Status ResultStatus
	Reason string // failure or skip reason
}

// SendReport summarizes a batch run.
type SendReport struct {
	DryRun  bool
	Sent    int
	Failed  int
	Skipped int
	Results []RecipientResult
}

func (sr *SendReport) record(res RecipientResult) {
	switch res.Status {
	case ResultSent:
		sr.Sent++
	case ResultFailed:
		sr.Failed++
	case ResultSkipped:
		sr.Skipped++
	}
	sr.Results = append(sr.Results, res)
}

// =============================================================================
// SUBMISSION REMINDERS
// =============================================================================

// SubmissionReminders mails every active employee who has not submitted a
// report for date. In dry-run mode the recipient selection is identical
// but nothing is sent.
func SubmissionReminders(ctx context.Context, src Sources, mailer Mailer, log *zap.Logger, date lifecycle.Date, dryRun bool) (*SendReport, error) {
	missing, err := src.EmployeesMissingReport(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to select employees without a report: %w", err)
	}

	report := &SendReport{DryRun: dryRun}
	for _, emp := range missing {
		if emp.Email == "" {
			log.Warn("skipping reminder, no email address", zap.String("user_id", emp.ID))
			report.record(RecipientResult{UserID: emp.ID, Status: ResultSkipped, Reason: "no email address"})
			continue
		}

		if dryRun {
			log.Info("dry run, would send reminder", zap.String("email", emp.Email))
			report.record(RecipientResult{UserID: emp.ID, Email: emp.Email, Status: ResultSent})
			continue
		}

		subject := "Reminder: Submit Your EOD Report"
		body := reminderBody(emp.Name, date)
		if err := mailer.Send(ctx, emp.Email, subject, body); err != nil {
			log.Error("failed to send reminder", zap.String("email", emp.Email), zap.Error(err))
			report.record(RecipientResult{UserID: emp.ID, Email: emp.Email, Status: ResultFailed, Reason: err.Error()})
			continue
		}
		log.Info("sent reminder", zap.String("email", emp.Email))
		report.record(RecipientResult{UserID: emp.ID, Email: emp.Email, Status: ResultSent})
	}
	return report, nil
}

func reminderBody(name string, date lifecycle.Date) string {
	return fmt.Sprintf(`Hello %s,

This is a friendly reminder to submit your End-of-Day (EOD) report for %s.

Please log in to the EOD Reporting System to submit your report.

If you have already submitted your report, please disregard this email.

Thank you!

---
EOD Reporting System`, name, date.Time.Format("January 02, 2006"))
}

// =============================================================================
// REVIEW DIGESTS
// =============================================================================

// ReviewDigests mails every active manager a summary of their team's
// PENDING reports. Managers with nothing pending receive no mail.
func ReviewDigests(ctx context.Context, src Sources, mailer Mailer, log *zap.Logger, dryRun bool) (*SendReport, error) {
	managers, err := src.ActiveManagers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list managers: %w", err)
	}

	report := &SendReport{DryRun: dryRun}
	for _, mgr := range managers {
		pending, err := src.PendingReportsForManager(ctx, mgr.ID)
		if err != nil {
			log.Error("failed to list pending reports", zap.String("manager_id", mgr.ID), zap.Error(err))
			report.record(RecipientResult{UserID: mgr.ID, Email: mgr.Email, Status: ResultFailed, Reason: err.Error()})
			continue
		}
		if len(pending) == 0 {
			continue
		}
		if mgr.Email == "" {
			log.Warn("skipping digest, no email address", zap.String("user_id", mgr.ID))
			report.record(RecipientResult{UserID: mgr.ID, Status: ResultSkipped, Reason: "no email address"})
			continue
		}

		if dryRun {
			log.Info("dry run, would send digest",
				zap.String("email", mgr.Email), zap.Int("pending", len(pending)))
			report.record(RecipientResult{UserID: mgr.ID, Email: mgr.Email, Status: ResultSent})
			continue
		}

		subject := fmt.Sprintf("Pending EOD Reports to Review (%d)", len(pending))
		body := digestBody(mgr.Name, pending)
		if err := mailer.Send(ctx, mgr.Email, subject, body); err != nil {
			log.Error("failed to send digest", zap.String("email", mgr.Email), zap.Error(err))
			report.record(RecipientResult{UserID: mgr.ID, Email: mgr.Email, Status: ResultFailed, Reason: err.Error()})
			continue
		}
		log.Info("sent digest", zap.String("email", mgr.Email), zap.Int("pending", len(pending)))
		report.record(RecipientResult{UserID: mgr.ID, Email: mgr.Email, Status: ResultSent})
	}
	return report, nil
}

func digestBody(name string, pending []PendingItem) string {
	var list strings.Builder
	for _, p := range pending {
		fmt.Fprintf(&list, "- %s (%s)\n", p.EmployeeName, p.ReportDate.Time.Format("January 02, 2006"))
	}
	return fmt.Sprintf(`Hello %s,

You have %d pending EOD report(s) awaiting your review:

%s
Please log in to the EOD Reporting System to review these reports.

Thank you!

---
EOD Reporting System`, name, len(pending), list.String())
}

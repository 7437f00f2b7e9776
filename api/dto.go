/*
dto.go - Request/response shapes for the HTTP API

PURPOSE:
  JSON wire types, decoupled from the core types so the lifecycle package
  never grows json tags or float fields.

CONVENTIONS:
  - Dates travel as "YYYY-MM-DD" strings
  - Timestamps travel as RFC3339
  - hours_worked is float64 on the wire but decimal.Decimal internally;
    the conversion happens exactly once, at the boundary
  - can_edit and remaining_resubmissions are computed projections, always
    derived from current state, never stored

SEE ALSO:
  - handlers.go: where these are populated
*/
package api

import (
	"time"

	"github.com/warp/eod-reports/lifecycle"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// SubmitReportRequest creates or edits the caller's report for a date.
type SubmitReportRequest struct {
	ReportDate     string  `json:"report_date"`
	ProjectName    string  `json:"project_name,omitempty"`
	TasksCompleted string  `json:"tasks_completed"`
	HoursWorked    float64 `json:"hours_worked"`
	BlockersIssues string  `json:"blockers_issues,omitempty"`
	NextDayPlan    string  `json:"next_day_plan"`
}

// ReviewRequest records a decision on a pending report.
type ReviewRequest struct {
	Decision string `json:"decision"` // APPROVED or REJECTED
	Comments string `json:"comments,omitempty"`
}

// SaveUserRequest creates or updates a user (admin only).
type SaveUserRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
	ManagerID string `json:"manager_id,omitempty"`
	Active    *bool  `json:"active,omitempty"` // defaults to true
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type ReportDTO struct {
	ID                     string    `json:"id"`
	EmployeeID             string    `json:"employee_id"`
	EmployeeName           string    `json:"employee_name,omitempty"`
	ReportDate             string    `json:"report_date"`
	ProjectName            string    `json:"project_name"`
	TasksCompleted         string    `json:"tasks_completed"`
	HoursWorked            float64   `json:"hours_worked"`
	BlockersIssues         string    `json:"blockers_issues,omitempty"`
	NextDayPlan            string    `json:"next_day_plan"`
	Status                 string    `json:"status"`
	ResubmissionCount      int       `json:"resubmission_count"`
	RemainingResubmissions int       `json:"remaining_resubmissions"`
	CanEdit                bool      `json:"can_edit"`
	SubmittedAt            time.Time `json:"submitted_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

type ReviewDTO struct {
	ID           string    `json:"id"`
	ReportID     string    `json:"report_id"`
	ReviewerID   string    `json:"reviewer_id"`
	ReviewNumber int       `json:"review_number"`
	Decision     string    `json:"decision"`
	Comments     string    `json:"comments,omitempty"`
	ReviewedAt   time.Time `json:"reviewed_at"`
}

type UserDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Active bool   `json:"active"`
}

// StatusCountsDTO breaks a set of reports down by status.
type StatusCountsDTO struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Total    int `json:"total"`
}

// DashboardDTO summarizes the caller's visible reports, overall and for
// the current work week.
type DashboardDTO struct {
	Overall   StatusCountsDTO `json:"overall"`
	Week      StatusCountsDTO `json:"week"`
	WeekStart string          `json:"week_start"`
	WeekEnd   string          `json:"week_end"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toStatusCountsDTO(counts map[lifecycle.ReportStatus]int) StatusCountsDTO {
	dto := StatusCountsDTO{
		Pending:  counts[lifecycle.StatusPending],
		Approved: counts[lifecycle.StatusApproved],
		Rejected: counts[lifecycle.StatusRejected],
	}
	dto.Total = dto.Pending + dto.Approved + dto.Rejected
	return dto
}

func toReviewDTO(rev *lifecycle.Review) ReviewDTO {
	return ReviewDTO{
		ID:           string(rev.ID),
		ReportID:     string(rev.ReportID),
		ReviewerID:   string(rev.ReviewerID),
		ReviewNumber: rev.ReviewNumber,
		Decision:     string(rev.Decision),
		Comments:     rev.Comments,
		ReviewedAt:   rev.ReviewedAt,
	}
}

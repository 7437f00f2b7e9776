/*
handlers.go - HTTP API handlers for the EOD reporting system

PURPOSE:
  Exposes the report lifecycle engine via REST API. Handles HTTP
  request/response, JSON serialization, identity resolution, and
  delegates every decision to the lifecycle and identity packages.

ENDPOINTS:
  Reports:
    POST   /api/reports                 Submit/edit/resubmit a report
    GET    /api/reports                 List visible reports
    GET    /api/reports/{id}            Report detail
    POST   /api/reports/{id}/review     Record a review decision
    GET    /api/reports/{id}/reviews    Review history

  Dashboard:
    GET    /api/dashboard               Status counts, overall + this week

  Users:
    GET    /api/me                      The caller's own identity
    POST   /api/users                   Create/update a user (admin)

IDENTITY:
  The caller is identified by the X-User-ID header, resolved through the
  store-backed directory. This stands in for the gateway-verified
  principal of a real deployment; the handlers never trust role or
  manager claims from the request body.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing or unknown caller identity
  - 403: Capability gate violations
  - 404: Report not found
  - 409: Lifecycle-state violations, duplicates, lost races
  - 500: Internal errors

  Operations that lose an optimistic-lock race are retried once against
  fresh state before 409 is returned.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/eod-reports/identity"
	"github.com/warp/eod-reports/lifecycle"
	"github.com/warp/eod-reports/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  *sqlite.Store
	Engine *lifecycle.Engine
	Log    *zap.Logger

	// Now is the clock used for all policy decisions. Overridden in tests.
	Now func() time.Time
}

// NewHandler creates a new handler with the given store and engine.
func NewHandler(store *sqlite.Store, engine *lifecycle.Engine, log *zap.Logger) *Handler {
	return &Handler{
		Store:  store,
		Engine: engine,
		Log:    log,
		Now:    time.Now,
	}
}

// identify resolves the caller from the X-User-ID header. Unknown and
// inactive users are rejected here, before any handler logic runs.
func (h *Handler) identify(r *http.Request) (identity.Identity, int, error) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		return nil, http.StatusUnauthorized, errors.New("missing X-User-ID header")
	}
	actor, err := h.Store.Lookup(r.Context(), userID)
	if err != nil {
		if errors.Is(err, identity.ErrUnknownUser) {
			return nil, http.StatusUnauthorized, err
		}
		return nil, http.StatusInternalServerError, err
	}
	if !actor.IsActive() {
		return nil, http.StatusForbidden, errors.New("account is inactive")
	}
	return actor, 0, nil
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// SubmitReport handles POST /api/reports.
// The same endpoint serves first submission, pending edits, and
// resubmission after rejection; the engine decides from stored state.
func (h *Handler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	actor, status, err := h.identify(r)
	if err != nil {
		writeError(w, status, "authentication failed", err)
		return
	}
	if _, ok := actor.(identity.Employee); !ok {
		writeError(w, http.StatusForbidden, "only employees submit reports", identity.ErrForbidden)
		return
	}

	var req SubmitReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	date, err := lifecycle.ParseDate(req.ReportDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report_date, expected YYYY-MM-DD", err)
		return
	}

	payload := lifecycle.ReportPayload{
		ProjectName:    req.ProjectName,
		TasksCompleted: req.TasksCompleted,
		HoursWorked:    decimal.NewFromFloat(req.HoursWorked),
		BlockersIssues: req.BlockersIssues,
		NextDayPlan:    req.NextDayPlan,
	}

	now := h.Now()
	employeeID := lifecycle.UserID(actor.UserID())
	report, err := h.Engine.Submit(r.Context(), employeeID, date, payload, now)
	if lifecycle.IsConflict(err) {
		report, err = h.Engine.Submit(r.Context(), employeeID, date, payload, now)
	}
	if err != nil {
		h.writeDomainError(w, "failed to submit report", err)
		return
	}

	h.Log.Info("report submitted",
		zap.String("report_id", string(report.ID)),
		zap.String("employee_id", string(report.EmployeeID)),
		zap.String("report_date", report.ReportDate.String()),
		zap.Int("version", report.Version))

	code := http.StatusOK
	if report.Version == 1 {
		code = http.StatusCreated
	}
	h.writeReport(w, r, code, report, actor.DisplayName(), now)
}

// ListReports handles GET /api/reports.
// Visibility is derived from the caller's role: employees see their own
// reports, managers their team's, admins everything. Optional filters:
// status, from, to, q (owner name substring, admin only), limit.
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	actor, status, err := h.identify(r)
	if err != nil {
		writeError(w, status, "authentication failed", err)
		return
	}

	filter, err := h.filterFor(actor, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid filter", err)
		return
	}

	rows, err := h.Store.ListReports(r.Context(), *filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list reports", err)
		return
	}

	now := h.Now()
	dtos := make([]ReportDTO, 0, len(rows))
	for i := range rows {
		canEdit, err := h.Engine.Editable(r.Context(), &rows[i].Report, now)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to project report", err)
			return
		}
		dtos = append(dtos, toReportDTO(&rows[i].Report, rows[i].EmployeeName, canEdit))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetReport handles GET /api/reports/{id}.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	actor, status, err := h.identify(r)
	if err != nil {
		writeError(w, status, "authentication failed", err)
		return
	}

	report, owner, ok := h.loadAuthorized(w, r, actor)
	if !ok {
		return
	}
	h.writeReport(w, r, http.StatusOK, report, owner.Name, h.Now())
}

// ReviewReport handles POST /api/reports/{id}/review.
func (h *Handler) ReviewReport(w http.ResponseWriter, r *http.Request) {
	actor, status, err := h.identify(r)
	if err != nil {
		writeError(w, status, "authentication failed", err)
		return
	}

	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	reportID := lifecycle.ReportID(chi.URLParam(r, "id"))
	decision := lifecycle.ReviewDecision(req.Decision)

	now := h.Now()
	review, err := h.Engine.Review(r.Context(), reportID, actor, decision, req.Comments, now)
	if lifecycle.IsConflict(err) {
		review, err = h.Engine.Review(r.Context(), reportID, actor, decision, req.Comments, now)
	}
	if err != nil {
		h.writeDomainError(w, "failed to review report", err)
		return
	}

	h.Log.Info("report reviewed",
		zap.String("report_id", string(reportID)),
		zap.String("reviewer_id", actor.UserID()),
		zap.Int("review_number", review.ReviewNumber),
		zap.String("decision", string(review.Decision)))

	writeJSON(w, http.StatusOK, toReviewDTO(review))
}

// ListReviews handles GET /api/reports/{id}/reviews.
func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	actor, status, err := h.identify(r)
	if err != nil {
		writeError(w, status, "authentication failed", err)
		return
	}

	report, _, ok := h.loadAuthorized(w, r, actor)
	if !ok {
		return
	}

	reviews, err := h.Engine.History(r.Context(), report.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load review history", err)
		return
	}

	dtos := make([]ReviewDTO, 0, len(reviews))
	for i := range reviews {
		dtos = append(dtos, toReviewDTO(&reviews[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// DASHBOARD
// =============================================================================

// Dashboard handles GET /api/dashboard.
// Counts respect the same visibility scope as listing.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	actor, status, err := h.identify(r)
	if err != nil {
		writeError(w, status, "authentication failed", err)
		return
	}

	base := scopeFilter(actor)

	overall, err := h.Store.StatusCounts(r.Context(), base)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count reports", err)
		return
	}

	weekStart, weekEnd := lifecycle.WorkWeekOf(lifecycle.DateOf(h.Now()))
	weekly := base
	weekly.From = &weekStart
	weekly.To = &weekEnd
	week, err := h.Store.StatusCounts(r.Context(), weekly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count reports", err)
		return
	}

	writeJSON(w, http.StatusOK, DashboardDTO{
		Overall:   toStatusCountsDTO(overall),
		Week:      toStatusCountsDTO(week),
		WeekStart: weekStart.String(),
		WeekEnd:   weekEnd.String(),
	})
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// Me handles GET /api/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	actor, status, err := h.identify(r)
	if err != nil {
		writeError(w, status, "authentication failed", err)
		return
	}
	writeJSON(w, http.StatusOK, UserDTO{
		ID:     actor.UserID(),
		Name:   actor.DisplayName(),
		Role:   string(actor.Role()),
		Active: actor.IsActive(),
	})
}

// SaveUser handles POST /api/users. Admin only.
func (h *Handler) SaveUser(w http.ResponseWriter, r *http.Request) {
	actor, status, err := h.identify(r)
	if err != nil {
		writeError(w, status, "authentication failed", err)
		return
	}
	if _, ok := actor.(identity.Admin); !ok {
		writeError(w, http.StatusForbidden, "admin only", identity.ErrForbidden)
		return
	}

	var req SaveUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}
	role := identity.Role(req.Role)
	switch role {
	case identity.RoleEmployee:
		if req.ManagerID == "" {
			writeError(w, http.StatusBadRequest, "employees require a manager_id", nil)
			return
		}
	case identity.RoleManager, identity.RoleAdmin:
		if req.ManagerID != "" {
			writeError(w, http.StatusBadRequest, "only employees carry a manager_id", nil)
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "role must be EMPLOYEE, MANAGER, or ADMIN", nil)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	rec := sqlite.UserRecord{
		ID: req.ID, Name: req.Name, Email: req.Email,
		Role: role, ManagerID: req.ManagerID, Active: active,
	}
	if err := h.Store.SaveUser(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save user", err)
		return
	}

	h.Log.Info("user saved", zap.String("user_id", req.ID), zap.String("role", req.Role))
	writeJSON(w, http.StatusOK, UserDTO{ID: req.ID, Name: req.Name, Role: req.Role, Active: active})
}

// =============================================================================
// HELPERS
// =============================================================================

// loadAuthorized fetches the report from the URL and checks the caller
// may view it. On failure the response has already been written.
func (h *Handler) loadAuthorized(w http.ResponseWriter, r *http.Request, actor identity.Identity) (*lifecycle.Report, identity.Employee, bool) {
	reportID := lifecycle.ReportID(chi.URLParam(r, "id"))
	report, err := h.Store.GetReport(r.Context(), reportID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load report", err)
		return nil, identity.Employee{}, false
	}
	if report == nil {
		writeError(w, http.StatusNotFound, "report not found", lifecycle.ErrNotFound)
		return nil, identity.Employee{}, false
	}

	ownerIdent, err := h.Store.Lookup(r.Context(), string(report.EmployeeID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve report owner", err)
		return nil, identity.Employee{}, false
	}
	owner, ok := ownerIdent.(identity.Employee)
	if !ok {
		writeError(w, http.StatusInternalServerError, "report owner is not an employee", nil)
		return nil, identity.Employee{}, false
	}

	if err := identity.CanViewReport(actor, owner.ID, owner.ManagerID); err != nil {
		writeError(w, http.StatusForbidden, "not allowed to view this report", err)
		return nil, identity.Employee{}, false
	}
	return report, owner, true
}

// scopeFilter translates the caller's role into the widest listing
// filter they may use.
func scopeFilter(actor identity.Identity) sqlite.ReportFilter {
	switch identity.ViewScopeFor(actor) {
	case identity.ScopeAll:
		return sqlite.ReportFilter{}
	case identity.ScopeTeam:
		return sqlite.ReportFilter{ManagerID: actor.UserID()}
	default:
		return sqlite.ReportFilter{EmployeeID: actor.UserID()}
	}
}

func (h *Handler) filterFor(actor identity.Identity, r *http.Request) (*sqlite.ReportFilter, error) {
	filter := scopeFilter(actor)

	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		filter.Status = lifecycle.ReportStatus(s)
	}
	if from := q.Get("from"); from != "" {
		d, err := lifecycle.ParseDate(from)
		if err != nil {
			return nil, err
		}
		filter.From = &d
	}
	if to := q.Get("to"); to != "" {
		d, err := lifecycle.ParseDate(to)
		if err != nil {
			return nil, err
		}
		filter.To = &d
	}
	// Name search only widens within an already-scoped query.
	if name := q.Get("q"); name != "" {
		filter.EmployeeQuery = name
	}
	return &filter, nil
}

func (h *Handler) writeReport(w http.ResponseWriter, r *http.Request, code int, report *lifecycle.Report, employeeName string, now time.Time) {
	canEdit, err := h.Engine.Editable(r.Context(), report, now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to project report", err)
		return
	}
	writeJSON(w, code, toReportDTO(report, employeeName, canEdit))
}

func toReportDTO(r *lifecycle.Report, employeeName string, canEdit bool) ReportDTO {
	hours, _ := r.HoursWorked.Float64()
	return ReportDTO{
		ID:                     string(r.ID),
		EmployeeID:             string(r.EmployeeID),
		EmployeeName:           employeeName,
		ReportDate:             r.ReportDate.String(),
		ProjectName:            r.ProjectName,
		TasksCompleted:         r.TasksCompleted,
		HoursWorked:            hours,
		BlockersIssues:         r.BlockersIssues,
		NextDayPlan:            r.NextDayPlan,
		Status:                 string(r.Status),
		ResubmissionCount:      r.ResubmissionCount,
		RemainingResubmissions: lifecycle.RemainingResubmissions(r),
		CanEdit:                canEdit,
		SubmittedAt:            r.SubmittedAt,
		UpdatedAt:              r.UpdatedAt,
	}
}

// writeDomainError maps engine errors onto HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	var ve *lifecycle.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, identity.ErrForbidden):
		writeError(w, http.StatusForbidden, message, err)
	case lifecycle.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case lifecycle.IsConflict(err) || lifecycle.IsClientError(err):
		// State-machine violations and duplicates are conflicts with
		// current state, not malformed requests.
		writeError(w, http.StatusConflict, message, err)
	default:
		h.Log.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

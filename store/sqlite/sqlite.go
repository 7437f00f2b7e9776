/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements all persistence the reporting system needs using SQLite. In
  production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

INTERFACES IMPLEMENTED:
  lifecycle.Store:    Reports and the append-only review ledger
  lifecycle.TxStore:  Transactional execution of Submit/Review flows
  identity.Directory: User lookup and role resolution
  notify.Sources:     Reminder and digest recipient selection

KEY TABLES:
  users:    Role, manager link, active flag
  reports:  One row per (employee, date), versioned for optimistic locking
  reviews:  Append-only decision ledger, numbered 1..N per report

INVARIANTS ENFORCED HERE:
  - idx_reports_employee_date: at most one report per (employee, date).
    Application-level existence checks are advisory; this index is the
    authority.
  - idx_reviews_report_number: review numbers are unique per report, so
    two racing reviewers cannot both claim number N.
  - UPDATE on reports is guarded by `AND version = ?`; zero rows affected
    surfaces as ErrConcurrentModification.
  - No UPDATE or DELETE statements exist for the reviews table.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/reports.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := lifecycle.NewEngine(store, store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - lifecycle/store.go: Interface definitions and contract
  - lifecycle/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/eod-reports/identity"
	"github.com/warp/eod-reports/lifecycle"
	"github.com/warp/eod-reports/notify"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Users (projection of the identity provider)
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		role TEXT NOT NULL,
		manager_id TEXT REFERENCES users(id),
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_manager
		ON users(manager_id) WHERE manager_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_users_role_active
		ON users(role, active);

	-- Reports (one per employee per date, versioned)
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES users(id),
		report_date TEXT NOT NULL,
		project_name TEXT NOT NULL,
		tasks_completed TEXT NOT NULL,
		hours_worked TEXT NOT NULL,
		blockers_issues TEXT,
		next_day_plan TEXT NOT NULL,
		status TEXT NOT NULL,
		resubmission_count INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 1,
		submitted_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: the authority on one-report-per-day. The engine's
	-- existence check merely routes to the edit path; a racing insert
	-- dies here.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_reports_employee_date
		ON reports(employee_id, report_date);

	CREATE INDEX IF NOT EXISTS idx_reports_date
		ON reports(report_date DESC);
	CREATE INDEX IF NOT EXISTS idx_reports_status
		ON reports(status);

	-- Reviews (append-only ledger)
	CREATE TABLE IF NOT EXISTS reviews (
		id TEXT PRIMARY KEY,
		report_id TEXT NOT NULL REFERENCES reports(id),
		reviewer_id TEXT NOT NULL REFERENCES users(id),
		review_number INTEGER NOT NULL,
		decision TEXT NOT NULL,
		comments TEXT,
		reviewed_at TEXT NOT NULL
	);

	-- CRITICAL: gapless numbering depends on this. Two reviewers racing
	-- for the same number lose deterministically instead of forking the
	-- ledger.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_reviews_report_number
		ON reviews(report_id, review_number);

	CREATE INDEX IF NOT EXISTS idx_reviews_report
		ON reviews(report_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so the same statement
// helpers serve direct calls and WithTx calls.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// REPORT STORE (lifecycle.Store interface)
// =============================================================================

const reportColumns = `id, employee_id, report_date, project_name, tasks_completed,
	       hours_worked, blockers_issues, next_day_plan, status,
	       resubmission_count, version, submitted_at, updated_at`

// GetReport returns the report with the given id, or nil if none.
func (s *Store) GetReport(ctx context.Context, id lifecycle.ReportID) (*lifecycle.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getReport(ctx, s.db, id)
}

func (s *Store) getReport(ctx context.Context, db dbtx, id lifecycle.ReportID) (*lifecycle.Report, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+reportColumns+" FROM reports WHERE id = ?", id)
	return scanReport(row)
}

// GetReportByDate returns the employee's report for the date, or nil.
func (s *Store) GetReportByDate(ctx context.Context, employeeID lifecycle.UserID, date lifecycle.Date) (*lifecycle.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getReportByDate(ctx, s.db, employeeID, date)
}

func (s *Store) getReportByDate(ctx context.Context, db dbtx, employeeID lifecycle.UserID, date lifecycle.Date) (*lifecycle.Report, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+reportColumns+" FROM reports WHERE employee_id = ? AND report_date = ?",
		employeeID, date.String())
	return scanReport(row)
}

// InsertReport persists a new report. A duplicate (employee, date) fails
// on idx_reports_employee_date.
func (s *Store) InsertReport(ctx context.Context, r *lifecycle.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertReport(ctx, s.db, r)
}

func (s *Store) insertReport(ctx context.Context, db dbtx, r *lifecycle.Report) error {
	query := `
		INSERT INTO reports
		(id, employee_id, report_date, project_name, tasks_completed, hours_worked,
		 blockers_issues, next_day_plan, status, resubmission_count, version,
		 submitted_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		r.ID,
		r.EmployeeID,
		r.ReportDate.String(),
		r.ProjectName,
		r.TasksCompleted,
		r.HoursWorked.String(),
		r.BlockersIssues,
		r.NextDayPlan,
		r.Status,
		r.ResubmissionCount,
		r.Version,
		r.SubmittedAt.UTC().Format(time.RFC3339),
		r.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &lifecycle.DuplicateReportError{EmployeeID: r.EmployeeID, ReportDate: r.ReportDate}
		}
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

// UpdateReport persists r only if the stored version equals
// expectedVersion.
func (s *Store) UpdateReport(ctx context.Context, r *lifecycle.Report, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateReport(ctx, s.db, r, expectedVersion)
}

func (s *Store) updateReport(ctx context.Context, db dbtx, r *lifecycle.Report, expectedVersion int) error {
	query := `
		UPDATE reports SET
			project_name = ?,
			tasks_completed = ?,
			hours_worked = ?,
			blockers_issues = ?,
			next_day_plan = ?,
			status = ?,
			resubmission_count = ?,
			version = ?,
			updated_at = ?
		WHERE id = ? AND version = ?
	`

	res, err := db.ExecContext(ctx, query,
		r.ProjectName,
		r.TasksCompleted,
		r.HoursWorked.String(),
		r.BlockersIssues,
		r.NextDayPlan,
		r.Status,
		r.ResubmissionCount,
		r.Version,
		r.UpdatedAt.UTC().Format(time.RFC3339),
		r.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update report: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		// Either the row is gone or somebody bumped the version first.
		var exists int
		if err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM reports WHERE id = ?", r.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check report existence: %w", err)
		}
		if exists == 0 {
			return lifecycle.ErrNotFound
		}
		return lifecycle.ErrConcurrentModification
	}
	return nil
}

// AppendReview appends to the review ledger. A taken number fails on
// idx_reviews_report_number.
func (s *Store) AppendReview(ctx context.Context, rev *lifecycle.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendReview(ctx, s.db, rev)
}

func (s *Store) appendReview(ctx context.Context, db dbtx, rev *lifecycle.Review) error {
	query := `
		INSERT INTO reviews
		(id, report_id, reviewer_id, review_number, decision, comments, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		rev.ID,
		rev.ReportID,
		rev.ReviewerID,
		rev.ReviewNumber,
		rev.Decision,
		rev.Comments,
		rev.ReviewedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return lifecycle.ErrDuplicateReviewNumber
		}
		return fmt.Errorf("failed to append review: %w", err)
	}
	return nil
}

// ListReviews returns all reviews for a report ordered by ReviewNumber.
func (s *Store) ListReviews(ctx context.Context, reportID lifecycle.ReportID) ([]lifecycle.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listReviews(ctx, s.db, reportID)
}

func (s *Store) listReviews(ctx context.Context, db dbtx, reportID lifecycle.ReportID) ([]lifecycle.Review, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, report_id, reviewer_id, review_number, decision, comments, reviewed_at
		FROM reviews
		WHERE report_id = ?
		ORDER BY review_number ASC
	`, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	var reviews []lifecycle.Review
	for rows.Next() {
		rev, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, rev)
	}
	return reviews, rows.Err()
}

// LatestReview returns the highest-numbered review, or nil if none.
func (s *Store) LatestReview(ctx context.Context, reportID lifecycle.ReportID) (*lifecycle.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestReview(ctx, s.db, reportID)
}

func (s *Store) latestReview(ctx context.Context, db dbtx, reportID lifecycle.ReportID) (*lifecycle.Review, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, report_id, reviewer_id, review_number, decision, comments, reviewed_at
		FROM reviews
		WHERE report_id = ?
		ORDER BY review_number DESC
		LIMIT 1
	`, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest review: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	rev, err := scanReview(rows)
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

// =============================================================================
// TRANSACTIONAL STORE (lifecycle.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(lifecycle.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	ts := &txStore{tx: sqlTx, parent: s}
	if err := fn(ts); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) GetReport(ctx context.Context, id lifecycle.ReportID) (*lifecycle.Report, error) {
	return ts.parent.getReport(ctx, ts.tx, id)
}

func (ts *txStore) GetReportByDate(ctx context.Context, employeeID lifecycle.UserID, date lifecycle.Date) (*lifecycle.Report, error) {
	return ts.parent.getReportByDate(ctx, ts.tx, employeeID, date)
}

func (ts *txStore) InsertReport(ctx context.Context, r *lifecycle.Report) error {
	return ts.parent.insertReport(ctx, ts.tx, r)
}

func (ts *txStore) UpdateReport(ctx context.Context, r *lifecycle.Report, expectedVersion int) error {
	return ts.parent.updateReport(ctx, ts.tx, r, expectedVersion)
}

func (ts *txStore) AppendReview(ctx context.Context, rev *lifecycle.Review) error {
	return ts.parent.appendReview(ctx, ts.tx, rev)
}

func (ts *txStore) ListReviews(ctx context.Context, reportID lifecycle.ReportID) ([]lifecycle.Review, error) {
	return ts.parent.listReviews(ctx, ts.tx, reportID)
}

func (ts *txStore) LatestReview(ctx context.Context, reportID lifecycle.ReportID) (*lifecycle.Review, error) {
	return ts.parent.latestReview(ctx, ts.tx, reportID)
}

// =============================================================================
// USER STORE (identity.Directory interface)
// =============================================================================

// UserRecord is a stored user, as written by seeding and admin tooling.
type UserRecord struct {
	ID        string
	Name      string
	Email     string
	Role      identity.Role
	ManagerID string // employees only
	Active    bool
}

// SaveUser inserts or updates a user.
func (s *Store) SaveUser(ctx context.Context, u UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO users (id, name, email, role, manager_id, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			role = excluded.role,
			manager_id = excluded.manager_id,
			active = excluded.active
	`

	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Name, u.Email, u.Role,
		nullString(u.ManagerID), u.Active,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// Lookup returns the role variant for userID, or identity.ErrUnknownUser.
func (s *Store) Lookup(ctx context.Context, userID string) (identity.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		id, name, role string
		email          sql.NullString
		managerID      sql.NullString
		active         bool
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, role, manager_id, active FROM users WHERE id = ?",
		userID,
	).Scan(&id, &name, &email, &role, &managerID, &active)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", userID, identity.ErrUnknownUser)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	switch identity.Role(role) {
	case identity.RoleEmployee:
		return identity.Employee{
			ID: id, ManagerID: managerID.String,
			Name: name, Email: email.String, Active: active,
		}, nil
	case identity.RoleManager:
		return identity.Manager{ID: id, Name: name, Email: email.String, Active: active}, nil
	case identity.RoleAdmin:
		return identity.Admin{ID: id, Name: name, Email: email.String, Active: active}, nil
	default:
		return nil, fmt.Errorf("user %s has unknown role %q: %w", userID, role, identity.ErrUnknownUser)
	}
}

// ActiveEmployees returns all active employees ordered by name.
func (s *Store) ActiveEmployees(ctx context.Context) ([]identity.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, manager_id FROM users
		WHERE role = ? AND active = TRUE
		ORDER BY name
	`, identity.RoleEmployee)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	return scanEmployees(rows)
}

// ActiveManagers returns all active managers ordered by name.
func (s *Store) ActiveManagers(ctx context.Context) ([]identity.Manager, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email FROM users
		WHERE role = ? AND active = TRUE
		ORDER BY name
	`, identity.RoleManager)
	if err != nil {
		return nil, fmt.Errorf("failed to query managers: %w", err)
	}
	defer rows.Close()

	var managers []identity.Manager
	for rows.Next() {
		var m identity.Manager
		var email sql.NullString
		if err := rows.Scan(&m.ID, &m.Name, &email); err != nil {
			return nil, fmt.Errorf("failed to scan manager: %w", err)
		}
		m.Email = email.String
		m.Active = true
		managers = append(managers, m)
	}
	return managers, rows.Err()
}

// =============================================================================
// LISTING AND DASHBOARD QUERIES
// =============================================================================

// ReportFilter narrows listing and counting queries. Zero values mean
// "no constraint" except Limit, where zero means the default of 50.
type ReportFilter struct {
	EmployeeID    string // reports owned by this user
	ManagerID     string // reports owned by this manager's directs
	Status        lifecycle.ReportStatus
	From, To      *lifecycle.Date
	EmployeeQuery string // case-insensitive substring on the owner's name
	Limit         int
}

const defaultListLimit = 50

// ReportRow is a listed report joined with its owner's display name.
type ReportRow struct {
	lifecycle.Report
	EmployeeName string
}

func (f ReportFilter) where() (string, []any) {
	var conds []string
	var args []any

	if f.EmployeeID != "" {
		conds = append(conds, "r.employee_id = ?")
		args = append(args, f.EmployeeID)
	}
	if f.ManagerID != "" {
		conds = append(conds, "u.manager_id = ?")
		args = append(args, f.ManagerID)
	}
	if f.Status != "" {
		conds = append(conds, "r.status = ?")
		args = append(args, f.Status)
	}
	if f.From != nil {
		conds = append(conds, "r.report_date >= ?")
		args = append(args, f.From.String())
	}
	if f.To != nil {
		conds = append(conds, "r.report_date <= ?")
		args = append(args, f.To.String())
	}
	if f.EmployeeQuery != "" {
		conds = append(conds, "u.name LIKE ? COLLATE NOCASE")
		args = append(args, "%"+f.EmployeeQuery+"%")
	}

	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// ListReports returns reports matching the filter, newest report date
// first, then newest submission first.
func (s *Store) ListReports(ctx context.Context, f ReportFilter) ([]ReportRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := f.where()
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := fmt.Sprintf(`
		SELECT r.id, r.employee_id, r.report_date, r.project_name, r.tasks_completed,
		       r.hours_worked, r.blockers_issues, r.next_day_plan, r.status,
		       r.resubmission_count, r.version, r.submitted_at, r.updated_at,
		       u.name
		FROM reports r
		JOIN users u ON u.id = r.employee_id
		%s
		ORDER BY r.report_date DESC, r.submitted_at DESC
		LIMIT ?
	`, where)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var out []ReportRow
	for rows.Next() {
		var row ReportRow
		var reportDate, hours, submittedAt, updatedAt string
		var blockers sql.NullString
		if err := rows.Scan(
			&row.ID, &row.EmployeeID, &reportDate, &row.ProjectName, &row.TasksCompleted,
			&hours, &blockers, &row.NextDayPlan, &row.Status,
			&row.ResubmissionCount, &row.Version, &submittedAt, &updatedAt,
			&row.EmployeeName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		row.ReportDate, _ = lifecycle.ParseDate(reportDate)
		row.HoursWorked, _ = decimal.NewFromString(hours)
		row.BlockersIssues = blockers.String
		row.SubmittedAt, _ = time.Parse(time.RFC3339, submittedAt)
		row.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		out = append(out, row)
	}
	return out, rows.Err()
}

// StatusCounts returns how many matching reports sit in each status.
// Statuses with no reports are present with a zero count.
func (s *Store) StatusCounts(ctx context.Context, f ReportFilter) (map[lifecycle.ReportStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := f.where()
	query := fmt.Sprintf(`
		SELECT r.status, COUNT(*)
		FROM reports r
		JOIN users u ON u.id = r.employee_id
		%s
		GROUP BY r.status
	`, where)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count reports: %w", err)
	}
	defer rows.Close()

	counts := map[lifecycle.ReportStatus]int{
		lifecycle.StatusPending:  0,
		lifecycle.StatusApproved: 0,
		lifecycle.StatusRejected: 0,
	}
	for rows.Next() {
		var status lifecycle.ReportStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// =============================================================================
// REMINDER QUERIES (notify.Sources interface)
// =============================================================================

// EmployeesMissingReport returns active employees with no report for date.
func (s *Store) EmployeesMissingReport(ctx context.Context, date lifecycle.Date) ([]identity.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, manager_id FROM users
		WHERE role = ? AND active = TRUE
		  AND id NOT IN (SELECT employee_id FROM reports WHERE report_date = ?)
		ORDER BY name
	`, identity.RoleEmployee, date.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query employees without a report: %w", err)
	}
	defer rows.Close()

	return scanEmployees(rows)
}

// PendingReportsForManager returns the manager's team's PENDING reports,
// oldest report date first.
func (s *Store) PendingReportsForManager(ctx context.Context, managerID string) ([]notify.PendingItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT u.name, r.report_date
		FROM reports r
		JOIN users u ON u.id = r.employee_id
		WHERE r.status = ? AND u.manager_id = ?
		ORDER BY r.report_date ASC
	`, lifecycle.StatusPending, managerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending reports: %w", err)
	}
	defer rows.Close()

	var items []notify.PendingItem
	for rows.Next() {
		var item notify.PendingItem
		var reportDate string
		if err := rows.Scan(&item.EmployeeName, &reportDate); err != nil {
			return nil, fmt.Errorf("failed to scan pending report: %w", err)
		}
		item.ReportDate, _ = lifecycle.ParseDate(reportDate)
		items = append(items, item)
	}
	return items, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"reviews", "reports", "users"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func scanReport(row *sql.Row) (*lifecycle.Report, error) {
	var (
		r           lifecycle.Report
		reportDate  string
		hours       string
		blockers    sql.NullString
		submittedAt string
		updatedAt   string
	)
	err := row.Scan(
		&r.ID, &r.EmployeeID, &reportDate, &r.ProjectName, &r.TasksCompleted,
		&hours, &blockers, &r.NextDayPlan, &r.Status,
		&r.ResubmissionCount, &r.Version, &submittedAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan report: %w", err)
	}

	r.ReportDate, _ = lifecycle.ParseDate(reportDate)
	r.HoursWorked, _ = decimal.NewFromString(hours)
	r.BlockersIssues = blockers.String
	r.SubmittedAt, _ = time.Parse(time.RFC3339, submittedAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &r, nil
}

func scanReview(rows *sql.Rows) (lifecycle.Review, error) {
	var (
		rev        lifecycle.Review
		comments   sql.NullString
		reviewedAt string
	)
	err := rows.Scan(
		&rev.ID, &rev.ReportID, &rev.ReviewerID, &rev.ReviewNumber,
		&rev.Decision, &comments, &reviewedAt,
	)
	if err != nil {
		return rev, fmt.Errorf("failed to scan review: %w", err)
	}
	rev.Comments = comments.String
	rev.ReviewedAt, _ = time.Parse(time.RFC3339, reviewedAt)
	return rev, nil
}

func scanEmployees(rows *sql.Rows) ([]identity.Employee, error) {
	var employees []identity.Employee
	for rows.Next() {
		var e identity.Employee
		var email, managerID sql.NullString
		if err := rows.Scan(&e.ID, &e.Name, &email, &managerID); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		e.Email = email.String
		e.ManagerID = managerID.String
		e.Active = true
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

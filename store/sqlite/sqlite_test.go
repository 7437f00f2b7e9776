package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/eod-reports/identity"
	"github.com/warp/eod-reports/lifecycle"
	"github.com/warp/eod-reports/store/sqlite"
)

var testNow = time.Date(2026, time.August, 26, 18, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	users := []sqlite.UserRecord{
		{ID: "mgr-bob", Name: "Bob", Email: "bob@example.com", Role: identity.RoleManager, Active: true},
		{ID: "mgr-carol", Name: "Carol", Email: "carol@example.com", Role: identity.RoleManager, Active: true},
		{ID: "adm-dave", Name: "Dave", Email: "dave@example.com", Role: identity.RoleAdmin, Active: true},
		{ID: "emp-alice", Name: "Alice", Email: "alice@example.com", Role: identity.RoleEmployee, ManagerID: "mgr-bob", Active: true},
		{ID: "emp-erin", Name: "Erin", Email: "erin@example.com", Role: identity.RoleEmployee, ManagerID: "mgr-bob", Active: true},
		{ID: "emp-frank", Name: "Frank", Role: identity.RoleEmployee, ManagerID: "mgr-carol", Active: true},
		{ID: "emp-gone", Name: "Gone", Email: "gone@example.com", Role: identity.RoleEmployee, ManagerID: "mgr-bob", Active: false},
	}
	for _, u := range users {
		require.NoError(t, s.SaveUser(ctx, u))
	}
	return s
}

func testReport(id lifecycle.ReportID, employee lifecycle.UserID, date lifecycle.Date, status lifecycle.ReportStatus) *lifecycle.Report {
	return &lifecycle.Report{
		ID:         id,
		EmployeeID: employee,
		ReportDate: date,
		ReportPayload: lifecycle.ReportPayload{
			ProjectName:    "Platform",
			TasksCompleted: "Shipped the listing endpoint",
			HoursWorked:    decimal.NewFromFloat(7.5),
			NextDayPlan:    "Address review comments",
		},
		Status:      status,
		Version:     1,
		SubmittedAt: testNow,
		UpdatedAt:   testNow,
	}
}

// =============================================================================
// REPORT PERSISTENCE
// =============================================================================

func TestInsertAndGetReport(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	date := lifecycle.DateOf(testNow)

	r := testReport("rep-1", "emp-alice", date, lifecycle.StatusPending)
	require.NoError(t, s.InsertReport(ctx, r))

	got, err := s.GetReport(ctx, "rep-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, r.EmployeeID, got.EmployeeID)
	assert.Equal(t, "2026-08-26", got.ReportDate.String())
	assert.True(t, got.HoursWorked.Equal(decimal.NewFromFloat(7.5)), "decimal must survive the round trip")
	assert.Equal(t, lifecycle.StatusPending, got.Status)
	assert.Equal(t, 1, got.Version)

	byDate, err := s.GetReportByDate(ctx, "emp-alice", date)
	require.NoError(t, err)
	require.NotNil(t, byDate)
	assert.Equal(t, r.ID, byDate.ID)

	missing, err := s.GetReport(ctx, "rep-unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestInsertReport_DuplicateDate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	date := lifecycle.DateOf(testNow)

	require.NoError(t, s.InsertReport(ctx, testReport("rep-1", "emp-alice", date, lifecycle.StatusPending)))

	err := s.InsertReport(ctx, testReport("rep-2", "emp-alice", date, lifecycle.StatusPending))
	assert.ErrorIs(t, err, lifecycle.ErrDuplicateReport)

	// Different employee, same date is fine.
	assert.NoError(t, s.InsertReport(ctx, testReport("rep-3", "emp-erin", date, lifecycle.StatusPending)))
}

func TestUpdateReport_OptimisticLock(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	r := testReport("rep-1", "emp-alice", lifecycle.DateOf(testNow), lifecycle.StatusPending)
	require.NoError(t, s.InsertReport(ctx, r))

	r.TasksCompleted = "Revised"
	r.Version = 2
	require.NoError(t, s.UpdateReport(ctx, r, 1))

	// Stale expectation loses.
	r.Version = 3
	err := s.UpdateReport(ctx, r, 1)
	assert.ErrorIs(t, err, lifecycle.ErrConcurrentModification)

	// Unknown id is not a conflict.
	ghost := testReport("rep-ghost", "emp-alice", lifecycle.DateOf(testNow).AddDays(-1), lifecycle.StatusPending)
	err = s.UpdateReport(ctx, ghost, 1)
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)
}

// =============================================================================
// REVIEW LEDGER
// =============================================================================

func TestReviewLedger_AppendOrderAndLatest(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertReport(ctx,
		testReport("rep-1", "emp-alice", lifecycle.DateOf(testNow), lifecycle.StatusPending)))

	none, err := s.LatestReview(ctx, "rep-1")
	require.NoError(t, err)
	assert.Nil(t, none)

	for i := 1; i <= 3; i++ {
		rev := &lifecycle.Review{
			ID:           lifecycle.NewReviewID(),
			ReportID:     "rep-1",
			ReviewerID:   "mgr-bob",
			ReviewNumber: i,
			Decision:     lifecycle.DecisionRejected,
			Comments:     "round",
			ReviewedAt:   testNow.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, s.AppendReview(ctx, rev))
	}

	reviews, err := s.ListReviews(ctx, "rep-1")
	require.NoError(t, err)
	require.Len(t, reviews, 3)
	for i, rev := range reviews {
		assert.Equal(t, i+1, rev.ReviewNumber)
	}

	latest, err := s.LatestReview(ctx, "rep-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 3, latest.ReviewNumber)
}

func TestAppendReview_DuplicateNumber(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertReport(ctx,
		testReport("rep-1", "emp-alice", lifecycle.DateOf(testNow), lifecycle.StatusPending)))

	mk := func() *lifecycle.Review {
		return &lifecycle.Review{
			ID: lifecycle.NewReviewID(), ReportID: "rep-1", ReviewerID: "mgr-bob",
			ReviewNumber: 1, Decision: lifecycle.DecisionApproved, ReviewedAt: testNow,
		}
	}
	require.NoError(t, s.AppendReview(ctx, mk()))
	err := s.AppendReview(ctx, mk())
	assert.ErrorIs(t, err, lifecycle.ErrDuplicateReviewNumber)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollbackOnError(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	boom := assert.AnError
	err := s.WithTx(ctx, func(tx lifecycle.Store) error {
		if err := tx.InsertReport(ctx,
			testReport("rep-1", "emp-alice", lifecycle.DateOf(testNow), lifecycle.StatusPending)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetReport(ctx, "rep-1")
	require.NoError(t, err)
	assert.Nil(t, got, "insert should have been rolled back")
}

func TestWithTx_CommitOnSuccess(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx lifecycle.Store) error {
		return tx.InsertReport(ctx,
			testReport("rep-1", "emp-alice", lifecycle.DateOf(testNow), lifecycle.StatusPending))
	})
	require.NoError(t, err)

	got, err := s.GetReport(ctx, "rep-1")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

// =============================================================================
// DIRECTORY
// =============================================================================

func TestLookup_RoleVariants(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	ident, err := s.Lookup(ctx, "emp-alice")
	require.NoError(t, err)
	emp, ok := ident.(identity.Employee)
	require.True(t, ok)
	assert.Equal(t, "mgr-bob", emp.ManagerID)
	assert.True(t, emp.Active)

	ident, err = s.Lookup(ctx, "mgr-bob")
	require.NoError(t, err)
	_, ok = ident.(identity.Manager)
	assert.True(t, ok)

	ident, err = s.Lookup(ctx, "adm-dave")
	require.NoError(t, err)
	_, ok = ident.(identity.Admin)
	assert.True(t, ok)

	_, err = s.Lookup(ctx, "nobody")
	assert.ErrorIs(t, err, identity.ErrUnknownUser)
}

func TestActiveEmployees_ExcludesInactive(t *testing.T) {
	s := newStore(t)
	employees, err := s.ActiveEmployees(context.Background())
	require.NoError(t, err)
	ids := make([]string, 0, len(employees))
	for _, e := range employees {
		ids = append(ids, e.ID)
	}
	assert.ElementsMatch(t, []string{"emp-alice", "emp-erin", "emp-frank"}, ids)
}

// =============================================================================
// LISTING AND DASHBOARD
// =============================================================================

func seedReports(t *testing.T, s *sqlite.Store) {
	t.Helper()
	ctx := context.Background()
	date := lifecycle.DateOf(testNow)

	require.NoError(t, s.InsertReport(ctx, testReport("rep-a1", "emp-alice", date, lifecycle.StatusPending)))
	require.NoError(t, s.InsertReport(ctx, testReport("rep-a2", "emp-alice", date.AddDays(-1), lifecycle.StatusApproved)))
	require.NoError(t, s.InsertReport(ctx, testReport("rep-e1", "emp-erin", date, lifecycle.StatusRejected)))
	require.NoError(t, s.InsertReport(ctx, testReport("rep-f1", "emp-frank", date, lifecycle.StatusPending)))
}

func TestListReports_Scoping(t *testing.T) {
	s := newStore(t)
	seedReports(t, s)
	ctx := context.Background()

	own, err := s.ListReports(ctx, sqlite.ReportFilter{EmployeeID: "emp-alice"})
	require.NoError(t, err)
	assert.Len(t, own, 2)
	assert.Equal(t, "Alice", own[0].EmployeeName)

	team, err := s.ListReports(ctx, sqlite.ReportFilter{ManagerID: "mgr-bob"})
	require.NoError(t, err)
	assert.Len(t, team, 3, "Bob's team is Alice and Erin")

	all, err := s.ListReports(ctx, sqlite.ReportFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestListReports_FiltersAndOrder(t *testing.T) {
	s := newStore(t)
	seedReports(t, s)
	ctx := context.Background()
	date := lifecycle.DateOf(testNow)

	pending, err := s.ListReports(ctx, sqlite.ReportFilter{Status: lifecycle.StatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	from := date
	today, err := s.ListReports(ctx, sqlite.ReportFilter{From: &from})
	require.NoError(t, err)
	assert.Len(t, today, 3)

	byName, err := s.ListReports(ctx, sqlite.ReportFilter{EmployeeQuery: "ali"})
	require.NoError(t, err)
	require.Len(t, byName, 2)

	// Newest report date first.
	all, err := s.ListReports(ctx, sqlite.ReportFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, all)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i-1].ReportDate.Before(all[i].ReportDate))
	}
}

func TestStatusCounts(t *testing.T) {
	s := newStore(t)
	seedReports(t, s)

	counts, err := s.StatusCounts(context.Background(), sqlite.ReportFilter{ManagerID: "mgr-bob"})
	require.NoError(t, err)
	assert.Equal(t, 1, counts[lifecycle.StatusPending])
	assert.Equal(t, 1, counts[lifecycle.StatusApproved])
	assert.Equal(t, 1, counts[lifecycle.StatusRejected])
}

// =============================================================================
// REMINDER QUERIES
// =============================================================================

func TestEmployeesMissingReport(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	date := lifecycle.DateOf(testNow)

	require.NoError(t, s.InsertReport(ctx, testReport("rep-a1", "emp-alice", date, lifecycle.StatusPending)))

	missing, err := s.EmployeesMissingReport(ctx, date)
	require.NoError(t, err)
	ids := make([]string, 0, len(missing))
	for _, e := range missing {
		ids = append(ids, e.ID)
	}
	// Alice submitted; the inactive employee is never selected.
	assert.ElementsMatch(t, []string{"emp-erin", "emp-frank"}, ids)
}

func TestPendingReportsForManager(t *testing.T) {
	s := newStore(t)
	seedReports(t, s)

	pending, err := s.PendingReportsForManager(context.Background(), "mgr-bob")
	require.NoError(t, err)
	require.Len(t, pending, 1, "only Alice's report is PENDING on Bob's team")
	assert.Equal(t, "Alice", pending[0].EmployeeName)
	assert.Equal(t, "2026-08-26", pending[0].ReportDate.String())
}

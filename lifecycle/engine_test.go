package lifecycle_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/eod-reports/identity"
	"github.com/warp/eod-reports/lifecycle"
	"github.com/warp/eod-reports/lifecycle/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fakeDirectory struct {
	users map[string]identity.Identity
}

func (d *fakeDirectory) Lookup(_ context.Context, userID string) (identity.Identity, error) {
	u, ok := d.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, identity.ErrUnknownUser)
	}
	return u, nil
}

func (d *fakeDirectory) ActiveEmployees(context.Context) ([]identity.Employee, error) {
	var out []identity.Employee
	for _, u := range d.users {
		if e, ok := u.(identity.Employee); ok && e.Active {
			out = append(out, e)
		}
	}
	return out, nil
}

func (d *fakeDirectory) ActiveManagers(context.Context) ([]identity.Manager, error) {
	var out []identity.Manager
	for _, u := range d.users {
		if m, ok := u.(identity.Manager); ok && m.Active {
			out = append(out, m)
		}
	}
	return out, nil
}

var (
	alice = identity.Employee{ID: "emp-alice", ManagerID: "mgr-bob", Name: "Alice", Active: true}
	bob   = identity.Manager{ID: "mgr-bob", Name: "Bob", Active: true}
	carol = identity.Manager{ID: "mgr-carol", Name: "Carol", Active: true}
	dave  = identity.Admin{ID: "adm-dave", Name: "Dave", Active: true}
)

func newTestEngine() *lifecycle.Engine {
	dir := &fakeDirectory{users: map[string]identity.Identity{
		alice.ID: alice,
		bob.ID:   bob,
		carol.ID: carol,
		dave.ID:  dave,
	}}
	return lifecycle.NewEngine(store.NewTxMemory(), dir)
}

func submit(t *testing.T, e *lifecycle.Engine, at time.Time) *lifecycle.Report {
	t.Helper()
	r, err := e.Submit(context.Background(), lifecycle.UserID(alice.ID),
		lifecycle.DateOf(at), validPayload(), at)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	return r
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestSubmit_CreatesPendingReport(t *testing.T) {
	// GIVEN: no report for today
	// WHEN: the employee submits
	// THEN: a PENDING report exists with count 0 and version 1
	e := newTestEngine()
	r := submit(t, e, testNow)

	if r.Status != lifecycle.StatusPending {
		t.Errorf("expected PENDING, got %s", r.Status)
	}
	if r.ResubmissionCount != 0 {
		t.Errorf("expected count 0, got %d", r.ResubmissionCount)
	}
	if r.Version != 1 {
		t.Errorf("expected version 1, got %d", r.Version)
	}
	if !r.SubmittedAt.Equal(testNow) {
		t.Errorf("expected SubmittedAt %v, got %v", testNow, r.SubmittedAt)
	}
}

func TestSubmit_DefaultsProjectName(t *testing.T) {
	e := newTestEngine()
	p := validPayload()
	p.ProjectName = ""
	r, err := e.Submit(context.Background(), lifecycle.UserID(alice.ID),
		lifecycle.DateOf(testNow), p, testNow)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if r.ProjectName != lifecycle.DefaultProjectName {
		t.Errorf("expected default project name, got %q", r.ProjectName)
	}
}

func TestSubmit_SecondSubmitSameDay_EditsInPlace(t *testing.T) {
	// GIVEN: a PENDING report for today
	// WHEN: the employee submits the same date again with new content
	// THEN: the report is edited, not duplicated; count stays 0
	e := newTestEngine()
	first := submit(t, e, testNow)

	p := validPayload()
	p.TasksCompleted = "Revised task list"
	later := testNow.Add(30 * time.Minute)
	second, err := e.Submit(context.Background(), lifecycle.UserID(alice.ID),
		lifecycle.DateOf(testNow), p, later)
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}

	if second.ID != first.ID {
		t.Error("edit must reuse the existing report")
	}
	if second.TasksCompleted != "Revised task list" {
		t.Errorf("content not updated: %q", second.TasksCompleted)
	}
	if second.ResubmissionCount != 0 {
		t.Errorf("pending edit must not bump count, got %d", second.ResubmissionCount)
	}
	if !second.SubmittedAt.Equal(testNow) {
		t.Error("SubmittedAt must keep the original submission time")
	}
	if second.Version != 2 {
		t.Errorf("expected version 2, got %d", second.Version)
	}
}

func TestSubmit_FutureAndWeekendRejected(t *testing.T) {
	e := newTestEngine()

	_, err := e.Submit(context.Background(), lifecycle.UserID(alice.ID),
		lifecycle.DateOf(testNow).AddDays(1), validPayload(), testNow)
	var ve *lifecycle.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for future date, got %v", err)
	}

	saturday := lifecycle.NewDate(2026, time.August, 22)
	_, err = e.Submit(context.Background(), lifecycle.UserID(alice.ID),
		saturday, validPayload(), testNow)
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for weekend, got %v", err)
	}
}

// =============================================================================
// REVIEW
// =============================================================================

func TestReview_Approve_Terminal(t *testing.T) {
	// GIVEN: a PENDING report
	// WHEN: the owner's manager approves it
	// THEN: the report is APPROVED and can never be edited or re-reviewed
	e := newTestEngine()
	ctx := context.Background()
	r := submit(t, e, testNow)

	rev, err := e.Review(ctx, r.ID, bob, lifecycle.DecisionApproved, "good work", testNow)
	if err != nil {
		t.Fatalf("review failed: %v", err)
	}
	if rev.ReviewNumber != 1 {
		t.Errorf("expected review number 1, got %d", rev.ReviewNumber)
	}

	// Edit attempt on the approved report
	_, err = e.Submit(ctx, lifecycle.UserID(alice.ID), r.ReportDate, validPayload(), testNow)
	if !errors.Is(err, lifecycle.ErrReportLocked) {
		t.Fatalf("expected ErrReportLocked, got %v", err)
	}

	// Second review attempt
	_, err = e.Review(ctx, r.ID, bob, lifecycle.DecisionRejected, "changed my mind", testNow)
	if !errors.Is(err, lifecycle.ErrAlreadyFinalized) {
		t.Fatalf("expected ErrAlreadyFinalized, got %v", err)
	}
}

func TestReview_InvalidDecision(t *testing.T) {
	e := newTestEngine()
	r := submit(t, e, testNow)

	_, err := e.Review(context.Background(), r.ID, bob, "MAYBE", "", testNow)
	var ve *lifecycle.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestReview_UnknownReport(t *testing.T) {
	e := newTestEngine()
	_, err := e.Review(context.Background(), "rep-missing", bob,
		lifecycle.DecisionApproved, "", testNow)
	if !lifecycle.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReview_AuthorizationGate(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	r := submit(t, e, testNow)

	// Employees never review, not even their own report.
	_, err := e.Review(ctx, r.ID, alice, lifecycle.DecisionApproved, "", testNow)
	if !errors.Is(err, identity.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for employee, got %v", err)
	}

	// A manager from another team is out of scope.
	_, err = e.Review(ctx, r.ID, carol, lifecycle.DecisionApproved, "", testNow)
	if !errors.Is(err, identity.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for other manager, got %v", err)
	}

	// Admins review anyone.
	if _, err := e.Review(ctx, r.ID, dave, lifecycle.DecisionApproved, "", testNow); err != nil {
		t.Fatalf("admin review failed: %v", err)
	}
}

// =============================================================================
// RESUBMISSION CYCLE
// =============================================================================

func TestResubmission_FullCycle(t *testing.T) {
	// GIVEN: a report rejected by the manager
	// WHEN: the employee resubmits within the window
	// THEN: status returns to PENDING, count is 1, and the next review
	//       gets number 2
	e := newTestEngine()
	ctx := context.Background()
	r := submit(t, e, testNow)

	if _, err := e.Review(ctx, r.ID, bob, lifecycle.DecisionRejected, "missing details", testNow); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	nextDay := testNow.Add(24 * time.Hour)
	resubmitted, err := e.Submit(ctx, lifecycle.UserID(alice.ID), r.ReportDate, validPayload(), nextDay)
	if err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	if resubmitted.Status != lifecycle.StatusPending {
		t.Errorf("expected PENDING after resubmit, got %s", resubmitted.Status)
	}
	if resubmitted.ResubmissionCount != 1 {
		t.Errorf("expected count 1, got %d", resubmitted.ResubmissionCount)
	}

	rev, err := e.Review(ctx, r.ID, bob, lifecycle.DecisionApproved, "better", nextDay)
	if err != nil {
		t.Fatalf("second review failed: %v", err)
	}
	if rev.ReviewNumber != 2 {
		t.Errorf("expected review number 2, got %d", rev.ReviewNumber)
	}

	history, err := e.History(ctx, r.ID)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 reviews, got %d", len(history))
	}
	for i, rev := range history {
		if rev.ReviewNumber != i+1 {
			t.Errorf("review %d has number %d, numbering must be gapless", i, rev.ReviewNumber)
		}
	}
}

func TestResubmission_CapExhausted(t *testing.T) {
	// GIVEN: a report rejected and resubmitted three times
	// WHEN: the employee tries a fourth resubmission
	// THEN: ErrAttemptsExhausted, permanently
	e := newTestEngine()
	ctx := context.Background()
	r := submit(t, e, testNow)

	at := testNow
	for i := 0; i < lifecycle.MaxResubmissions; i++ {
		if _, err := e.Review(ctx, r.ID, bob, lifecycle.DecisionRejected, "again", at); err != nil {
			t.Fatalf("reject %d failed: %v", i+1, err)
		}
		at = at.Add(time.Hour)
		if _, err := e.Submit(ctx, lifecycle.UserID(alice.ID), r.ReportDate, validPayload(), at); err != nil {
			t.Fatalf("resubmit %d failed: %v", i+1, err)
		}
	}

	// Fourth rejection; the cap is now reached.
	if _, err := e.Review(ctx, r.ID, bob, lifecycle.DecisionRejected, "final", at); err != nil {
		t.Fatalf("final reject failed: %v", err)
	}
	_, err := e.Submit(ctx, lifecycle.UserID(alice.ID), r.ReportDate, validPayload(), at.Add(time.Hour))
	if !errors.Is(err, lifecycle.ErrAttemptsExhausted) {
		t.Fatalf("expected ErrAttemptsExhausted, got %v", err)
	}
}

func TestResubmission_WindowExpiry(t *testing.T) {
	// GIVEN: a report rejected 8 days ago
	// WHEN: the employee resubmits
	// THEN: ErrEditWindowExpired
	e := newTestEngine()
	ctx := context.Background()
	r := submit(t, e, testNow)

	if _, err := e.Review(ctx, r.ID, bob, lifecycle.DecisionRejected, "late", testNow); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	eightDaysLater := testNow.Add(8 * 24 * time.Hour)
	_, err := e.Submit(ctx, lifecycle.UserID(alice.ID), r.ReportDate, validPayload(), eightDaysLater)
	if !errors.Is(err, lifecycle.ErrEditWindowExpired) {
		t.Fatalf("expected ErrEditWindowExpired, got %v", err)
	}
}

func TestResubmission_WindowResetsPerRejection(t *testing.T) {
	// GIVEN: first rejection 6 days ago, resubmission, second rejection now
	// WHEN: the employee resubmits 5 days after the SECOND rejection
	// THEN: allowed - the window measures from the latest review
	e := newTestEngine()
	ctx := context.Background()
	r := submit(t, e, testNow)

	if _, err := e.Review(ctx, r.ID, bob, lifecycle.DecisionRejected, "first", testNow); err != nil {
		t.Fatalf("first reject failed: %v", err)
	}
	sixDays := testNow.Add(6 * 24 * time.Hour)
	if _, err := e.Submit(ctx, lifecycle.UserID(alice.ID), r.ReportDate, validPayload(), sixDays); err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	if _, err := e.Review(ctx, r.ID, bob, lifecycle.DecisionRejected, "second", sixDays); err != nil {
		t.Fatalf("second reject failed: %v", err)
	}

	elevenDays := testNow.Add(11 * 24 * time.Hour) // 5 days after the second rejection
	got, err := e.Submit(ctx, lifecycle.UserID(alice.ID), r.ReportDate, validPayload(), elevenDays)
	if err != nil {
		t.Fatalf("resubmit within the fresh window failed: %v", err)
	}
	if got.ResubmissionCount != 2 {
		t.Errorf("expected count 2, got %d", got.ResubmissionCount)
	}
}

// =============================================================================
// PROJECTIONS
// =============================================================================

func TestEditable_Projection(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	r := submit(t, e, testNow)

	canEdit, err := e.Editable(ctx, r, testNow)
	if err != nil || !canEdit {
		t.Fatalf("pending report should be editable, got %v/%v", canEdit, err)
	}

	if _, err := e.Review(ctx, r.ID, bob, lifecycle.DecisionApproved, "", testNow); err != nil {
		t.Fatalf("review failed: %v", err)
	}
	approved, err := e.Store.GetReport(ctx, r.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	canEdit, err = e.Editable(ctx, approved, testNow)
	if err != nil || canEdit {
		t.Fatalf("approved report must not be editable, got %v/%v", canEdit, err)
	}
}

func TestOptimisticLock_StaleVersionFails(t *testing.T) {
	// GIVEN: a stored report at version 1
	// WHEN: an update claims version that has already advanced
	// THEN: ErrConcurrentModification
	m := store.NewTxMemory()
	ctx := context.Background()

	r := &lifecycle.Report{
		ID:         "rep-1",
		EmployeeID: "emp-alice",
		ReportDate: lifecycle.DateOf(testNow),
		ReportPayload: lifecycle.ReportPayload{
			ProjectName: "Platform", TasksCompleted: "t",
			HoursWorked: decimal.NewFromInt(8), NextDayPlan: "n",
		},
		Status:  lifecycle.StatusPending,
		Version: 1,
	}
	if err := m.InsertReport(ctx, r); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	r.Version = 2
	if err := m.UpdateReport(ctx, r, 1); err != nil {
		t.Fatalf("first update failed: %v", err)
	}

	r.Version = 3
	err := m.UpdateReport(ctx, r, 1) // stale expectation
	if !errors.Is(err, lifecycle.ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification, got %v", err)
	}
}

func TestDuplicateInsert_SameEmployeeAndDate(t *testing.T) {
	m := store.NewTxMemory()
	ctx := context.Background()

	mk := func(id lifecycle.ReportID) *lifecycle.Report {
		return &lifecycle.Report{
			ID: id, EmployeeID: "emp-alice", ReportDate: lifecycle.DateOf(testNow),
			Status: lifecycle.StatusPending, Version: 1,
		}
	}
	if err := m.InsertReport(ctx, mk("rep-1")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	err := m.InsertReport(ctx, mk("rep-2"))
	if !errors.Is(err, lifecycle.ErrDuplicateReport) {
		t.Fatalf("expected ErrDuplicateReport, got %v", err)
	}
}

func TestWithTx_RollbackOnError(t *testing.T) {
	// GIVEN: a transaction that inserts then fails
	// THEN: the insert is rolled back
	m := store.NewTxMemory()
	ctx := context.Background()

	failure := errors.New("boom")
	err := m.WithTx(ctx, func(s lifecycle.Store) error {
		r := &lifecycle.Report{
			ID: "rep-1", EmployeeID: "emp-alice", ReportDate: lifecycle.DateOf(testNow),
			Status: lifecycle.StatusPending, Version: 1,
		}
		if err := s.InsertReport(ctx, r); err != nil {
			return err
		}
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("expected the inner error, got %v", err)
	}

	got, err := m.GetReport(ctx, "rep-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != nil {
		t.Error("insert should have been rolled back")
	}
}

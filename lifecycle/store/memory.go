// Package store provides an in-memory lifecycle.Store for tests and dev.
package store

import (
	"context"
	"sync"

	"github.com/warp/eod-reports/lifecycle"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	reports  map[lifecycle.ReportID]*lifecycle.Report
	byDate   map[dateKey]lifecycle.ReportID
	reviews  map[lifecycle.ReportID][]lifecycle.Review
}

type dateKey struct {
	EmployeeID lifecycle.UserID
	Date       string
}

func NewMemory() *Memory {
	return &Memory{
		reports: make(map[lifecycle.ReportID]*lifecycle.Report),
		byDate:  make(map[dateKey]lifecycle.ReportID),
		reviews: make(map[lifecycle.ReportID][]lifecycle.Review),
	}
}

func (m *Memory) GetReport(_ context.Context, id lifecycle.ReportID) (*lifecycle.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(id), nil
}

func (m *Memory) GetReportByDate(_ context.Context, employeeID lifecycle.UserID, date lifecycle.Date) (*lifecycle.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byDate[dateKey{EmployeeID: employeeID, Date: date.String()}]
	if !ok {
		return nil, nil
	}
	return m.getLocked(id), nil
}

func (m *Memory) InsertReport(_ context.Context, r *lifecycle.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(r)
}

func (m *Memory) UpdateReport(_ context.Context, r *lifecycle.Report, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(r, expectedVersion)
}

func (m *Memory) AppendReview(_ context.Context, rev *lifecycle.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendReviewLocked(rev)
}

func (m *Memory) ListReviews(_ context.Context, reportID lifecycle.ReportID) ([]lifecycle.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]lifecycle.Review, len(m.reviews[reportID]))
	copy(out, m.reviews[reportID])
	return out, nil
}

func (m *Memory) LatestReview(_ context.Context, reportID lifecycle.ReportID) (*lifecycle.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latestLocked(reportID), nil
}

// Unsynchronized internals; callers hold the lock.

func (m *Memory) getLocked(id lifecycle.ReportID) *lifecycle.Report {
	r, ok := m.reports[id]
	if !ok {
		return nil
	}
	cp := *r
	return &cp
}

func (m *Memory) insertLocked(r *lifecycle.Report) error {
	k := dateKey{EmployeeID: r.EmployeeID, Date: r.ReportDate.String()}
	if _, exists := m.byDate[k]; exists {
		return &lifecycle.DuplicateReportError{EmployeeID: r.EmployeeID, ReportDate: r.ReportDate}
	}
	cp := *r
	m.reports[r.ID] = &cp
	m.byDate[k] = r.ID
	return nil
}

func (m *Memory) updateLocked(r *lifecycle.Report, expectedVersion int) error {
	stored, ok := m.reports[r.ID]
	if !ok {
		return lifecycle.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return lifecycle.ErrConcurrentModification
	}
	cp := *r
	m.reports[r.ID] = &cp
	return nil
}

func (m *Memory) appendReviewLocked(rev *lifecycle.Review) error {
	for _, existing := range m.reviews[rev.ReportID] {
		if existing.ReviewNumber == rev.ReviewNumber {
			return lifecycle.ErrDuplicateReviewNumber
		}
	}
	m.reviews[rev.ReportID] = append(m.reviews[rev.ReportID], *rev)
	return nil
}

func (m *Memory) latestLocked(reportID lifecycle.ReportID) *lifecycle.Review {
	revs := m.reviews[reportID]
	if len(revs) == 0 {
		return nil
	}
	latest := revs[0]
	for _, rev := range revs[1:] {
		if rev.ReviewNumber > latest.ReviewNumber {
			latest = rev
		}
	}
	return &latest
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support: a snapshot is taken
// before fn runs and restored if fn fails.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

func (tm *TxMemory) WithTx(_ context.Context, fn func(lifecycle.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snap := tm.snapshot()
	view := &txMemoryView{parent: tm.Memory}
	if err := fn(view); err != nil {
		tm.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	reports map[lifecycle.ReportID]*lifecycle.Report
	byDate  map[dateKey]lifecycle.ReportID
	reviews map[lifecycle.ReportID][]lifecycle.Review
}

func (tm *TxMemory) snapshot() memorySnapshot {
	reports := make(map[lifecycle.ReportID]*lifecycle.Report, len(tm.reports))
	for k, v := range tm.reports {
		cp := *v
		reports[k] = &cp
	}
	byDate := make(map[dateKey]lifecycle.ReportID, len(tm.byDate))
	for k, v := range tm.byDate {
		byDate[k] = v
	}
	reviews := make(map[lifecycle.ReportID][]lifecycle.Review, len(tm.reviews))
	for k, v := range tm.reviews {
		reviews[k] = append([]lifecycle.Review{}, v...)
	}
	return memorySnapshot{reports: reports, byDate: byDate, reviews: reviews}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.reports = s.reports
	tm.byDate = s.byDate
	tm.reviews = s.reviews
}

// txMemoryView runs against the parent's maps while the parent lock is
// already held by WithTx.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) GetReport(_ context.Context, id lifecycle.ReportID) (*lifecycle.Report, error) {
	return tv.parent.getLocked(id), nil
}

func (tv *txMemoryView) GetReportByDate(_ context.Context, employeeID lifecycle.UserID, date lifecycle.Date) (*lifecycle.Report, error) {
	id, ok := tv.parent.byDate[dateKey{EmployeeID: employeeID, Date: date.String()}]
	if !ok {
		return nil, nil
	}
	return tv.parent.getLocked(id), nil
}

func (tv *txMemoryView) InsertReport(_ context.Context, r *lifecycle.Report) error {
	return tv.parent.insertLocked(r)
}

func (tv *txMemoryView) UpdateReport(_ context.Context, r *lifecycle.Report, expectedVersion int) error {
	return tv.parent.updateLocked(r, expectedVersion)
}

func (tv *txMemoryView) AppendReview(_ context.Context, rev *lifecycle.Review) error {
	return tv.parent.appendReviewLocked(rev)
}

func (tv *txMemoryView) ListReviews(_ context.Context, reportID lifecycle.ReportID) ([]lifecycle.Review, error) {
	out := make([]lifecycle.Review, len(tv.parent.reviews[reportID]))
	copy(out, tv.parent.reviews[reportID])
	return out, nil
}

func (tv *txMemoryView) LatestReview(_ context.Context, reportID lifecycle.ReportID) (*lifecycle.Review, error) {
	return tv.parent.latestLocked(reportID), nil
}

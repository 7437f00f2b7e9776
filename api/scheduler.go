/*
scheduler.go - Automated reminder scheduler

PURPOSE:
  Periodically runs the notification batches: submission reminders for
  employees who have not filed today's report, and review digests for
  managers with pending reports.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Weekdays only; weekend ticks are no-ops
  - Sends at most once per calendar day, so a short CheckInterval does
    not spam recipients
  - Batches never abort on a single recipient failure (see notify)

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)
  - DryRun: Select recipients but send nothing

USAGE:
  scheduler := NewReminderScheduler(store, mailer, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - notify/notify.go: the batches themselves
  - cmd/remind: one-shot CLI alternative
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/eod-reports/lifecycle"
	"github.com/warp/eod-reports/notify"
)

// ReminderScheduler drives the notification batches on a timer.
type ReminderScheduler struct {
	Sources       notify.Sources
	Mailer        notify.Mailer
	Log           *zap.Logger
	CheckInterval time.Duration
	Enabled       bool
	DryRun        bool
	Now           func() time.Time // clock source, swappable in tests

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex // guards Start/Stop lifecycle only

	// lastSent has its own lock: checkAndSend runs on the worker
	// goroutine and must never contend with Stop, which holds mu
	// across wg.Wait.
	sentMu   sync.Mutex
	lastSent lifecycle.Date
}

// NewReminderScheduler creates a new scheduler.
func NewReminderScheduler(src notify.Sources, mailer notify.Mailer, log *zap.Logger) *ReminderScheduler {
	return &ReminderScheduler{
		Sources:       src,
		Mailer:        mailer,
		Log:           log,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Now:           time.Now,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (rs *ReminderScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Log.Info("reminder scheduler disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run(rs.ticker)

	rs.Log.Info("reminder scheduler started", zap.Duration("check_interval", rs.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight batch to finish.
// Safe to call more than once.
func (rs *ReminderScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		rs.ticker = nil
		close(rs.stop)
		rs.wg.Wait()
		rs.Log.Info("reminder scheduler stopped")
	}
}

func (rs *ReminderScheduler) run(ticker *time.Ticker) {
	defer rs.wg.Done()

	// Run immediately on start
	rs.checkAndSend(rs.Now())

	for {
		select {
		case <-ticker.C:
			rs.checkAndSend(rs.Now())
		case <-rs.stop:
			return
		}
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (rs *ReminderScheduler) RunNow(now time.Time) {
	rs.checkAndSend(now)
}

func (rs *ReminderScheduler) checkAndSend(now time.Time) {
	today := lifecycle.DateOf(now)
	if !today.IsWorkday() {
		return
	}

	rs.sentMu.Lock()
	alreadySent := rs.lastSent.Equal(today)
	rs.sentMu.Unlock()
	if alreadySent {
		return
	}

	ctx := context.Background()

	reminders, err := notify.SubmissionReminders(ctx, rs.Sources, rs.Mailer, rs.Log, today, rs.DryRun)
	if err != nil {
		rs.Log.Error("submission reminder batch failed", zap.Error(err))
		return
	}
	digests, err := notify.ReviewDigests(ctx, rs.Sources, rs.Mailer, rs.Log, rs.DryRun)
	if err != nil {
		rs.Log.Error("review digest batch failed", zap.Error(err))
		return
	}

	rs.sentMu.Lock()
	rs.lastSent = today
	rs.sentMu.Unlock()

	rs.Log.Info("reminder batches completed",
		zap.String("date", today.String()),
		zap.Bool("dry_run", rs.DryRun),
		zap.Int("reminders_sent", reminders.Sent),
		zap.Int("reminders_failed", reminders.Failed),
		zap.Int("reminders_skipped", reminders.Skipped),
		zap.Int("digests_sent", digests.Sent),
		zap.Int("digests_failed", digests.Failed))
}

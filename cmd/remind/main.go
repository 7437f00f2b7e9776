/*
main.go - One-shot reminder batch runner

PURPOSE:
  Runs the submission-reminder batch (and optionally the review-digest
  batch) once and exits. Intended for cron-style deployments where the
  in-process scheduler is disabled.

COMMAND-LINE FLAGS:
  -config   Configuration file path
  -date     Report date to check, YYYY-MM-DD (default: today)
  -digests  Also send review digests to managers
  -dry-run  Select recipients but send nothing

EXIT CODE:
  0 always when the batch ran; per-recipient failures are reported in
  the summary, not the exit code. Non-zero only when the batch itself
  could not run (config, database, selection query).

EXAMPLES:
  # Preview today's reminders
  ./remind -dry-run

  # Send reminders and digests for a specific date
  ./remind -date=2026-08-28 -digests

SEE ALSO:
  - notify/notify.go: batch implementations
  - api/scheduler.go: the in-process alternative
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/warp/eod-reports/config"
	"github.com/warp/eod-reports/lifecycle"
	"github.com/warp/eod-reports/notify"
	"github.com/warp/eod-reports/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	dateStr := flag.String("date", "", "report date to check, YYYY-MM-DD (default: today)")
	digests := flag.Bool("digests", false, "also send review digests to managers")
	dryRun := flag.Bool("dry-run", false, "select recipients but send nothing")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	date := lifecycle.DateOf(time.Now())
	if *dateStr != "" {
		date, err = lifecycle.ParseDate(*dateStr)
		if err != nil {
			log.Fatalf("Invalid -date, expected YYYY-MM-DD: %v", err)
		}
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer store.Close()

	mailer := notify.NewSMTPMailer(cfg.Reminders.SMTPAddr, cfg.Reminders.FromAddress)
	ctx := context.Background()
	dry := *dryRun || cfg.Reminders.DryRun

	reminders, err := notify.SubmissionReminders(ctx, store, mailer, logger, date, dry)
	if err != nil {
		logger.Fatal("submission reminder batch failed", zap.Error(err))
	}
	printSummary("reminders", date.String(), reminders)

	if *digests {
		out, err := notify.ReviewDigests(ctx, store, mailer, logger, dry)
		if err != nil {
			logger.Fatal("review digest batch failed", zap.Error(err))
		}
		printSummary("digests", date.String(), out)
	}
}

func printSummary(batch, date string, report *notify.SendReport) {
	mode := "sent"
	if report.DryRun {
		mode = "would send"
	}
	fmt.Printf("%s for %s: %s %d, failed %d, skipped %d\n",
		batch, date, mode, report.Sent, report.Failed, report.Skipped)
}

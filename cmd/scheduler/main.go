package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segyhp/dealer-loan-engine/internal/app"
	"github.com/segyhp/dealer-loan-engine/internal/config"
	"github.com/segyhp/dealer-loan-engine/internal/service"
	"github.com/segyhp/dealer-loan-engine/pkg/logger"

	"github.com/robfig/cron/v3"
)

func main() {
	once := flag.Bool("once", false, "run a single delinquency pass and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Config{Level: "error", Format: "json"}).Error("load configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	engine, err := app.New(startCtx, cfg, log)
	cancelStart()
	if err != nil {
		log.Error("initialize engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		if err := runPass(ctx, engine.Delinquency, cfg.GetSchedulerRunTimeout(), log); err != nil {
			os.Exit(1)
		}
		return
	}

	// Initialize cron scheduler
	c := cron.New(
		cron.WithLocation(cfg.GetSchedulerLocation()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	_, err = c.AddFunc(cfg.Scheduler.Cron, func() {
		_ = runPass(ctx, engine.Delinquency, cfg.GetSchedulerRunTimeout(), log)
	})
	if err != nil {
		log.Error("schedule delinquency pass", "cron", cfg.Scheduler.Cron, "error", err)
		os.Exit(1)
	}

	// Start the scheduler
	c.Start()
	log.Info("scheduler started", "cron", cfg.Scheduler.Cron, "timezone", cfg.Scheduler.Timezone)

	<-ctx.Done()
	log.Info("shutting down scheduler")

	// wait for a pass in flight to finish
	<-c.Stop().Done()
	log.Info("scheduler stopped")
}

func runPass(ctx context.Context, runner *service.DelinquencyService, timeout time.Duration, log *slog.Logger) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	log.Info("delinquency pass starting")
	report, err := runner.Run(ctx)
	if err != nil {
		log.Error("delinquency pass aborted", "error", err)
		return err
	}
	log.Info("delinquency pass complete",
		"scanned", report.Scanned,
		"accrued", report.Accrued,
		"unchanged", report.Unchanged,
		"failed", report.Failed,
		"total_penalty", report.TotalPenalty.String(),
	)
	return nil
}

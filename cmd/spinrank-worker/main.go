package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"spinrank/internal/bots"
	"spinrank/internal/config"
	"spinrank/internal/db"
)

// rosterDue reports whether the roster for week still needs generating. The
// worker generates once per ISO week: regenerating mid-week would resurrect
// slots an operator has retired.
func rosterDue(generatedWeek, week string) bool {
	return week != generatedWeek
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadServiceFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	tuning, err := bots.LoadTuning(cfg.TuningPath)
	if err != nil {
		logger.Error("load tuning failed", "err", err)
		os.Exit(1)
	}
	svc := bots.NewService(pool, logger, tuning)

	generatedWeek := ""
	if cfg.StartupGenerate {
		week := bots.CurrentWeekKey(time.Now().UTC())
		if _, err := svc.Generate(ctx, week); err != nil {
			logger.Error("startup roster generate failed", "err", err, "week", week)
			os.Exit(1)
		}
		generatedWeek = week
	}

	runOnce := strings.EqualFold(strings.TrimSpace(os.Getenv("SPINRANK_WORKER_RUN_ONCE")), "true")
	if runOnce {
		report, err := svc.RunWindow(ctx, bots.RunOptions{})
		if err != nil {
			logger.Error("window failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed", "skipped", report.Skipped, "ticks", report.Ticks, "rewards", report.RewardsApplied)
		return
	}

	ticker := time.NewTicker(cfg.RunEvery)
	defer ticker.Stop()

	logger.Info("worker started", "run_every", cfg.RunEvery.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			week := bots.CurrentWeekKey(time.Now().UTC())
			if cfg.StartupGenerate && rosterDue(generatedWeek, week) {
				if _, err := svc.Generate(ctx, week); err != nil {
					logger.Error("roster generate failed", "err", err, "week", week)
					continue
				}
				generatedWeek = week
			}
			report, err := svc.RunWindow(ctx, bots.RunOptions{})
			if err != nil {
				logger.Error("window failed", "err", err, "week", week)
				continue
			}
			if report.Skipped {
				logger.Info("window skipped", "reason", report.SkipReason, "week", report.WeekKey)
				continue
			}
			logger.Info("window complete", "week", report.WeekKey, "ticks", report.Ticks, "rewards", report.RewardsApplied, "woken", report.RetiredWoken)
		}
	}
}

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spinrank/internal/api"
	"spinrank/internal/bots"
	"spinrank/internal/config"
	"spinrank/internal/db"
)

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
	botSvc := bots.NewService(pool, logger, tuning)

	if cfg.StartupGenerate {
		week := bots.CurrentWeekKey(time.Now().UTC())
		if _, err := botSvc.Generate(ctx, week); err != nil {
			logger.Error("startup roster generate failed", "err", err, "week", week)
			os.Exit(1)
		}
	}

	server := api.New(cfg, logger, botSvc)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("spinrank admin api listening", "addr", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payday/internal/app"
	"payday/internal/config"
	"payday/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	st, closeStore, err := app.OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("store open failed", "driver", cfg.Store.Driver, "err", err)
		os.Exit(1)
	}
	defer closeStore()

	svc, err := app.NewService(st, cfg.Engine, logger)
	if err != nil {
		logger.Error("game init failed", "err", err)
		os.Exit(1)
	}
	runner := &worker.Runner{
		Game:     svc,
		Players:  st,
		Logger:   logger,
		Workers:  cfg.Workers,
		RetryFor: cfg.RetryFor,
	}

	if cfg.RunOnce {
		if err := runRound(ctx, logger, runner); err != nil {
			os.Exit(1)
		}
		logger.Info("worker run-once completed")
		return
	}

	ticker := time.NewTicker(cfg.TickEvery)
	defer ticker.Stop()

	logger.Info("worker started", "tick_every", cfg.TickEvery.String(), "workers", cfg.Workers)
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			_ = runRound(ctx, logger, runner)
		}
	}
}

func runRound(ctx context.Context, logger *slog.Logger, runner *worker.Runner) error {
	sum, err := runner.RunRound(ctx, time.Now())
	if err != nil {
		logger.Error("tick round failed", "err", err)
		return err
	}
	logger.Info("tick round complete",
		"players", sum.Players,
		"ticked", sum.Ticked,
		"already_applied", sum.AlreadyApplied,
		"failed", sum.Failed,
		"net_micros", sum.NetMicros,
	)
	return nil
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/unsaidapp/unsaid-backend/internal/app/deliveryworker"
	"github.com/unsaidapp/unsaid-backend/internal/config"
)

func main() {
	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger.Info("starting delivery worker", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := deliveryworker.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize delivery worker", slog.Any("err", err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("delivery worker stopped with error", slog.Any("err", err))
		os.Exit(1)
	}

	logger.Info("delivery worker stopped gracefully")
}

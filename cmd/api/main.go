package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/soko-pay/soko_ledger/internal/backfill"
	"github.com/soko-pay/soko_ledger/internal/config"
	"github.com/soko-pay/soko_ledger/internal/infra"
	"github.com/soko-pay/soko_ledger/internal/logging"
	"github.com/soko-pay/soko_ledger/internal/reconciliation"
	"github.com/soko-pay/soko_ledger/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()

	db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := infra.Migrate(ctx, db); err != nil {
		logger.Error("migrate database", "error", err)
		os.Exit(1)
	}

	cache, err := infra.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("connect redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logger.Warn("close redis", "error", err)
		}
	}()

	srv, err := server.New(cfg, db, cache, logger, backfill.StaticSource{})
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	services := srv.Services()

	if cfg.BackfillOnStart {
		report, err := services.Backfill.Run(ctx)
		if err != nil {
			logger.Error("startup backfill failed", "error", err)
		} else {
			logger.Info("startup backfill finished",
				"scanned", report.Scanned,
				"credited", report.Credited,
				"escrowed", report.Escrowed,
				"skipped", report.Skipped)
		}
	}

	timer := reconciliation.NewTimer(services.Reconciler, cfg.ReconcileInterval, logger)
	go timer.Start(ctx)
	defer timer.Stop()

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}

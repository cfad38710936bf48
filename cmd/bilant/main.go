package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"bilant/internal/cli"
	apphttp "bilant/internal/http"
	"bilant/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	app, err := cli.OpenLedger(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to open ledger", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	idle, err := cli.NewIdleLock(cfg, logger)
	if err != nil {
		logger.Error("Failed to set up idle lock", log.FieldError, err)
		_ = app.Close()
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, app.Ledger, idle, logger, apphttp.Options{})
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := app.Close(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting bilant server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"date", app.Ledger.Date().String(),
		"lock_enabled", idle.Enabled(),
		"sheets_enabled", cfg.SheetsEnabled(),
		log.FieldOperation, log.OpStartup)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		_ = app.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

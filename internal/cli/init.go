// Package cli provides common CLI initialization utilities shared by
// cmd/bilant, cmd/bilantctl and cmd/bilant-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bilant/internal/backend"
	"bilant/internal/config"
	"bilant/internal/lock"
	"bilant/internal/log"
	"bilant/internal/seed"
	"bilant/internal/services"
)

// SetupLogger builds the process logger at level and makes it the default.
func SetupLogger(level string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// App is a ready ledger plus the resources behind it.
type App struct {
	Ledger  *services.Ledger
	Backend *backend.BackendResult
}

// Close releases the backend resources.
func (a *App) Close() error {
	if a.Backend == nil || a.Backend.Cleanup == nil {
		return nil
	}
	return a.Backend.Cleanup()
}

// OpenLedger creates the configured backend, loads the seed defaults and
// builds a ledger on top of them.
func OpenLedger(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	defaults, err := seed.Load(cfg.SeedFile)
	if err != nil {
		return nil, err
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, err
	}

	ledger := services.NewLedger(ctx, res.Store, defaults, services.Options{
		Logger:      logger,
		Sinks:       res.Sinks,
		BackupDelay: cfg.BackupDelay,
		Sheets:      res.Sheets,
	})
	return &App{Ledger: ledger, Backend: res}, nil
}

// NewIdleLock builds the idle lock from LOCK_PASSWORD or LOCK_PASSWORD_HASH.
// Without either the lock is disabled.
func NewIdleLock(cfg *config.Config, logger *log.Logger) (*lock.IdleLock, error) {
	var hash []byte
	switch {
	case cfg.LockPasswordHash != "":
		hash = []byte(cfg.LockPasswordHash)
	case cfg.LockPassword != "":
		h, err := lock.HashPassword(cfg.LockPassword)
		if err != nil {
			return nil, fmt.Errorf("hash lock password: %w", err)
		}
		hash = h
	}
	return lock.New(hash, lock.WithTimeout(cfg.LockTimeout), lock.WithLogger(logger)), nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}

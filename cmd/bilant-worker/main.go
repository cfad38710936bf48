package main

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"bilant/internal/amqp"
	"bilant/internal/cli"
	"bilant/internal/log"
	"bilant/internal/worker"
)

// defaultRetain keeps roughly a quarter of daily bundles.
const defaultRetain = 90

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting bilant-worker", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the backup worker")
		os.Exit(1)
	}

	retain := defaultRetain
	if v := os.Getenv("BACKUP_RETAIN"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			logger.Error("Invalid BACKUP_RETAIN", "value", v)
			os.Exit(1)
		}
		retain = n
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	archiver := worker.NewArchiver(cfg.BackupDir, retain, logger)

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, func(context.Context) {
		if err := client.Close(); err != nil {
			logger.Error("AMQP close error", log.FieldError, err)
		}
		archived, last := archiver.Stats()
		logger.Info("Worker summary", "archived", archived, "last", last)
	})

	logger.Info("Consuming backup bundles", "queue", cfg.AMQPQueue, "dir", cfg.BackupDir, "retain", retain)
	go func() {
		if err := client.ConsumeBackups(ctx, archiver.HandleBackupMessage); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Backup consumption failed", log.FieldError, err, log.FieldOperation, log.OpConsume)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/subcommands"

	"bilant/internal/cli"
	"bilant/internal/config"
	"bilant/internal/log"
)

var commands = []subcommands.Command{
	&taxCmd{},
	&projectCmd{},
	&showCmd{},
	&exportCmd{},
	&importCmd{},
	&resetCmd{},
	&pushCmd{},
}

// newLogger logs to stderr so command output on stdout stays clean.
// Only warnings show unless LOG_LEVEL says otherwise.
func newLogger() *log.Logger {
	level := slog.LevelWarn
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level = log.ParseLevel(v)
	}
	return log.New(log.Config{
		Level:     level,
		Component: "bilantctl",
		Handler:   slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
	})
}

// openLedger loads the environment and opens the configured ledger. The
// caller closes the returned app.
func openLedger(ctx context.Context) (*cli.App, *config.Config, error) {
	cli.LoadEnvFile()
	logger := newLogger()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	app, err := cli.OpenLedger(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open ledger: %w", err)
	}
	return app, cfg, nil
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, err)
	return subcommands.ExitFailure
}

// writeOutput writes data to name, or to stdout when name is "-".
func writeOutput(name string, data []byte) error {
	if name == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(name, data, 0o644)
}

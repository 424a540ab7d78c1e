// Command tronledger ingests trade events from a TRON contract into a
// PostgreSQL ledger. It loads configuration, validates it, wires
// dependencies, sets up signal handling, and runs the requested ingestion
// mode:
//
//	tronledger [-config config.toml] once          one-shot backfill
//	tronledger [-config config.toml] tail [-interval 5s]   follow new events
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chainops/tronledger/internal/app"
	"github.com/chainops/tronledger/internal/config"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	flag.Parse()

	// Setup structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	mode := flag.Arg(0)
	if mode == "" {
		fmt.Fprintln(os.Stderr, "usage: tronledger [-config config.toml] <once|tail> [-interval 5s]")
		os.Exit(2)
	}

	// Tail mode accepts its own flags after the subcommand.
	var interval time.Duration
	if mode == "tail" {
		tailFlags := flag.NewFlagSet("tail", flag.ExitOnError)
		tailFlags.DurationVar(&interval, "interval", 0, "poll interval (overrides config)")
		_ = tailFlags.Parse(flag.Args()[1:])
	}

	// Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	if interval > 0 {
		cfg.Tail.Interval.Duration = interval
	}

	// Set log level from config.
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("tron ledger starting",
		slog.String("mode", mode),
		slog.String("config", *configPath),
		slog.String("contract", cfg.Tron.Contract),
	)

	// Create the application.
	application := app.New(cfg, logger)
	defer application.Close()

	// Setup signal handling for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run the application.
	if err := application.Run(ctx, mode); err != nil {
		// context.Canceled is expected on clean shutdown.
		if errors.Is(err, context.Canceled) {
			logger.Info("application shut down gracefully")
		} else {
			logger.Error("application exited with error",
				slog.String("error", err.Error()),
			)
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	}

	logger.Info("tron ledger stopped")
}

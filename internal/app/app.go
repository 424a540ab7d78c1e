// Package app provides the top-level application lifecycle for the trade
// ledger. It wires together all dependencies (event source, stores, caches,
// blob storage, and notifications) and runs the requested ingestion mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chainops/tronledger/internal/config"
)

// App is the root application object. It owns the configuration, logger,
// and a list of cleanup functions that are called in reverse order on
// shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, runs the
// requested mode, and blocks until the mode completes or the context is
// cancelled.
func (a *App) Run(ctx context.Context, mode string) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", mode),
		slog.String("contract", a.cfg.Tron.Contract),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch strings.ToLower(mode) {
	case "once":
		return a.OnceMode(ctx, deps)
	case "tail":
		return a.TailMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", mode)
	}
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chainops/tronledger/internal/notify"
)

// statsInterval is how often tail mode logs ledger totals.
const statsInterval = time.Minute

// OnceMode runs a single backfill over the contract's confirmed event
// history and reports open positions when it finishes.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting backfill mode")

	sum, err := deps.Runner.Backfill(ctx)
	if err != nil {
		deps.Notifier.Notifyf(ctx, notify.EventFatal, "Backfill failed", "%v", err)
		return fmt.Errorf("app: backfill: %w", err)
	}

	open, err := deps.PositionStore.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("app: listing open positions: %w", err)
	}
	total, err := deps.HistoryStore.Count(ctx)
	if err != nil {
		return fmt.Errorf("app: counting history: %w", err)
	}
	for _, p := range open {
		attrs := []any{
			slog.String("token", p.TokenKey),
			slog.Int64("trade_id", p.TradeIDOnchain),
			slog.String("avg_entry_price", p.AvgEntryPrice.String()),
			slog.String("amount", p.Amount.String()),
		}
		recent, err := deps.HistoryStore.ListByToken(ctx, p.TokenKey, 1)
		if err != nil {
			a.logger.WarnContext(ctx, "listing history failed",
				slog.String("token", p.TokenKey),
				slog.String("error", err.Error()))
		} else if len(recent) > 0 {
			attrs = append(attrs,
				slog.String("last_action", string(recent[0].Action)),
				slog.Int64("last_block", recent[0].BlockNumber),
			)
		}
		a.logger.InfoContext(ctx, "open position", attrs...)
	}

	a.logger.InfoContext(ctx, "backfill summary",
		slog.String("run_id", sum.RunID),
		slog.Int("pages", sum.Pages),
		slog.Int("events", sum.Events),
		slog.Int("applied", sum.Applied),
		slog.Int("duplicates", sum.Duplicates),
		slog.Int("skipped", sum.Skipped),
		slog.Int("open_positions", len(open)),
		slog.Int64("history_rows", total),
	)
	return nil
}

// TailMode follows the newest confirmed events on the configured interval
// until the context is cancelled.
func (a *App) TailMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting tail mode",
		slog.Duration("interval", a.cfg.Tail.Interval.Duration),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return deps.Runner.Tail(ctx, a.cfg.Tail.Interval.Duration)
	})
	g.Go(func() error {
		return a.reportStats(ctx, deps)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		deps.Notifier.Notifyf(ctx, notify.EventFatal, "Tail stopped", "%v", err)
		return fmt.Errorf("app: tail: %w", err)
	}
	return nil
}

// reportStats periodically logs the ledger's open-position and history
// totals while tail mode runs. Read failures are logged and the reporter
// keeps going; it never takes the poll loop down with it.
func (a *App) reportStats(ctx context.Context, deps *Dependencies) error {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		open, err := deps.PositionStore.ListOpen(ctx)
		if err != nil {
			a.logger.WarnContext(ctx, "stats: listing open positions failed",
				slog.String("error", err.Error()))
			continue
		}
		total, err := deps.HistoryStore.Count(ctx)
		if err != nil {
			a.logger.WarnContext(ctx, "stats: counting history failed",
				slog.String("error", err.Error()))
			continue
		}
		a.logger.InfoContext(ctx, "ledger stats",
			slog.Int("open_positions", len(open)),
			slog.Int64("history_rows", total),
		)
	}
}

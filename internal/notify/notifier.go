// Package notify pushes operator alerts over Telegram and Discord. The
// ledger raises very few: PnL divergence between the chain-reported and
// recomputed values, and fatal ingest failures.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Event types the ledger emits. Operators can filter to a subset.
const (
	EventPnLDivergence = "pnl_divergence"
	EventFatal         = "fatal"
	EventBackfillDone  = "backfill_done"
)

// Sender is one delivery channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans a notification out to every configured sender, filtered by
// event type. A nil *Notifier is valid and drops everything, so callers
// need no wiring-time conditionals.
type Notifier struct {
	senders []Sender
	allowed map[string]bool
	logger  *slog.Logger
}

// New creates a Notifier. An empty events list allows all event types.
func New(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		allowed: allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers to all senders when the event type passes the filter.
// Sender failures are logged, never propagated into the ingest path.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) {
	if n == nil || len(n.senders) == 0 {
		return
	}
	if len(n.allowed) > 0 && !n.allowed[event] {
		return
	}

	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "notification delivery failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("event", event),
		)
	}
}

// Notifyf is Notify with a formatted message body.
func (n *Notifier) Notifyf(ctx context.Context, event, title, format string, args ...any) {
	if n == nil {
		return
	}
	n.Notify(ctx, event, title, fmt.Sprintf(format, args...))
}

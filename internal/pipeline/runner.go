package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"

	"github.com/chainops/tronledger/internal/domain"
	"github.com/chainops/tronledger/internal/ledger"
	"github.com/chainops/tronledger/internal/notify"
	"github.com/chainops/tronledger/internal/tron"
)

// PageFetcher retrieves one page of raw contract events. An empty
// fingerprint requests the newest page.
type PageFetcher interface {
	FetchPage(ctx context.Context, contract, fingerprint string) (domain.EventPage, error)
}

// EventParser converts raw envelopes into trade events.
type EventParser interface {
	Parse(ev domain.RawEvent) (domain.TradeEvent, error)
}

// Config carries the runner's tunables.
type Config struct {
	// Contract is the event-source address of the trading contract.
	Contract string
	// TraderFilter, when non-empty, restricts ingestion to events whose
	// trader matches this address in any encoding.
	TraderFilter string
	// DivergenceTolerance is the largest absolute gap between reported and
	// recomputed PnL that passes without an alert.
	DivergenceTolerance decimal.Decimal
	// SeenCapacity bounds the in-process dedup set used by tail mode.
	SeenCapacity int
}

// Deps groups the runner's collaborators. Dedup, Archive, and Notifier are
// optional.
type Deps struct {
	Fetcher   PageFetcher
	Parser    EventParser
	Engine    *ledger.Engine
	Positions domain.PositionStore
	Ledger    domain.LedgerStore
	Dedup     domain.DedupCache
	Archive   domain.BlobWriter
	Notifier  *notify.Notifier
}

// Runner drives ingestion: it pages events out of the source, parses and
// applies them through the engine, and persists each outcome exactly once.
type Runner struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(cfg Config, deps Deps, logger *slog.Logger) *Runner {
	return &Runner{cfg: cfg, deps: deps, logger: logger}
}

// Summary reports what one backfill run did.
type Summary struct {
	RunID      string
	Pages      int
	Events     int
	Applied    int
	Duplicates int
	Skipped    int
}

// Backfill walks the contract's confirmed event history from newest to
// oldest, following the source's pagination cursor until it runs out. Any
// fetch or persistence error aborts the run without advancing the cursor,
// so a retry re-covers the failed page and idempotency absorbs the overlap.
func (r *Runner) Backfill(ctx context.Context) (Summary, error) {
	sum := Summary{RunID: uuid.NewString()}
	fingerprint := ""

	for {
		if err := ctx.Err(); err != nil {
			return sum, fmt.Errorf("pipeline: backfill cancelled: %w", err)
		}

		page, err := r.deps.Fetcher.FetchPage(ctx, r.cfg.Contract, fingerprint)
		if err != nil {
			return sum, fmt.Errorf("pipeline: fetching page %d: %w", sum.Pages+1, err)
		}
		if len(page.Events) == 0 {
			break
		}

		sortEvents(page.Events)
		r.archivePage(ctx, sum.RunID, sum.Pages, page.Events)

		if err := r.applyPage(ctx, page.Events, &sum, nil); err != nil {
			return sum, err
		}
		sum.Pages++

		r.logger.Info("page applied",
			slog.String("run_id", sum.RunID),
			slog.Int("page", sum.Pages),
			slog.Int("events", len(page.Events)),
			slog.Int("applied", sum.Applied),
		)

		if page.Fingerprint == "" {
			break
		}
		fingerprint = page.Fingerprint
	}

	r.logger.Info("backfill complete",
		slog.String("run_id", sum.RunID),
		slog.Int("pages", sum.Pages),
		slog.Int("events", sum.Events),
		slog.Int("applied", sum.Applied),
		slog.Int("duplicates", sum.Duplicates),
		slog.Int("skipped", sum.Skipped),
	)
	r.deps.Notifier.Notifyf(ctx, notify.EventBackfillDone, "Backfill complete",
		"%d events across %d pages, %d applied, %d duplicates",
		sum.Events, sum.Pages, sum.Applied, sum.Duplicates)

	return sum, nil
}

// Tail polls the newest confirmed page on an interval and applies anything
// it has not seen this process lifetime. Transient errors back off
// exponentially; the loop only returns on context cancellation.
func (r *Runner) Tail(ctx context.Context, interval time.Duration) error {
	seen := newSeenSet(r.cfg.SeenCapacity)
	boff := &backoff.Backoff{
		Min:    interval,
		Max:    10 * interval,
		Factor: 2,
		Jitter: true,
	}

	for {
		n, err := r.pollOnce(ctx, seen)
		wait := interval
		switch {
		case err != nil && ctx.Err() != nil:
			r.logger.Info("tail stopped")
			return ctx.Err()
		case err != nil:
			wait = boff.Duration()
			r.logger.Error("poll failed",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", wait),
			)
		default:
			boff.Reset()
			if n > 0 {
				r.logger.Info("poll applied events", slog.Int("applied", n))
			}
		}

		select {
		case <-ctx.Done():
			r.logger.Info("tail stopped")
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// pollOnce fetches the newest page and applies unseen events, returning how
// many landed.
func (r *Runner) pollOnce(ctx context.Context, seen *seenSet) (int, error) {
	page, err := r.deps.Fetcher.FetchPage(ctx, r.cfg.Contract, "")
	if err != nil {
		return 0, fmt.Errorf("pipeline: polling newest page: %w", err)
	}
	if len(page.Events) == 0 {
		return 0, nil
	}
	sortEvents(page.Events)

	var sum Summary
	if err := r.applyPage(ctx, page.Events, &sum, seen); err != nil {
		return sum.Applied, err
	}
	return sum.Applied, nil
}

// applyPage runs every event in the page through parse, filter, and the
// ledger write. A persistence error aborts the page before the event is
// acknowledged anywhere, so redelivery retries it. seen is nil in backfill
// mode.
func (r *Runner) applyPage(ctx context.Context, events []domain.RawEvent, sum *Summary, seen *seenSet) error {
	for _, raw := range events {
		uid := ledger.EventUID(raw)

		if seen != nil && seen.Contains(uid) {
			sum.Duplicates++
			continue
		}
		if dup, err := r.cachedSeen(ctx, uid); err == nil && dup {
			sum.Duplicates++
			r.markSeen(ctx, seen, uid)
			continue
		}

		ev, err := r.deps.Parser.Parse(raw)
		if err != nil {
			if !errors.Is(err, domain.ErrUnknownEvent) {
				r.logger.Warn("skipping unparseable event",
					slog.String("tx_id", raw.TransactionID),
					slog.String("error", err.Error()),
				)
				sum.Skipped++
			}
			r.markSeen(ctx, seen, uid)
			continue
		}

		if r.cfg.TraderFilter != "" && !tron.SameAddress(ev.Trader, r.cfg.TraderFilter) {
			r.logger.Warn("ignoring event from unexpected trader",
				slog.String("tx_id", ev.TxID),
				slog.String("trader", ev.Trader),
			)
			sum.Skipped++
			r.markSeen(ctx, seen, uid)
			continue
		}

		var pos *domain.OpenPosition
		switch p, err := r.deps.Positions.Get(ctx, ev.TokenKey); {
		case err == nil:
			pos = &p
		case errors.Is(err, domain.ErrNotFound):
			// no live position for this token
		default:
			return fmt.Errorf("pipeline: loading position %s: %w", ev.TokenKey, err)
		}

		outcome := r.deps.Engine.Apply(pos, ev)

		applied, err := r.deps.Ledger.ApplyOutcome(ctx, outcome)
		if err != nil {
			return fmt.Errorf("pipeline: persisting event %s: %w", ev.UID, err)
		}

		sum.Events++
		if applied {
			sum.Applied++
			r.checkDivergence(ctx, ev, outcome)
		} else {
			sum.Duplicates++
		}
		r.markSeen(ctx, seen, uid)
	}
	return nil
}

// cachedSeen consults the optional cross-restart dedup cache. Cache errors
// degrade to "not seen"; the database unique key still blocks replays.
func (r *Runner) cachedSeen(ctx context.Context, uid string) (bool, error) {
	if r.deps.Dedup == nil {
		return false, nil
	}
	dup, err := r.deps.Dedup.Seen(ctx, uid)
	if err != nil {
		r.logger.Warn("dedup cache check failed", slog.String("error", err.Error()))
		return false, err
	}
	return dup, nil
}

// markSeen records uid in both dedup layers once its effects are durable.
func (r *Runner) markSeen(ctx context.Context, seen *seenSet, uid string) {
	if seen != nil {
		seen.Add(uid)
	}
	if r.deps.Dedup != nil {
		if err := r.deps.Dedup.Mark(ctx, uid); err != nil {
			r.logger.Warn("dedup cache mark failed", slog.String("error", err.Error()))
		}
	}
}

// checkDivergence alerts when the upstream-reported PnL strays from the
// recomputed value beyond the configured tolerance.
func (r *Runner) checkDivergence(ctx context.Context, ev domain.TradeEvent, outcome domain.LedgerOutcome) {
	if outcome.Divergence == nil || !outcome.Divergence.GreaterThan(r.cfg.DivergenceTolerance) {
		return
	}
	r.logger.Warn("reported pnl diverges from recomputed",
		slog.String("token", ev.TokenKey),
		slog.Int64("trade_id", ev.TradeID),
		slog.String("divergence", outcome.Divergence.String()),
	)
	r.deps.Notifier.Notifyf(ctx, notify.EventPnLDivergence, "PnL divergence",
		"token %s trade %d: reported PnL differs from recomputed by %s",
		ev.TokenKey, ev.TradeID, outcome.Divergence.String())
}

// archivePage uploads the raw page to blob storage for replay and audit.
// Best effort only; an upload failure never blocks ingestion.
func (r *Runner) archivePage(ctx context.Context, runID string, pageNo int, events []domain.RawEvent) {
	if r.deps.Archive == nil {
		return
	}
	payload, err := json.Marshal(events)
	if err != nil {
		r.logger.Warn("archive marshal failed", slog.String("error", err.Error()))
		return
	}
	path := fmt.Sprintf("trongrid/events/%s/%s/page-%04d.json", r.cfg.Contract, runID, pageNo)
	if err := r.deps.Archive.Put(ctx, path, bytes.NewReader(payload), "application/json"); err != nil {
		r.logger.Warn("archive upload failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return
	}
	r.logger.Debug("page archived", slog.String("path", path), slog.Int("events", len(events)))
}

// sortEvents orders a page by chain position so replays within the page are
// deterministic regardless of source ordering.
func sortEvents(events []domain.RawEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].BlockNumber != events[j].BlockNumber {
			return events[i].BlockNumber < events[j].BlockNumber
		}
		return events[i].EventIndex < events[j].EventIndex
	})
}

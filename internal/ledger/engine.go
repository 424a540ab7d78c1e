package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/chainops/tronledger/internal/domain"
)

// Engine is the pure state-transition function of the ledger. Apply holds
// no dedup or I/O state; idempotency comes from the unique-key write of the
// resulting history record, ordering from the caller feeding events in
// (block_number, event_index) order.
type Engine struct {
	scaling Scaling
}

// NewEngine creates an Engine using the given scaling rules for amount
// quantization.
func NewEngine(scaling Scaling) *Engine {
	return &Engine{scaling: scaling}
}

// Apply computes the effect of one trade event on the current position.
// pos is nil when no live position exists for the token. The returned
// outcome carries the position write, the history row, and, on closes that
// report their own PnL, the divergence from the locally recomputed value.
func (e *Engine) Apply(pos *domain.OpenPosition, ev domain.TradeEvent) domain.LedgerOutcome {
	if ev.Kind == domain.KindOpen && ev.Action == domain.ActionBuy {
		return e.applyBuy(pos, ev)
	}
	return e.applySell(pos, ev)
}

func (e *Engine) applyBuy(pos *domain.OpenPosition, ev domain.TradeEvent) domain.LedgerOutcome {
	amount := decimal.Zero
	if ev.Amount != nil {
		amount = *ev.Amount
	}

	hist := e.baseHistory(ev, domain.ActionBuy)
	hist.Amount = amount

	if pos == nil || !pos.Amount.IsPositive() {
		// First buy for this token: the opening trade id is fixed here and
		// survives all later merges.
		next := &domain.OpenPosition{
			TokenKey:       ev.TokenKey,
			TradeIDOnchain: ev.TradeID,
			AvgEntryPrice:  ev.Price,
			Amount:         amount,
			Strategy:       ev.Strategy,
			Trader:         ev.Trader,
			LastTxID:       ev.TxID,
			UpdatedAt:      ev.Timestamp,
		}
		hist.AvgEntryPrice = dec(ev.Price)
		return domain.LedgerOutcome{TokenKey: ev.TokenKey, Position: next, History: hist}
	}

	newAmount := pos.Amount.Add(amount)
	newAvg := ev.Price
	if !newAmount.IsZero() {
		totalCost := pos.AvgEntryPrice.Mul(pos.Amount).Add(ev.Price.Mul(amount))
		newAvg = totalCost.DivRound(newAmount, decimalPlaces)
	}

	next := &domain.OpenPosition{
		TokenKey:       ev.TokenKey,
		TradeIDOnchain: pos.TradeIDOnchain,
		AvgEntryPrice:  newAvg,
		Amount:         newAmount,
		Strategy:       firstStrategy(ev.Strategy, pos.Strategy),
		Trader:         firstNonEmpty(ev.Trader, pos.Trader),
		LastTxID:       ev.TxID,
		UpdatedAt:      ev.Timestamp,
	}

	// History keeps the incremental buy amount, not the running total. The
	// opening trade id is preserved only on the position row; the history
	// row carries the merging event's own id.
	hist.AvgEntryPrice = dec(newAvg)
	hist.Strategy = next.Strategy
	return domain.LedgerOutcome{TokenKey: ev.TokenKey, Position: next, History: hist}
}

func (e *Engine) applySell(pos *domain.OpenPosition, ev domain.TradeEvent) domain.LedgerOutcome {
	hist := e.baseHistory(ev, domain.ActionSell)
	hist.AvgExitPrice = dec(ev.Price)

	if pos == nil || !pos.Amount.IsPositive() {
		// Duplicate or out-of-order close: record a zero-effect row and
		// leave state alone.
		hist.Amount = decimal.Zero
		return domain.LedgerOutcome{TokenKey: ev.TokenKey, History: hist}
	}

	openAmount := e.scaling.Quantize(ev.TokenSource, pos.Amount)
	sellAmount := openAmount
	if ev.Amount != nil && ev.Amount.LessThan(openAmount) {
		sellAmount = *ev.Amount
	}
	if !sellAmount.IsPositive() {
		hist.Amount = decimal.Zero
		return domain.LedgerOutcome{TokenKey: ev.TokenKey, History: hist}
	}

	realized := ev.Price.Sub(pos.AvgEntryPrice).Mul(sellAmount)

	hist.Amount = sellAmount
	hist.AvgEntryPrice = dec(pos.AvgEntryPrice)
	hist.Strategy = firstStrategy(ev.Strategy, pos.Strategy)

	out := domain.LedgerOutcome{TokenKey: ev.TokenKey, History: hist}

	// An upstream-reported PnL wins over the local recomputation; the
	// difference is surfaced so silent divergence can be alerted on.
	if ev.ReportedPnL != nil {
		out.History.PnL = dec(*ev.ReportedPnL)
		diff := ev.ReportedPnL.Sub(realized).Abs()
		out.Divergence = &diff
	} else {
		out.History.PnL = dec(realized)
	}

	remaining := e.scaling.Quantize(ev.TokenSource, openAmount.Sub(sellAmount))
	if remaining.IsZero() || remaining.IsNegative() {
		out.Delete = true
		return out
	}

	out.Position = &domain.OpenPosition{
		TokenKey:       ev.TokenKey,
		TradeIDOnchain: pos.TradeIDOnchain,
		AvgEntryPrice:  pos.AvgEntryPrice,
		Amount:         remaining,
		Strategy:       firstStrategy(ev.Strategy, pos.Strategy),
		Trader:         firstNonEmpty(ev.Trader, pos.Trader),
		LastTxID:       ev.TxID,
		UpdatedAt:      ev.Timestamp,
	}
	return out
}

func (e *Engine) baseHistory(ev domain.TradeEvent, action domain.TradeAction) domain.HistoryRecord {
	return domain.HistoryRecord{
		EventUID:       ev.UID,
		TradeIDOnchain: ev.TradeID,
		TokenKey:       ev.TokenKey,
		Action:         action,
		Price:          ev.Price,
		Strategy:       ev.Strategy,
		TxID:           ev.TxID,
		BlockNumber:    ev.BlockNumber,
	}
}

func dec(d decimal.Decimal) *decimal.Decimal {
	return &d
}

func firstStrategy(a, b *string) *string {
	if a != nil && *a != "" {
		return a
	}
	return b
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

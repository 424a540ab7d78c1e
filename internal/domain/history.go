package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeAction is the direction recorded in trade history.
type TradeAction string

const (
	ActionBuy  TradeAction = "BUY"
	ActionSell TradeAction = "SELL"
)

// HistoryRecord is one append-only trade-history row. Records are never
// mutated or deleted; EventUID is unique so redelivered upstream events
// collapse into a single row.
type HistoryRecord struct {
	ID             int64
	EventUID       string
	TradeIDOnchain int64
	TokenKey       string
	Action         TradeAction
	Price          decimal.Decimal
	Amount         decimal.Decimal
	AvgEntryPrice  *decimal.Decimal
	AvgExitPrice   *decimal.Decimal
	PnL            *decimal.Decimal
	Strategy       *string
	TxID           string
	BlockNumber    int64
	CreatedAt      time.Time
}

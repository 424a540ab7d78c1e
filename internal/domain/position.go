// Package domain defines the core types of the trade ledger: open positions,
// immutable history records, parsed trade events, and the store interfaces
// that persistence adapters implement.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OpenPosition is the single live position for a token. At most one row
// exists per token key, and only while the held amount is positive.
//
// TradeIDOnchain always refers to the contract-side trade id of the event
// that originally opened the position; later buy merges never overwrite it.
type OpenPosition struct {
	TokenKey       string
	TradeIDOnchain int64
	AvgEntryPrice  decimal.Decimal
	Amount         decimal.Decimal
	Strategy       *string
	Trader         string
	LastTxID       string
	UpdatedAt      time.Time
}

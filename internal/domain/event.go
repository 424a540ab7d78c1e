package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// EventKind distinguishes the two contract events the ledger consumes.
type EventKind string

const (
	KindOpen   EventKind = "TradeOpen"
	KindClosed EventKind = "TradeClosed"
)

// RawEvent is one event envelope as returned by the event source, before
// parsing. Result is kept verbatim; it feeds both the parser and the
// deterministic event uid.
type RawEvent struct {
	TransactionID  string          `json:"transaction_id"`
	BlockNumber    int64           `json:"block_number"`
	BlockTimestamp int64           `json:"block_timestamp"`
	EventIndex     int64           `json:"event_index"`
	EventName      string          `json:"event_name"`
	Result         json.RawMessage `json:"result"`
}

// EventPage is one page of raw events plus the cursor for the next page.
// An empty Fingerprint means no further history is currently available.
type EventPage struct {
	Events      []RawEvent
	Fingerprint string
}

// TradeEvent is a fully parsed, decimal-scaled domain event ready for the
// ledger engine.
type TradeEvent struct {
	Kind        EventKind
	UID         string
	TxID        string
	BlockNumber int64
	EventIndex  int64
	Timestamp   time.Time
	TradeID     int64
	Trader      string
	// TokenKey is the canonical persisted key form of the token address.
	TokenKey string
	// TokenSource is the address exactly as it appeared in the event; the
	// per-token decimals lookup accepts either form.
	TokenSource string
	// Action applies to Open events. The contract allows a TradeOpen that
	// carries an explicit SELL action; absent, it defaults to BUY.
	Action      TradeAction
	Strategy    *string
	Price       decimal.Decimal
	Amount      *decimal.Decimal
	ReportedPnL *decimal.Decimal
}

// LedgerOutcome is the effect of applying one TradeEvent: the resulting
// position write (upsert, delete, or neither) and the history row. The
// whole outcome must be persisted atomically keyed on History.EventUID.
type LedgerOutcome struct {
	TokenKey string
	// Position, when non-nil, is the new state to upsert. Nil with Delete
	// set removes the row; nil without Delete leaves the position untouched
	// (the zero-effect close case).
	Position *OpenPosition
	Delete   bool
	History  HistoryRecord
	// Divergence is the absolute difference between an upstream-reported
	// PnL and the locally recomputed value, when both were available.
	Divergence *decimal.Decimal
}

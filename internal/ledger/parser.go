package ledger

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chainops/tronledger/internal/domain"
	"github.com/chainops/tronledger/internal/tron"
)

// Parser maps raw event envelopes into typed trade events. A parse failure
// affects only the event it occurred on; callers log and move on.
type Parser struct {
	scaling Scaling
	// addrHex selects the persisted key encoding: canonical 41-prefixed hex
	// when true, the source string untouched otherwise.
	addrHex bool
}

// NewParser creates a Parser with the given scaling rules and key encoding
// preference.
func NewParser(scaling Scaling, addrHex bool) *Parser {
	return &Parser{scaling: scaling, addrHex: addrHex}
}

// Parse converts one raw envelope into a TradeEvent. Event names other than
// TradeOpen and TradeClosed return domain.ErrUnknownEvent; payloads missing
// required fields return errors wrapping domain.ErrMalformedEvent.
func (p *Parser) Parse(ev domain.RawEvent) (domain.TradeEvent, error) {
	switch ev.EventName {
	case string(domain.KindOpen):
		return p.parseOpen(ev)
	case string(domain.KindClosed):
		return p.parseClosed(ev)
	default:
		return domain.TradeEvent{}, fmt.Errorf("ledger: event %q: %w", ev.EventName, domain.ErrUnknownEvent)
	}
}

func (p *Parser) parseOpen(ev domain.RawEvent) (domain.TradeEvent, error) {
	res, err := decodeResult(ev)
	if err != nil {
		return domain.TradeEvent{}, err
	}

	out := domain.TradeEvent{
		Kind:        domain.KindOpen,
		UID:         EventUID(ev),
		TxID:        ev.TransactionID,
		BlockNumber: ev.BlockNumber,
		EventIndex:  ev.EventIndex,
		Timestamp:   time.UnixMilli(ev.BlockTimestamp).UTC(),
	}

	if err := p.commonFields(ev, res, &out); err != nil {
		return domain.TradeEvent{}, err
	}

	rawPrice, ok := fieldDecimal(res, "entryPrice", "price")
	if !ok {
		return domain.TradeEvent{}, malformed(ev, "entryPrice")
	}
	out.Price = p.scaling.Price(rawPrice)

	rawAmount, ok := fieldDecimal(res, "amount")
	if !ok {
		return domain.TradeEvent{}, malformed(ev, "amount")
	}
	amt := p.scaling.Amount(out.TokenSource, rawAmount)
	out.Amount = &amt

	// The contract can emit a TradeOpen carrying an explicit SELL action;
	// anything else counts as a buy.
	out.Action = domain.ActionBuy
	if action, ok := fieldString(res, "action"); ok && strings.EqualFold(action, string(domain.ActionSell)) {
		out.Action = domain.ActionSell
	}

	if strategy, ok := fieldString(res, "strategy"); ok && strategy != "" {
		out.Strategy = &strategy
	}

	return out, nil
}

func (p *Parser) parseClosed(ev domain.RawEvent) (domain.TradeEvent, error) {
	res, err := decodeResult(ev)
	if err != nil {
		return domain.TradeEvent{}, err
	}

	out := domain.TradeEvent{
		Kind:        domain.KindClosed,
		UID:         EventUID(ev),
		TxID:        ev.TransactionID,
		BlockNumber: ev.BlockNumber,
		EventIndex:  ev.EventIndex,
		Timestamp:   time.UnixMilli(ev.BlockTimestamp).UTC(),
		Action:      domain.ActionSell,
	}

	if err := p.commonFields(ev, res, &out); err != nil {
		return domain.TradeEvent{}, err
	}

	rawPrice, ok := fieldDecimal(res, "exitPrice", "price")
	if !ok {
		return domain.TradeEvent{}, malformed(ev, "exitPrice")
	}
	out.Price = p.scaling.Price(rawPrice)

	// Amount is optional on closes; absent means the full open amount.
	if rawAmount, ok := fieldDecimal(res, "amount", "sellAmount", "amountSold"); ok {
		amt := p.scaling.Amount(out.TokenSource, rawAmount)
		out.Amount = &amt
	}

	if rawPnl, ok := fieldDecimal(res, "pnl"); ok {
		pnl := p.scaling.Price(rawPnl)
		out.ReportedPnL = &pnl
	}

	return out, nil
}

// commonFields extracts the trade id, trader, and token address shared by
// both event kinds, filling TokenKey per the configured key encoding.
func (p *Parser) commonFields(ev domain.RawEvent, res map[string]json.RawMessage, out *domain.TradeEvent) error {
	tradeID, ok := fieldInt(res, "tradeId", "trade_id")
	if !ok {
		return malformed(ev, "tradeId")
	}
	out.TradeID = tradeID

	trader, ok := fieldString(res, "trader")
	if !ok {
		return malformed(ev, "trader")
	}
	out.Trader = trader

	token, ok := fieldString(res, "tokenAddress")
	if !ok || token == "" {
		return malformed(ev, "tokenAddress")
	}
	out.TokenSource = token

	if p.addrHex {
		addr, err := tron.Canonicalize(token)
		if err != nil {
			return fmt.Errorf("ledger: event %s token address: %w", ev.TransactionID, err)
		}
		out.TokenKey = addr.Hex()
	} else {
		out.TokenKey = token
	}
	return nil
}

// EventUID derives the deterministic idempotency key for a raw event from
// its stable fields. The same upstream event always hashes to the same key
// across re-fetches, so duplicate delivery collapses at the unique-key
// write.
func EventUID(ev domain.RawEvent) string {
	var res any
	if len(ev.Result) > 0 {
		dec := json.NewDecoder(bytes.NewReader(ev.Result))
		dec.UseNumber()
		if err := dec.Decode(&res); err != nil {
			res = string(ev.Result)
		}
	}

	// json.Marshal emits map keys sorted, giving a canonical byte form.
	payload, _ := json.Marshal(map[string]any{
		"tx":   ev.TransactionID,
		"bn":   ev.BlockNumber,
		"idx":  ev.EventIndex,
		"name": ev.EventName,
		"res":  res,
	})
	sum := sha1.Sum(payload)
	return hex.EncodeToString(sum[:])
}

func decodeResult(ev domain.RawEvent) (map[string]json.RawMessage, error) {
	if len(ev.Result) == 0 {
		return nil, malformed(ev, "result")
	}
	var res map[string]json.RawMessage
	if err := json.Unmarshal(ev.Result, &res); err != nil {
		return nil, fmt.Errorf("ledger: event %s result is not an object: %w", ev.TransactionID, domain.ErrMalformedEvent)
	}
	return res, nil
}

func malformed(ev domain.RawEvent, field string) error {
	return fmt.Errorf("ledger: event %s missing or invalid %q: %w", ev.TransactionID, field, domain.ErrMalformedEvent)
}

// fieldString reads the first present key as a string. Numeric values are
// rendered as their literal text, since the feed is inconsistent about
// quoting.
func fieldString(res map[string]json.RawMessage, keys ...string) (string, bool) {
	for _, k := range keys {
		raw, ok := res[k]
		if !ok || isJSONNull(raw) {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s, true
		}
		return string(bytes.TrimSpace(raw)), true
	}
	return "", false
}

// fieldInt reads the first present key as an int64, accepting both quoted
// and bare numbers.
func fieldInt(res map[string]json.RawMessage, keys ...string) (int64, bool) {
	s, ok := fieldString(res, keys...)
	if !ok {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsInteger() {
		return 0, false
	}
	return d.IntPart(), true
}

// fieldDecimal reads the first present key as an arbitrary-precision
// decimal, accepting both quoted and bare numbers.
func fieldDecimal(res map[string]json.RawMessage, keys ...string) (decimal.Decimal, bool) {
	s, ok := fieldString(res, keys...)
	if !ok || s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

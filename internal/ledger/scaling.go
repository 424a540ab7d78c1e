// Package ledger turns raw contract events into typed trade events and
// applies them to the position ledger. All money math is fixed-point
// decimal; floats never touch prices or amounts.
package ledger

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/chainops/tronledger/internal/tron"
)

// decimalPlaces is the working precision for scaled prices and amounts.
const decimalPlaces = 18

// Scaling converts chain-native fixed-point integers into decimals. Prices
// share one global scale; amounts use a per-token decimal count with a
// configurable default for unknown tokens.
type Scaling struct {
	priceScale      decimal.Decimal
	defaultDecimals int32
	overrides       map[string]int32
}

// NewScaling builds a Scaling from the configured price scale (for example
// 1000000 for 6 fractional digits), the default token decimal count, and
// per-token overrides. Override keys may use either address encoding; they
// are also indexed under the canonical hex form so lookups succeed no
// matter which encoding the feed emits.
func NewScaling(priceScale int64, defaultDecimals int, overrides map[string]int) Scaling {
	idx := make(map[string]int32, 2*len(overrides))
	for token, dec := range overrides {
		idx[token] = int32(dec)
		idx[strings.ToLower(token)] = int32(dec)
		if addr, err := tron.Canonicalize(token); err == nil {
			idx[addr.Hex()] = int32(dec)
		}
	}
	if priceScale <= 0 {
		priceScale = 1
	}
	return Scaling{
		priceScale:      decimal.NewFromInt(priceScale),
		defaultDecimals: int32(defaultDecimals),
		overrides:       idx,
	}
}

// Decimals returns the decimal count for a token in any encoding.
func (s Scaling) Decimals(token string) int32 {
	if d, ok := s.overrides[token]; ok {
		return d
	}
	if d, ok := s.overrides[strings.ToLower(token)]; ok {
		return d
	}
	if addr, err := tron.Canonicalize(token); err == nil {
		if d, ok := s.overrides[addr.Hex()]; ok {
			return d
		}
	}
	return s.defaultDecimals
}

// Price converts a raw scaled-integer price into a decimal.
func (s Scaling) Price(raw decimal.Decimal) decimal.Decimal {
	return raw.DivRound(s.priceScale, decimalPlaces)
}

// Amount converts a raw token amount into human units using the token's
// decimal count.
func (s Scaling) Amount(token string, raw decimal.Decimal) decimal.Decimal {
	return raw.Shift(-s.Decimals(token)).Round(decimalPlaces)
}

// Quantize rounds an amount half-up to the token's native precision. A
// remainder that quantizes to zero is treated as a fully closed position.
func (s Scaling) Quantize(token string, d decimal.Decimal) decimal.Decimal {
	return d.Round(s.Decimals(token))
}

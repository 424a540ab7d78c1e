package ledger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainops/tronledger/internal/domain"
)

const testTokenB58 = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"

func testParser() *Parser {
	return NewParser(NewScaling(1_000_000, 6, nil), true)
}

func rawEvent(name, result string) domain.RawEvent {
	return domain.RawEvent{
		TransactionID:  "abc123",
		BlockNumber:    55721500,
		BlockTimestamp: 1712000000000,
		EventIndex:     3,
		EventName:      name,
		Result:         json.RawMessage(result),
	}
}

func TestParse_TradeOpen(t *testing.T) {
	ev := rawEvent("TradeOpen", `{
		"tradeId": "7",
		"trader": "TTraderAddr",
		"tokenAddress": "`+testTokenB58+`",
		"strategy": "sma-cross",
		"entryPrice": "67500000",
		"amount": "2500000",
		"timestamp": "1712000000"
	}`)

	parsed, err := testParser().Parse(ev)
	require.NoError(t, err)

	assert.Equal(t, domain.KindOpen, parsed.Kind)
	assert.Equal(t, domain.ActionBuy, parsed.Action)
	assert.Equal(t, int64(7), parsed.TradeID)
	assert.Equal(t, "TTraderAddr", parsed.Trader)
	assert.Equal(t, testToken, parsed.TokenKey, "token key is canonical hex")
	assert.Equal(t, testTokenB58, parsed.TokenSource)
	require.NotNil(t, parsed.Strategy)
	assert.Equal(t, "sma-cross", *parsed.Strategy)
	assert.True(t, parsed.Price.Equal(d("67.5")), "got %s", parsed.Price)
	require.NotNil(t, parsed.Amount)
	assert.True(t, parsed.Amount.Equal(d("2.5")), "got %s", parsed.Amount)
	assert.Equal(t, int64(55721500), parsed.BlockNumber)
	assert.Equal(t, int64(3), parsed.EventIndex)
	assert.NotEmpty(t, parsed.UID)
}

func TestParse_TradeOpenDefaults(t *testing.T) {
	// Bare-number fields, no strategy, price under the "price" key, an
	// explicit action.
	ev := rawEvent("TradeOpen", `{
		"tradeId": 7,
		"trader": "TTraderAddr",
		"tokenAddress": "`+testToken+`",
		"price": 1000000,
		"amount": 1000000,
		"action": "sell"
	}`)

	parsed, err := testParser().Parse(ev)
	require.NoError(t, err)

	assert.Equal(t, domain.ActionSell, parsed.Action)
	assert.Nil(t, parsed.Strategy)
	assert.True(t, parsed.Price.Equal(d("1")))
	assert.True(t, parsed.Amount.Equal(d("1")))
}

func TestParse_TradeClosed(t *testing.T) {
	ev := rawEvent("TradeClosed", `{
		"tradeId": "7",
		"trader": "TTraderAddr",
		"tokenAddress": "`+testTokenB58+`",
		"exitPrice": "70000000",
		"pnl": "5000000"
	}`)

	parsed, err := testParser().Parse(ev)
	require.NoError(t, err)

	assert.Equal(t, domain.KindClosed, parsed.Kind)
	assert.Equal(t, domain.ActionSell, parsed.Action)
	assert.True(t, parsed.Price.Equal(d("70")))
	assert.Nil(t, parsed.Amount, "absent amount means full close")
	require.NotNil(t, parsed.ReportedPnL)
	assert.True(t, parsed.ReportedPnL.Equal(d("5")))
}

func TestParse_TradeClosedPartialAmountKeys(t *testing.T) {
	for _, key := range []string{"amount", "sellAmount", "amountSold"} {
		t.Run(key, func(t *testing.T) {
			ev := rawEvent("TradeClosed", `{
				"tradeId": "7",
				"trader": "TTraderAddr",
				"tokenAddress": "`+testToken+`",
				"exitPrice": "70000000",
				"`+key+`": "1500000"
			}`)

			parsed, err := testParser().Parse(ev)
			require.NoError(t, err)
			require.NotNil(t, parsed.Amount)
			assert.True(t, parsed.Amount.Equal(d("1.5")))
		})
	}
}

func TestParse_PerTokenDecimalsOverride(t *testing.T) {
	// Override keyed by base58 must apply to an event that carries hex,
	// and vice versa.
	parser := NewParser(NewScaling(1_000_000, 6, map[string]int{testTokenB58: 18}), true)

	ev := rawEvent("TradeOpen", `{
		"tradeId": "1",
		"trader": "TTraderAddr",
		"tokenAddress": "`+testToken+`",
		"entryPrice": "1000000",
		"amount": "2000000000000000000"
	}`)

	parsed, err := parser.Parse(ev)
	require.NoError(t, err)
	assert.True(t, parsed.Amount.Equal(d("2")), "got %s", parsed.Amount)
}

func TestParse_SourceKeyEncoding(t *testing.T) {
	parser := NewParser(NewScaling(1_000_000, 6, nil), false)

	ev := rawEvent("TradeOpen", `{
		"tradeId": "1",
		"trader": "TTraderAddr",
		"tokenAddress": "`+testTokenB58+`",
		"entryPrice": "1000000",
		"amount": "1000000"
	}`)

	parsed, err := parser.Parse(ev)
	require.NoError(t, err)
	assert.Equal(t, testTokenB58, parsed.TokenKey, "source encoding kept verbatim")
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		event   string
		result  string
		wantErr error
	}{
		{
			name:    "unknown event name",
			event:   "OwnershipTransferred",
			result:  `{"newOwner": "TSomeone"}`,
			wantErr: domain.ErrUnknownEvent,
		},
		{
			name:    "missing trade id",
			event:   "TradeOpen",
			result:  `{"trader":"T","tokenAddress":"` + testToken + `","entryPrice":"1","amount":"1"}`,
			wantErr: domain.ErrMalformedEvent,
		},
		{
			name:    "missing token address",
			event:   "TradeOpen",
			result:  `{"tradeId":"1","trader":"T","entryPrice":"1","amount":"1"}`,
			wantErr: domain.ErrMalformedEvent,
		},
		{
			name:    "missing entry price",
			event:   "TradeOpen",
			result:  `{"tradeId":"1","trader":"T","tokenAddress":"` + testToken + `","amount":"1"}`,
			wantErr: domain.ErrMalformedEvent,
		},
		{
			name:    "missing amount on open",
			event:   "TradeOpen",
			result:  `{"tradeId":"1","trader":"T","tokenAddress":"` + testToken + `","entryPrice":"1"}`,
			wantErr: domain.ErrMalformedEvent,
		},
		{
			name:    "missing exit price on close",
			event:   "TradeClosed",
			result:  `{"tradeId":"1","trader":"T","tokenAddress":"` + testToken + `"}`,
			wantErr: domain.ErrMalformedEvent,
		},
		{
			name:    "non-numeric trade id",
			event:   "TradeOpen",
			result:  `{"tradeId":"seven","trader":"T","tokenAddress":"` + testToken + `","entryPrice":"1","amount":"1"}`,
			wantErr: domain.ErrMalformedEvent,
		},
		{
			name:    "result not an object",
			event:   "TradeOpen",
			result:  `[1,2,3]`,
			wantErr: domain.ErrMalformedEvent,
		},
		{
			name:    "bad token address",
			event:   "TradeOpen",
			result:  `{"tradeId":"1","trader":"T","tokenAddress":"notanaddress!","entryPrice":"1","amount":"1"}`,
			wantErr: domain.ErrBadAddress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testParser().Parse(rawEvent(tt.event, tt.result))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEventUID_Deterministic(t *testing.T) {
	ev := rawEvent("TradeOpen", `{"tradeId":"1","amount":"5"}`)

	assert.Equal(t, EventUID(ev), EventUID(ev))

	// Key order inside the result payload must not matter: a re-fetch may
	// serialize the same object differently.
	reordered := rawEvent("TradeOpen", `{"amount":"5","tradeId":"1"}`)
	assert.Equal(t, EventUID(ev), EventUID(reordered))
}

func TestEventUID_SensitiveToEveryField(t *testing.T) {
	base := rawEvent("TradeOpen", `{"tradeId":"1"}`)

	mutations := map[string]domain.RawEvent{}

	m := base
	m.TransactionID = "other"
	mutations["transaction id"] = m

	m = base
	m.BlockNumber++
	mutations["block number"] = m

	m = base
	m.EventIndex++
	mutations["event index"] = m

	m = base
	m.EventName = "TradeClosed"
	mutations["event name"] = m

	m = base
	m.Result = json.RawMessage(`{"tradeId":"2"}`)
	mutations["result payload"] = m

	for name, mut := range mutations {
		t.Run(name, func(t *testing.T) {
			assert.NotEqual(t, EventUID(base), EventUID(mut))
		})
	}
}

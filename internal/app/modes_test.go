package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainops/tronledger/internal/config"
	"github.com/chainops/tronledger/internal/domain"
	"github.com/chainops/tronledger/internal/ledger"
	"github.com/chainops/tronledger/internal/pipeline"
)

const (
	testContract = "TBwoSdy5Xfk8WJiBzdnJfqUvJaz6sTZ8oc"
	testTokenB58 = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"
	testTokenHex = "41a614f803b6fd780986a42c78ec9c7f77e6ded13c"
)

// onePageFetcher serves a single page and then reports an empty feed.
type onePageFetcher struct {
	page  domain.EventPage
	calls int
}

func (f *onePageFetcher) FetchPage(context.Context, string, string) (domain.EventPage, error) {
	f.calls++
	if f.calls > 1 {
		return domain.EventPage{}, nil
	}
	return f.page, nil
}

// memStore backs all three store interfaces in memory with the same
// unique-key semantics as the database, recording ListByToken calls.
type memStore struct {
	positions map[string]domain.OpenPosition
	history   map[string]domain.HistoryRecord
	listCalls []string
}

func newMemStore() *memStore {
	return &memStore{
		positions: make(map[string]domain.OpenPosition),
		history:   make(map[string]domain.HistoryRecord),
	}
}

func (m *memStore) Get(_ context.Context, token string) (domain.OpenPosition, error) {
	p, ok := m.positions[token]
	if !ok {
		return domain.OpenPosition{}, domain.ErrNotFound
	}
	return p, nil
}

func (m *memStore) Upsert(_ context.Context, p domain.OpenPosition) error {
	m.positions[p.TokenKey] = p
	return nil
}

func (m *memStore) Delete(_ context.Context, token string) error {
	delete(m.positions, token)
	return nil
}

func (m *memStore) ListOpen(_ context.Context) ([]domain.OpenPosition, error) {
	out := make([]domain.OpenPosition, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) Insert(_ context.Context, rec domain.HistoryRecord) (bool, error) {
	if _, dup := m.history[rec.EventUID]; dup {
		return false, nil
	}
	m.history[rec.EventUID] = rec
	return true, nil
}

func (m *memStore) ListByToken(_ context.Context, token string, _ int) ([]domain.HistoryRecord, error) {
	m.listCalls = append(m.listCalls, token)
	var recs []domain.HistoryRecord
	for _, rec := range m.history {
		if rec.TokenKey == token {
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

func (m *memStore) Count(_ context.Context) (int64, error) {
	return int64(len(m.history)), nil
}

func (m *memStore) ApplyOutcome(_ context.Context, out domain.LedgerOutcome) (bool, error) {
	if _, dup := m.history[out.History.EventUID]; dup {
		return false, nil
	}
	m.history[out.History.EventUID] = out.History
	switch {
	case out.Delete:
		delete(m.positions, out.TokenKey)
	case out.Position != nil:
		m.positions[out.TokenKey] = *out.Position
	}
	return true, nil
}

func TestOnceMode_ReportsOpenPositionsWithRecentHistory(t *testing.T) {
	fetcher := &onePageFetcher{page: domain.EventPage{
		Events: []domain.RawEvent{{
			TransactionID: "tx1",
			BlockNumber:   100,
			EventName:     "TradeOpen",
			Result: json.RawMessage(fmt.Sprintf(
				`{"tradeId":"1","trader":"TTraderAddr","tokenAddress":"%s","entryPrice":"10000000","amount":"5000000"}`,
				testTokenB58)),
		}},
	}}
	store := newMemStore()

	scaling := ledger.NewScaling(1_000_000, 6, nil)
	runner := pipeline.NewRunner(
		pipeline.Config{Contract: testContract},
		pipeline.Deps{
			Fetcher:   fetcher,
			Parser:    ledger.NewParser(scaling, true),
			Engine:    ledger.NewEngine(scaling),
			Positions: store,
			Ledger:    store,
		},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	cfg := config.Defaults()
	cfg.Tron.Contract = testContract
	application := New(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := application.OnceMode(context.Background(), &Dependencies{
		Runner:        runner,
		PositionStore: store,
		HistoryStore:  store,
	})
	require.NoError(t, err)

	// The backfill landed the position and the summary pulled its recent
	// history.
	require.Contains(t, store.positions, testTokenHex)
	assert.Contains(t, store.listCalls, testTokenHex)
	assert.Len(t, store.history, 1)
}

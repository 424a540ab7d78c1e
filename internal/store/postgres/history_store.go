package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chainops/tronledger/internal/domain"
)

// HistoryStore implements domain.HistoryStore on the trade_history table.
// Rows are insert-only; the event_uid unique constraint absorbs duplicate
// delivery.
type HistoryStore struct {
	pool *pgxpool.Pool
}

// NewHistoryStore creates a HistoryStore backed by the given pool.
func NewHistoryStore(pool *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

const historyInsertSQL = `
	INSERT INTO trade_history (
		event_uid, trade_id_onchain, token_address, action,
		price, amount, avg_entry_price, avg_exit_price, pnl,
		strategy, tx_id, block_number
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (event_uid) DO NOTHING`

func historyInsertArgs(rec domain.HistoryRecord) []any {
	return []any{
		rec.EventUID, rec.TradeIDOnchain, rec.TokenKey, string(rec.Action),
		rec.Price, rec.Amount, rec.AvgEntryPrice, rec.AvgExitPrice, rec.PnL,
		rec.Strategy, rec.TxID, rec.BlockNumber,
	}
}

// Insert writes a history record unless its event_uid already exists,
// reporting whether a row was actually inserted.
func (s *HistoryStore) Insert(ctx context.Context, rec domain.HistoryRecord) (bool, error) {
	tag, err := s.pool.Exec(ctx, historyInsertSQL, historyInsertArgs(rec)...)
	if err != nil {
		return false, fmt.Errorf("postgres: insert history %s: %w", rec.EventUID, err)
	}
	return tag.RowsAffected() > 0, nil
}

const historyCols = `id, event_uid, trade_id_onchain, token_address, action,
	price, amount, avg_entry_price, avg_exit_price, pnl,
	strategy, tx_id, block_number, created_at`

// ListByToken returns the most recent history rows for a token, newest
// first by chain order.
func (s *HistoryStore) ListByToken(ctx context.Context, tokenKey string, limit int) ([]domain.HistoryRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+historyCols+` FROM trade_history
		 WHERE token_address = $1
		 ORDER BY block_number DESC, id DESC
		 LIMIT $2`, tokenKey, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list history for %s: %w", tokenKey, err)
	}
	defer rows.Close()

	return scanHistoryRows(rows)
}

// Count returns the total number of history rows.
func (s *HistoryStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trade_history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count history: %w", err)
	}
	return n, nil
}

func scanHistoryRows(rows pgx.Rows) ([]domain.HistoryRecord, error) {
	var recs []domain.HistoryRecord
	for rows.Next() {
		var rec domain.HistoryRecord
		var action string
		if err := rows.Scan(
			&rec.ID, &rec.EventUID, &rec.TradeIDOnchain, &rec.TokenKey, &action,
			&rec.Price, &rec.Amount, &rec.AvgEntryPrice, &rec.AvgExitPrice, &rec.PnL,
			&rec.Strategy, &rec.TxID, &rec.BlockNumber, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan history row: %w", err)
		}
		rec.Action = domain.TradeAction(action)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

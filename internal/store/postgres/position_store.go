package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chainops/tronledger/internal/domain"
)

// PositionStore implements domain.PositionStore on the open_trades table.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a PositionStore backed by the given pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionCols = `token_address, trade_id_onchain, avg_entry_price, amount,
	strategy, trader, last_tx_id, updated_at`

func scanPosition(row pgx.Row) (domain.OpenPosition, error) {
	var p domain.OpenPosition
	err := row.Scan(
		&p.TokenKey, &p.TradeIDOnchain, &p.AvgEntryPrice, &p.Amount,
		&p.Strategy, &p.Trader, &p.LastTxID, &p.UpdatedAt,
	)
	return p, err
}

// Get returns the live position for a token, or domain.ErrNotFound.
func (s *PositionStore) Get(ctx context.Context, tokenKey string) (domain.OpenPosition, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionCols+` FROM open_trades WHERE token_address = $1`, tokenKey)

	p, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.OpenPosition{}, domain.ErrNotFound
		}
		return domain.OpenPosition{}, fmt.Errorf("postgres: get position %s: %w", tokenKey, err)
	}
	return p, nil
}

// Upsert writes the position keyed by token address.
func (s *PositionStore) Upsert(ctx context.Context, p domain.OpenPosition) error {
	if _, err := s.pool.Exec(ctx, upsertPositionSQL, upsertPositionArgs(p)...); err != nil {
		return fmt.Errorf("postgres: upsert position %s: %w", p.TokenKey, err)
	}
	return nil
}

// Delete removes the position row. Deleting an absent row is not an error.
func (s *PositionStore) Delete(ctx context.Context, tokenKey string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM open_trades WHERE token_address = $1`, tokenKey); err != nil {
		return fmt.Errorf("postgres: delete position %s: %w", tokenKey, err)
	}
	return nil
}

// ListOpen returns every live position.
func (s *PositionStore) ListOpen(ctx context.Context) ([]domain.OpenPosition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionCols+` FROM open_trades ORDER BY token_address`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.OpenPosition
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

const upsertPositionSQL = `
	INSERT INTO open_trades (
		token_address, trade_id_onchain, avg_entry_price, amount,
		strategy, trader, last_tx_id, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	ON CONFLICT (token_address) DO UPDATE SET
		trade_id_onchain = EXCLUDED.trade_id_onchain,
		avg_entry_price  = EXCLUDED.avg_entry_price,
		amount           = EXCLUDED.amount,
		strategy         = EXCLUDED.strategy,
		trader           = EXCLUDED.trader,
		last_tx_id       = EXCLUDED.last_tx_id,
		updated_at       = NOW()`

func upsertPositionArgs(p domain.OpenPosition) []any {
	return []any{
		p.TokenKey, p.TradeIDOnchain, p.AvgEntryPrice, p.Amount,
		p.Strategy, p.Trader, p.LastTxID,
	}
}

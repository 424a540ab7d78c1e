package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chainops/tronledger/internal/domain"
)

// LedgerStore implements domain.LedgerStore: one transaction covers the
// history insert and the position write, so an interrupted run never leaves
// a half-applied event. The insert-or-ignore on event_uid doubles as the
// duplicate-delivery guard; when the row already exists the position is not
// touched and the outcome reports applied=false.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a LedgerStore backed by the given pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// ApplyOutcome atomically persists one ledger outcome.
func (s *LedgerStore) ApplyOutcome(ctx context.Context, out domain.LedgerOutcome) (bool, error) {
	uid := out.History.EventUID
	if uid == "" {
		return false, fmt.Errorf("postgres: apply outcome for %s: empty event uid", out.TokenKey)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("postgres: begin apply %s: %w", uid, err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, historyInsertSQL, historyInsertArgs(out.History)...)
	if err != nil {
		return false, fmt.Errorf("postgres: apply %s: insert history: %w", uid, err)
	}
	if tag.RowsAffected() == 0 {
		// Already materialized on a previous delivery.
		if err := tx.Commit(ctx); err != nil {
			return false, fmt.Errorf("postgres: commit duplicate %s: %w", uid, err)
		}
		return false, nil
	}

	switch {
	case out.Delete:
		if _, err := tx.Exec(ctx,
			`DELETE FROM open_trades WHERE token_address = $1`, out.TokenKey); err != nil {
			return false, fmt.Errorf("postgres: apply %s: delete position: %w", uid, err)
		}
	case out.Position != nil:
		if _, err := tx.Exec(ctx, upsertPositionSQL, upsertPositionArgs(*out.Position)...); err != nil {
			return false, fmt.Errorf("postgres: apply %s: upsert position: %w", uid, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("postgres: commit apply %s: %w", uid, err)
	}
	return true, nil
}

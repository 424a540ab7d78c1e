package domain

import (
	"context"
	"io"
)

// PositionStore persists open positions keyed by canonical token address.
type PositionStore interface {
	Get(ctx context.Context, tokenKey string) (OpenPosition, error)
	Upsert(ctx context.Context, pos OpenPosition) error
	Delete(ctx context.Context, tokenKey string) error
	ListOpen(ctx context.Context) ([]OpenPosition, error)
}

// HistoryStore persists the append-only trade history.
type HistoryStore interface {
	// Insert writes a history record unless one with the same EventUID
	// already exists. It reports whether a row was actually inserted.
	Insert(ctx context.Context, rec HistoryRecord) (bool, error)
	ListByToken(ctx context.Context, tokenKey string, limit int) ([]HistoryRecord, error)
	Count(ctx context.Context) (int64, error)
}

// LedgerStore applies a LedgerOutcome atomically: the history insert and
// the position write commit or fail together. Applied is false when the
// history row already existed, in which case the position is left alone;
// this is what makes redelivery of an upstream event a no-op.
type LedgerStore interface {
	ApplyOutcome(ctx context.Context, out LedgerOutcome) (applied bool, err error)
}

// DedupCache remembers event uids across process restarts. It is a fast-path
// filter only; the unique-key write in LedgerStore remains the source of
// truth for idempotency. Mark must only be called after the event's effects
// are durably written, so a failed write is never acknowledged.
type DedupCache interface {
	Seen(ctx context.Context, uid string) (bool, error)
	Mark(ctx context.Context, uid string) error
}

// BlobWriter uploads raw event pages for archival.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

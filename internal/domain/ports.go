package domain

import (
	"context"
	"io"
	"time"
)

// HistoryStore is the driven port for the delivered-id record. Contains and
// Record never fail: persistence trouble is the store's problem to log, and
// the in-memory state stays authoritative for the run.
type HistoryStore interface {
	Contains(kind SourceKind, id string) bool
	Record(kind SourceKind, id string)
	Flush() error
	Sizes() map[SourceKind]int
	Close() error
}

// Scanner queries one source kind's provider and returns candidate items:
// not yet delivered, publication date known, inside the recency window,
// provider order preserved. A fresh call re-queries the provider.
type Scanner interface {
	Kind() SourceKind
	Name() string
	Scan(ctx context.Context, now time.Time) ([]Item, error)
}

// AudioFetcher turns an item's URL into raw audio bytes, or one of the
// typed fetch errors.
type AudioFetcher interface {
	Fetch(ctx context.Context, item Item) ([]byte, error)
}

// Transport is the driven port for the outbound chat destination. The
// audio reader is positioned at the start of the payload on every call.
type Transport interface {
	SendAudio(ctx context.Context, audio io.Reader, filename, caption string) error
}

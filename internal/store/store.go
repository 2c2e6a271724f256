// Package store defines the candle store contract the backfiller writes
// through, plus the first-run completion marker. The Postgres
// implementation lives in the postgres subpackage.
package store

import (
	"context"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
)

// CandleStore is the minimal persistent contract of the backfill engine.
// Rows are keyed by (exchange, symbol, interval, timestamp); upserts
// replace prices, volumes and loaded_at on conflict.
type CandleStore interface {
	// UpsertCandles writes rows idempotently and returns the number of
	// rows written (inserted or updated).
	UpsertCandles(ctx context.Context, exchange string, symbol model.Symbol, interval model.Interval, rows []model.Candle) (int64, error)

	// MinMaxTimestamp returns the stored bounds for a cell; ok is false
	// when the cell has no rows.
	MinMaxTimestamp(ctx context.Context, symbol model.Symbol, interval model.Interval) (minTS, maxTS int64, ok bool, err error)

	// CountInRange counts stored bars with timestamp in [start, end).
	CountInRange(ctx context.Context, symbol model.Symbol, interval model.Interval, start, end int64) (int64, error)

	// OrderedTimestamps lists stored bar timestamps in [start, end)
	// ascending, for gap walking.
	OrderedTimestamps(ctx context.Context, symbol model.Symbol, interval model.Interval, start, end int64) ([]int64, error)
}

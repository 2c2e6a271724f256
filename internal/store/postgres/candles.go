// Package postgres implements the candle store on PostgreSQL via sqlx.
// One table holds every bar, keyed by (exchange, symbol, interval, ts);
// upserts replace the price snapshot and bump loaded_at.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/store"
)

// Schema is the minimal DDL the store needs. Applied with EnsureSchema on
// startup; safe to re-run.
const Schema = `
CREATE TABLE IF NOT EXISTS candles (
	exchange     TEXT        NOT NULL,
	symbol       TEXT        NOT NULL,
	interval     TEXT        NOT NULL,
	ts           BIGINT      NOT NULL,
	open         NUMERIC     NOT NULL,
	high         NUMERIC     NOT NULL,
	low          NUMERIC     NOT NULL,
	close        NUMERIC     NOT NULL,
	volume       NUMERIC     NOT NULL,
	quote_volume NUMERIC,
	trades_count BIGINT,
	loaded_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (exchange, symbol, interval, ts)
);
CREATE INDEX IF NOT EXISTS candles_symbol_interval_ts_idx
	ON candles (symbol, interval, ts);
`

const upsertSQL = `
INSERT INTO candles (exchange, symbol, interval, ts, open, high, low, close, volume, quote_volume, trades_count, loaded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (exchange, symbol, interval, ts) DO UPDATE SET
	open = EXCLUDED.open,
	high = EXCLUDED.high,
	low = EXCLUDED.low,
	close = EXCLUDED.close,
	volume = EXCLUDED.volume,
	quote_volume = EXCLUDED.quote_volume,
	trades_count = EXCLUDED.trades_count,
	loaded_at = EXCLUDED.loaded_at`

// CandleStore is the sqlx-backed implementation of store.CandleStore.
type CandleStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

var _ store.CandleStore = (*CandleStore)(nil)

// Open connects to Postgres and verifies the connection.
func Open(databaseURL string, timeout time.Duration) (*CandleStore, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect candle store: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	return New(db, timeout), nil
}

// New wraps an existing connection (used by tests via sqlmock).
func New(db *sqlx.DB, timeout time.Duration) *CandleStore {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CandleStore{db: db, timeout: timeout}
}

// EnsureSchema applies the DDL.
func (s *CandleStore) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure candle schema: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *CandleStore) Close() error {
	return s.db.Close()
}

// UpsertCandles writes one cell's rows in a single short transaction,
// oldest to newest.
func (s *CandleStore) UpsertCandles(ctx context.Context, exchange string, symbol model.Symbol, interval model.Interval, rows []model.Candle) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, upsertSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	loadedAt := time.Now().UTC()
	var written int64
	for _, c := range rows {
		if err := c.Validate(); err != nil {
			return 0, fmt.Errorf("refusing to persist invalid candle: %w", err)
		}
		var quote any
		if c.QuoteVolume != nil {
			quote = c.QuoteVolume.String()
		}
		var trades any
		if c.TradesCount != nil {
			trades = *c.TradesCount
		}
		if _, err := stmt.ExecContext(ctx,
			exchange, symbol.String(), interval.String(), c.Timestamp,
			c.Open.String(), c.High.String(), c.Low.String(), c.Close.String(),
			c.Volume.String(), quote, trades, loadedAt,
		); err != nil {
			return 0, fmt.Errorf("upsert candle ts=%d: %w", c.Timestamp, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert: %w", err)
	}
	return written, nil
}

// MinMaxTimestamp reads the stored bounds of a cell across all venues.
func (s *CandleStore) MinMaxTimestamp(ctx context.Context, symbol model.Symbol, interval model.Interval) (int64, int64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var row struct {
		Min sql.NullInt64 `db:"min_ts"`
		Max sql.NullInt64 `db:"max_ts"`
	}
	err := s.db.GetContext(ctx, &row,
		`SELECT MIN(ts) AS min_ts, MAX(ts) AS max_ts FROM candles WHERE symbol = $1 AND interval = $2`,
		symbol.String(), interval.String())
	if err != nil {
		return 0, 0, false, fmt.Errorf("min/max timestamp: %w", err)
	}
	if !row.Min.Valid || !row.Max.Valid {
		return 0, 0, false, nil
	}
	return row.Min.Int64, row.Max.Int64, true, nil
}

// CountInRange counts bars in the half-open [start, end) window.
func (s *CandleStore) CountInRange(ctx context.Context, symbol model.Symbol, interval model.Interval, start, end int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var count int64
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(DISTINCT ts) FROM candles WHERE symbol = $1 AND interval = $2 AND ts >= $3 AND ts < $4`,
		symbol.String(), interval.String(), start, end)
	if err != nil {
		return 0, fmt.Errorf("count in range: %w", err)
	}
	return count, nil
}

// OrderedTimestamps lists distinct stored bar timestamps ascending.
func (s *CandleStore) OrderedTimestamps(ctx context.Context, symbol model.Symbol, interval model.Interval, start, end int64) ([]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var out []int64
	err := s.db.SelectContext(ctx, &out,
		`SELECT DISTINCT ts FROM candles WHERE symbol = $1 AND interval = $2 AND ts >= $3 AND ts < $4 ORDER BY ts ASC`,
		symbol.String(), interval.String(), start, end)
	if err != nil {
		return nil, fmt.Errorf("ordered timestamps: %w", err)
	}
	return out, nil
}

// LatestClose reads the newest stored close for a symbol, for consumers
// that only need a price (cycle classification, scoring context).
func (s *CandleStore) LatestClose(ctx context.Context, symbol model.Symbol, interval model.Interval) (decimal.Decimal, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var raw string
	err := s.db.GetContext(ctx, &raw,
		`SELECT close FROM candles WHERE symbol = $1 AND interval = $2 ORDER BY ts DESC LIMIT 1`,
		symbol.String(), interval.String())
	if err == sql.ErrNoRows {
		return decimal.Decimal{}, false, nil
	}
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("latest close: %w", err)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("latest close parse: %w", err)
	}
	return d, true, nil
}

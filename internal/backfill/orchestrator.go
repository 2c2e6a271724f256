// Package backfill walks a symbol × interval grid over a multi-year
// history window, paging through provider limits via the race fetcher and
// upserting into the candle store. Completion is strict: one failed cell
// fails the whole run and the first-run marker is not written.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/exchange"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/metrics"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/store"
)

// Fetcher is the slice of the race fetcher the backfiller needs.
type Fetcher interface {
	Fetch(ctx context.Context, req exchange.FetchRequest) (*model.FetchResult, error)
}

// ProgressSink receives progress snapshots; the sensor publisher satisfies
// it. A nil sink disables publishing.
type ProgressSink interface {
	PublishBackfillProgress(progress model.BackfillProgress)
}

// Config tunes the orchestrator. Zero values fall back to the standard
// defaults.
type Config struct {
	Years      int
	Intervals  []model.Interval
	PageLimit  int           // bars per provider call
	PageDelay  time.Duration // pacing between paged requests
	BaseDelay  time.Duration // first backoff step
	MaxDelay   time.Duration // backoff cap
	MaxRetries int
}

func (c *Config) applyDefaults() {
	if c.Years <= 0 {
		c.Years = 10
	}
	if len(c.Intervals) == 0 {
		c.Intervals = []model.Interval{model.Interval1d, model.Interval4h, model.Interval1h}
	}
	if c.PageLimit <= 0 {
		c.PageLimit = 1000
	}
	if c.PageDelay <= 0 {
		c.PageDelay = 500 * time.Millisecond
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 5 * time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 60 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
}

// Orchestrator owns one backfill run at a time plus the progress record.
type Orchestrator struct {
	cfg     Config
	symbols []model.Symbol
	fetcher Fetcher
	store   store.CandleStore
	marker  *store.Marker
	sink    ProgressSink
	pacer   *rate.Limiter

	progress progressState

	// now is swappable for tests.
	now func() time.Time
}

// New builds an orchestrator. marker may not be nil; sink may be.
func New(cfg Config, symbols []model.Symbol, fetcher Fetcher, candleStore store.CandleStore, marker *store.Marker, sink ProgressSink) *Orchestrator {
	cfg.applyDefaults()
	o := &Orchestrator{
		cfg:     cfg,
		symbols: symbols,
		fetcher: fetcher,
		store:   candleStore,
		marker:  marker,
		sink:    sink,
		pacer:   rate.NewLimiter(rate.Every(cfg.PageDelay), 1),
		now:     time.Now,
	}
	o.progress.reset()
	return o
}

// Progress returns an immutable snapshot of the current run state.
func (o *Orchestrator) Progress() model.BackfillProgress {
	return o.progress.snapshot()
}

// CheckAndBackfill is the idempotent first-run guard: it does nothing when
// the completion marker exists, unless force is set.
func (o *Orchestrator) CheckAndBackfill(ctx context.Context, force bool) error {
	if o.marker.Exists() && !force {
		log.Info().Msg("backfill marker present, skipping initial backfill")
		return nil
	}
	_, err := o.BackfillAll(ctx, o.cfg.Years, o.cfg.Intervals)
	return err
}

// BackfillAll fills the whole grid and returns per-cell row counts. Every
// cell is attempted even after failures; a single aggregate error is
// raised at the end and the marker stays unwritten on any failure.
func (o *Orchestrator) BackfillAll(ctx context.Context, years int, intervals []model.Interval) (map[model.CellKey]int64, error) {
	runID := uuid.NewString()
	o.progress.start(runID, len(o.symbols))
	o.publish()

	log.Info().
		Str("run_id", runID).
		Int("symbols", len(o.symbols)).
		Int("intervals", len(intervals)).
		Int("years", years).
		Msg("backfill run starting")

	counts := make(map[model.CellKey]int64)
	failed := make(map[model.CellKey]error)

	for _, symbol := range o.symbols {
		symbolOK := true
		for _, interval := range intervals {
			key := model.CellKey{Symbol: symbol, Interval: interval}
			o.progress.setTask(fmt.Sprintf("backfilling %s", key))
			o.publish()

			rows, err := o.BackfillOne(ctx, symbol, interval, years)
			if err == nil && rows == 0 {
				err = fmt.Errorf("cell %s produced zero rows", key)
			}
			if err != nil {
				if ctx.Err() != nil {
					o.progress.fail(ctx.Err().Error(), keysOf(failed))
					o.publish()
					return counts, ctx.Err()
				}
				log.Error().Err(err).Stringer("symbol", symbol).Stringer("interval", interval).Msg("backfill cell failed")
				metrics.BackfillCellFailures.Inc()
				failed[key] = err
				symbolOK = false
				o.progress.cellFailed(key)
				o.publish()
				continue
			}
			counts[key] = rows
			o.progress.addRows(rows)
			o.publish()
		}
		if symbolOK {
			o.progress.symbolDone()
		} else {
			o.progress.symbolFailed()
		}
		o.publish()
	}

	if len(failed) > 0 {
		bfErr := &model.BackfillError{Failed: keysOf(failed), Causes: failed}
		o.progress.fail(bfErr.Error(), bfErr.Failed)
		o.publish()
		return counts, bfErr
	}

	if err := o.marker.Write(runID); err != nil {
		o.progress.fail(err.Error(), nil)
		o.publish()
		return counts, err
	}
	o.progress.complete()
	o.publish()
	log.Info().Str("run_id", runID).Int("cells", len(counts)).Msg("backfill run completed")
	return counts, nil
}

// BackfillOne fills a single cell, paging forward through the expected
// range. Returns the number of rows persisted.
func (o *Orchestrator) BackfillOne(ctx context.Context, symbol model.Symbol, interval model.Interval, years int) (int64, error) {
	startTS, endTS := o.expectedRange(interval, years)
	pageSpan := int64(o.cfg.PageLimit) * interval.Millis()

	var total int64
	cursor := startTS
	pageEnd := min(cursor+pageSpan, endTS)
	var newest int64 // newest bar persisted inside the current window

	for cursor < endTS {
		if err := o.pacer.Wait(ctx); err != nil {
			return total, err
		}

		winStart, winEnd := cursor, pageEnd
		req := exchange.FetchRequest{
			Symbol:   symbol,
			Interval: interval,
			Limit:    o.cfg.PageLimit,
			Start:    &winStart,
			End:      &winEnd,
		}

		res, err := o.fetchPage(ctx, req)
		if err != nil {
			// "Every venue empty" for a window the cell already has rows
			// around means no history there, not an outage.
			if !errors.Is(err, model.ErrAllExchangesFailed) || total == 0 {
				return total, err
			}
			res = nil
		}
		if res == nil || res.Len() == 0 {
			if pageEnd >= endTS {
				break
			}
			// Nothing in this window; move on to the next one.
			cursor = pageEnd
			pageEnd = min(cursor+pageSpan, endTS)
			newest = 0
			continue
		}

		written, err := o.store.UpsertCandles(ctx, res.Exchange, symbol, interval, res.Candles)
		if err != nil {
			return total, fmt.Errorf("persist page: %w", err)
		}
		total += written
		metrics.BackfillRows.WithLabelValues(symbol.String(), interval.String()).Add(float64(written))

		first := res.Candles[0].Timestamp
		if last := res.Candles[res.Len()-1].Timestamp; last > newest {
			newest = last
		}

		// A venue that pages backwards serves the tail of a wide window.
		// Narrow the window to the unserved head and re-request it; the
		// cursor only moves once the window is contiguous from its start.
		if first > cursor {
			pageEnd = first
			continue
		}

		next := newest + interval.Millis()
		if next <= cursor {
			next = cursor + pageSpan
		}
		cursor = next
		pageEnd = min(cursor+pageSpan, endTS)
		newest = 0
	}
	return total, nil
}

// fetchPage runs one paged request with the exponential backoff policy:
// base × 2^attempt + uniform jitter, capped, bounded attempts.
func (o *Orchestrator) fetchPage(ctx context.Context, req exchange.FetchRequest) (*model.FetchResult, error) {
	var lastErr error
	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, o.cfg.BaseDelay, o.cfg.MaxDelay, attempt-1); err != nil {
				return nil, err
			}
		}
		res, err := o.fetcher.Fetch(ctx, req)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !retryable(err) {
			return nil, err
		}
		log.Warn().Err(err).
			Stringer("symbol", req.Symbol).
			Int("attempt", attempt+1).
			Msg("paged fetch failed, will retry")
	}
	return nil, fmt.Errorf("page fetch exhausted %d retries: %w", o.cfg.MaxRetries, lastErr)
}

func retryable(err error) bool {
	return errors.Is(err, model.ErrRateLimited) ||
		errors.Is(err, model.ErrTransport) ||
		errors.Is(err, model.ErrAllExchangesFailed)
}

// expectedRange is [now - years, now) rounded outward to interval
// boundaries.
func (o *Orchestrator) expectedRange(interval model.Interval, years int) (int64, int64) {
	now := o.now().UTC()
	end := interval.AlignDown(now.UnixMilli())
	start := interval.AlignDown(now.AddDate(-years, 0, 0).UnixMilli())
	return start, end
}

func (o *Orchestrator) publish() {
	if o.sink != nil {
		o.sink.PublishBackfillProgress(o.progress.snapshot())
	}
}

func keysOf(m map[model.CellKey]error) []model.CellKey {
	keys := make([]model.CellKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

package backfill

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/exchange"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
)

// Gap is a half-open [Start, End) window inside the stored range with no
// bars.
type Gap struct {
	Start int64 `json:"start_ts"`
	End   int64 `json:"end_ts"`
}

// DetectGaps finds missing-bar windows between the stored MIN and MAX
// timestamps of a cell. A cell whose bar count matches the expected count
// is scanned no further.
func (o *Orchestrator) DetectGaps(ctx context.Context, symbol model.Symbol, interval model.Interval) ([]Gap, error) {
	minTS, maxTS, ok, err := o.store.MinMaxTimestamp(ctx, symbol, interval)
	if err != nil {
		return nil, fmt.Errorf("gap detection bounds: %w", err)
	}
	if !ok {
		return nil, nil
	}

	ivMs := interval.Millis()
	expected := (maxTS-minTS)/ivMs + 1
	count, err := o.store.CountInRange(ctx, symbol, interval, minTS, maxTS+ivMs)
	if err != nil {
		return nil, fmt.Errorf("gap detection count: %w", err)
	}
	if count >= expected {
		return nil, nil
	}

	stamps, err := o.store.OrderedTimestamps(ctx, symbol, interval, minTS, maxTS+ivMs)
	if err != nil {
		return nil, fmt.Errorf("gap detection walk: %w", err)
	}

	var gaps []Gap
	for i := 1; i < len(stamps); i++ {
		prev, next := stamps[i-1], stamps[i]
		if next-prev > ivMs {
			gaps = append(gaps, Gap{Start: prev + ivMs, End: next})
		}
	}
	log.Info().
		Stringer("symbol", symbol).
		Stringer("interval", interval).
		Int("gaps", len(gaps)).
		Int64("missing_bars", expected-count).
		Msg("gap detection finished")
	return gaps, nil
}

// FillGaps fetches and persists the bars for each gap window. Returns the
// number of rows inserted.
func (o *Orchestrator) FillGaps(ctx context.Context, symbol model.Symbol, interval model.Interval, gaps []Gap) (int64, error) {
	var inserted int64
	for _, gap := range gaps {
		if err := o.pacer.Wait(ctx); err != nil {
			return inserted, err
		}

		start, end := gap.Start, gap.End
		req := exchange.FetchRequest{
			Symbol:   symbol,
			Interval: interval,
			Limit:    o.cfg.PageLimit,
			Start:    &start,
			End:      &end,
		}
		res, err := o.fetchPage(ctx, req)
		if err != nil {
			return inserted, fmt.Errorf("fill gap [%d, %d): %w", gap.Start, gap.End, err)
		}
		written, err := o.store.UpsertCandles(ctx, res.Exchange, symbol, interval, res.Candles)
		if err != nil {
			return inserted, fmt.Errorf("persist gap [%d, %d): %w", gap.Start, gap.End, err)
		}
		inserted += written
	}
	return inserted, nil
}

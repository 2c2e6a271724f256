package model

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one immutable OHLCV bar. Timestamp is the bar open time in
// milliseconds since epoch, UTC, aligned to the interval boundary. Prices
// and volumes are exact decimals; binary floats appear only inside the
// indicator math.
type Candle struct {
	Timestamp   int64            `json:"timestamp"`
	Open        decimal.Decimal  `json:"open"`
	High        decimal.Decimal  `json:"high"`
	Low         decimal.Decimal  `json:"low"`
	Close       decimal.Decimal  `json:"close"`
	Volume      decimal.Decimal  `json:"volume"`
	QuoteVolume *decimal.Decimal `json:"quote_volume"`
	TradesCount *int64           `json:"trades_count"`
}

// Validate checks the OHLC ordering invariants.
func (c Candle) Validate() error {
	if c.Low.GreaterThan(c.Open) || c.Open.GreaterThan(c.High) {
		return fmt.Errorf("candle %d: open %s outside [%s, %s]", c.Timestamp, c.Open, c.Low, c.High)
	}
	if c.Low.GreaterThan(c.Close) || c.Close.GreaterThan(c.High) {
		return fmt.Errorf("candle %d: close %s outside [%s, %s]", c.Timestamp, c.Close, c.Low, c.High)
	}
	if c.Volume.IsNegative() {
		return fmt.Errorf("candle %d: negative volume %s", c.Timestamp, c.Volume)
	}
	return nil
}

// Time returns the bar open time.
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.Timestamp).UTC()
}

// CloseF returns the close as float64 for indicator math.
func (c Candle) CloseF() float64 {
	f, _ := c.Close.Float64()
	return f
}

// NormalizeCandles sorts ascending by timestamp and drops duplicate
// timestamps, keeping the last occurrence. Venues disagree on ordering and
// occasionally repeat the in-progress bar; adapters funnel everything
// through here.
func NormalizeCandles(candles []Candle) []Candle {
	if len(candles) == 0 {
		return candles
	}
	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Timestamp < candles[j].Timestamp
	})
	out := candles[:0]
	for _, c := range candles {
		if n := len(out); n > 0 && out[n-1].Timestamp == c.Timestamp {
			out[n-1] = c
			continue
		}
		out = append(out, c)
	}
	return out
}

// FetchResult is the outcome of one logical fetch: the winning venue and
// its candles, sorted strictly ascending with no duplicate timestamps.
type FetchResult struct {
	Candles  []Candle `json:"candles"`
	Exchange string   `json:"winning_exchange"`
	Symbol   Symbol   `json:"symbol"`
	Interval Interval `json:"interval"`
	Elapsed  int64    `json:"elapsed_ms"`
}

// Len returns the candle count.
func (r *FetchResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Candles)
}

// Latest returns the newest candle, or false when empty.
func (r *FetchResult) Latest() (Candle, bool) {
	if r.Len() == 0 {
		return Candle{}, false
	}
	return r.Candles[len(r.Candles)-1], true
}

package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
)

const coinbaseMaxLimit = 300

// coinbaseGranularities maps internal intervals to Coinbase Exchange
// granularities in seconds. Coinbase offers only six buckets.
var coinbaseGranularities = map[model.Interval]int64{
	model.Interval1m:  60,
	model.Interval5m:  300,
	model.Interval15m: 900,
	model.Interval1h:  3600,
	model.Interval6h:  21600,
	model.Interval1d:  86400,
}

// Coinbase serves candles from api.exchange.coinbase.com. Rows arrive as
// numeric [time, low, high, open, close, volume] tuples, newest first, with
// timestamps in seconds.
type Coinbase struct {
	baseURL string
	client  *http.Client
}

func NewCoinbase(timeout time.Duration) *Coinbase {
	return &Coinbase{
		baseURL: "https://api.exchange.coinbase.com",
		client:  newHTTPClient(timeout),
	}
}

func (c *Coinbase) Name() string { return "coinbase" }

func (c *Coinbase) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func (c *Coinbase) Fetch(ctx context.Context, req FetchRequest) ([]model.Candle, error) {
	gran, ok := coinbaseGranularities[req.Interval]
	if !ok {
		return nil, fmt.Errorf("%w: coinbase: %s", model.ErrUnsupportedInterval, req.Interval)
	}

	params := url.Values{}
	params.Set("granularity", strconv.FormatInt(gran, 10))
	limit := clampLimit(req.Limit, coinbaseMaxLimit)
	start, end := req.Start, req.End
	if start == nil && end != nil {
		s := *end - int64(limit)*gran*1000
		start = &s
	}
	if start != nil && end == nil {
		e := *start + int64(limit)*gran*1000
		end = &e
	}
	if start != nil {
		params.Set("start", time.UnixMilli(*start).UTC().Format(time.RFC3339))
		// Coinbase end is inclusive of the bar at end; back off one bar to
		// keep [start, end) semantics.
		params.Set("end", time.UnixMilli(*end-1).UTC().Format(time.RFC3339))
	}

	product := req.Symbol.Join("-")
	body, err := getJSON(ctx, c.client, c.baseURL+"/products/"+product+"/candles?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var rows [][]float64
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%w: coinbase candles: %v", model.ErrParse, err)
	}

	candles := make([]model.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("%w: coinbase candle row has %d fields", model.ErrParse, len(row))
		}
		candles = append(candles, model.Candle{
			Timestamp: int64(row[0]) * 1000,
			Low:       decimal.NewFromFloat(row[1]),
			High:      decimal.NewFromFloat(row[2]),
			Open:      decimal.NewFromFloat(row[3]),
			Close:     decimal.NewFromFloat(row[4]),
			Volume:    decimal.NewFromFloat(row[5]),
		})
	}
	candles = model.NormalizeCandles(candles)
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return inRange(candles, req.Start, req.End), nil
}

package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
)

const krakenMaxLimit = 720

// krakenIntervals maps internal intervals to Kraken OHLC minutes.
var krakenIntervals = map[model.Interval]int{
	model.Interval1m:  1,
	model.Interval5m:  5,
	model.Interval15m: 15,
	model.Interval30m: 30,
	model.Interval1h:  60,
	model.Interval4h:  240,
	model.Interval1d:  1440,
	model.Interval1w:  10080,
}

// Kraken serves OHLC from api.kraken.com. The result keys pairs by
// Kraken's internal names (XXBTZUSD), so rows are read from whichever
// non-"last" key the payload carries. Timestamps are in seconds; USDT
// quotes map to Kraken's USD pairs for the majors.
type Kraken struct {
	baseURL string
	client  *http.Client
}

func NewKraken(timeout time.Duration) *Kraken {
	return &Kraken{
		baseURL: "https://api.kraken.com",
		client:  newHTTPClient(timeout),
	}
}

func (k *Kraken) Name() string { return "kraken" }

func (k *Kraken) Close() error {
	k.client.CloseIdleConnections()
	return nil
}

func (k *Kraken) pair(sym model.Symbol) string {
	base := sym.Base()
	if base == "BTC" {
		base = "XBT"
	}
	quote := sym.Quote()
	if quote == "USDT" {
		quote = "USD"
	}
	return base + quote
}

func (k *Kraken) Fetch(ctx context.Context, req FetchRequest) ([]model.Candle, error) {
	minutes, ok := krakenIntervals[req.Interval]
	if !ok {
		return nil, fmt.Errorf("%w: kraken: %s", model.ErrUnsupportedInterval, req.Interval)
	}

	params := url.Values{}
	params.Set("pair", k.pair(req.Symbol))
	params.Set("interval", strconv.Itoa(minutes))
	if req.Start != nil {
		// since is exclusive; step back one bar so the first wanted bar
		// is included.
		params.Set("since", strconv.FormatInt(*req.Start/1000-int64(minutes)*60, 10))
	}

	body, err := getJSON(ctx, k.client, k.baseURL+"/0/public/OHLC?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var payload struct {
		Error  []string                   `json:"error"`
		Result map[string]json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: kraken ohlc: %v", model.ErrParse, err)
	}
	if len(payload.Error) > 0 {
		msg := strings.Join(payload.Error, "; ")
		if strings.Contains(msg, "Rate limit") || strings.Contains(msg, "Too many requests") {
			return nil, fmt.Errorf("%w: kraken: %s", model.ErrRateLimited, msg)
		}
		return nil, fmt.Errorf("%w: kraken: %s", model.ErrTransport, msg)
	}

	var rows [][]json.RawMessage
	for key, raw := range payload.Result {
		if key == "last" {
			continue
		}
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("%w: kraken pair rows: %v", model.ErrParse, err)
		}
		break
	}

	limit := clampLimit(req.Limit, krakenMaxLimit)
	candles := make([]model.Candle, 0, len(rows))
	for _, row := range rows {
		// [time, open, high, low, close, vwap, volume, count]
		if len(row) < 8 {
			return nil, fmt.Errorf("%w: kraken ohlc row has %d fields", model.ErrParse, len(row))
		}
		var sec float64
		if err := json.Unmarshal(row[0], &sec); err != nil {
			return nil, fmt.Errorf("%w: kraken timestamp: %v", model.ErrParse, err)
		}
		var o, h, l, c, v string
		for i, dst := range []any{&o, &h, &l, &c} {
			if err := json.Unmarshal(row[i+1], dst); err != nil {
				return nil, fmt.Errorf("%w: kraken ohlc field %d: %v", model.ErrParse, i+1, err)
			}
		}
		if err := json.Unmarshal(row[6], &v); err != nil {
			return nil, fmt.Errorf("%w: kraken volume: %v", model.ErrParse, err)
		}
		candle, err := buildCandle(int64(sec)*1000, o, h, l, c, v)
		if err != nil {
			return nil, err
		}
		var trades int64
		if err := json.Unmarshal(row[7], &trades); err == nil {
			candle.TradesCount = &trades
		}
		candles = append(candles, candle)
	}

	candles = inRange(model.NormalizeCandles(candles), req.Start, req.End)
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

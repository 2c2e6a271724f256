package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
)

const binanceMaxLimit = 1000

// Binance serves spot klines from api.binance.com. It is the only venue
// that supports the full interval set natively.
type Binance struct {
	baseURL string
	client  *http.Client
}

func NewBinance(timeout time.Duration) *Binance {
	return &Binance{
		baseURL: "https://api.binance.com",
		client:  newHTTPClient(timeout),
	}
}

func (b *Binance) Name() string { return "binance" }

func (b *Binance) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

func (b *Binance) Fetch(ctx context.Context, req FetchRequest) ([]model.Candle, error) {
	if !req.Interval.Valid() {
		return nil, fmt.Errorf("%w: binance: %s", model.ErrUnsupportedInterval, req.Interval)
	}

	params := url.Values{}
	params.Set("symbol", req.Symbol.Join(""))
	params.Set("interval", string(req.Interval))
	params.Set("limit", strconv.Itoa(clampLimit(req.Limit, binanceMaxLimit)))
	if req.Start != nil {
		params.Set("startTime", strconv.FormatInt(*req.Start, 10))
	}
	if req.End != nil {
		// Binance endTime is inclusive; the internal convention is [start, end).
		params.Set("endTime", strconv.FormatInt(*req.End-1, 10))
	}

	body, err := getJSON(ctx, b.client, b.baseURL+"/api/v3/klines?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%w: binance klines: %v", model.ErrParse, err)
	}

	candles := make([]model.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 9 {
			return nil, fmt.Errorf("%w: binance kline row has %d fields", model.ErrParse, len(row))
		}
		var ts int64
		if err := json.Unmarshal(row[0], &ts); err != nil {
			return nil, fmt.Errorf("%w: binance open time: %v", model.ErrParse, err)
		}
		var o, h, l, c, v, qv string
		var trades int64
		for i, dst := range []any{&o, &h, &l, &c, &v} {
			if err := json.Unmarshal(row[i+1], dst); err != nil {
				return nil, fmt.Errorf("%w: binance kline field %d: %v", model.ErrParse, i+1, err)
			}
		}
		if err := json.Unmarshal(row[7], &qv); err != nil {
			return nil, fmt.Errorf("%w: binance quote volume: %v", model.ErrParse, err)
		}
		if err := json.Unmarshal(row[8], &trades); err != nil {
			return nil, fmt.Errorf("%w: binance trade count: %v", model.ErrParse, err)
		}

		candle, err := buildCandle(ts, o, h, l, c, v)
		if err != nil {
			return nil, err
		}
		quote, err := parseDec(qv)
		if err != nil {
			return nil, err
		}
		candle.QuoteVolume = &quote
		candle.TradesCount = &trades
		candles = append(candles, candle)
	}
	return model.NormalizeCandles(candles), nil
}

// buildCandle assembles a candle from venue strings, shared by the adapters
// whose payloads are string-encoded OHLCV tuples.
func buildCandle(ts int64, o, h, l, c, v string) (model.Candle, error) {
	var candle model.Candle
	candle.Timestamp = ts
	var err error
	if candle.Open, err = parseDec(o); err != nil {
		return candle, err
	}
	if candle.High, err = parseDec(h); err != nil {
		return candle, err
	}
	if candle.Low, err = parseDec(l); err != nil {
		return candle, err
	}
	if candle.Close, err = parseDec(c); err != nil {
		return candle, err
	}
	if candle.Volume, err = parseDec(v); err != nil {
		return candle, err
	}
	return candle, nil
}

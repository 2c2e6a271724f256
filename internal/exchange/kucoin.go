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

const kucoinMaxLimit = 1500

// kucoinTypes maps internal intervals to KuCoin candle types.
var kucoinTypes = map[model.Interval]string{
	model.Interval1m:  "1min",
	model.Interval3m:  "3min",
	model.Interval5m:  "5min",
	model.Interval15m: "15min",
	model.Interval30m: "30min",
	model.Interval1h:  "1hour",
	model.Interval2h:  "2hour",
	model.Interval4h:  "4hour",
	model.Interval6h:  "6hour",
	model.Interval8h:  "8hour",
	model.Interval12h: "12hour",
	model.Interval1d:  "1day",
	model.Interval1w:  "1week",
	model.Interval1M:  "1month",
}

// Kucoin serves candles from api.kucoin.com. Rows are newest first with
// second timestamps and a [ts, open, close, high, low, volume, turnover]
// field order.
type Kucoin struct {
	baseURL string
	client  *http.Client
}

func NewKucoin(timeout time.Duration) *Kucoin {
	return &Kucoin{
		baseURL: "https://api.kucoin.com",
		client:  newHTTPClient(timeout),
	}
}

func (k *Kucoin) Name() string { return "kucoin" }

func (k *Kucoin) Close() error {
	k.client.CloseIdleConnections()
	return nil
}

func (k *Kucoin) Fetch(ctx context.Context, req FetchRequest) ([]model.Candle, error) {
	typ, ok := kucoinTypes[req.Interval]
	if !ok {
		return nil, fmt.Errorf("%w: kucoin: %s", model.ErrUnsupportedInterval, req.Interval)
	}

	params := url.Values{}
	params.Set("symbol", req.Symbol.Join("-"))
	params.Set("type", typ)
	if req.Start != nil {
		params.Set("startAt", strconv.FormatInt(*req.Start/1000, 10))
	}
	if req.End != nil {
		params.Set("endAt", strconv.FormatInt(*req.End/1000, 10))
	}

	body, err := getJSON(ctx, k.client, k.baseURL+"/api/v1/market/candles?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var payload struct {
		Code string     `json:"code"`
		Msg  string     `json:"msg"`
		Data [][]string `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: kucoin candles: %v", model.ErrParse, err)
	}
	switch payload.Code {
	case "200000":
	case "429000":
		return nil, fmt.Errorf("%w: kucoin code 429000", model.ErrRateLimited)
	default:
		return nil, fmt.Errorf("%w: kucoin code %s: %s", model.ErrTransport, payload.Code, payload.Msg)
	}

	limit := clampLimit(req.Limit, kucoinMaxLimit)
	candles := make([]model.Candle, 0, len(payload.Data))
	for _, row := range payload.Data {
		if len(row) < 7 {
			return nil, fmt.Errorf("%w: kucoin candle row has %d fields", model.ErrParse, len(row))
		}
		sec, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: kucoin timestamp %q", model.ErrParse, row[0])
		}
		// Field order is open, close, high, low.
		candle, err := buildCandle(sec*1000, row[1], row[3], row[4], row[2], row[5])
		if err != nil {
			return nil, err
		}
		if quote, err := parseDec(row[6]); err == nil {
			candle.QuoteVolume = &quote
		}
		candles = append(candles, candle)
	}

	candles = inRange(model.NormalizeCandles(candles), req.Start, req.End)
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

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

const bybitMaxLimit = 1000

// bybitIntervals maps internal intervals to Bybit v5 tokens (minutes, or
// D/W/M letters). 8h and 3d have no Bybit equivalent.
var bybitIntervals = map[model.Interval]string{
	model.Interval1m:  "1",
	model.Interval3m:  "3",
	model.Interval5m:  "5",
	model.Interval15m: "15",
	model.Interval30m: "30",
	model.Interval1h:  "60",
	model.Interval2h:  "120",
	model.Interval4h:  "240",
	model.Interval6h:  "360",
	model.Interval12h: "720",
	model.Interval1d:  "D",
	model.Interval1w:  "W",
	model.Interval1M:  "M",
}

// Bybit serves spot klines from api.bybit.com (v5 unified market API).
type Bybit struct {
	baseURL string
	client  *http.Client
}

func NewBybit(timeout time.Duration) *Bybit {
	return &Bybit{
		baseURL: "https://api.bybit.com",
		client:  newHTTPClient(timeout),
	}
}

func (b *Bybit) Name() string { return "bybit" }

func (b *Bybit) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

func (b *Bybit) Fetch(ctx context.Context, req FetchRequest) ([]model.Candle, error) {
	token, ok := bybitIntervals[req.Interval]
	if !ok {
		return nil, fmt.Errorf("%w: bybit: %s", model.ErrUnsupportedInterval, req.Interval)
	}

	params := url.Values{}
	params.Set("category", "spot")
	params.Set("symbol", req.Symbol.Join(""))
	params.Set("interval", token)
	params.Set("limit", strconv.Itoa(clampLimit(req.Limit, bybitMaxLimit)))
	if req.Start != nil {
		params.Set("start", strconv.FormatInt(*req.Start, 10))
	}
	if req.End != nil {
		// Bybit end is inclusive.
		params.Set("end", strconv.FormatInt(*req.End-1, 10))
	}

	body, err := getJSON(ctx, b.client, b.baseURL+"/v5/market/kline?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var payload struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
		Result  struct {
			List [][]string `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: bybit kline: %v", model.ErrParse, err)
	}
	// 10006 is Bybit's request-rate code; it arrives with HTTP 200.
	if payload.RetCode == 10006 {
		return nil, fmt.Errorf("%w: bybit retCode 10006", model.ErrRateLimited)
	}
	if payload.RetCode != 0 {
		return nil, fmt.Errorf("%w: bybit retCode %d: %s", model.ErrTransport, payload.RetCode, payload.RetMsg)
	}

	candles := make([]model.Candle, 0, len(payload.Result.List))
	for _, row := range payload.Result.List {
		if len(row) < 7 {
			return nil, fmt.Errorf("%w: bybit kline row has %d fields", model.ErrParse, len(row))
		}
		ts, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bybit timestamp %q", model.ErrParse, row[0])
		}
		candle, err := buildCandle(ts, row[1], row[2], row[3], row[4], row[5])
		if err != nil {
			return nil, err
		}
		if quote, err := parseDec(row[6]); err == nil {
			candle.QuoteVolume = &quote
		}
		candles = append(candles, candle)
	}
	// Newest-first on the wire.
	return model.NormalizeCandles(candles), nil
}

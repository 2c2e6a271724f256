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

const okxMaxLimit = 300

// okxBars maps internal intervals to OKX bar tokens. Hour-and-above tokens
// are the UTC variants so bars align with the other venues.
var okxBars = map[model.Interval]string{
	model.Interval1m:  "1m",
	model.Interval3m:  "3m",
	model.Interval5m:  "5m",
	model.Interval15m: "15m",
	model.Interval30m: "30m",
	model.Interval1h:  "1H",
	model.Interval2h:  "2H",
	model.Interval4h:  "4H",
	model.Interval6h:  "6Hutc",
	model.Interval12h: "12Hutc",
	model.Interval1d:  "1Dutc",
	model.Interval3d:  "3Dutc",
	model.Interval1w:  "1Wutc",
	model.Interval1M:  "1Mutc",
}

// OKX serves spot candles from www.okx.com. No 8h granularity.
type OKX struct {
	baseURL string
	client  *http.Client
}

func NewOKX(timeout time.Duration) *OKX {
	return &OKX{
		baseURL: "https://www.okx.com",
		client:  newHTTPClient(timeout),
	}
}

func (o *OKX) Name() string { return "okx" }

func (o *OKX) Close() error {
	o.client.CloseIdleConnections()
	return nil
}

func (o *OKX) Fetch(ctx context.Context, req FetchRequest) ([]model.Candle, error) {
	bar, ok := okxBars[req.Interval]
	if !ok {
		return nil, fmt.Errorf("%w: okx: %s", model.ErrUnsupportedInterval, req.Interval)
	}

	params := url.Values{}
	params.Set("instId", req.Symbol.Join("-"))
	params.Set("bar", bar)
	params.Set("limit", strconv.Itoa(clampLimit(req.Limit, okxMaxLimit)))
	// OKX pages backwards: "after" returns rows strictly older than the
	// cursor. A window wider than the limit must anchor the cursor just
	// past the head, otherwise the response is the window tail and the
	// bars abutting Start never arrive.
	path := "/api/v5/market/candles"
	if req.Start != nil {
		path = "/api/v5/market/history-candles"
	}
	if req.End != nil {
		after := *req.End
		if req.Start != nil {
			if head := *req.Start + int64(clampLimit(req.Limit, okxMaxLimit))*req.Interval.Millis(); head < after {
				after = head
			}
		}
		params.Set("after", strconv.FormatInt(after, 10))
	}

	body, err := getJSON(ctx, o.client, o.baseURL+path+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var payload struct {
		Code string     `json:"code"`
		Msg  string     `json:"msg"`
		Data [][]string `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: okx candles: %v", model.ErrParse, err)
	}
	if payload.Code != "0" {
		return nil, fmt.Errorf("%w: okx code %s: %s", model.ErrTransport, payload.Code, payload.Msg)
	}

	candles := make([]model.Candle, 0, len(payload.Data))
	for _, row := range payload.Data {
		if len(row) < 7 {
			return nil, fmt.Errorf("%w: okx candle row has %d fields", model.ErrParse, len(row))
		}
		ts, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: okx timestamp %q", model.ErrParse, row[0])
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
	return inRange(model.NormalizeCandles(candles), req.Start, req.End), nil
}

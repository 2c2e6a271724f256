package stream

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
)

const okxWSBase = "wss://ws.okx.com:8443/ws/v5/business"

// okxWSBars mirrors the REST bar tokens; the candle channel is
// "candle" + bar.
var okxWSBars = map[model.Interval]string{
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
	model.Interval1w:  "1Wutc",
	model.Interval1M:  "1Mutc",
}

type okxCandleEvent struct {
	Arg struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Data [][]string `json:"data"`
}

// parseOKXCandle reads the last row of a candle push. The ninth field is
// the confirm flag: "1" marks a closed bar.
func parseOKXCandle(frame []byte) (model.Candle, bool, bool, error) {
	var ev okxCandleEvent
	if err := json.Unmarshal(frame, &ev); err != nil {
		return model.Candle{}, false, false, fmt.Errorf("%w: okx ws frame: %v", model.ErrParse, err)
	}
	if len(ev.Data) == 0 || len(ev.Arg.Channel) < 6 || ev.Arg.Channel[:6] != "candle" {
		return model.Candle{}, false, false, nil
	}
	row := ev.Data[len(ev.Data)-1]
	if len(row) < 9 {
		return model.Candle{}, false, false, fmt.Errorf("%w: okx ws candle row has %d fields", model.ErrParse, len(row))
	}
	ts, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return model.Candle{}, false, false, fmt.Errorf("%w: okx ws timestamp %q", model.ErrParse, row[0])
	}
	candle, err := buildWSCandle(ts, row[1], row[2], row[3], row[4], row[5], row[7])
	if err != nil {
		return model.Candle{}, false, false, err
	}
	return candle, row[8] == "1", true, nil
}

// newOKXStream is the secondary websocket tier.
func newOKXStream(symbol model.Symbol, interval model.Interval, handler StreamHandler) (CandleStream, error) {
	bar, ok := okxWSBars[interval]
	if !ok {
		return nil, fmt.Errorf("%w: okx ws: %s", model.ErrUnsupportedInterval, interval)
	}
	sub, _ := json.Marshal(map[string]any{
		"op": "subscribe",
		"args": []map[string]string{{
			"channel": "candle" + bar,
			"instId":  symbol.Join("-"),
		}},
	})
	return newWSStream("okx_ws", okxWSBase, sub, parseOKXCandle, handler), nil
}

// buildWSCandle assembles a candle from string fields shared by both
// websocket payload shapes.
func buildWSCandle(ts int64, o, h, l, c, v, qv string) (model.Candle, error) {
	parse := func(s string) (decimal.Decimal, error) {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("%w: bad decimal %q", model.ErrParse, s)
		}
		return d, nil
	}
	var candle model.Candle
	candle.Timestamp = ts
	var err error
	if candle.Open, err = parse(o); err != nil {
		return candle, err
	}
	if candle.High, err = parse(h); err != nil {
		return candle, err
	}
	if candle.Low, err = parse(l); err != nil {
		return candle, err
	}
	if candle.Close, err = parse(c); err != nil {
		return candle, err
	}
	if candle.Volume, err = parse(v); err != nil {
		return candle, err
	}
	if qv != "" {
		if quote, err := parse(qv); err == nil {
			candle.QuoteVolume = &quote
		}
	}
	return candle, nil
}

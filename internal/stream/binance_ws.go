package stream

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
)

const binanceWSBase = "wss://stream.binance.com:9443/ws"

// binanceKlineEvent is the combined kline payload of the Binance stream.
type binanceKlineEvent struct {
	EventType string `json:"e"`
	Kline     struct {
		OpenTime    int64  `json:"t"`
		Open        string `json:"o"`
		High        string `json:"h"`
		Low         string `json:"l"`
		Close       string `json:"c"`
		Volume      string `json:"v"`
		QuoteVolume string `json:"q"`
		Trades      int64  `json:"n"`
		IsClosed    bool   `json:"x"`
	} `json:"k"`
}

func parseBinanceKline(frame []byte) (model.Candle, bool, bool, error) {
	var ev binanceKlineEvent
	if err := json.Unmarshal(frame, &ev); err != nil {
		return model.Candle{}, false, false, fmt.Errorf("%w: binance ws frame: %v", model.ErrParse, err)
	}
	if ev.EventType != "kline" {
		return model.Candle{}, false, false, nil
	}
	candle, err := buildWSCandle(ev.Kline.OpenTime, ev.Kline.Open, ev.Kline.High, ev.Kline.Low, ev.Kline.Close, ev.Kline.Volume, ev.Kline.QuoteVolume)
	if err != nil {
		return model.Candle{}, false, false, err
	}
	trades := ev.Kline.Trades
	candle.TradesCount = &trades
	return candle, ev.Kline.IsClosed, true, nil
}

// newBinanceStream is the primary websocket tier.
func newBinanceStream(symbol model.Symbol, interval model.Interval, handler StreamHandler) CandleStream {
	stream := strings.ToLower(symbol.Join("")) + "@kline_" + string(interval)
	return newWSStream("binance_ws", binanceWSBase+"/"+stream, nil, parseBinanceKline, handler)
}

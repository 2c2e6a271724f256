package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
)

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func req(sym model.Symbol, iv model.Interval, limit int) FetchRequest {
	return FetchRequest{Symbol: sym, Interval: iv, Limit: limit}
}

func TestBinanceFetch(t *testing.T) {
	srv := serve(t, 200, `[
		[1609459200000,"29000.1","29500.2","28900.0","29400.5","120.5",1609462799999,"3537000.0",4521,"60.2","1768000.0","0"],
		[1609462800000,"29400.5","29800.0","29300.0","29750.0","98.1",1609466399999,"2905000.0",3890,"49.0","1452000.0","0"]
	]`)

	b := NewBinance(time.Second)
	b.baseURL = srv.URL

	candles, err := b.Fetch(context.Background(), req("BTC/USDT", model.Interval1h, 2))
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(1609459200000), candles[0].Timestamp)
	assert.Equal(t, "29400.5", candles[0].Close.String())
	require.NotNil(t, candles[0].QuoteVolume)
	assert.Equal(t, "3537000", candles[0].QuoteVolume.String())
	require.NotNil(t, candles[0].TradesCount)
	assert.Equal(t, int64(4521), *candles[0].TradesCount)
	assert.NoError(t, candles[0].Validate())
}

func TestBinanceRateLimited(t *testing.T) {
	srv := serve(t, 429, `{"code":-1003,"msg":"Too many requests."}`)
	b := NewBinance(time.Second)
	b.baseURL = srv.URL

	_, err := b.Fetch(context.Background(), req("BTC/USDT", model.Interval1h, 10))
	assert.ErrorIs(t, err, model.ErrRateLimited)
}

func TestBinanceTransportError(t *testing.T) {
	srv := serve(t, 502, `bad gateway`)
	b := NewBinance(time.Second)
	b.baseURL = srv.URL

	_, err := b.Fetch(context.Background(), req("BTC/USDT", model.Interval1h, 10))
	assert.ErrorIs(t, err, model.ErrTransport)
}

func TestBinanceParseError(t *testing.T) {
	srv := serve(t, 200, `{"not":"an array"}`)
	b := NewBinance(time.Second)
	b.baseURL = srv.URL

	_, err := b.Fetch(context.Background(), req("BTC/USDT", model.Interval1h, 10))
	assert.ErrorIs(t, err, model.ErrParse)
}

func TestBinanceEmptyRange(t *testing.T) {
	srv := serve(t, 200, `[]`)
	b := NewBinance(time.Second)
	b.baseURL = srv.URL

	candles, err := b.Fetch(context.Background(), req("BTC/USDT", model.Interval1h, 10))
	require.NoError(t, err)
	assert.Empty(t, candles)
}

func TestOKXFetchReversesNewestFirst(t *testing.T) {
	srv := serve(t, 200, `{"code":"0","msg":"","data":[
		["1609462800000","29400.5","29800.0","29300.0","29750.0","98.1","2905000.0","2905000.0","1"],
		["1609459200000","29000.1","29500.2","28900.0","29400.5","120.5","3537000.0","3537000.0","1"]
	]}`)

	o := NewOKX(time.Second)
	o.baseURL = srv.URL

	candles, err := o.Fetch(context.Background(), req("BTC/USDT", model.Interval1h, 2))
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Less(t, candles[0].Timestamp, candles[1].Timestamp)
	assert.Equal(t, "29400.5", candles[0].Close.String())
}

func TestOKXClampsBackwardCursorToWindowHead(t *testing.T) {
	var after string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		after = r.URL.Query().Get("after")
		w.Write([]byte(`{"code":"0","msg":"","data":[]}`))
	}))
	t.Cleanup(srv.Close)

	o := NewOKX(time.Second)
	o.baseURL = srv.URL

	// A window far wider than one page: the backwards cursor must anchor
	// just past the head so the oldest bars of the window come back.
	start := int64(1_600_000_000_000)
	end := start + 10_000*3_600_000
	r := req("BTC/USDT", model.Interval1h, 1000)
	r.Start, r.End = &start, &end

	_, err := o.Fetch(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatInt(start+300*3_600_000, 10), after)

	// A window narrower than one page keeps its own end.
	narrowEnd := start + 50*3_600_000
	r.End = &narrowEnd
	_, err = o.Fetch(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatInt(narrowEnd, 10), after)
}

func TestOKXUnsupportedInterval(t *testing.T) {
	o := NewOKX(time.Second)
	_, err := o.Fetch(context.Background(), req("BTC/USDT", model.Interval8h, 10))
	assert.ErrorIs(t, err, model.ErrUnsupportedInterval)
}

func TestBybitRateLimitedRetCode(t *testing.T) {
	srv := serve(t, 200, `{"retCode":10006,"retMsg":"Too many visits!","result":{}}`)
	b := NewBybit(time.Second)
	b.baseURL = srv.URL

	_, err := b.Fetch(context.Background(), req("BTC/USDT", model.Interval1h, 10))
	assert.ErrorIs(t, err, model.ErrRateLimited)
}

func TestBybitFetch(t *testing.T) {
	srv := serve(t, 200, `{"retCode":0,"retMsg":"OK","result":{"category":"spot","symbol":"BTCUSDT","list":[
		["1609462800000","29400.5","29800.0","29300.0","29750.0","98.1","2905000.0"],
		["1609459200000","29000.1","29500.2","28900.0","29400.5","120.5","3537000.0"]
	]}}`)

	b := NewBybit(time.Second)
	b.baseURL = srv.URL

	candles, err := b.Fetch(context.Background(), req("BTC/USDT", model.Interval1h, 2))
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(1609459200000), candles[0].Timestamp)
	assert.NoError(t, candles[1].Validate())
}

func TestCoinbaseFetchSecondsToMillis(t *testing.T) {
	srv := serve(t, 200, `[
		[1609462800, 29300.0, 29800.0, 29400.5, 29750.0, 98.1],
		[1609459200, 28900.0, 29500.2, 29000.1, 29400.5, 120.5]
	]`)

	c := NewCoinbase(time.Second)
	c.baseURL = srv.URL

	candles, err := c.Fetch(context.Background(), req("BTC/USD", model.Interval1h, 2))
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(1609459200000), candles[0].Timestamp)
	assert.Equal(t, "29000.1", candles[0].Open.String())
	assert.NoError(t, candles[0].Validate())
}

func TestCoinbaseUnsupportedInterval(t *testing.T) {
	c := NewCoinbase(time.Second)
	_, err := c.Fetch(context.Background(), req("BTC/USD", model.Interval4h, 10))
	assert.ErrorIs(t, err, model.ErrUnsupportedInterval)
}

func TestKrakenFetch(t *testing.T) {
	srv := serve(t, 200, `{"error":[],"result":{"XXBTZUSD":[
		[1609459200,"29000.1","29500.2","28900.0","29400.5","29200.0","120.5",4521],
		[1609462800,"29400.5","29800.0","29300.0","29750.0","29600.0","98.1",3890]
	],"last":1609462800}}`)

	k := NewKraken(time.Second)
	k.baseURL = srv.URL

	candles, err := k.Fetch(context.Background(), req("BTC/USDT", model.Interval1h, 2))
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(1609459200000), candles[0].Timestamp)
	require.NotNil(t, candles[0].TradesCount)
	assert.Equal(t, int64(4521), *candles[0].TradesCount)
}

func TestKrakenRateLimited(t *testing.T) {
	srv := serve(t, 200, `{"error":["EAPI:Rate limit exceeded"],"result":{}}`)
	k := NewKraken(time.Second)
	k.baseURL = srv.URL

	_, err := k.Fetch(context.Background(), req("BTC/USDT", model.Interval1h, 10))
	assert.ErrorIs(t, err, model.ErrRateLimited)
}

func TestKucoinFieldOrder(t *testing.T) {
	// KuCoin rows are [ts, open, close, high, low, volume, turnover].
	srv := serve(t, 200, `{"code":"200000","data":[
		["1609462800","29400.5","29750.0","29800.0","29300.0","98.1","2905000.0"],
		["1609459200","29000.1","29400.5","29500.2","28900.0","120.5","3537000.0"]
	]}`)

	k := NewKucoin(time.Second)
	k.baseURL = srv.URL

	candles, err := k.Fetch(context.Background(), req("BTC/USDT", model.Interval1h, 2))
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, "29000.1", candles[0].Open.String())
	assert.Equal(t, "29400.5", candles[0].Close.String())
	assert.Equal(t, "29500.2", candles[0].High.String())
	assert.Equal(t, "28900", candles[0].Low.String())
	assert.NoError(t, candles[0].Validate())
}

func TestAllAdapters(t *testing.T) {
	adapters := All(time.Second)
	require.Len(t, adapters, 6)
	names := make(map[string]bool)
	for _, a := range adapters {
		names[a.Name()] = true
		assert.NoError(t, a.Close())
	}
	for _, want := range []string{"binance", "okx", "bybit", "coinbase", "kraken", "kucoin"} {
		assert.True(t, names[want], want)
	}
}

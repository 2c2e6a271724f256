package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestParseInterval(t *testing.T) {
	iv, err := ParseInterval(" 4h ")
	require.NoError(t, err)
	assert.Equal(t, Interval4h, iv)
	assert.Equal(t, int64(4*3600*1000), iv.Millis())

	_, err = ParseInterval("7h")
	assert.ErrorIs(t, err, ErrUnsupportedInterval)
}

func TestIntervalAlignment(t *testing.T) {
	// 2021-01-01T00:10:30Z inside the 00:00 hourly bar
	ts := int64(1609459830000)
	assert.Equal(t, int64(1609459200000), Interval1h.AlignDown(ts))
	assert.Equal(t, int64(1609462800000), Interval1h.AlignUp(ts))
	// boundary stays put
	assert.Equal(t, int64(1609459200000), Interval1h.AlignUp(1609459200000))
}

func TestParseSymbol(t *testing.T) {
	sym, err := ParseSymbol(" btc/usdt ")
	require.NoError(t, err)
	assert.Equal(t, Symbol("BTC/USDT"), sym)
	assert.Equal(t, "BTC", sym.Base())
	assert.Equal(t, "USDT", sym.Quote())
	assert.Equal(t, "BTCUSDT", sym.Join(""))
	assert.Equal(t, "BTC-USDT", sym.Join("-"))

	_, err = ParseSymbol("BTCUSDT")
	assert.Error(t, err)
}

func TestParseSymbols(t *testing.T) {
	syms, err := ParseSymbols("BTC/USDT, eth/usdt,,SOL/USDT")
	require.NoError(t, err)
	assert.Equal(t, []Symbol{"BTC/USDT", "ETH/USDT", "SOL/USDT"}, syms)
}

func TestCandleValidate(t *testing.T) {
	ok := Candle{Timestamp: 1000, Open: dec("10"), High: dec("12"), Low: dec("9"), Close: dec("11"), Volume: dec("5")}
	assert.NoError(t, ok.Validate())

	bad := ok
	bad.Close = dec("13")
	assert.Error(t, bad.Validate())

	bad = ok
	bad.Volume = dec("-1")
	assert.Error(t, bad.Validate())
}

func TestNormalizeCandles(t *testing.T) {
	c := func(ts int64, close string) Candle {
		return Candle{Timestamp: ts, Open: dec(close), High: dec(close), Low: dec(close), Close: dec(close), Volume: dec("1")}
	}
	in := []Candle{c(3000, "3"), c(1000, "1"), c(2000, "2"), c(2000, "2.5")}
	out := NormalizeCandles(in)
	require.Len(t, out, 3)
	assert.Equal(t, int64(1000), out[0].Timestamp)
	assert.Equal(t, int64(2000), out[1].Timestamp)
	// duplicate keeps the last occurrence
	assert.Equal(t, dec("2.5"), out[1].Close)
	assert.Equal(t, int64(3000), out[2].Timestamp)
}

func TestComponentScoreInvariant(t *testing.T) {
	cs := ComponentScore{Name: "technical", Score: 80, Weight: 0.3, WeightedScore: 24}
	assert.InDelta(t, cs.Score*cs.Weight, cs.WeightedScore, 1e-9)
}

func TestPatternSummarySignal(t *testing.T) {
	assert.Equal(t, SignalBullish, PatternSummary{BullishCount: 2, BearishCount: 1}.Signal())
	assert.Equal(t, SignalBearish, PatternSummary{BullishCount: 0, BearishCount: 1}.Signal())
	assert.Equal(t, SignalNeutral, PatternSummary{}.Signal())
}

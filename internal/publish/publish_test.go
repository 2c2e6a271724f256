package publish

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/stream"
)

func bufPublisher() (*LogPublisher, *bytes.Buffer) {
	var buf bytes.Buffer
	return &LogPublisher{logger: zerolog.New(&buf)}, &buf
}

func lastEvent(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)
	var ev map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &ev))
	return ev
}

func TestPublishIndicatorBundleKeepsNullFields(t *testing.T) {
	p, buf := bufPublisher()
	ti := model.TechnicalIndicators{
		Symbol:    "BTC/USDT",
		Timeframe: model.Interval1d,
		Timestamp: 1700000000000,
		Price:     50000,
	}
	p.PublishIndicatorBundle("BTC/USDT", model.Interval1d, ti)

	ev := lastEvent(t, buf)
	assert.Equal(t, "indicator_bundle", ev["event"])
	payload, ok := ev["payload"].(map[string]any)
	require.True(t, ok)

	// Absent indicators must appear as explicit nulls, never dropped.
	v, present := payload["rsi"]
	assert.True(t, present)
	assert.Nil(t, v)
	assert.Equal(t, 50000.0, payload["price"])
}

func TestPublishLiveCandle(t *testing.T) {
	p, buf := bufPublisher()
	c := model.Candle{
		Timestamp: 1700000000000,
		Open:      decimal.NewFromInt(100),
		High:      decimal.NewFromInt(101),
		Low:       decimal.NewFromInt(99),
		Close:     decimal.NewFromInt(100),
		Volume:    decimal.NewFromInt(5),
	}
	p.PublishLiveCandle("ETH/USDT", c, true, stream.SourceSecondaryWS)

	ev := lastEvent(t, buf)
	assert.Equal(t, "live_candle", ev["event"])
	payload := ev["payload"].(map[string]any)
	assert.Equal(t, "ETH/USDT", payload["symbol"])
	assert.Equal(t, true, payload["is_closed"])
	assert.Equal(t, "secondary_ws", payload["source"])
}

func TestPublishBackfillProgress(t *testing.T) {
	p, buf := bufPublisher()
	p.PublishBackfillProgress(model.BackfillProgress{
		Status: model.BackfillRunning,
		Crypto: model.CryptoProgress{SymbolsTotal: 2, SymbolsDone: 1},
	})

	ev := lastEvent(t, buf)
	assert.Equal(t, "backfill_progress", ev["event"])
	payload := ev["payload"].(map[string]any)
	assert.Equal(t, "running", payload["status"])
}

package breaker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/exchange"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
)

type flakyExchange struct {
	name  string
	calls int
	fail  bool
}

func (f *flakyExchange) Name() string { return f.name }
func (f *flakyExchange) Close() error { return nil }

func (f *flakyExchange) Fetch(ctx context.Context, req exchange.FetchRequest) ([]model.Candle, error) {
	f.calls++
	if f.fail {
		return nil, fmt.Errorf("%w: down", model.ErrTransport)
	}
	return []model.Candle{{Timestamp: 1000}}, nil
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakyExchange{name: "binance", fail: true}
	ex := Wrap(inner, Settings{MaxFailures: 3, OpenFor: time.Minute})

	req := exchange.FetchRequest{Symbol: "BTC/USDT", Interval: model.Interval1h, Limit: 10}
	for i := 0; i < 3; i++ {
		_, err := ex.Fetch(context.Background(), req)
		assert.ErrorIs(t, err, model.ErrTransport)
	}

	// Breaker is open now; the adapter must not be called again.
	before := inner.calls
	_, err := ex.Fetch(context.Background(), req)
	assert.ErrorIs(t, err, model.ErrTransport)
	assert.Equal(t, before, inner.calls)
}

func TestBreakerPassesThroughSuccess(t *testing.T) {
	inner := &flakyExchange{name: "okx"}
	ex := Wrap(inner, DefaultSettings())

	candles, err := ex.Fetch(context.Background(), exchange.FetchRequest{Symbol: "BTC/USDT", Interval: model.Interval1h})
	require.NoError(t, err)
	assert.Len(t, candles, 1)
	assert.Equal(t, "okx", ex.Name())
}

func TestWrapAll(t *testing.T) {
	wrapped := WrapAll([]exchange.Exchange{&flakyExchange{name: "a"}, &flakyExchange{name: "b"}}, DefaultSettings())
	require.Len(t, wrapped, 2)
	assert.Equal(t, "a", wrapped[0].Name())
}

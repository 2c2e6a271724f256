package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/exchange"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
)

type fakeStream struct {
	source  Source
	handler StreamHandler

	mu      sync.Mutex
	stopped bool
}

func (f *fakeStream) Start() error { return nil }

func (f *fakeStream) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *fakeStream) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

// scriptedFactory hands out fake streams and remembers them per source so
// tests can drive handler events directly.
type scriptedFactory struct {
	mu      sync.Mutex
	streams map[Source][]*fakeStream
	errs    map[Source]error
}

func newScriptedFactory() *scriptedFactory {
	return &scriptedFactory{
		streams: make(map[Source][]*fakeStream),
		errs:    make(map[Source]error),
	}
}

func (f *scriptedFactory) build(source Source, _ model.Symbol, _ model.Interval, handler StreamHandler) (CandleStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[source]; err != nil {
		return nil, err
	}
	fs := &fakeStream{source: source, handler: handler}
	f.streams[source] = append(f.streams[source], fs)
	return fs, nil
}

func (f *scriptedFactory) last(source Source) *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	ss := f.streams[source]
	if len(ss) == 0 {
		return nil
	}
	return ss[len(ss)-1]
}

func (f *scriptedFactory) count(source Source) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.streams[source])
}

type fakeFetcher struct {
	mu  sync.Mutex
	res *model.FetchResult
	err error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ exchange.FetchRequest) (*model.FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.res, f.err
}

type candleEvent struct {
	symbol model.Symbol
	candle model.Candle
	closed bool
	source Source
}

type changeEvent struct {
	symbol model.Symbol
	from   Source
	to     Source
}

type capture struct {
	candles chan candleEvent
	changes chan changeEvent
}

func newCapture() *capture {
	return &capture{
		candles: make(chan candleEvent, 64),
		changes: make(chan changeEvent, 64),
	}
}

func (c *capture) callbacks() Callbacks {
	return Callbacks{
		OnCandle: func(symbol model.Symbol, candle model.Candle, closed bool, source Source) {
			c.candles <- candleEvent{symbol: symbol, candle: candle, closed: closed, source: source}
		},
		OnSourceChange: func(symbol model.Symbol, from, to Source) {
			c.changes <- changeEvent{symbol: symbol, from: from, to: to}
		},
	}
}

func waitCandle(t *testing.T, ch <-chan candleEvent) candleEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for candle event")
		return candleEvent{}
	}
}

func waitChange(t *testing.T, ch <-chan changeEvent) changeEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for source change")
		return changeEvent{}
	}
}

func liveCandle(ts int64, close int64) model.Candle {
	price := decimal.NewFromInt(close)
	return model.Candle{
		Timestamp: ts,
		Open:      price,
		High:      price,
		Low:       price,
		Close:     price,
		Volume:    decimal.NewFromInt(10),
	}
}

func statusFor(t *testing.T, m *Manager, symbol model.Symbol) SymbolStatus {
	t.Helper()
	for _, st := range m.Status() {
		if st.Symbol == symbol {
			return st
		}
	}
	t.Fatalf("no status for %s", symbol)
	return SymbolStatus{}
}

func quietConfig() Config {
	return Config{
		Interval:        model.Interval1m,
		FallbackTimeout: time.Hour,
		MaxErrors:       3,
		RESTPollEvery:   time.Hour,
		MonitorEvery:    time.Hour,
	}
}

const btc = model.Symbol("BTC/USDT")

func TestManagerDemotesAfterRepeatedDisconnects(t *testing.T) {
	factory := newScriptedFactory()
	cap := newCapture()
	m := NewManager(quietConfig(), []model.Symbol{btc}, nil, cap.callbacks(), factory.build)
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	primary := factory.last(SourcePrimaryWS)
	require.NotNil(t, primary)

	for i := int64(1); i <= 4; i++ {
		primary.handler.OnCandle(liveCandle(i*60_000, 100+i), true)
		ev := waitCandle(t, cap.candles)
		assert.Equal(t, SourcePrimaryWS, ev.source)
	}

	// Each disconnect reconnects at the same tier until the threshold.
	for i := 0; i < 3; i++ {
		factory.last(SourcePrimaryWS).handler.OnDisconnect(errors.New("conn reset"))
	}

	change := waitChange(t, cap.changes)
	assert.Equal(t, btc, change.symbol)
	assert.Equal(t, SourcePrimaryWS, change.from)
	assert.Equal(t, SourceSecondaryWS, change.to)

	secondary := factory.last(SourceSecondaryWS)
	require.NotNil(t, secondary)
	assert.True(t, primary.isStopped())

	// The secondary picks up at or after the last primary bar.
	secondary.handler.OnCandle(liveCandle(4*60_000, 105), true)
	ev := waitCandle(t, cap.candles)
	assert.Equal(t, SourceSecondaryWS, ev.source)
	assert.GreaterOrEqual(t, ev.candle.Timestamp, int64(4*60_000))

	st := statusFor(t, m, btc)
	assert.Equal(t, SourceSecondaryWS, st.Source)
	assert.Equal(t, 0, st.ErrorCount)
}

func TestManagerReconnectsBelowThreshold(t *testing.T) {
	factory := newScriptedFactory()
	cap := newCapture()
	m := NewManager(quietConfig(), []model.Symbol{btc}, nil, cap.callbacks(), factory.build)
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	first := factory.last(SourcePrimaryWS)
	first.handler.OnDisconnect(errors.New("flap"))
	assert.Equal(t, 2, factory.count(SourcePrimaryWS))
	assert.Equal(t, SourcePrimaryWS, statusFor(t, m, btc).Source)

	// The replaced instance is closed, and its late events no longer
	// reach the manager.
	assert.True(t, first.isStopped())
	first.handler.OnCandle(liveCandle(30_000, 99), true)
	assert.Empty(t, cap.candles)

	// A candle from the live replacement clears the strike count.
	factory.last(SourcePrimaryWS).handler.OnCandle(liveCandle(60_000, 100), true)
	waitCandle(t, cap.candles)
	assert.Equal(t, 0, statusFor(t, m, btc).ErrorCount)
}

func TestManagerDropsStaleAndNonMonotonicCandles(t *testing.T) {
	factory := newScriptedFactory()
	cap := newCapture()
	m := NewManager(quietConfig(), []model.Symbol{btc}, nil, cap.callbacks(), factory.build)
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	primary := factory.last(SourcePrimaryWS)
	primary.handler.OnCandle(liveCandle(5*60_000, 100), true)
	waitCandle(t, cap.candles)

	for i := 0; i < 3; i++ {
		factory.last(SourcePrimaryWS).handler.OnDisconnect(errors.New("gone"))
	}
	waitChange(t, cap.changes)
	secondary := factory.last(SourceSecondaryWS)

	// The replaced primary keeps a live handler for a moment; its events
	// must be ignored.
	primary.handler.OnCandle(liveCandle(6*60_000, 101), true)
	// Older-than-last bars from the new source are suppressed too.
	secondary.handler.OnCandle(liveCandle(4*60_000, 99), true)

	secondary.handler.OnCandle(liveCandle(5*60_000, 100), true)
	ev := waitCandle(t, cap.candles)
	assert.Equal(t, int64(5*60_000), ev.candle.Timestamp)
	assert.Equal(t, SourceSecondaryWS, ev.source)
	assert.Empty(t, cap.candles)
}

func TestManagerFallsThroughToRESTWhenSecondaryUnavailable(t *testing.T) {
	factory := newScriptedFactory()
	factory.errs[SourceSecondaryWS] = errors.New("pair not listed")
	cap := newCapture()

	cfg := quietConfig()
	cfg.MaxErrors = 1
	cfg.RESTPollEvery = 5 * time.Millisecond

	fetcher := &fakeFetcher{res: &model.FetchResult{
		Candles: []model.Candle{
			liveCandle(60_000, 100),
			liveCandle(120_000, 101),
			liveCandle(180_000, 102), // newest bar may still be open
		},
	}}

	m := NewManager(cfg, []model.Symbol{btc}, fetcher, cap.callbacks(), factory.build)
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	factory.last(SourcePrimaryWS).handler.OnDisconnect(errors.New("down"))

	first := waitChange(t, cap.changes)
	assert.Equal(t, SourcePrimaryWS, first.from)
	assert.Equal(t, SourceSecondaryWS, first.to)
	second := waitChange(t, cap.changes)
	assert.Equal(t, SourceSecondaryWS, second.from)
	assert.Equal(t, SourceREST, second.to)

	ev := waitCandle(t, cap.candles)
	assert.Equal(t, SourceREST, ev.source)
	assert.True(t, ev.closed)
	assert.Equal(t, int64(120_000), ev.candle.Timestamp)
}

func TestManagerMonitorForcesDemotionOnQuietStream(t *testing.T) {
	factory := newScriptedFactory()
	cap := newCapture()

	cfg := quietConfig()
	cfg.FallbackTimeout = 20 * time.Millisecond
	cfg.MonitorEvery = 5 * time.Millisecond

	m := NewManager(cfg, []model.Symbol{btc}, nil, cap.callbacks(), factory.build)
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	change := waitChange(t, cap.changes)
	assert.Equal(t, SourcePrimaryWS, change.from)
	assert.Equal(t, SourceSecondaryWS, change.to)
	require.NotNil(t, factory.last(SourceSecondaryWS))
}

func TestManagerRetryPrimary(t *testing.T) {
	factory := newScriptedFactory()
	cap := newCapture()
	m := NewManager(quietConfig(), []model.Symbol{btc}, nil, cap.callbacks(), factory.build)
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	for i := 0; i < 3; i++ {
		factory.last(SourcePrimaryWS).handler.OnDisconnect(errors.New("down"))
	}
	waitChange(t, cap.changes)
	secondary := factory.last(SourceSecondaryWS)

	require.NoError(t, m.RetryPrimary(btc))
	change := waitChange(t, cap.changes)
	assert.Equal(t, SourceSecondaryWS, change.from)
	assert.Equal(t, SourcePrimaryWS, change.to)
	assert.True(t, secondary.isStopped())
	assert.Equal(t, SourcePrimaryWS, statusFor(t, m, btc).Source)

	// Already at the top tier: nothing happens.
	require.NoError(t, m.RetryPrimary(btc))
	assert.Empty(t, cap.changes)

	assert.Error(t, m.RetryPrimary(model.Symbol("XRP/USDT")))
}

func TestManagerStopIsIdempotent(t *testing.T) {
	factory := newScriptedFactory()
	m := NewManager(quietConfig(), []model.Symbol{btc, "ETH/USDT"}, nil, Callbacks{}, factory.build)
	require.NoError(t, m.Start(context.Background()))

	m.Stop()
	m.Stop()

	assert.True(t, factory.last(SourcePrimaryWS).isStopped())
}

func TestParseBinanceKline(t *testing.T) {
	frame := []byte(`{"e":"kline","k":{"t":1700000000000,"o":"100.5","h":"101","l":"99.5","c":"100.9","v":"12.5","q":"1260.1","n":42,"x":true}}`)
	c, closed, ok, err := parseBinanceKline(frame)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, closed)
	assert.Equal(t, int64(1700000000000), c.Timestamp)
	assert.Equal(t, "100.9", c.Close.String())
	require.NotNil(t, c.TradesCount)
	assert.Equal(t, int64(42), *c.TradesCount)

	_, _, ok, err = parseBinanceKline([]byte(`{"e":"trade"}`))
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, _, err = parseBinanceKline([]byte(`{"e":"kline","k":{"t":1,"o":"bad"}}`))
	assert.ErrorIs(t, err, model.ErrParse)
}

func TestParseOKXCandle(t *testing.T) {
	frame := []byte(`{"arg":{"channel":"candle1m","instId":"BTC-USDT"},"data":[["1700000000000","100","101","99","100.5","3.2","320","321","1"]]}`)
	c, closed, ok, err := parseOKXCandle(frame)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, closed)
	assert.Equal(t, "100.5", c.Close.String())
	require.NotNil(t, c.QuoteVolume)
	assert.Equal(t, "321", c.QuoteVolume.String())

	// Unconfirmed bar.
	open := []byte(`{"arg":{"channel":"candle1m","instId":"BTC-USDT"},"data":[["1700000060000","100","101","99","100.5","3.2","320","321","0"]]}`)
	_, closed, ok, err = parseOKXCandle(open)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, closed)

	// Subscription ack carries no data.
	_, _, ok, err = parseOKXCandle([]byte(`{"event":"subscribe","arg":{"channel":"candle1m"}}`))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOKXStreamRejectsUnsupportedInterval(t *testing.T) {
	_, err := newOKXStream(btc, model.Interval8h, nil)
	assert.ErrorIs(t, err, model.ErrUnsupportedInterval)
}
